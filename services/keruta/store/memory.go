package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/keruta-io/keruta/services/keruta/db/models"
)

// Memory keeps every entity in maps guarded by a single mutex. Values are copied on the way
// in and out so callers never share state with the store.
type Memory struct {
	mu           sync.RWMutex
	seq          int64
	tasks        map[string]models.Task
	jobs         map[string]models.Job
	repositories map[string]models.Repository
}

func NewMemory() *Memory {
	return &Memory{
		tasks:        make(map[string]models.Task),
		jobs:         make(map[string]models.Job),
		repositories: make(map[string]models.Repository),
	}
}

func copyTask(t models.Task) models.Task {
	if t.AdditionalEnv != nil {
		env := make(map[string]string, len(t.AdditionalEnv))
		for k, v := range t.AdditionalEnv {
			env[k] = v
		}
		t.AdditionalEnv = env
	}
	if t.Documents != nil {
		t.Documents = append(t.Documents[:0:0], t.Documents...)
	}
	if t.ParentTaskID != nil {
		p := *t.ParentTaskID
		t.ParentTaskID = &p
	}
	if t.RepositoryID != nil {
		r := *t.RepositoryID
		t.RepositoryID = &r
	}
	return t
}

func copyJob(j models.Job) models.Job {
	if j.AdditionalEnv != nil {
		env := make(map[string]string, len(j.AdditionalEnv))
		for k, v := range j.AdditionalEnv {
			env[k] = v
		}
		j.AdditionalEnv = env
	}
	return j
}

// sortQueue orders by priority, highest first, then insertion order.
func sortQueue(tasks []models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Priority != tasks[j].Priority {
			return tasks[i].Priority > tasks[j].Priority
		}
		return tasks[i].Seq < tasks[j].Seq
	})
}

func (m *Memory) CreateTask(_ context.Context, task *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[task.ID]; ok {
		return fmt.Errorf("task %s already exists", task.ID)
	}
	m.seq++
	task.Seq = m.seq
	m.tasks[task.ID] = copyTask(*task)
	return nil
}

func (m *Memory) GetTask(_ context.Context, id string) (*models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, nil
	}
	t = copyTask(t)
	return &t, nil
}

func (m *Memory) filterTasks(keep func(models.Task) bool) []models.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var tasks []models.Task
	for _, t := range m.tasks {
		if keep(t) {
			tasks = append(tasks, copyTask(t))
		}
	}
	sortQueue(tasks)
	return tasks
}

func (m *Memory) ListTasks(_ context.Context) ([]models.Task, error) {
	return m.filterTasks(func(models.Task) bool { return true }), nil
}

func (m *Memory) ListTasksByParent(_ context.Context, parentID string) ([]models.Task, error) {
	tasks := m.filterTasks(func(t models.Task) bool {
		return t.ParentTaskID != nil && *t.ParentTaskID == parentID
	})
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Seq < tasks[j].Seq })
	return tasks, nil
}

func (m *Memory) FindTasksByStatus(_ context.Context, status models.TaskStatus) ([]models.Task, error) {
	return m.filterTasks(func(t models.Task) bool { return t.Status == status }), nil
}

func (m *Memory) FindNextInQueue(ctx context.Context) (*models.Task, error) {
	pending, _ := m.FindTasksByStatus(ctx, models.TaskStatusPending)
	if len(pending) == 0 {
		return nil, nil
	}
	return &pending[0], nil
}

func (m *Memory) SaveTask(_ context.Context, task *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.tasks[task.ID]; ok {
		task.Seq = existing.Seq
	} else {
		m.seq++
		task.Seq = m.seq
	}
	m.tasks[task.ID] = copyTask(*task)
	return nil
}

func (m *Memory) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.tasks, id)
	return nil
}

func (m *Memory) CreateJob(_ context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	m.jobs[job.ID] = copyJob(*job)
	return nil
}

func (m *Memory) GetJob(_ context.Context, id string) (*models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	j = copyJob(j)
	return &j, nil
}

// filterJobs returns matching jobs ordered by creation time, newest first unless oldestFirst.
func (m *Memory) filterJobs(oldestFirst bool, keep func(models.Job) bool) []models.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var jobs []models.Job
	for _, j := range m.jobs {
		if keep(j) {
			jobs = append(jobs, copyJob(j))
		}
	}
	sort.SliceStable(jobs, func(a, b int) bool {
		if oldestFirst {
			return jobs[a].CreatedAt.Before(jobs[b].CreatedAt)
		}
		return jobs[a].CreatedAt.After(jobs[b].CreatedAt)
	})
	return jobs
}

func (m *Memory) ListJobs(_ context.Context) ([]models.Job, error) {
	return m.filterJobs(false, func(models.Job) bool { return true }), nil
}

func (m *Memory) ListJobsByTask(_ context.Context, taskID string) ([]models.Job, error) {
	return m.filterJobs(false, func(j models.Job) bool { return j.TaskID == taskID }), nil
}

func (m *Memory) FindJobsByStatus(_ context.Context, status models.JobStatus) ([]models.Job, error) {
	return m.filterJobs(true, func(j models.Job) bool { return j.Status == status }), nil
}

func (m *Memory) SaveJob(_ context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jobs[job.ID] = copyJob(*job)
	return nil
}

func (m *Memory) DeleteJob(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.jobs, id)
	return nil
}

func (m *Memory) CreateRepository(_ context.Context, repo *models.Repository) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.repositories[repo.ID]; ok {
		return fmt.Errorf("repository %s already exists", repo.ID)
	}
	m.repositories[repo.ID] = *repo
	return nil
}

func (m *Memory) GetRepository(_ context.Context, id string) (*models.Repository, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.repositories[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Memory) ListRepositories(_ context.Context) ([]models.Repository, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	repos := make([]models.Repository, 0, len(m.repositories))
	for _, r := range m.repositories {
		repos = append(repos, r)
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].CreatedAt.After(repos[j].CreatedAt) })
	return repos, nil
}

func (m *Memory) SaveRepository(_ context.Context, repo *models.Repository) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.repositories[repo.ID] = *repo
	return nil
}

func (m *Memory) DeleteRepository(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.repositories, id)
	return nil
}
