// Package storetest holds the behaviour every service.Store implementation must share.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/keruta-io/keruta/pkg/utils"
	"github.com/keruta-io/keruta/services/keruta/db/models"
	"github.com/keruta-io/keruta/services/keruta/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises s. The store must be empty.
func Run(t *testing.T, s service.Store) {
	t.Run("tasks", func(t *testing.T) { tasks(t, s) })
	t.Run("jobs", func(t *testing.T) { jobs(t, s) })
	t.Run("repositories", func(t *testing.T) { repositories(t, s) })
	t.Run("concurrent task creates", func(t *testing.T) { concurrentTaskCreates(t, s) })
}

func concurrentTaskCreates(t *testing.T, s service.Store) {
	ctx := context.Background()
	const n = 16

	created := make([]*models.Task, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			created[i] = task(fmt.Sprintf("concurrent-%d", i), 0)
			errs[i] = s.CreateTask(ctx, created[i])
		}(i)
	}
	wg.Wait()

	seqs := make(map[int64]string, n)
	for i, tk := range created {
		require.NoError(t, errs[i])
		stored, err := s.GetTask(ctx, tk.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, tk.Seq, stored.Seq)
		if other, dup := seqs[stored.Seq]; dup {
			t.Errorf("tasks %s and %s share seq %d", other, stored.ID, stored.Seq)
		}
		seqs[stored.Seq] = stored.ID
	}
}

func task(id string, priority int) *models.Task {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &models.Task{
		ID:            id,
		Title:         "task " + id,
		Priority:      priority,
		Status:        models.TaskStatusPending,
		Documents:     []string{"doc-" + id},
		AdditionalEnv: map[string]string{"FOO": id},
		Resources:     models.Resources{CPU: "500m", Memory: "1Gi"},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func ids(tasks []models.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func tasks(t *testing.T, s service.Store) {
	ctx := context.Background()

	missing, err := s.GetTask(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	next, err := s.FindNextInQueue(ctx)
	require.NoError(t, err)
	assert.Nil(t, next, "empty queue")

	for _, tk := range []*models.Task{task("low", 1), task("high-1", 5), task("high-2", 5)} {
		require.NoError(t, s.CreateTask(ctx, tk))
		assert.NotZero(t, tk.Seq)
	}
	child := task("child", 9)
	child.ParentTaskID = utils.GetPointer("high-1")
	require.NoError(t, s.CreateTask(ctx, child))
	assert.Error(t, s.CreateTask(ctx, task("low", 1)), "duplicate id")

	all, err := s.ListTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"child", "high-1", "high-2", "low"}, ids(all))

	next, err = s.FindNextInQueue(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "child", next.ID)

	next.Status = models.TaskStatusInProgress
	next.Logs = "started"
	require.NoError(t, s.SaveTask(ctx, next))

	next, err = s.FindNextInQueue(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "high-1", next.ID, "ties are broken by insertion order")

	got, err := s.GetTask(ctx, "child")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.TaskStatusInProgress, got.Status)
	assert.Equal(t, "started", got.Logs)
	assert.Equal(t, "high-1", utils.DerefOr(got.ParentTaskID, ""))
	assert.Equal(t, map[string]string{"FOO": "child"}, got.AdditionalEnv)
	assert.Equal(t, "doc-child", got.DocumentID())
	assert.Equal(t, models.Resources{CPU: "500m", Memory: "1Gi"}, got.Resources)

	children, err := s.ListTasksByParent(ctx, "high-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"child"}, ids(children))

	pending, err := s.FindTasksByStatus(ctx, models.TaskStatusPending)
	require.NoError(t, err)
	assert.Equal(t, []string{"high-1", "high-2", "low"}, ids(pending))

	require.NoError(t, s.DeleteTask(ctx, "low"))
	got, err = s.GetTask(ctx, "low")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func jobs(t *testing.T, s service.Store) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	missing, err := s.GetJob(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	for i, id := range []string{"job-1", "job-2"} {
		require.NoError(t, s.CreateJob(ctx, &models.Job{
			ID:        id,
			TaskID:    "owner",
			Status:    models.JobStatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			UpdatedAt: base,
		}))
	}
	require.NoError(t, s.CreateJob(ctx, &models.Job{
		ID:        "job-other",
		TaskID:    "other",
		Status:    models.JobStatusRunning,
		CreatedAt: base.Add(time.Minute),
		UpdatedAt: base,
	}))

	byTask, err := s.ListJobsByTask(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, byTask, 2)
	assert.Equal(t, "job-2", byTask[0].ID, "newest first")

	running, err := s.FindJobsByStatus(ctx, models.JobStatusRunning)
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, "job-other", running[0].ID)

	job, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, job)
	job.Status = models.JobStatusRunning
	job.PodName = "keruta-job-owner"
	job.Namespace = "keruta"
	require.NoError(t, s.SaveJob(ctx, job))

	running, err = s.FindJobsByStatus(ctx, models.JobStatusRunning)
	require.NoError(t, err)
	assert.Len(t, running, 2)

	job, err = s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "keruta-job-owner", job.PodName)
	assert.Equal(t, "keruta", job.Namespace)

	all, err := s.ListJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, s.DeleteJob(ctx, "job-other"))
	job, err = s.GetJob(ctx, "job-other")
	require.NoError(t, err)
	assert.Nil(t, job)
}

func repositories(t *testing.T, s service.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	missing, err := s.GetRepository(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	repo := &models.Repository{
		ID:          "repo-1",
		Name:        "keruta",
		URL:         "https://example.com/keruta.git",
		Branch:      "main",
		SetupScript: "echo setup",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, s.CreateRepository(ctx, repo))
	assert.Error(t, s.CreateRepository(ctx, repo), "duplicate id")

	repo.IsValid = true
	require.NoError(t, s.SaveRepository(ctx, repo))

	got, err := s.GetRepository(ctx, "repo-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsValid)
	assert.Equal(t, "echo setup", got.SetupScript)

	list, err := s.ListRepositories(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteRepository(ctx, "repo-1"))
	got, err = s.GetRepository(ctx, "repo-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
