package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/keruta-io/keruta/services/keruta/config"
	"github.com/keruta-io/keruta/services/keruta/db/models"
	"github.com/keruta-io/keruta/services/keruta/jobbuilder"
	"go.uber.org/zap"
)

// UnitCreator submits an execution unit and returns its name, or a sentinel name with an
// error when submission did not happen.
type UnitCreator interface {
	Create(ctx context.Context, req jobbuilder.UnitRequest) (string, error)
	Namespace(req jobbuilder.UnitRequest) string
}

type JobService struct {
	logger  *zap.Logger
	store   JobStore
	tasks   *TaskService
	repos   RepositoryStore
	creator UnitCreator
	events  Publisher
	policy  config.SubmitFailurePolicy
	now     func() time.Time
}

func NewJobService(
	logger *zap.Logger,
	store JobStore,
	tasks *TaskService,
	repos RepositoryStore,
	creator UnitCreator,
	events Publisher,
	policy config.SubmitFailurePolicy,
) *JobService {
	if policy == "" {
		policy = config.SubmitFailureKeep
	}
	return &JobService{
		logger:  logger.Named("jobs"),
		store:   store,
		tasks:   tasks,
		repos:   repos,
		creator: creator,
		events:  publisherOrNop(events),
		policy:  policy,
		now:     time.Now,
	}
}

// CreateJob records a PENDING attempt for task and moves the task to IN_PROGRESS before
// anything is submitted to the cluster.
func (s *JobService) CreateJob(ctx context.Context, task *models.Task) (*models.Job, error) {
	now := s.now()
	job := models.Job{
		ID:            uuid.New().String(),
		TaskID:        task.ID,
		Image:         task.Image,
		Namespace:     task.Namespace,
		Resources:     task.Resources,
		AdditionalEnv: task.AdditionalEnv,
		Status:        models.JobStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateJob(ctx, &job); err != nil {
		return nil, fmt.Errorf("create job for task %s: %w", task.ID, err)
	}

	updated, err := s.tasks.UpdateTaskStatus(ctx, task.ID, models.TaskStatusInProgress)
	if err != nil {
		return nil, err
	}
	*task = *updated

	s.logger.Info("job created", zap.String("jobID", job.ID), zap.String("taskID", task.ID))
	return &job, nil
}

func (s *JobService) GetJob(ctx context.Context, id string) (*models.Job, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (s *JobService) ListJobs(ctx context.Context) ([]models.Job, error) {
	return s.store.ListJobs(ctx)
}

func (s *JobService) JobsForTask(ctx context.Context, taskID string) ([]models.Job, error) {
	if _, err := s.tasks.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return s.store.ListJobsByTask(ctx, taskID)
}

func (s *JobService) FindByStatus(ctx context.Context, status models.JobStatus) ([]models.Job, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.store.FindJobsByStatus(ctx, status)
}

// HasRunning reports whether any execution unit is outstanding.
func (s *JobService) HasRunning(ctx context.Context) (bool, error) {
	running, err := s.store.FindJobsByStatus(ctx, models.JobStatusRunning)
	if err != nil {
		return false, err
	}
	return len(running) > 0, nil
}

// UpdateJobStatus changes the job status. COMPLETED completes the owning task, FAILED
// cancels it.
func (s *JobService) UpdateJobStatus(ctx context.Context, id string, status models.JobStatus) (*models.Job, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.setStatus(ctx, job, status); err != nil {
		return nil, err
	}

	var taskStatus models.TaskStatus
	switch status {
	case models.JobStatusCompleted:
		taskStatus = models.TaskStatusCompleted
	case models.JobStatusFailed:
		taskStatus = models.TaskStatusCancelled
	default:
		return job, nil
	}
	if _, err := s.tasks.UpdateTaskStatus(ctx, job.TaskID, taskStatus); err != nil {
		return nil, fmt.Errorf("cascade job %s status to task: %w", id, err)
	}
	return job, nil
}

func (s *JobService) AppendJobLogs(ctx context.Context, id, logs string) (*models.Job, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	job.Logs = appendLog(job.Logs, logs)
	if err := s.save(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// CreateJobForNextTask takes the head of the queue, records a job for it and submits the
// execution unit. It returns nil when the queue is empty. A failed submission is recorded
// on the returned job rather than returned as an error.
func (s *JobService) CreateJobForNextTask(ctx context.Context) (*models.Job, error) {
	task, err := s.tasks.NextInQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("next task in queue: %w", err)
	}
	if task == nil {
		return nil, nil
	}

	job, err := s.CreateJob(ctx, task)
	if err != nil {
		return nil, err
	}
	// The failure is already recorded on the job and its task.
	if name, err := s.launch(ctx, job, task); err != nil {
		s.logger.Warn("execution unit for next task not submitted",
			zap.String("jobID", job.ID), zap.String("unit", name), zap.Error(err))
	}
	return job, nil
}

// Launch submits the execution unit for an existing PENDING or FAILED job. It refuses
// while any other job is RUNNING.
func (s *JobService) Launch(ctx context.Context, jobID string) (*models.Job, string, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, "", err
	}
	if job.Status != models.JobStatusPending && job.Status != models.JobStatusFailed {
		return nil, "", fmt.Errorf("%w: job %s is %s", ErrInvalidStatus, job.ID, job.Status)
	}
	running, err := s.HasRunning(ctx)
	if err != nil {
		return nil, "", err
	}
	if running {
		return nil, "", fmt.Errorf("%w: another execution unit is running", ErrInvalidStatus)
	}
	task, err := s.tasks.GetTask(ctx, job.TaskID)
	if err != nil {
		return nil, "", err
	}
	name, err := s.launch(ctx, job, task)
	return job, name, err
}

func (s *JobService) launch(ctx context.Context, job *models.Job, task *models.Task) (string, error) {
	logger := s.logger.With(zap.String("jobID", job.ID), zap.String("taskID", task.ID))

	req := jobbuilder.UnitRequest{
		Task:          *task,
		Image:         job.Image,
		Namespace:     job.Namespace,
		AdditionalEnv: job.AdditionalEnv,
		Repository:    s.repository(ctx, logger, task),
	}
	if job.Resources != (models.Resources{}) {
		res := job.Resources
		req.Resources = &res
	}

	name, err := s.creator.Create(ctx, req)
	if err != nil {
		logger.Error("failed to create execution unit", zap.String("unit", name), zap.Error(err))
		job.Logs = appendLog(job.Logs, fmt.Sprintf("failed to create execution unit: %v", err))
		if saveErr := s.setStatus(ctx, job, models.JobStatusFailed); saveErr != nil {
			logger.Error("failed to record submission failure", zap.Error(saveErr))
		}
		s.applySubmitFailurePolicy(ctx, logger, task)
		return name, err
	}

	job.PodName = name
	job.Namespace = s.creator.Namespace(req)
	if err := s.setStatus(ctx, job, models.JobStatusRunning); err != nil {
		return name, err
	}
	if err := s.tasks.SetPodName(ctx, task.ID, name); err != nil {
		logger.Warn("failed to record pod name on task", zap.Error(err))
	}
	logger.Info("execution unit created", zap.String("unit", name))
	return name, nil
}

func (s *JobService) repository(ctx context.Context, logger *zap.Logger, task *models.Task) *models.Repository {
	if task.RepositoryID == nil || *task.RepositoryID == "" || s.repos == nil {
		return nil
	}
	repo, err := s.repos.GetRepository(ctx, *task.RepositoryID)
	if err != nil {
		logger.Warn("failed to load repository, continuing without it",
			zap.String("repositoryID", *task.RepositoryID), zap.Error(err))
		return nil
	}
	if repo == nil {
		logger.Warn("task references unknown repository", zap.String("repositoryID", *task.RepositoryID))
	}
	return repo
}

func (s *JobService) applySubmitFailurePolicy(ctx context.Context, logger *zap.Logger, task *models.Task) {
	var status models.TaskStatus
	switch s.policy {
	case config.SubmitFailurePending:
		status = models.TaskStatusPending
	case config.SubmitFailureFailed:
		status = models.TaskStatusFailed
	default:
		return
	}
	if _, err := s.tasks.UpdateTaskStatus(ctx, task.ID, status); err != nil {
		logger.Error("failed to apply submit failure policy",
			zap.String("policy", string(s.policy)), zap.Error(err))
	}
}

func (s *JobService) setStatus(ctx context.Context, job *models.Job, status models.JobStatus) error {
	if job.Status == status {
		return s.save(ctx, job)
	}
	previous := job.Status
	job.Status = status
	if err := s.save(ctx, job); err != nil {
		return err
	}
	s.logger.Info("job status changed",
		zap.String("jobID", job.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(status)))
	s.events.Publish(ctx, Event{
		Type:   EventJobStatus,
		ID:     job.ID,
		TaskID: job.TaskID,
		Status: string(status),
		At:     job.UpdatedAt,
	})
	return nil
}

func (s *JobService) save(ctx context.Context, job *models.Job) error {
	job.UpdatedAt = s.now()
	if err := s.store.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}
