package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/keruta-io/keruta/services/keruta/db/models"
	"go.uber.org/zap"
)

type TaskService struct {
	logger *zap.Logger
	store  TaskStore
	events Publisher
	now    func() time.Time
}

func NewTaskService(logger *zap.Logger, store TaskStore, events Publisher) *TaskService {
	return &TaskService{
		logger: logger.Named("tasks"),
		store:  store,
		events: publisherOrNop(events),
		now:    time.Now,
	}
}

// CreateTask persists task as PENDING, assigning an id when none is given.
func (s *TaskService) CreateTask(ctx context.Context, task models.Task) (*models.Task, error) {
	if task.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	now := s.now()
	task.Status = models.TaskStatusPending
	task.CreatedAt = now
	task.UpdatedAt = now

	if err := s.store.CreateTask(ctx, &task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	s.logger.Info("task created",
		zap.String("taskID", task.ID),
		zap.Int("priority", task.Priority))
	return &task, nil
}

func (s *TaskService) GetTask(ctx context.Context, id string) (*models.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

func (s *TaskService) ListTasks(ctx context.Context) ([]models.Task, error) {
	return s.store.ListTasks(ctx)
}

// Children lists the sub-tasks sharing the checkout of parentID.
func (s *TaskService) Children(ctx context.Context, parentID string) ([]models.Task, error) {
	if _, err := s.GetTask(ctx, parentID); err != nil {
		return nil, err
	}
	return s.store.ListTasksByParent(ctx, parentID)
}

func (s *TaskService) FindByStatus(ctx context.Context, status models.TaskStatus) ([]models.Task, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.store.FindTasksByStatus(ctx, status)
}

// NextInQueue returns nil when no task is waiting.
func (s *TaskService) NextInQueue(ctx context.Context) (*models.Task, error) {
	return s.store.FindNextInQueue(ctx)
}

func (s *TaskService) UpdateTaskStatus(ctx context.Context, id string, status models.TaskStatus) (*models.Task, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status == status {
		return task, nil
	}

	previous := task.Status
	task.Status = status
	if err := s.save(ctx, task); err != nil {
		return nil, err
	}
	s.logger.Info("task status changed",
		zap.String("taskID", id),
		zap.String("from", string(previous)),
		zap.String("to", string(status)))
	s.events.Publish(ctx, Event{
		Type:   EventTaskStatus,
		ID:     task.ID,
		TaskID: task.ID,
		Status: string(status),
		At:     task.UpdatedAt,
	})
	return task, nil
}

func (s *TaskService) UpdateTaskPriority(ctx context.Context, id string, priority int) (*models.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	task.Priority = priority
	if err := s.save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) AppendTaskLogs(ctx context.Context, id, logs string) (*models.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	task.Logs = appendLog(task.Logs, logs)
	if err := s.save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// SetPodName records the execution unit currently serving the task.
func (s *TaskService) SetPodName(ctx context.Context, id, podName string) error {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}
	task.PodName = podName
	return s.save(ctx, task)
}

func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	if _, err := s.GetTask(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

func (s *TaskService) save(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = s.now()
	if err := s.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("save task %s: %w", task.ID, err)
	}
	return nil
}
