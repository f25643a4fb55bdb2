package service

import (
	"context"

	"github.com/keruta-io/keruta/services/keruta/db/models"
)

// Stores return nil, nil when a record does not exist.

type TaskStore interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context) ([]models.Task, error)
	ListTasksByParent(ctx context.Context, parentID string) ([]models.Task, error)
	FindTasksByStatus(ctx context.Context, status models.TaskStatus) ([]models.Task, error)
	// FindNextInQueue returns the PENDING task with the highest priority, oldest first on ties.
	FindNextInQueue(ctx context.Context) (*models.Task, error)
	SaveTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, id string) error
}

type JobStore interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	ListJobs(ctx context.Context) ([]models.Job, error)
	ListJobsByTask(ctx context.Context, taskID string) ([]models.Job, error)
	FindJobsByStatus(ctx context.Context, status models.JobStatus) ([]models.Job, error)
	SaveJob(ctx context.Context, job *models.Job) error
	DeleteJob(ctx context.Context, id string) error
}

type RepositoryStore interface {
	CreateRepository(ctx context.Context, repo *models.Repository) error
	GetRepository(ctx context.Context, id string) (*models.Repository, error)
	ListRepositories(ctx context.Context) ([]models.Repository, error)
	SaveRepository(ctx context.Context, repo *models.Repository) error
	DeleteRepository(ctx context.Context, id string) error
}

// Store is implemented by both the postgres database and the in-memory store.
type Store interface {
	TaskStore
	JobStore
	RepositoryStore
}
