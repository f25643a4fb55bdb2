package db

import (
	"context"
	"errors"

	"github.com/keruta-io/keruta/services/keruta/db/models"
	"gorm.io/gorm"
)

type Database struct {
	Orm *gorm.DB
}

func (db Database) Initialize() error {
	err := db.Orm.AutoMigrate(
		&models.Task{},
		&models.Job{},
		&models.Repository{},
	)
	if err != nil {
		return err
	}

	return nil
}

func (db Database) CreateTask(ctx context.Context, task *models.Task) error {
	// Seq keeps insertion order for queue tie-breaks even when timestamps collide. The table
	// lock serializes concurrent creates so no two tasks share a Seq.
	return db.Orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("LOCK TABLE tasks IN SHARE ROW EXCLUSIVE MODE").Error; err != nil {
			return err
		}

		var maxSeq int64
		if err := tx.Model(&models.Task{}).Select("COALESCE(MAX(seq), 0)").Scan(&maxSeq).Error; err != nil {
			return err
		}
		task.Seq = maxSeq + 1

		return tx.Create(task).Error
	})
}

func (db Database) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	tx := db.Orm.WithContext(ctx).Where("id = ?", id).First(&task)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, tx.Error
	}

	return &task, nil
}

func (db Database) ListTasks(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	tx := db.Orm.WithContext(ctx).Order("priority desc").Order("seq asc").Find(&tasks)
	if tx.Error != nil {
		return nil, tx.Error
	}

	return tasks, nil
}

func (db Database) ListTasksByParent(ctx context.Context, parentID string) ([]models.Task, error) {
	var tasks []models.Task
	tx := db.Orm.WithContext(ctx).Where("parent_task_id = ?", parentID).Order("seq asc").Find(&tasks)
	if tx.Error != nil {
		return nil, tx.Error
	}

	return tasks, nil
}

func (db Database) FindTasksByStatus(ctx context.Context, status models.TaskStatus) ([]models.Task, error) {
	var tasks []models.Task
	tx := db.Orm.WithContext(ctx).Where("status = ?", status).
		Order("priority desc").
		Order("seq asc").
		Find(&tasks)
	if tx.Error != nil {
		return nil, tx.Error
	}

	return tasks, nil
}

func (db Database) FindNextInQueue(ctx context.Context) (*models.Task, error) {
	var task models.Task
	tx := db.Orm.WithContext(ctx).Where("status = ?", models.TaskStatusPending).
		Order("priority desc").
		Order("seq asc").
		First(&task)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, tx.Error
	}

	return &task, nil
}

func (db Database) SaveTask(ctx context.Context, task *models.Task) error {
	tx := db.Orm.WithContext(ctx).Save(task)
	if tx.Error != nil {
		return tx.Error
	}

	return nil
}

func (db Database) DeleteTask(ctx context.Context, id string) error {
	tx := db.Orm.WithContext(ctx).Where("id = ?", id).Delete(&models.Task{})
	if tx.Error != nil {
		return tx.Error
	}

	return nil
}

func (db Database) CreateJob(ctx context.Context, job *models.Job) error {
	tx := db.Orm.WithContext(ctx).Create(job)
	if tx.Error != nil {
		return tx.Error
	}

	return nil
}

func (db Database) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	tx := db.Orm.WithContext(ctx).Where("id = ?", id).First(&job)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, tx.Error
	}

	return &job, nil
}

func (db Database) ListJobs(ctx context.Context) ([]models.Job, error) {
	var jobs []models.Job
	tx := db.Orm.WithContext(ctx).Order("created_at desc").Find(&jobs)
	if tx.Error != nil {
		return nil, tx.Error
	}

	return jobs, nil
}

func (db Database) ListJobsByTask(ctx context.Context, taskID string) ([]models.Job, error) {
	var jobs []models.Job
	tx := db.Orm.WithContext(ctx).Where("task_id = ?", taskID).Order("created_at desc").Find(&jobs)
	if tx.Error != nil {
		return nil, tx.Error
	}

	return jobs, nil
}

func (db Database) FindJobsByStatus(ctx context.Context, status models.JobStatus) ([]models.Job, error) {
	var jobs []models.Job
	tx := db.Orm.WithContext(ctx).Where("status = ?", status).Order("created_at asc").Find(&jobs)
	if tx.Error != nil {
		return nil, tx.Error
	}

	return jobs, nil
}

func (db Database) SaveJob(ctx context.Context, job *models.Job) error {
	tx := db.Orm.WithContext(ctx).Save(job)
	if tx.Error != nil {
		return tx.Error
	}

	return nil
}

func (db Database) DeleteJob(ctx context.Context, id string) error {
	tx := db.Orm.WithContext(ctx).Where("id = ?", id).Delete(&models.Job{})
	if tx.Error != nil {
		return tx.Error
	}

	return nil
}

func (db Database) CreateRepository(ctx context.Context, repo *models.Repository) error {
	tx := db.Orm.WithContext(ctx).Create(repo)
	if tx.Error != nil {
		return tx.Error
	}

	return nil
}

func (db Database) GetRepository(ctx context.Context, id string) (*models.Repository, error) {
	var repo models.Repository
	tx := db.Orm.WithContext(ctx).Where("id = ?", id).First(&repo)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, tx.Error
	}

	return &repo, nil
}

func (db Database) ListRepositories(ctx context.Context) ([]models.Repository, error) {
	var repos []models.Repository
	tx := db.Orm.WithContext(ctx).Order("created_at desc").Find(&repos)
	if tx.Error != nil {
		return nil, tx.Error
	}

	return repos, nil
}

func (db Database) SaveRepository(ctx context.Context, repo *models.Repository) error {
	tx := db.Orm.WithContext(ctx).Save(repo)
	if tx.Error != nil {
		return tx.Error
	}

	return nil
}

func (db Database) DeleteRepository(ctx context.Context, id string) error {
	tx := db.Orm.WithContext(ctx).Where("id = ?", id).Delete(&models.Repository{})
	if tx.Error != nil {
		return tx.Error
	}

	return nil
}
