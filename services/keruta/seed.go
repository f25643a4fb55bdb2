package keruta

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/keruta-io/keruta/services/keruta/db/models"
	"github.com/keruta-io/keruta/services/keruta/service"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type seedResources struct {
	CPU    string `yaml:"cpu"`
	Memory string `yaml:"memory"`
}

type seedTask struct {
	ID            string            `yaml:"id"`
	Title         string            `yaml:"title"`
	Description   string            `yaml:"description"`
	Priority      int               `yaml:"priority"`
	ParentTaskID  string            `yaml:"parentTaskId"`
	RepositoryID  string            `yaml:"repositoryId"`
	Documents     []string          `yaml:"documents"`
	Image         string            `yaml:"image"`
	Namespace     string            `yaml:"namespace"`
	Resources     seedResources     `yaml:"resources"`
	AdditionalEnv map[string]string `yaml:"additionalEnv"`
	StorageClass  string            `yaml:"storageClass"`
	PVCName       string            `yaml:"pvcName"`
}

type seedRepository struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	Branch      string `yaml:"branch"`
	Description string `yaml:"description"`
	SetupScript string `yaml:"setupScript"`
}

type seedFile struct {
	Repositories []seedRepository `yaml:"repositories"`
	Tasks        []seedTask       `yaml:"tasks"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (t seedTask) toModel() models.Task {
	return models.Task{
		ID:            t.ID,
		Title:         t.Title,
		Description:   t.Description,
		Priority:      t.Priority,
		ParentTaskID:  optional(t.ParentTaskID),
		RepositoryID:  optional(t.RepositoryID),
		Documents:     t.Documents,
		Image:         t.Image,
		Namespace:     t.Namespace,
		Resources:     models.Resources{CPU: t.Resources.CPU, Memory: t.Resources.Memory},
		AdditionalEnv: t.AdditionalEnv,
		StorageClass:  t.StorageClass,
		PVCName:       t.PVCName,
	}
}

type seeder struct {
	logger       *zap.Logger
	fs           afero.Fs
	tasks        *service.TaskService
	repositories *service.RepositoryService
}

// seed loads every .yaml/.yml file under root. Repositories are created before tasks so
// tasks can reference them. Entries whose id already exists are left alone, which keeps
// restarts idempotent.
func (s seeder) seed(ctx context.Context, root string) error {
	exists, err := afero.DirExists(s.fs, root)
	if err != nil {
		return err
	}
	if !exists {
		s.logger.Info("no seed directory, skipping", zap.String("path", root))
		return nil
	}

	var files []seedFile
	err = afero.Walk(s.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !(strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")) {
			return nil
		}

		content, err := afero.ReadFile(s.fs, path)
		if err != nil {
			return err
		}
		var f seedFile
		if err := yaml.Unmarshal(content, &f); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return err
	}

	for _, f := range files {
		for _, r := range f.Repositories {
			if err := s.seedRepository(ctx, r); err != nil {
				return err
			}
		}
	}
	for _, f := range files {
		for _, t := range f.Tasks {
			if err := s.seedTask(ctx, t); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s seeder) seedRepository(ctx context.Context, r seedRepository) error {
	if r.ID != "" {
		_, err := s.repositories.GetRepository(ctx, r.ID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, service.ErrNotFound) {
			return err
		}
	}
	repo, err := s.repositories.CreateRepository(ctx, models.Repository{
		ID:          r.ID,
		Name:        r.Name,
		URL:         r.URL,
		Branch:      r.Branch,
		Description: r.Description,
		SetupScript: r.SetupScript,
	})
	if err != nil {
		return fmt.Errorf("seed repository %s: %w", r.Name, err)
	}
	s.logger.Info("seeded repository", zap.String("repositoryID", repo.ID))
	return nil
}

func (s seeder) seedTask(ctx context.Context, t seedTask) error {
	if t.ID != "" {
		_, err := s.tasks.GetTask(ctx, t.ID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, service.ErrNotFound) {
			return err
		}
	}
	task, err := s.tasks.CreateTask(ctx, t.toModel())
	if err != nil {
		return fmt.Errorf("seed task %s: %w", t.Title, err)
	}
	s.logger.Info("seeded task", zap.String("taskID", task.ID))
	return nil
}
