package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/google/uuid"
	"github.com/keruta-io/keruta/services/keruta/db/models"
	"go.uber.org/zap"
)

const defaultProbeTimeout = 10 * time.Second

type RepositoryService struct {
	logger  *zap.Logger
	store   RepositoryStore
	timeout time.Duration
	now     func() time.Time
}

func NewRepositoryService(logger *zap.Logger, store RepositoryStore, probeTimeout time.Duration) *RepositoryService {
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}
	return &RepositoryService{
		logger:  logger.Named("repositories"),
		store:   store,
		timeout: probeTimeout,
		now:     time.Now,
	}
}

// ValidateRepositoryUrl lists the remote's references without cloning. Any failure,
// including the probe timing out, makes the URL invalid.
func (s *RepositoryService) ValidateRepositoryUrl(ctx context.Context, url string) bool {
	if url == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	remote := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})
	if _, err := remote.ListContext(ctx, &git.ListOptions{}); err != nil {
		s.logger.Warn("repository url is not reachable", zap.String("url", url), zap.Error(err))
		return false
	}
	return true
}

func (s *RepositoryService) CreateRepository(ctx context.Context, repo models.Repository) (*models.Repository, error) {
	if repo.Name == "" || repo.URL == "" {
		return nil, fmt.Errorf("%w: name and url are required", ErrInvalidInput)
	}
	if repo.ID == "" {
		repo.ID = uuid.New().String()
	}
	now := s.now()
	repo.CreatedAt = now
	repo.UpdatedAt = now
	repo.IsValid = s.ValidateRepositoryUrl(ctx, repo.URL)

	if err := s.store.CreateRepository(ctx, &repo); err != nil {
		return nil, fmt.Errorf("create repository: %w", err)
	}
	s.logger.Info("repository created",
		zap.String("repositoryID", repo.ID),
		zap.Bool("valid", repo.IsValid))
	return &repo, nil
}

func (s *RepositoryService) GetRepository(ctx context.Context, id string) (*models.Repository, error) {
	repo, err := s.store.GetRepository(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", id, err)
	}
	if repo == nil {
		return nil, ErrRepositoryNotFound
	}
	return repo, nil
}

func (s *RepositoryService) ListRepositories(ctx context.Context) ([]models.Repository, error) {
	return s.store.ListRepositories(ctx)
}

// UpdateRepository replaces the editable fields of id. A changed URL is probed again.
func (s *RepositoryService) UpdateRepository(ctx context.Context, id string, update models.Repository) (*models.Repository, error) {
	repo, err := s.GetRepository(ctx, id)
	if err != nil {
		return nil, err
	}
	if update.Name != "" {
		repo.Name = update.Name
	}
	if update.URL != "" && update.URL != repo.URL {
		repo.URL = update.URL
		repo.IsValid = s.ValidateRepositoryUrl(ctx, repo.URL)
	}
	repo.Branch = update.Branch
	repo.Description = update.Description
	repo.SetupScript = update.SetupScript

	if err := s.save(ctx, repo); err != nil {
		return nil, err
	}
	return repo, nil
}

func (s *RepositoryService) Revalidate(ctx context.Context, id string) (*models.Repository, error) {
	repo, err := s.GetRepository(ctx, id)
	if err != nil {
		return nil, err
	}
	repo.IsValid = s.ValidateRepositoryUrl(ctx, repo.URL)
	if err := s.save(ctx, repo); err != nil {
		return nil, err
	}
	return repo, nil
}

func (s *RepositoryService) DeleteRepository(ctx context.Context, id string) error {
	if _, err := s.GetRepository(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteRepository(ctx, id); err != nil {
		return fmt.Errorf("delete repository %s: %w", id, err)
	}
	return nil
}

func (s *RepositoryService) save(ctx context.Context, repo *models.Repository) error {
	repo.UpdatedAt = s.now()
	if err := s.store.SaveRepository(ctx, repo); err != nil {
		return fmt.Errorf("save repository %s: %w", repo.ID, err)
	}
	return nil
}
