package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/keruta-io/keruta/services/keruta/db/models"
	"github.com/keruta-io/keruta/services/keruta/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func hangingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	return srv
}

// localRepository creates a repository with a single commit and returns its path. Listing a
// local remote shells out to git-upload-pack.
func localRepository(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git is not installed")
	}
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello"), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README.md")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "keruta", Email: "keruta@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return dir
}

func TestValidateRepositoryUrlTimeout(t *testing.T) {
	srv := hangingServer(t)
	repos := NewRepositoryService(zap.NewNop(), store.NewMemory(), 200*time.Millisecond)

	start := time.Now()
	assert.False(t, repos.ValidateRepositoryUrl(context.Background(), srv.URL+"/org/repo.git"))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCreateRepositoryUnreachable(t *testing.T) {
	srv := hangingServer(t)
	mem := store.NewMemory()
	repos := NewRepositoryService(zap.NewNop(), mem, 200*time.Millisecond)
	ctx := context.Background()

	repo, err := repos.CreateRepository(ctx, models.Repository{Name: "slow", URL: srv.URL + "/org/repo.git"})
	require.NoError(t, err)
	assert.False(t, repo.IsValid)

	stored, err := mem.GetRepository(ctx, repo.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.IsValid)
}

func TestCreateRepositoryReachable(t *testing.T) {
	repos := NewRepositoryService(zap.NewNop(), store.NewMemory(), 5*time.Second)
	ctx := context.Background()

	repo, err := repos.CreateRepository(ctx, models.Repository{Name: "local", URL: localRepository(t)})
	require.NoError(t, err)
	assert.True(t, repo.IsValid)

	listed, err := repos.ListRepositories(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestRepositoryValidationAndLifecycle(t *testing.T) {
	repos := NewRepositoryService(zap.NewNop(), store.NewMemory(), time.Second)
	ctx := context.Background()

	_, err := repos.CreateRepository(ctx, models.Repository{Name: "no-url"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.False(t, repos.ValidateRepositoryUrl(ctx, ""))

	repo, err := repos.CreateRepository(ctx, models.Repository{Name: "broken", URL: filepath.Join(t.TempDir(), "missing")})
	require.NoError(t, err)
	assert.False(t, repo.IsValid)

	updated, err := repos.UpdateRepository(ctx, repo.ID, models.Repository{URL: localRepository(t), SetupScript: "echo hi"})
	require.NoError(t, err)
	assert.True(t, updated.IsValid)
	assert.Equal(t, "broken", updated.Name)
	assert.Equal(t, "echo hi", updated.SetupScript)

	revalidated, err := repos.Revalidate(ctx, repo.ID)
	require.NoError(t, err)
	assert.True(t, revalidated.IsValid)

	require.NoError(t, repos.DeleteRepository(ctx, repo.ID))
	_, err = repos.GetRepository(ctx, repo.ID)
	assert.ErrorIs(t, err, ErrRepositoryNotFound)
}
