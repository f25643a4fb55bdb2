package store

import (
	"context"
	"testing"

	"github.com/keruta-io/keruta/services/keruta/db/models"
	"github.com/keruta-io/keruta/services/keruta/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	storetest.Run(t, NewMemory())
}

func TestMemoryCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	task := &models.Task{ID: "t", Title: "t", AdditionalEnv: map[string]string{"A": "1"}}
	require.NoError(t, m.CreateTask(ctx, task))
	task.AdditionalEnv["A"] = "changed"

	got, err := m.GetTask(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "1", got.AdditionalEnv["A"])

	got.AdditionalEnv["A"] = "again"
	again, err := m.GetTask(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "1", again.AdditionalEnv["A"])
}

func TestMemorySaveKeepsSeq(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.CreateTask(ctx, &models.Task{ID: "a", Status: models.TaskStatusPending}))
	require.NoError(t, m.CreateTask(ctx, &models.Task{ID: "b", Status: models.TaskStatusPending}))

	// a save without Seq must not move the task to the back of the queue
	require.NoError(t, m.SaveTask(ctx, &models.Task{ID: "a", Status: models.TaskStatusPending}))

	next, err := m.FindNextInQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", next.ID)
}
