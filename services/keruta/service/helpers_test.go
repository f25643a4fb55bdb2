package service

import (
	"context"
	"sync"
	"testing"

	"github.com/keruta-io/keruta/services/keruta/config"
	"github.com/keruta-io/keruta/services/keruta/db/models"
	"github.com/keruta-io/keruta/services/keruta/jobbuilder"
	"github.com/keruta-io/keruta/services/keruta/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) statuses(kind string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		if e.Type == kind {
			out = append(out, e.Status)
		}
	}
	return out
}

type fakeCreator struct {
	mu       sync.Mutex
	requests []jobbuilder.UnitRequest
	name     string
	err      error
}

func (c *fakeCreator) Create(_ context.Context, req jobbuilder.UnitRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if c.name == "" {
		return jobbuilder.JobName(req.Task.ID), c.err
	}
	return c.name, c.err
}

func (c *fakeCreator) Namespace(req jobbuilder.UnitRequest) string {
	if req.Namespace != "" {
		return req.Namespace
	}
	return "default"
}

func (c *fakeCreator) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

type fixture struct {
	store   *store.Memory
	events  *recordingPublisher
	tasks   *TaskService
	jobs    *JobService
	creator UnitCreator
}

func newFixture(t *testing.T, creator UnitCreator, policy config.SubmitFailurePolicy) *fixture {
	t.Helper()
	mem := store.NewMemory()
	events := &recordingPublisher{}
	tasks := NewTaskService(zap.NewNop(), mem, events)
	return &fixture{
		store:   mem,
		events:  events,
		tasks:   tasks,
		jobs:    NewJobService(zap.NewNop(), mem, tasks, mem, creator, events, policy),
		creator: creator,
	}
}

func (f *fixture) createTask(t *testing.T, title string, priority int) *models.Task {
	t.Helper()
	task, err := f.tasks.CreateTask(context.Background(), models.Task{Title: title, Priority: priority})
	require.NoError(t, err)
	return task
}
