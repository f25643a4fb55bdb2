package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/keruta-io/keruta/pkg/concurrency"
	"github.com/keruta-io/keruta/pkg/kubernetes"
	"github.com/keruta-io/keruta/services/keruta/db/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
)

const (
	DefaultSyncInterval = 30 * time.Second
	defaultSyncWorkers  = 4
)

type JobUpdater interface {
	FindByStatus(ctx context.Context, status models.JobStatus) ([]models.Job, error)
	UpdateJobStatus(ctx context.Context, id string, status models.JobStatus) (*models.Job, error)
	AppendJobLogs(ctx context.Context, id, logs string) (*models.Job, error)
}

// JobStatusSyncer copies the outcome of finished cluster jobs onto RUNNING job records. Jobs
// whose cluster object is gone are reported and left as they are.
type JobStatusSyncer struct {
	logger   *zap.Logger
	jobs     JobUpdater
	gateway  *kubernetes.Gateway
	interval time.Duration
	workers  int
}

func NewJobStatusSyncer(logger *zap.Logger, jobs JobUpdater, gateway *kubernetes.Gateway, interval time.Duration, workers int) *JobStatusSyncer {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	if workers <= 0 {
		workers = defaultSyncWorkers
	}
	return &JobStatusSyncer{
		logger:   logger.Named("syncer"),
		jobs:     jobs,
		gateway:  gateway,
		interval: interval,
		workers:  workers,
	}
}

// Run syncs on every interval until ctx is done.
func (s *JobStatusSyncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sync(ctx); err != nil {
				s.logger.Error("job status sync failed", zap.Error(err))
			}
		}
	}
}

// Sync checks every RUNNING job once and returns how many were moved to a final status.
func (s *JobStatusSyncer) Sync(ctx context.Context) (int, error) {
	if !s.gateway.Enabled() {
		return 0, nil
	}

	ctx, span := tracer.Start(ctx, "scheduler.sync", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	running, err := s.jobs.FindByStatus(ctx, models.JobStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("list running jobs: %w", err)
	}

	pool := concurrency.NewWorkPool[bool](s.workers)
	for _, job := range running {
		job := job
		pool.AddJob(func(ctx context.Context) (bool, error) {
			return s.syncJob(ctx, job)
		})
	}

	updated := 0
	for i, res := range pool.Run(ctx) {
		if res.Error != nil {
			s.logger.Error("failed to sync job", zap.String("jobID", running[i].ID), zap.Error(res.Error))
			continue
		}
		if res.Value {
			updated++
		}
	}
	span.SetAttributes(
		attribute.Int("keruta.sync.running", len(running)),
		attribute.Int("keruta.sync.updated", updated))
	return updated, nil
}

func (s *JobStatusSyncer) syncJob(ctx context.Context, job models.Job) (bool, error) {
	name := job.PodName
	if name == "" {
		return false, nil
	}
	unit, err := s.gateway.BatchJob(ctx, job.Namespace, name)
	if err != nil {
		return false, err
	}
	if unit == nil {
		s.logger.Warn("execution unit not found, leaving job running",
			zap.String("jobID", job.ID),
			zap.String("unit", name),
			zap.String("namespace", job.Namespace))
		return false, nil
	}

	status, message, finished := Outcome(unit)
	if !finished {
		return false, nil
	}
	if message != "" {
		if _, err := s.jobs.AppendJobLogs(ctx, job.ID, message); err != nil {
			return false, err
		}
	}
	if _, err := s.jobs.UpdateJobStatus(ctx, job.ID, status); err != nil {
		return false, err
	}
	SyncedJobsCount.WithLabelValues(string(status)).Inc()
	s.logger.Info("synced job status from cluster",
		zap.String("jobID", job.ID),
		zap.String("status", string(status)))
	return true, nil
}

// Outcome maps the conditions of a batch Job to a final job status.
func Outcome(unit *batchv1.Job) (models.JobStatus, string, bool) {
	for _, cond := range unit.Status.Conditions {
		if cond.Status != corev1.ConditionTrue {
			continue
		}
		switch cond.Type {
		case batchv1.JobComplete:
			return models.JobStatusCompleted, "", true
		case batchv1.JobFailed:
			return models.JobStatusFailed, fmt.Sprintf("execution unit failed: %s: %s", cond.Reason, cond.Message), true
		}
	}
	return "", "", false
}
