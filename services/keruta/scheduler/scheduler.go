package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/keruta-io/keruta/services/keruta/db/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/keruta-io/keruta/services/keruta/scheduler"

var tracer = otel.Tracer(tracerName)

const DefaultInterval = 5 * time.Second

type TickResult string

const (
	TickSkippedBusy     TickResult = "skipped-busy"
	TickSkippedDisabled TickResult = "skipped-disabled"
	TickSkippedRunning  TickResult = "skipped-running"
	TickIdle            TickResult = "idle"
	TickLaunched        TickResult = "launched"
	TickFailed          TickResult = "failed"
)

// Queue is the part of the job service the scheduler drives.
type Queue interface {
	HasRunning(ctx context.Context) (bool, error)
	CreateJobForNextTask(ctx context.Context) (*models.Job, error)
}

type Cluster interface {
	Enabled() bool
}

// Scheduler drains the task queue one execution unit at a time. Ticks run on a fixed delay:
// the next tick is armed only after the previous one returns.
type Scheduler struct {
	logger   *zap.Logger
	queue    Queue
	cluster  Cluster
	interval time.Duration

	// flight is held for the whole of a tick. Overlapping ticks give up instead of waiting.
	flight sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(logger *zap.Logger, queue Queue, cluster Cluster, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		logger:   logger.Named("scheduler"),
		queue:    queue,
		cluster:  cluster,
		interval: interval,
	}
}

// Start runs ticks in the background until ctx is done or Stop is called. Starting a running
// scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
}

// Stop cancels the loop and waits for an in-flight tick to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.Tick(ctx)
			timer.Reset(s.interval)
		}
	}
}

// Tick runs one scheduling pass. It never panics and never returns an error: failures are
// logged and reported as TickFailed.
func (s *Scheduler) Tick(ctx context.Context) (result TickResult) {
	if !s.flight.TryLock() {
		TicksCount.WithLabelValues(string(TickSkippedBusy)).Inc()
		s.logger.Debug("previous tick still running")
		return TickSkippedBusy
	}
	defer s.flight.Unlock()

	ctx, span := tracer.Start(ctx, "scheduler.tick", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler tick panicked",
				zap.String("panic", fmt.Sprintf("%v", r)),
				zap.String("stack", string(debug.Stack())))
			result = TickFailed
		}
		span.SetAttributes(attribute.String("keruta.tick.result", string(result)))
		TickDuration.Observe(time.Since(start).Seconds())
		TicksCount.WithLabelValues(string(result)).Inc()
	}()

	return s.tick(ctx)
}

func (s *Scheduler) tick(ctx context.Context) TickResult {
	if s.cluster != nil && !s.cluster.Enabled() {
		s.logger.Debug("cluster integration disabled, skipping tick")
		return TickSkippedDisabled
	}

	running, err := s.queue.HasRunning(ctx)
	if err != nil {
		s.logger.Error("failed to check running jobs", zap.Error(err))
		return TickFailed
	}
	if running {
		return TickSkippedRunning
	}

	job, err := s.queue.CreateJobForNextTask(ctx)
	if err != nil {
		s.logger.Error("failed to create job for next task", zap.Error(err))
		return TickFailed
	}
	if job == nil {
		return TickIdle
	}
	if job.Status == models.JobStatusFailed {
		s.logger.Warn("execution unit submission failed",
			zap.String("jobID", job.ID),
			zap.String("taskID", job.TaskID))
		return TickFailed
	}

	s.logger.Info("launched job",
		zap.String("jobID", job.ID),
		zap.String("taskID", job.TaskID),
		zap.String("unit", job.PodName))
	return TickLaunched
}
