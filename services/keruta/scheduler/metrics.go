package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TicksCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keruta",
		Subsystem: "scheduler",
		Name:      "ticks_total",
		Help:      "Count of scheduler ticks by result",
	}, []string{"result"})

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "keruta",
		Subsystem: "scheduler",
		Name:      "tick_duration_seconds",
		Help:      "Duration of scheduler ticks that ran past the single-flight guard",
		Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30},
	})

	SyncedJobsCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keruta",
		Subsystem: "syncer",
		Name:      "jobs_total",
		Help:      "Count of job status transitions applied from the cluster",
	}, []string{"status"})
)
