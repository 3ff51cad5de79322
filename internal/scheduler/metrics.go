package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	taskRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_background_task_runs_total",
			Help: "Total number of background task runs",
		},
		[]string{"task"},
	)

	taskFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_background_task_failures_total",
			Help: "Total number of failed background task runs",
		},
		[]string{"task"},
	)

	taskRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_background_task_retries_total",
			Help: "Total number of retries after an unavailable store",
		},
		[]string{"task"},
	)

	taskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "matching_background_task_duration_seconds",
			Help: "Duration of background task runs including retries",
		},
		[]string{"task"},
	)
)

func recordRun(task string, duration time.Duration, err error) {
	taskRuns.WithLabelValues(task).Inc()
	taskDuration.WithLabelValues(task).Observe(duration.Seconds())
	if err != nil {
		taskFailures.WithLabelValues(task).Inc()
	}
}

func recordRetry(task string) {
	taskRetries.WithLabelValues(task).Inc()
}
