package rotation

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	startedTotal     *prometheus.CounterVec
	completedTotal   *prometheus.CounterVec
	rotationDuration *prometheus.HistogramVec
	stepFailureTotal *prometheus.CounterVec

	metricsOnce       sync.Once
	metricsRegistered bool
)

// InitMetrics registers the rotation metrics with the default Prometheus
// registry. When it is never called the observe helpers are no-ops, so
// library users and tests pay nothing for metrics they did not ask for.
func InitMetrics() {
	metricsOnce.Do(func() {
		startedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyrotor_rotation_started_total",
				Help: "Total number of rotation runs started",
			},
			[]string{"task"},
		)

		completedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyrotor_rotation_completed_total",
				Help: "Total number of rotation runs completed",
			},
			[]string{"task", "outcome"},
		)

		rotationDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "keyrotor_rotation_duration_seconds",
				Help:    "Duration of rotation runs in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120},
			},
			[]string{"task"},
		)

		stepFailureTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyrotor_rotation_step_failures_total",
				Help: "Rotation failures by the state they occurred in",
			},
			[]string{"task", "state"},
		)

		metricsRegistered = true
	})
}

func observeStarted(task string) {
	if !metricsRegistered || startedTotal == nil {
		return
	}
	startedTotal.WithLabelValues(task).Inc()
}

func observeCompleted(task string, outcome Outcome, elapsed time.Duration) {
	if !metricsRegistered {
		return
	}
	if completedTotal != nil {
		completedTotal.WithLabelValues(task, string(outcome)).Inc()
	}
	if rotationDuration != nil {
		rotationDuration.WithLabelValues(task).Observe(elapsed.Seconds())
	}
}

func observeStepFailure(task string, state State) {
	if !metricsRegistered || stepFailureTotal == nil {
		return
	}
	stepFailureTotal.WithLabelValues(task, string(state)).Inc()
}
