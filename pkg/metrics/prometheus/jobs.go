// Package prometheus implements the consumer metrics interfaces
// (worker.Metrics, broker.Metrics, dispatch.Metrics) on the shared
// registry. Constructors return nil when metrics are disabled; every
// method is safe on a nil receiver.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/filemill/filemill/pkg/metrics"
	"github.com/filemill/filemill/pkg/worker"
)

// jobMetrics is the Prometheus implementation of worker.Metrics.
type jobMetrics struct {
	jobsTotal   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
}

// NewJobMetrics creates the worker fleet collectors.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewJobMetrics() worker.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}
	return newJobMetrics(metrics.GetRegistry())
}

func newJobMetrics(reg prometheus.Registerer) *jobMetrics {
	return &jobMetrics{
		jobsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filemill_jobs_total",
				Help: "Total jobs executed by fleet, action, and outcome",
			},
			[]string{"fleet", "action", "outcome"},
		),
		jobDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "filemill_job_duration_seconds",
				Help: "Job execution time in seconds",
				Buckets: []float64{
					0.1,
					0.5,
					1,   // fast image work
					5,
					15,
					30,  // AI deadline
					60,  // image deadline
					120, // security deadline
					300,
					600, // video deadline
				},
			},
			[]string{"action"},
		),
	}
}

func (m *jobMetrics) ObserveJob(fleet, action, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(fleet, action, outcome).Inc()
	m.jobDuration.WithLabelValues(action).Observe(seconds)
}
