package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/filemill/filemill/pkg/broker"
	"github.com/filemill/filemill/pkg/metrics"
)

// publishMetrics is the Prometheus implementation of broker.Metrics.
type publishMetrics struct {
	publishTotal *prometheus.CounterVec
}

// NewPublishMetrics creates the broker publish counter.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewPublishMetrics() broker.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}
	return newPublishMetrics(metrics.GetRegistry())
}

func newPublishMetrics(reg prometheus.Registerer) *publishMetrics {
	return &publishMetrics{
		publishTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filemill_publish_total",
				Help: "Total envelopes published by destination queue",
			},
			[]string{"queue"},
		),
	}
}

func (m *publishMetrics) IncPublished(queue string) {
	if m == nil {
		return
	}
	m.publishTotal.WithLabelValues(queue).Inc()
}
