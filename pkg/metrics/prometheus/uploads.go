package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/filemill/filemill/pkg/dispatch"
	"github.com/filemill/filemill/pkg/metrics"
)

// uploadMetrics is the Prometheus implementation of dispatch.Metrics.
type uploadMetrics struct {
	uploadsTotal prometheus.Counter
	uploadBytes  prometheus.Counter
}

// NewUploadMetrics creates the upload counters.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewUploadMetrics() dispatch.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}
	return newUploadMetrics(metrics.GetRegistry())
}

func newUploadMetrics(reg prometheus.Registerer) *uploadMetrics {
	return &uploadMetrics{
		uploadsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "filemill_uploads_total",
				Help: "Total accepted uploads",
			},
		),
		uploadBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "filemill_upload_bytes_total",
				Help: "Total bytes accepted across uploads",
			},
		),
	}
}

func (m *uploadMetrics) IncUpload(sizeBytes int64) {
	if m == nil {
		return
	}
	m.uploadsTotal.Inc()
	if sizeBytes > 0 {
		m.uploadBytes.Add(float64(sizeBytes))
	}
}
