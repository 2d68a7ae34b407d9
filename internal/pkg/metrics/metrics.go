package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "videoshare"
	subsystem = "api"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		},
		[]string{"method", "endpoint"},
	)

	// Publish outcomes: success, validation, upload_failed, metadata_failed
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "uploads_total",
			Help:      "Total video publish attempts by outcome",
		},
		[]string{"status"},
	)

	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "upload_bytes_total",
			Help:      "Total bytes of successfully published videos",
		},
	)

	UploadRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "upload_retries_total",
			Help:      "Storage upload attempts that were retried",
		},
	)

	CompensationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "compensations_total",
			Help:      "Orphan blob removals after a failed metadata write",
		},
		[]string{"result"},
	)

	PublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "publish_duration_seconds",
			Help:      "End to end publish duration in seconds",
			Buckets:   []float64{0.5, 1, 5, 15, 60, 300, 900, 1800},
		},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordPublish records the outcome of one publish
func RecordPublish(status string, bytes int64, durationSec float64) {
	UploadsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		UploadBytesTotal.Add(float64(bytes))
	}
	PublishDuration.Observe(durationSec)
}

func RecordRetry() {
	UploadRetriesTotal.Inc()
}

// RecordCompensation records a cleanup attempt; result is success or failure
func RecordCompensation(result string) {
	CompensationsTotal.WithLabelValues(result).Inc()
}
