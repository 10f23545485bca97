package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dhjs0000/QERC/internal/pipeline"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qerc_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qerc_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Search session metrics
	scanRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qerc_scan_requests_total",
			Help: "Total number of scan requests",
		},
		[]string{"type", "status"}, // type: image, pdf, websocket
	)

	scanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qerc_scan_duration_seconds",
			Help:    "Search session duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 25, 60},
		},
		[]string{"type"},
	)

	scanAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qerc_scan_attempts_total",
			Help: "Decode attempts by outcome",
		},
		[]string{"outcome"}, // hit, miss, fault, skipped
	)

	barcodesFound = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qerc_barcodes_found",
			Help:    "Distinct barcodes found per session",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 25},
		},
		[]string{"type"},
	)

	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qerc_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // minute, hour, requests, data
	)

	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qerc_upload_size_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qerc_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qerc_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // sent, received
	)
)

// observeReport records a finished session for kind in the metrics and in
// the server's cumulative stats.
func (s *Server) observeReport(kind string, r *pipeline.Report) {
	if r == nil {
		return
	}
	s.stats.Record(r)
	status := "success"
	if r.Cancelled {
		status = "cancelled"
	}
	scanRequestsTotal.WithLabelValues(kind, status).Inc()
	scanDuration.WithLabelValues(kind).Observe(r.Duration.Seconds())
	barcodesFound.WithLabelValues(kind).Observe(float64(len(r.Hits)))

	scanAttemptsTotal.WithLabelValues("fault").Add(float64(r.Faults))
	scanAttemptsTotal.WithLabelValues("miss").Add(float64(r.Misses))
	scanAttemptsTotal.WithLabelValues("hit").Add(float64(r.Attempts - r.Misses - r.Faults))
	scanAttemptsTotal.WithLabelValues("skipped").Add(float64(r.Skipped))
}
