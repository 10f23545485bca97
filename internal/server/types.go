package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dhjs0000/QERC/internal/barcode"
	"github.com/dhjs0000/QERC/internal/pipeline"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	searcher       *pipeline.Searcher
	builder        func() *pipeline.Builder
	stats          *pipeline.Stats
	corsOrigin     string
	maxUploadMB    int64
	timeoutSec     int
	overlayEnabled bool
	overlayStyle   pipeline.OverlayStyle
	rateLimiter    *RateLimiter
	progressEvery  time.Duration
	version        string
	logger         *slog.Logger
}

// RateLimitConfig holds per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	Search         pipeline.Config
	Decoder        barcode.Decoder
	OverlayEnabled bool
	OverlayStyle   pipeline.OverlayStyle
	RateLimit      RateLimitConfig
	Version        string
	Logger         *slog.Logger

	// ProgressInterval throttles WebSocket progress frames. Zero sends one
	// frame per attempt.
	ProgressInterval time.Duration
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string         `json:"status"`
	Version string         `json:"version,omitempty"`
	Time    string         `json:"time"`
	Stats   map[string]any `json:"stats,omitempty"`
}

// FormatsResponse is returned by /api/v1/formats.
type FormatsResponse struct {
	Symbologies   []string `json:"symbologies"`
	OutputFormats []string `json:"output_formats"`
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewServer creates a new scan server instance.
func NewServer(config Config) (*Server, error) {
	if config.MaxUploadMB <= 0 {
		return nil, errors.New("max upload size must be positive")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	build := func() *pipeline.Builder {
		b := pipeline.NewBuilder().WithConfig(config.Search).WithLogger(logger)
		if config.Decoder != nil {
			b = b.WithDecoder(config.Decoder)
		}
		return b
	}
	searcher, err := build().Build()
	if err != nil {
		return nil, err
	}

	style := config.OverlayStyle
	if style.Outline == nil {
		style = pipeline.DefaultOverlayStyle()
	}

	s := &Server{
		searcher:       searcher,
		builder:        build,
		stats:          &pipeline.Stats{},
		corsOrigin:     config.CORSOrigin,
		maxUploadMB:    config.MaxUploadMB,
		timeoutSec:     config.TimeoutSec,
		overlayEnabled: config.OverlayEnabled,
		overlayStyle:   style,
		progressEvery:  config.ProgressInterval,
		version:        config.Version,
		logger:         logger,
	}
	if config.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(config.RateLimit.RequestsPerMinute, config.RateLimit.RequestsPerHour,
			config.RateLimit.MaxRequestsPerDay, config.RateLimit.MaxDataPerDay)
	}
	return s, nil
}

// Stats returns the cumulative search counters of this server.
func (s *Server) Stats() *pipeline.Stats { return s.stats }

// Close releases server resources.
func (s *Server) Close() error {
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/api/v1/formats", s.corsMiddleware(s.formatsHandler))
	mux.HandleFunc("/api/v1/scan", s.corsMiddleware(s.rateLimitMiddleware(s.scanImageHandler)))
	mux.HandleFunc("/api/v1/scan/pdf", s.corsMiddleware(s.rateLimitMiddleware(s.scanPDFHandler)))
	mux.HandleFunc("/api/v1/scan/batch", s.corsMiddleware(s.rateLimitMiddleware(s.scanBatchHandler)))
	mux.HandleFunc("/ws/scan", s.rateLimitMiddleware(s.scanWebSocketHandler))
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a mux with all routes installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}
