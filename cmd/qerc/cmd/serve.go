package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dhjs0000/QERC/internal/config"
	"github.com/dhjs0000/QERC/internal/server"
	"github.com/dhjs0000/QERC/internal/version"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP barcode search API",
	Long: `Start an HTTP server exposing the barcode search over REST and WebSocket.

Endpoints:
  POST /api/v1/scan      - search an uploaded image (multipart field "image")
  POST /api/v1/scan/pdf  - search the images of an uploaded PDF (field "pdf")
  GET  /ws/scan          - WebSocket: send images, receive progress and results
  GET  /api/v1/formats   - supported symbologies and output formats
  GET  /health           - health check with session counters
  GET  /metrics          - Prometheus metrics

Examples:
  qerc serve
  qerc serve --port 8080
  qerc serve --host 0.0.0.0 --rate-limit-enabled --requests-per-minute 30`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := commandConfig(cmd)
		if err != nil {
			return err
		}
		serverConfig, err := configToServerConfig(cfg, cmd)
		if err != nil {
			return err
		}

		srv, err := server.NewServer(serverConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}
		defer func() { _ = srv.Close() }()

		ctx, stop := signalContext(cmd)
		defer stop()

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", serverConfig.Host, serverConfig.Port),
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(serverConfig.TimeoutSec) * time.Second,
		}

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if cmd.Flags().Changed("shutdown-timeout") {
			shutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
		}
		return runHTTPServer(ctx, httpServer, time.Duration(shutdownTimeout)*time.Second)
	},
}

// configToServerConfig maps the loaded configuration to server.Config, with
// flags the user set taking precedence.
func configToServerConfig(cfg *config.Config, cmd *cobra.Command) (server.Config, error) {
	flags := cmd.Flags()

	host := cfg.Server.Host
	if flags.Changed("host") {
		host, _ = flags.GetString("host")
	}
	port := cfg.Server.Port
	if flags.Changed("port") {
		port, _ = flags.GetInt("port")
	}
	if port < 1 || port > 65535 {
		return server.Config{}, fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
	}
	corsOrigin := cfg.Server.CORSOrigin
	if flags.Changed("cors-origin") {
		corsOrigin, _ = flags.GetString("cors-origin")
	}
	maxUpload := cfg.Server.MaxUploadMB
	if flags.Changed("max-upload-size") {
		maxUpload, _ = flags.GetInt("max-upload-size")
	}
	timeout := cfg.Server.TimeoutSec
	if flags.Changed("timeout") {
		timeout, _ = flags.GetInt("timeout")
	}
	overlayEnabled := cfg.Server.OverlayEnabled
	if flags.Changed("overlay-enable") {
		overlayEnabled, _ = flags.GetBool("overlay-enable")
	}

	rl := cfg.Server.RateLimit
	if flags.Changed("rate-limit-enabled") {
		rl.Enabled, _ = flags.GetBool("rate-limit-enabled")
	}
	if flags.Changed("requests-per-minute") {
		rl.RequestsPerMinute, _ = flags.GetInt("requests-per-minute")
	}
	if flags.Changed("requests-per-hour") {
		rl.RequestsPerHour, _ = flags.GetInt("requests-per-hour")
	}
	if flags.Changed("max-requests-per-day") {
		rl.MaxRequestsPerDay, _ = flags.GetInt("max-requests-per-day")
	}
	if flags.Changed("max-data-per-day-mb") {
		rl.MaxDataPerDayMB, _ = flags.GetInt("max-data-per-day-mb")
	}

	return server.Config{
		Host:           host,
		Port:           port,
		CORSOrigin:     corsOrigin,
		MaxUploadMB:    int64(maxUpload),
		TimeoutSec:     timeout,
		Search:         cfg.ToPipelineConfig(),
		Decoder:        decoderOverride,
		OverlayEnabled: overlayEnabled,
		OverlayStyle:   overlayStyle(cfg),
		RateLimit: server.RateLimitConfig{
			Enabled:           rl.Enabled,
			RequestsPerMinute: rl.RequestsPerMinute,
			RequestsPerHour:   rl.RequestsPerHour,
			MaxRequestsPerDay: rl.MaxRequestsPerDay,
			MaxDataPerDay:     int64(rl.MaxDataPerDayMB) << 20,
		},
		Version: version.Version,
		Logger:  slog.Default(),

		ProgressInterval: cfg.ProgressInterval(),
	}, nil
}

// runHTTPServer serves until ctx is done or the listener fails, then shuts
// down gracefully within shutdownTimeout.
func runHTTPServer(ctx context.Context, httpServer *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting barcode server", "addr", httpServer.Addr, "version", version.String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("Received shutdown signal, starting graceful shutdown", "timeout", shutdownTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("Graceful shutdown completed")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 60, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Bool("overlay-enable", true, "allow overlay image responses")
	// search settings applied to every request
	serveCmd.Flags().Int("workers", 0, "attempt workers per image (0 = min(CPUs, variants))")
	serveCmd.Flags().String("symbologies", "", "comma-separated symbologies to search (default: all)")
	serveCmd.Flags().Bool("try-harder", true, "let the decoder spend more time per attempt")
	// Rate limiting flags
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 1000, "maximum requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", 0, "maximum requests per day per client (0 = unlimited)")
	serveCmd.Flags().Int("max-data-per-day-mb", 0, "maximum upload volume per day per client in MB (0 = unlimited)")
}
