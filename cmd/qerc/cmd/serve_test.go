package cmd

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhjs0000/QERC/internal/config"
)

func TestConfigToServerConfig_Defaults(t *testing.T) {
	resetFlags(serveCmd)
	cfg := config.DefaultConfig()

	sc, err := configToServerConfig(&cfg, serveCmd)
	require.NoError(t, err)
	assert.Equal(t, "localhost", sc.Host)
	assert.Equal(t, 8080, sc.Port)
	assert.Equal(t, int64(50), sc.MaxUploadMB)
	assert.Equal(t, 60, sc.TimeoutSec)
	assert.True(t, sc.OverlayEnabled)
	assert.False(t, sc.RateLimit.Enabled)
	assert.Equal(t, 100*time.Millisecond, sc.ProgressInterval)
	assert.Len(t, sc.Search.Variants, 4)
}

func TestConfigToServerConfig_FlagsOverride(t *testing.T) {
	resetFlags(serveCmd)
	t.Cleanup(func() { resetFlags(serveCmd) })
	cfg := config.DefaultConfig()

	for flag, value := range map[string]string{
		"host":                "0.0.0.0",
		"port":                "9000",
		"max-upload-size":     "5",
		"rate-limit-enabled":  "true",
		"requests-per-minute": "7",
		"max-data-per-day-mb": "2",
		"overlay-enable":      "false",
	} {
		require.NoError(t, serveCmd.Flags().Set(flag, value), flag)
	}

	sc, err := configToServerConfig(&cfg, serveCmd)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", sc.Host)
	assert.Equal(t, 9000, sc.Port)
	assert.Equal(t, int64(5), sc.MaxUploadMB)
	assert.False(t, sc.OverlayEnabled)
	assert.True(t, sc.RateLimit.Enabled)
	assert.Equal(t, 7, sc.RateLimit.RequestsPerMinute)
	assert.Equal(t, int64(2<<20), sc.RateLimit.MaxDataPerDay)
}

func TestConfigToServerConfig_InvalidPort(t *testing.T) {
	resetFlags(serveCmd)
	t.Cleanup(func() { resetFlags(serveCmd) })
	require.NoError(t, serveCmd.Flags().Set("port", "70000"))

	cfg := config.DefaultConfig()
	_, err := configToServerConfig(&cfg, serveCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port number")
}

func TestRunHTTPServer_GracefulShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler(), ReadHeaderTimeout: time.Second}

	done := make(chan error, 1)
	go func() { done <- runHTTPServer(ctx, srv, time.Second) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunHTTPServer_ListenError(t *testing.T) {
	srv := &http.Server{Addr: "256.0.0.1:bad", ReadHeaderTimeout: time.Second}
	err := runHTTPServer(context.Background(), srv, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server error")
}
