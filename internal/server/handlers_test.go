package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer_RejectsBadUploadLimit(t *testing.T) {
	_, err := NewServer(Config{MaxUploadMB: 0})
	assert.Error(t, err)
}

func TestNewServer_RateLimiterOnlyWhenEnabled(t *testing.T) {
	off := newTestServer(t, missDecoder(), nil)
	assert.Nil(t, off.rateLimiter)

	on := newTestServer(t, missDecoder(), func(c *Config) {
		c.RateLimit = RateLimitConfig{Enabled: true, RequestsPerMinute: 5}
	})
	require.NotNil(t, on.rateLimiter)
	assert.Equal(t, 5, on.rateLimiter.requestsPerMinute)
}

func TestServer_HealthHandler(t *testing.T) {
	server := newTestServer(t, missDecoder(), nil)

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{name: "GET request success", method: http.MethodGet, expectedStatus: http.StatusOK},
		{name: "POST request not allowed", method: http.MethodPost, expectedStatus: http.StatusMethodNotAllowed},
		{name: "PUT request not allowed", method: http.MethodPut, expectedStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()

			server.healthHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus != http.StatusOK {
				return
			}
			var response HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, "healthy", response.Status)
			assert.Equal(t, "test", response.Version)
			assert.NotEmpty(t, response.Time)
			assert.Contains(t, response.Stats, "sessions")
			assert.Contains(t, response.Stats, "goroutines")
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestServer_HealthCountsSessions(t *testing.T) {
	server := newTestServer(t, constDecoder("X"), nil)
	h := server.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, multipartRequest(t, "/api/v1/scan", "image", "a.png", blankPNG(t), nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	var response HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.EqualValues(t, 1, response.Stats["sessions"])
	assert.EqualValues(t, 1, response.Stats["hits"])
}

func TestServer_FormatsHandler(t *testing.T) {
	server := newTestServer(t, missDecoder(), nil)

	w := httptest.NewRecorder()
	server.formatsHandler(w, httptest.NewRequest(http.MethodGet, "/api/v1/formats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp FormatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Symbologies, "QR_CODE")
	assert.Contains(t, resp.Symbologies, "CODE_128")
	assert.Equal(t, []string{"text", "json", "csv", "xml", "yaml"}, resp.OutputFormats)

	w = httptest.NewRecorder()
	server.formatsHandler(w, httptest.NewRequest(http.MethodDelete, "/api/v1/formats", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_WriteErrorResponse(t *testing.T) {
	server := newTestServer(t, missDecoder(), nil)
	w := httptest.NewRecorder()
	server.writeErrorResponse(w, "boom", http.StatusTeapot)

	assert.Equal(t, http.StatusTeapot, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "boom", resp.Error)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	server := newTestServer(t, constDecoder("M"), nil)
	h := server.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, multipartRequest(t, "/api/v1/scan", "image", "m.png", blankPNG(t), nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "qerc_scan_requests_total"))
	assert.Contains(t, body, "qerc_http_requests_total")
	assert.Contains(t, body, "qerc_scan_attempts_total")
}
