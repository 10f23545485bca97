package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dhjs0000/QERC/internal/barcode"
	"github.com/dhjs0000/QERC/internal/export"
)

// healthHandler returns server health status and cumulative search counters.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	if s.stats != nil {
		response.Stats = s.stats.Snapshot()
	}
	s.writeJSON(w, http.StatusOK, response)
}

// formatsHandler lists the decodable symbologies and the output formats.
func (s *Server) formatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := FormatsResponse{}
	for _, f := range barcode.DefaultFormats() {
		resp.Symbologies = append(resp.Symbologies, f.String())
	}
	for _, f := range export.Formats() {
		resp.OutputFormats = append(resp.OutputFormats, string(f))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// requestFormat reads the output format from the query or form. The server
// answers in JSON unless asked otherwise.
func requestFormat(r *http.Request) (export.Format, error) {
	raw := r.URL.Query().Get("format")
	if raw == "" && r.MultipartForm != nil {
		raw = r.FormValue("format")
	}
	if strings.TrimSpace(raw) == "" {
		return export.FormatJSON, nil
	}
	return export.ParseFormat(raw)
}

// requestContext bounds a scan by the configured timeout.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeoutSec <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), time.Duration(s.timeoutSec)*time.Second)
}

// writeResults encodes results in format and sends them with status 200.
func (s *Server) writeResults(w http.ResponseWriter, format export.Format, results []export.ImageResult) {
	body, err := export.String(format, results)
	if err != nil {
		s.writeErrorResponse(w, "formatting failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Success: false, Error: message})
}
