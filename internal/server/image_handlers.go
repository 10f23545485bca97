package server

import (
	"errors"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/dhjs0000/QERC/internal/export"
	"github.com/dhjs0000/QERC/internal/pipeline"
	"github.com/dhjs0000/QERC/internal/utils"
)

// scanImageHandler searches one uploaded image (multipart field "image").
// With overlay=1 the response is a PNG with the hit locations drawn in.
func (s *Server) scanImageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	img, name, ok := s.parseImageRequest(w, r)
	if !ok {
		scanRequestsTotal.WithLabelValues("image", "error").Inc()
		return
	}

	format, err := requestFormat(r)
	overlay := wantsOverlay(r)
	if err != nil && !overlay {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		scanRequestsTotal.WithLabelValues("image", "error").Inc()
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	agg := pipeline.NewAggregator()
	report, err := s.searcher.SearchInto(ctx, agg, name, img)
	if report == nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		scanRequestsTotal.WithLabelValues("image", "error").Inc()
		return
	}
	s.observeReport("image", report)
	if err != nil {
		s.logger.Warn("scan stopped early", "image", name, "error", err)
	}

	if overlay {
		s.handleOverlayOutput(w, img, agg, name)
		return
	}
	s.writeResults(w, format, []export.ImageResult{export.FromReport(name, report)})
}

// parseImageRequest reads and decodes the uploaded image. On failure the
// error response has already been written.
func (s *Server) parseImageRequest(w http.ResponseWriter, r *http.Request) (image.Image, string, bool) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		s.handleFormParseError(w, err)
		return nil, "", false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return nil, "", false
	}
	defer func() { _ = file.Close() }()

	data, ok := s.readUpload(w, file, header)
	if !ok {
		return nil, "", false
	}

	img, _, err := utils.DecodeImageBytes(data)
	if err != nil {
		s.writeErrorResponse(w, "Invalid image format", http.StatusBadRequest)
		return nil, "", false
	}
	return img, header.Filename, true
}

func (s *Server) readUpload(w http.ResponseWriter, file multipart.File, header *multipart.FileHeader) ([]byte, bool) {
	if header.Size > s.maxUploadMB*1024*1024 {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return nil, false
	}
	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read upload", http.StatusInternalServerError)
		return nil, false
	}
	return data, true
}

func (s *Server) handleFormParseError(w http.ResponseWriter, err error) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) || strings.Contains(strings.ToLower(err.Error()), "request body too large") {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}
	s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
}

func wantsOverlay(r *http.Request) bool {
	v := r.URL.Query().Get("overlay")
	if v == "" && r.MultipartForm != nil {
		v = r.FormValue("overlay")
	}
	if v == "" {
		return false
	}
	on, err := strconv.ParseBool(v)
	return err == nil && on
}

// handleOverlayOutput renders the recorded hit locations as a PNG.
func (s *Server) handleOverlayOutput(w http.ResponseWriter, img image.Image, agg *pipeline.Aggregator, name string) {
	if !s.overlayEnabled {
		s.writeErrorResponse(w, "overlay output disabled", http.StatusForbidden)
		return
	}

	ov := pipeline.RenderAggregator(img, agg, name, s.overlayStyle)
	if ov == nil {
		s.writeErrorResponse(w, "overlay failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Barcodes-Found", strconv.Itoa(len(agg.LocationsOf(name))))
	w.WriteHeader(http.StatusOK)
	if err := png.Encode(w, ov); err != nil {
		s.logger.Error("failed to encode overlay", "error", err)
	}
}
