package server

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/dhjs0000/QERC/internal/export"
	"github.com/dhjs0000/QERC/internal/pipeline"
	"github.com/dhjs0000/QERC/internal/utils"
)

// maxBatchImages caps the number of files in one batch request.
const maxBatchImages = 10

// BatchScanResponse is the JSON body of /api/v1/scan/batch.
type BatchScanResponse struct {
	Success bool                 `json:"success"`
	Results []export.ImageResult `json:"results"`
	Summary BatchScanSummary     `json:"summary"`
}

// BatchScanSummary provides summary statistics for one batch request.
type BatchScanSummary struct {
	TotalImages   int     `json:"total_images"`
	Successful    int     `json:"successful"`
	Failed        int     `json:"failed"`
	Barcodes      int     `json:"barcodes"`
	TotalDuration float64 `json:"total_duration_seconds"`
	AvgImageTime  float64 `json:"avg_image_time_seconds"`
}

// scanBatchHandler searches several uploaded images (repeated multipart field
// "images") as one session. Images are searched in upload order and share
// one aggregator, reset for each image.
func (s *Server) scanBatchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	files, ok := s.parseBatchRequest(w, r)
	if !ok {
		scanRequestsTotal.WithLabelValues("batch", "error").Inc()
		return
	}

	format, err := requestFormat(r)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		scanRequestsTotal.WithLabelValues("batch", "error").Inc()
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	start := time.Now()
	agg := pipeline.NewAggregator()
	summary := BatchScanSummary{TotalImages: len(files)}
	results := make([]export.ImageResult, 0, len(files))

	for _, fh := range files {
		res := s.scanBatchImage(ctx, agg, fh)
		if res.Error != "" {
			summary.Failed++
		} else {
			summary.Successful++
			summary.Barcodes += len(res.Barcodes)
		}
		results = append(results, res)
	}

	summary.TotalDuration = time.Since(start).Seconds()
	if summary.TotalImages > 0 {
		summary.AvgImageTime = summary.TotalDuration / float64(summary.TotalImages)
	}
	if ctx.Err() != nil {
		s.logger.Warn("batch scan stopped early", "images", len(files), "error", ctx.Err())
	}

	if format != export.FormatJSON {
		s.writeResults(w, format, results)
		return
	}
	s.writeJSON(w, http.StatusOK, BatchScanResponse{
		Success: summary.Failed == 0,
		Results: results,
		Summary: summary,
	})
}

// scanBatchImage decodes and searches one file of a batch under the
// request's deadline. Failures are recorded on the returned result.
func (s *Server) scanBatchImage(ctx context.Context, agg *pipeline.Aggregator, fh *multipart.FileHeader) export.ImageResult {
	name := fh.Filename
	data, err := readFileHeader(fh)
	if err != nil {
		return export.FromError(name, err)
	}
	uploadSizeBytes.Observe(float64(len(data)))

	img, _, err := utils.DecodeImageBytes(data)
	if err != nil {
		return export.FromError(name, fmt.Errorf("invalid image: %w", err))
	}

	report, err := s.searcher.SearchInto(ctx, agg, name, img)
	if report == nil {
		return export.FromError(name, err)
	}
	s.observeReport("batch", report)
	return export.FromReport(name, report)
}

// parseBatchRequest returns the uploaded files. On failure the error
// response has already been written.
func (s *Server) parseBatchRequest(w http.ResponseWriter, r *http.Request) ([]*multipart.FileHeader, bool) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		s.handleFormParseError(w, err)
		return nil, false
	}

	files := r.MultipartForm.File["images"]
	switch {
	case len(files) == 0:
		s.writeErrorResponse(w, "No image files provided", http.StatusBadRequest)
		return nil, false
	case len(files) > maxBatchImages:
		s.writeErrorResponse(w, fmt.Sprintf("Batch size too large (maximum %d images)", maxBatchImages),
			http.StatusBadRequest)
		return nil, false
	}
	return files, true
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return data, nil
}
