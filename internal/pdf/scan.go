package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dhjs0000/QERC/internal/pipeline"
)

// ImageResult is the search report for one embedded image.
type ImageResult struct {
	ID     string           `json:"id"`
	Page   int              `json:"page"`
	Index  int              `json:"index"`
	Report *pipeline.Report `json:"report"`
}

// DocumentResult collects the reports for every image of a document.
type DocumentResult struct {
	Filename  string        `json:"filename"`
	Pages     []int         `json:"pages"`
	Images    []ImageResult `json:"images"`
	Duration  time.Duration `json:"duration_ns"`
	Cancelled bool          `json:"cancelled"`
}

// TotalHits returns the number of hits across all images.
func (d *DocumentResult) TotalHits() int {
	n := 0
	for _, img := range d.Images {
		if img.Report != nil {
			n += len(img.Report.Hits)
		}
	}
	return n
}

// Scanner runs one search session per embedded image of a PDF.
type Scanner struct {
	Searcher    *pipeline.Searcher
	Credentials *Credentials
	Logger      *slog.Logger
	// OnImage, when set, is called after each image is searched, before the
	// next one starts.
	OnImage func(PageImage, *pipeline.Report)
}

// Scan extracts the images of filename within pageRange and searches each in
// page order. The aggregator is reset before every image; pass nil to use a
// private one. Cancellation stops after the current image.
func (s *Scanner) Scan(ctx context.Context, agg *pipeline.Aggregator, filename, pageRange string) (*DocumentResult, error) {
	if s.Searcher == nil {
		return nil, fmt.Errorf("pdf scanner: searcher is required")
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if agg == nil {
		agg = pipeline.NewAggregator()
	}

	start := time.Now()
	images, err := ExtractPageImages(filename, pageRange, s.Credentials)
	if err != nil {
		return nil, err
	}
	logger.Debug("pdf images extracted", "file", filename, "images", len(images))

	doc := &DocumentResult{Filename: filepath.Base(filename)}
	seenPage := make(map[int]bool)
	for _, pi := range images {
		if ctx.Err() != nil {
			doc.Cancelled = true
			break
		}
		if !seenPage[pi.Page] {
			seenPage[pi.Page] = true
			doc.Pages = append(doc.Pages, pi.Page)
		}
		id := pi.ID(filename)
		report, err := s.Searcher.SearchInto(ctx, agg, id, pi.Image)
		if report == nil {
			logger.Warn("pdf image search failed", "image", id, "error", err)
			continue
		}
		doc.Images = append(doc.Images, ImageResult{ID: id, Page: pi.Page, Index: pi.Index, Report: report})
		if s.OnImage != nil {
			s.OnImage(pi, report)
		}
		if report.Cancelled {
			doc.Cancelled = true
			break
		}
	}
	doc.Duration = time.Since(start)

	logger.Info("pdf scanned", "file", filename, "images", len(doc.Images), "hits", doc.TotalHits(),
		"cancelled", doc.Cancelled, "duration", doc.Duration)
	if doc.Cancelled {
		return doc, ctx.Err()
	}
	return doc, nil
}
