package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/dhjs0000/QERC/internal/common"
)

// ErrInvalidImage is returned before any attempt when the image has no pixels.
var ErrInvalidImage = errors.New("invalid image dimensions")

// Searcher drives the decoder across every (variant, region) pair of the
// plan and collects deduplicated hits.
//
// With one worker, attempts run variant-major, region-minor and hits are
// discovered in that canonical order. With more workers the set of hits is
// the same but discovery order is not defined.
type Searcher struct {
	cfg      Config
	adapter  *Adapter
	progress ProgressCallback
	logger   *slog.Logger
}

// Config returns the searcher configuration.
func (s *Searcher) Config() Config { return s.cfg }

// Report is the outcome of one search session.
type Report struct {
	ImageID    string        `json:"image_id,omitempty"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	Hits       []Hit         `json:"barcodes"`
	Regions    int           `json:"regions"`
	Variants   int           `json:"variants"`
	TotalSteps int           `json:"total_steps"`
	Attempts   int           `json:"attempts"`
	Misses     int           `json:"misses"`
	Faults     int           `json:"faults"`
	Duplicates int           `json:"duplicates"`
	Skipped    int           `json:"skipped"`
	Workers    int           `json:"workers"`
	Duration   time.Duration `json:"duration_ns"`
	Cancelled  bool          `json:"cancelled"`
}

// Found reports whether at least one barcode was decoded.
func (r *Report) Found() bool { return r != nil && len(r.Hits) > 0 }

// Message summarizes the session for progress sinks and logs.
func (r *Report) Message() string {
	switch {
	case r == nil:
		return "no report"
	case r.Cancelled:
		return fmt.Sprintf("search cancelled after %d of %d attempts", r.Attempts, r.TotalSteps)
	case len(r.Hits) == 0:
		return "no barcode found"
	case len(r.Hits) == 1:
		return "found 1 barcode"
	default:
		return fmt.Sprintf("found %d barcodes", len(r.Hits))
	}
}

// Search runs a session on img with a private aggregator.
func (s *Searcher) Search(ctx context.Context, img image.Image) (*Report, error) {
	return s.SearchInto(ctx, NewAggregator(), "", img)
}

// SearchInto resets agg for imageID and runs a session on img, adding hits to
// agg as they are discovered. On cancellation the partial report is returned
// together with the context error.
func (s *Searcher) SearchInto(ctx context.Context, agg *Aggregator, imageID string, img image.Image) (*Report, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidImage)
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidImage, bounds.Dx(), bounds.Dy())
	}
	if agg == nil {
		agg = NewAggregator()
	}

	timer := common.NewNamedTimer("search")
	agg.Reset(imageID)

	regions := PlanRegions(bounds.Dx(), bounds.Dy())
	variants := s.cfg.Variants
	workers := s.cfg.Parallel.workersFor(len(variants))

	report := &Report{
		ImageID:    imageID,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Regions:    len(regions),
		Variants:   len(variants),
		TotalSteps: len(regions) * len(variants),
		Workers:    workers,
	}

	tracker := &stepTracker{total: report.TotalSteps, progress: s.progress}
	s.progress.OnStart(report.TotalSteps)

	jobs := make(chan attemptJob)
	wg := startWorkers(ctx, workers, jobs,
		func(job attemptJob) {
			region := regions[job.regionIndex]
			hit, outcome := s.adapter.Attempt(job.snapshot, region)
			added := false
			if outcome == OutcomeHit {
				hit.Variant = job.variant
				added = agg.add(hit)
				if added {
					s.logger.Debug("barcode found",
						"image", imageID,
						"format", hit.Format.String(),
						"variant", job.variantIndex,
						"region", region.String(),
						"binarizer", hit.Binarizer.String())
				}
			}
			tracker.record(outcome, added)
		},
		func(attemptJob) { tracker.skip() },
	)

	enqueueAttempts(ctx, img, variants, len(regions), jobs)
	close(jobs)
	wg.Wait()

	tracker.fill(report)
	report.Hits = agg.Hits()
	report.Duration = timer.Stop()

	if err := ctx.Err(); err != nil && report.Attempts < report.TotalSteps {
		report.Cancelled = true
		report.Skipped = report.TotalSteps - report.Attempts
		s.progress.OnError(err)
		s.logger.Info("search cancelled",
			"image", imageID,
			"attempts", report.Attempts,
			"total", report.TotalSteps)
		return report, err
	}

	s.progress.OnComplete(NewProgressEvent(report.Attempts, report.TotalSteps, len(report.Hits), report.Message()))
	s.logger.Info("search finished",
		"image", imageID,
		"hits", len(report.Hits),
		"attempts", report.Attempts,
		"faults", report.Faults,
		"duration", report.Duration.Round(time.Millisecond))
	return report, nil
}

// stepTracker counts attempt outcomes and emits progress. Emission happens
// under the same lock as counting so percentages never go backwards.
type stepTracker struct {
	mu         sync.Mutex
	total      int
	completed  int
	attempts   int
	misses     int
	faults     int
	hits       int
	duplicates int
	progress   ProgressCallback
}

func (t *stepTracker) record(outcome Outcome, added bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.completed++
	t.attempts++
	switch outcome {
	case OutcomeHit:
		if added {
			t.hits++
		} else {
			t.duplicates++
		}
	case OutcomeFault:
		t.faults++
	default:
		t.misses++
	}
	msg := fmt.Sprintf("processed attempt %d of %d", t.completed, t.total)
	t.progress.OnProgress(NewProgressEvent(t.completed, t.total, t.hits, msg))
}

func (t *stepTracker) skip() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed++
}

func (t *stepTracker) fill(r *Report) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r.Attempts = t.attempts
	r.Misses = t.misses
	r.Faults = t.faults
	r.Duplicates = t.duplicates
}
