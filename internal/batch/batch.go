// Package batch runs barcode searches over many images as one session.
package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dhjs0000/QERC/internal/barcode"
	"github.com/dhjs0000/QERC/internal/common"
	"github.com/dhjs0000/QERC/internal/pipeline"
)

// ErrNoImages is returned when discovery finds nothing to process.
var ErrNoImages = errors.New("no image files found")

// ProcessBatch discovers images under imagePaths and searches each of them.
// A cancelled context stops the batch after the current image; the partial
// result is returned with the context error.
func ProcessBatch(ctx context.Context, imagePaths []string, config *Config) (*Result, error) {
	var dec barcode.Decoder
	if config != nil {
		dec = config.Decoder
	}
	return processBatch(ctx, imagePaths, config, dec)
}

func processBatch(ctx context.Context, imagePaths []string, config *Config, dec barcode.Decoder) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch config: %w", err)
	}

	files, err := discoverImageFiles(imagePaths, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoImages
	}

	searcher, err := buildSearcher(config, dec)
	if err != nil {
		return nil, fmt.Errorf("failed to build searcher: %w", err)
	}

	timer := common.NewNamedTimer("batch")
	agg := pipeline.NewAggregator()
	outcomes, procErr := processImages(ctx, searcher, agg, files, config)

	result := &Result{
		Images:     outcomes,
		ImagePaths: files,
		Duration:   timer.Stop(),
		Workers:    config.Search.Parallel.MaxWorkers,
		Aggregator: agg,
	}
	for _, o := range outcomes {
		if o.Report != nil {
			result.Workers = o.Report.Workers
			break
		}
	}
	config.logger().Info("batch finished",
		"images", len(files),
		"processed", result.Processed(),
		"failed", result.Failed(),
		"hits", result.TotalHits(),
		"duration", result.Duration)

	if err := ctx.Err(); err != nil {
		result.Cancelled = true
		return result, err
	}
	if procErr != nil {
		return result, procErr
	}
	return result, nil
}

// buildSearcher creates the searcher from the batch configuration.
func buildSearcher(config *Config, dec barcode.Decoder) (*pipeline.Searcher, error) {
	var progress []pipeline.ProgressCallback
	if config.ShowProgress && !config.Quiet {
		progress = append(progress, pipeline.NewConsoleProgressCallback(config.out(), "Searching: ").
			WithUpdateInterval(config.ProgressInterval))
	}
	if config.Progress != nil {
		progress = append(progress, config.Progress)
	}

	cfg := config.Search
	if len(cfg.Variants) == 0 {
		cfg.Variants = pipeline.PlanVariants()
	}
	b := pipeline.NewBuilder().
		WithConfig(cfg).
		WithLogger(config.logger())
	if dec != nil {
		b = b.WithDecoder(dec)
	}
	switch len(progress) {
	case 0:
	case 1:
		b = b.WithProgressCallback(progress[0])
	default:
		b = b.WithProgressCallback(pipeline.NewMultiProgressCallback(progress...))
	}
	return b.Build()
}
