package batch

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/dhjs0000/QERC/internal/pipeline"
	"github.com/dhjs0000/QERC/internal/utils"
)

// loadAndValidateImage loads an image, rejecting unsupported extensions early.
func loadAndValidateImage(path string) (image.Image, utils.ImageMetadata, error) {
	if !utils.IsSupportedImage(path) {
		return nil, utils.ImageMetadata{}, &utils.ImageProcessingError{
			Operation: "load",
			Path:      path,
			Err:       utils.ErrUnsupportedFormat,
		}
	}
	return utils.LoadImage(path)
}

// overlayPath returns <dir>/<name>_overlay.png for an image path.
func overlayPath(overlayDir, imagePath string) string {
	base := filepath.Base(imagePath)
	return filepath.Join(overlayDir, strings.TrimSuffix(base, filepath.Ext(base))+"_overlay.png")
}

// generateAndSaveOverlay renders the recorded locations of imagePath and
// saves the overlay as PNG.
func generateAndSaveOverlay(img image.Image, agg *pipeline.Aggregator, imagePath, overlayDir string,
	style pipeline.OverlayStyle) (string, error) {
	ov := pipeline.RenderAggregator(img, agg, imagePath, style)
	if ov == nil {
		return "", nil
	}
	if err := os.MkdirAll(overlayDir, 0o750); err != nil {
		return "", fmt.Errorf("create overlay dir: %w", err)
	}
	outPath := overlayPath(overlayDir, imagePath)
	if err := imaging.Save(ov, outPath); err != nil {
		return "", fmt.Errorf("save overlay %s: %w", outPath, err)
	}
	return outPath, nil
}

// processSingleImage loads path and runs one search session for it against
// agg. Load failures come back as errors before any search starts.
func processSingleImage(ctx context.Context, s *pipeline.Searcher, agg *pipeline.Aggregator, path string,
	config *Config) ImageOutcome {
	outcome := ImageOutcome{Path: path}

	img, _, err := loadAndValidateImage(path)
	if err != nil {
		outcome.Err = err
		return outcome
	}

	report, err := s.SearchInto(ctx, agg, path, img)
	outcome.Report = report
	if err != nil {
		if ctx.Err() == nil {
			outcome.Err = fmt.Errorf("search %s: %w", path, err)
		}
		return outcome
	}

	if config.OverlayDir != "" && report.Found() {
		p, err := generateAndSaveOverlay(img, agg, path, config.OverlayDir, config.OverlayStyle)
		if err != nil {
			config.logger().Warn("overlay failed", "file", path, "error", err)
		}
		outcome.OverlayPath = p
	}
	return outcome
}

// processImages searches every image in order, one session at a time. Each
// session resets the aggregator for its image first.
func processImages(ctx context.Context, s *pipeline.Searcher, agg *pipeline.Aggregator, paths []string,
	config *Config) ([]ImageOutcome, error) {
	outcomes := make([]ImageOutcome, 0, len(paths))
	log := config.logger()

	for i, path := range paths {
		if ctx.Err() != nil {
			break
		}
		log.Debug("processing image", "index", i+1, "total", len(paths), "file", path)

		outcome := processSingleImage(ctx, s, agg, path, config)
		outcomes = append(outcomes, outcome)

		if outcome.Err != nil {
			log.Warn("image failed", "file", path, "error", outcome.Err)
			if !config.ContinueOnError {
				return outcomes, fmt.Errorf("processing %s: %w", path, outcome.Err)
			}
		}
	}
	return outcomes, nil
}
