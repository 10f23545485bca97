package cmd

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"github.com/dhjs0000/QERC/internal/config"
	"github.com/dhjs0000/QERC/internal/export"
	"github.com/dhjs0000/QERC/internal/pipeline"
	"github.com/dhjs0000/QERC/internal/utils"
)

// scanCmd searches the given images, one session per image, in order.
var scanCmd = &cobra.Command{
	Use:   "scan <image>...",
	Short: "Search images for barcodes and QR codes",
	Long: `Search one or more image files for barcodes and QR codes.

Images are processed in the order given. A file that cannot be read is
reported in the output and the remaining files are still searched.

Supported formats: JPEG, PNG, GIF, BMP, TIFF, WebP

Examples:
  qerc scan label.png
  qerc scan *.jpg --format json --output results.json
  qerc scan shelf.jpg --overlay-dir out/ --progress`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	searcher, err := newSearcher(cmd, cfg)
	if err != nil {
		return fmt.Errorf("failed to build searcher: %w", err)
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	agg := pipeline.NewAggregator()
	style := overlayStyle(cfg)
	results := make([]export.ImageResult, 0, len(args))
	failed := 0

	for _, path := range args {
		if ctx.Err() != nil {
			break
		}
		img, _, err := utils.LoadImage(path)
		if err != nil {
			slog.Warn("image failed", "file", path, "error", err)
			results = append(results, export.FromError(path, err))
			failed++
			continue
		}

		report, err := searcher.SearchInto(ctx, agg, path, img)
		if report == nil {
			results = append(results, export.FromError(path, err))
			failed++
			continue
		}
		results = append(results, export.FromReport(path, report))

		if cfg.Output.OverlayDir != "" && report.Found() {
			if err := saveOverlay(cfg.Output.OverlayDir, path, pipeline.RenderAggregator(img, agg, path, style)); err != nil {
				slog.Warn("overlay failed", "file", path, "error", err)
			}
		}
	}

	if err := writeOutput(cmd.OutOrStdout(), cfg, results); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if failed == len(args) {
		return errors.New("no image could be processed")
	}
	return nil
}

// overlayStyle returns the configured overlay style, falling back to the
// default when the colors do not parse.
func overlayStyle(cfg *config.Config) pipeline.OverlayStyle {
	style, err := cfg.OverlayStyle()
	if err != nil {
		slog.Warn("invalid overlay colors, using defaults", "error", err)
		return pipeline.DefaultOverlayStyle()
	}
	return style
}

// saveOverlay writes ov as <dir>/<name>_overlay.png.
func saveOverlay(dir, imagePath string, ov *image.NRGBA) error {
	if ov == nil {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create overlay dir: %w", err)
	}
	base := filepath.Base(imagePath)
	out := filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+"_overlay.png")
	if err := imaging.Save(ov, out); err != nil {
		return fmt.Errorf("save overlay %s: %w", out, err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(scanCmd)
	addSearchFlags(scanCmd)
}
