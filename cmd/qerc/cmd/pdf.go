package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dhjs0000/QERC/internal/export"
	"github.com/dhjs0000/QERC/internal/pdf"
	"github.com/dhjs0000/QERC/internal/pipeline"
)

// pdfCmd searches the images embedded in PDF documents.
var pdfCmd = &cobra.Command{
	Use:   "pdf <file.pdf>...",
	Short: "Search the images embedded in PDF files",
	Long: `Extract the images embedded in PDF documents and search each for
barcodes and QR codes. Results are identified as file.pdf#page=N&image=M.

Examples:
  qerc pdf invoice.pdf
  qerc pdf scans.pdf --pages 1-3,5 --format json
  qerc pdf locked.pdf --password secret`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPDF,
}

func runPDF(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	searcher, err := newSearcher(cmd, cfg)
	if err != nil {
		return fmt.Errorf("failed to build searcher: %w", err)
	}

	pages := cfg.PDF.Pages
	if cmd.Flags().Changed("pages") {
		pages, _ = cmd.Flags().GetString("pages")
	}
	scanner := &pdf.Scanner{Searcher: searcher, Logger: slog.Default()}
	if pw, _ := cmd.Flags().GetString("password"); pw != "" {
		scanner.Credentials = &pdf.Credentials{UserPassword: pw, OwnerPassword: pw}
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	agg := pipeline.NewAggregator()
	style := overlayStyle(cfg)
	var results []export.ImageResult
	failed := 0

	for _, file := range args {
		if cfg.Output.OverlayDir != "" {
			scanner.OnImage = overlayWriter(cfg.Output.OverlayDir, file, agg, style)
		}
		doc, err := scanner.Scan(ctx, agg, file, pages)
		if doc == nil {
			if errors.Is(err, pdf.ErrPasswordRequired) {
				err = fmt.Errorf("%w (use --password)", err)
			}
			slog.Warn("pdf failed", "file", file, "error", err)
			results = append(results, export.FromError(file, err))
			failed++
			continue
		}
		for _, img := range doc.Images {
			results = append(results, export.FromReport(img.ID, img.Report))
		}
		if err != nil {
			break
		}
	}

	if err := writeOutput(cmd.OutOrStdout(), cfg, results); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if failed == len(args) {
		return errors.New("no PDF could be processed")
	}
	return nil
}

// overlayWriter returns a hook that saves an overlay for every image of file
// with at least one hit, named <file>_p<page>_<index>_overlay.png.
func overlayWriter(dir, file string, agg *pipeline.Aggregator, style pipeline.OverlayStyle) func(pdf.PageImage, *pipeline.Report) {
	base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	return func(pi pdf.PageImage, report *pipeline.Report) {
		if !report.Found() {
			return
		}
		id := pi.ID(file)
		name := fmt.Sprintf("%s_p%d_%d.png", base, pi.Page, pi.Index)
		if err := saveOverlay(dir, name, pipeline.RenderAggregator(pi.Image, agg, id, style)); err != nil {
			slog.Warn("overlay failed", "image", id, "error", err)
		}
	}
}

func init() {
	rootCmd.AddCommand(pdfCmd)
	addSearchFlags(pdfCmd)

	pdfCmd.Flags().String("pages", "", "page selection, e.g. 1-3,5 (default: all pages)")
	pdfCmd.Flags().String("password", "", "password for encrypted PDFs")
}
