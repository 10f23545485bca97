package batch

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dhjs0000/QERC/internal/barcode"
	"github.com/dhjs0000/QERC/internal/export"
	"github.com/dhjs0000/QERC/internal/pipeline"
)

// Config holds all configuration for batch processing.
type Config struct {
	// Search settings applied to every image
	Search pipeline.Config
	// Decoder replaces the gozxing decoder when set.
	Decoder barcode.Decoder

	// Output settings
	Format       export.Format
	OutputFile   string
	OverlayDir   string
	OverlayStyle pipeline.OverlayStyle

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// ContinueOnError records per-file failures and moves on instead of
	// aborting the batch.
	ContinueOnError bool

	// Progress settings
	ShowProgress     bool
	Quiet            bool
	ShowStats        bool
	ProgressInterval time.Duration
	// Progress receives per-image progress when set, in addition to the
	// console bar.
	Progress pipeline.ProgressCallback

	// Out receives the console bar and status lines. Defaults to os.Stderr.
	Out io.Writer

	Logger *slog.Logger
}

// DefaultConfig returns the batch defaults.
func DefaultConfig() *Config {
	return &Config{
		Search:           pipeline.DefaultConfig(),
		Format:           export.FormatText,
		OverlayStyle:     pipeline.DefaultOverlayStyle(),
		ContinueOnError:  true,
		ProgressInterval: 100 * time.Millisecond,
	}
}

// Validate checks the configuration before any file is touched.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("batch config is nil")
	}
	if _, err := export.ParseFormat(string(c.Format)); err != nil {
		return err
	}
	if c.Search.Parallel.MaxWorkers < 0 {
		return fmt.Errorf("invalid workers: %d", c.Search.Parallel.MaxWorkers)
	}
	return nil
}

func (c *Config) out() io.Writer {
	if c.Out != nil {
		return c.Out
	}
	return os.Stderr
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// ImageOutcome is the result of one image in the batch.
type ImageOutcome struct {
	Path        string
	Report      *pipeline.Report
	OverlayPath string
	Err         error
}

// Result holds the result of batch processing.
type Result struct {
	Images     []ImageOutcome
	ImagePaths []string
	Duration   time.Duration
	Workers    int
	Cancelled  bool
	// Aggregator keeps the locations of every image for rendering.
	Aggregator *pipeline.Aggregator
}

// Processed returns how many images were searched to completion.
func (r *Result) Processed() int {
	n := 0
	for _, img := range r.Images {
		if img.Err == nil && img.Report != nil && !img.Report.Cancelled {
			n++
		}
	}
	return n
}

// Failed returns how many images could not be searched.
func (r *Result) Failed() int {
	n := 0
	for _, img := range r.Images {
		if img.Err != nil {
			n++
		}
	}
	return n
}

// TotalHits returns the number of barcodes found across all images.
func (r *Result) TotalHits() int {
	n := 0
	for _, img := range r.Images {
		if img.Report != nil {
			n += len(img.Report.Hits)
		}
	}
	return n
}

// FormatResults formats the batch processing results in the specified format.
func (r *Result) FormatResults(format export.Format) (string, error) {
	return formatBatchResults(r.Images, format)
}

// SaveResults writes the formatted results to outputFile, or to w when
// outputFile is empty.
func (r *Result) SaveResults(w io.Writer, format export.Format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(w, "Results written to %s\n", outputFile)
		}
		return nil
	}
	_, err = fmt.Fprint(w, output)
	return err
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer, quiet bool) {
	if quiet {
		return
	}
	total := len(r.ImagePaths)
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", total)
	_, _ = fmt.Fprintf(w, "  Processed: %d\n", r.Processed())
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", r.Failed())
	_, _ = fmt.Fprintf(w, "  Barcodes: %d\n", r.TotalHits())
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", r.Workers)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
	if total > 0 {
		_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", (r.Duration / time.Duration(total)).Round(time.Millisecond))
	}
	if secs := r.Duration.Seconds(); secs > 0 {
		_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", float64(len(r.Images))/secs)
	}
}
