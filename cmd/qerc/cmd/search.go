package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dhjs0000/QERC/internal/barcode"
	"github.com/dhjs0000/QERC/internal/config"
	"github.com/dhjs0000/QERC/internal/export"
	"github.com/dhjs0000/QERC/internal/pipeline"
)

// decoderOverride replaces the gozxing decoder for every command when set.
// Tests use it to avoid real decoding.
var decoderOverride barcode.Decoder

// addSearchFlags registers the flags shared by scan, batch and pdf.
func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "text", "output format (text, json, csv, xml, yaml)")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	cmd.Flags().String("overlay-dir", "", "directory to write overlay images marking the found codes")
	cmd.Flags().Int("workers", 0, "attempt workers per image (0 = min(CPUs, variants))")
	cmd.Flags().String("symbologies", "", "comma-separated symbologies to search, e.g. QR_CODE,CODE_128 (default: all)")
	cmd.Flags().Bool("try-harder", true, "let the decoder spend more time per attempt")
	cmd.Flags().Bool("progress", false, "show a progress bar on stderr")
}

// commandConfig returns the loaded configuration with the search flags the
// user set on cmd applied on top, validated.
func commandConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := GetConfig()
	flags := cmd.Flags()

	if flags.Changed("format") {
		cfg.Output.Format, _ = flags.GetString("format")
	}
	if flags.Changed("output") {
		cfg.Output.File, _ = flags.GetString("output")
	}
	if flags.Changed("overlay-dir") {
		cfg.Output.OverlayDir, _ = flags.GetString("overlay-dir")
	}
	if flags.Changed("workers") {
		cfg.Search.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("symbologies") {
		s, _ := flags.GetString("symbologies")
		cfg.Search.Formats = splitList(s)
	}
	if flags.Changed("try-harder") {
		cfg.Search.TryHarder, _ = flags.GetBool("try-harder")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newSearcher builds a searcher for cfg. A console progress bar is attached
// when --progress is set.
func newSearcher(cmd *cobra.Command, cfg *config.Config) (*pipeline.Searcher, error) {
	b := pipeline.NewBuilder().
		WithConfig(cfg.ToPipelineConfig()).
		WithLogger(slog.Default())
	if decoderOverride != nil {
		b = b.WithDecoder(decoderOverride)
	}
	if show, _ := cmd.Flags().GetBool("progress"); show {
		b = b.WithProgressCallback(pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Searching: ").
			WithUpdateInterval(cfg.ProgressInterval()))
	}
	return b.Build()
}

// outputFormat parses the configured output format.
func outputFormat(cfg *config.Config) (export.Format, error) {
	return export.ParseFormat(cfg.Output.Format)
}

// writeOutput writes results to the configured file, or to w.
func writeOutput(w io.Writer, cfg *config.Config, results []export.ImageResult) error {
	format, err := outputFormat(cfg)
	if err != nil {
		return err
	}
	if cfg.Output.File == "" {
		return export.Write(w, format, results)
	}

	f, err := os.Create(cfg.Output.File)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := export.Write(f, format, results); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Results written to %s\n", cfg.Output.File)
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
