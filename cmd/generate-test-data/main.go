package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dhjs0000/QERC/internal/testutil"
)

func main() {
	// Set up structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir     = flag.String("out", "", "output directory (default: <project root>/testdata/barcodes)")
		noDegraded = flag.Bool("clean-only", false, "skip the degraded variants")
		writePDF   = flag.Bool("pdf", true, "also bundle the clean fixtures into a PDF, one per page")
		verbose    = flag.Bool("v", false, "Verbose output")
		help       = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate barcode fixtures for qerc testing.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                  # Generate everything under testdata/barcodes\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -clean-only      # Only the clean fixtures\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -out /tmp/codes  # Write elsewhere\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}
	if *verbose {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	dir := *outDir
	if dir == "" {
		root, err := testutil.GetProjectRoot()
		if err != nil {
			slog.Error("Failed to find project root", "error", err)
			os.Exit(1)
		}
		dir = filepath.Join(root, "testdata", "barcodes")
	}

	opts := options{Degraded: !*noDegraded, PDF: *writePDF}
	manifest, err := generate(dir, opts)
	if err != nil {
		slog.Error("Failed to generate test data", "error", err)
		os.Exit(1)
	}
	slog.Info("Test data generation completed", "dir", dir, "files", len(manifest))
}
