package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/dhjs0000/QERC/internal/benchmark"
	"github.com/dhjs0000/QERC/internal/pipeline"
	"github.com/dhjs0000/QERC/internal/testutil"
	"github.com/dhjs0000/QERC/internal/utils"
)

func main() {
	var (
		iterations = flag.Int("iterations", 3, "Number of iterations per benchmark")
		workers    = flag.Int("workers", 0, "Parallel pool size to compare against one worker (0 = default)")
		outputFile = flag.String("output", "", "Output file for results (optional)")
		verbose    = flag.Bool("verbose", false, "Verbose output")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [image...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Compare one search worker against a pool. Without images, built-in scenes are used.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	fmt.Println("qerc Sequential vs Parallel Search Benchmark")
	fmt.Println("============================================")

	cmp := benchmark.NewWorkersComparison(pipeline.DefaultConfig(), *workers)
	if flag.NArg() == 0 {
		addBuiltinCases(cmp)
	}
	for _, path := range flag.Args() {
		img, _, err := utils.LoadImage(path)
		if err != nil {
			log.Printf("Skipping %s: %v", path, err)
			continue
		}
		cmp.AddCase(filepath.Base(path), img)
		if *verbose {
			fmt.Printf("Added test image: %s\n", path)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Running benchmarks with %d iterations per test...\n\n", *iterations)
	results, err := cmp.Run(ctx, *iterations)
	if err != nil {
		log.Fatalf("Benchmark failed: %v", err)
	}

	cmp.PrintDetailedResults(os.Stdout)

	if *outputFile != "" {
		if err := saveResultsToFile(*outputFile, results); err != nil {
			log.Printf("Failed to save results to file: %v", err)
		} else {
			fmt.Printf("Results saved to: %s\n", *outputFile)
		}
	}
}

func addBuiltinCases(cmp *benchmark.WorkersComparison) {
	qr := testutil.MustRender(testutil.QRTopLeftScene())
	cmp.AddCase("qr_top_left", qr)
	cmp.AddCase("two_code128", testutil.MustRender(testutil.TwoCode128Scene()))
	cmp.AddCase("qr_low_contrast", testutil.LowContrast(qr, -0.6))
	cmp.AddCase("blank_1080p", testutil.Blank(1920, 1080))
}

func saveResultsToFile(filename string, results []benchmark.Comparison) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	_, _ = fmt.Fprintln(file, "qerc Sequential vs Parallel Benchmark Results")
	_, _ = fmt.Fprintln(file, "=============================================")
	_, _ = fmt.Fprintln(file)
	for _, result := range results {
		_, _ = fmt.Fprintf(file, "%s\n", result.String())
	}

	_, _ = fmt.Fprintln(file)
	_, _ = fmt.Fprintln(file, "CSV Format:")
	_, _ = fmt.Fprintln(file, "Case,Size,Sequential_ms,Parallel_ms,Workers,Speedup,Hits,Consistent")
	for _, result := range results {
		_, _ = fmt.Fprintf(file, "%s,%s,%.2f,%.2f,%d,%.2f,%d,%t\n",
			result.Case,
			result.Size,
			float64(result.Sequential.Average().Nanoseconds())/1e6,
			float64(result.Parallel.Average().Nanoseconds())/1e6,
			result.Workers,
			result.Speedup,
			result.Hits,
			result.Consistent,
		)
	}
	return nil
}
