// Package benchmark times search sessions and compares worker pool sizes.
package benchmark

import (
	"context"
	"fmt"
	"image"
	"io"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/dhjs0000/QERC/internal/barcode"
	"github.com/dhjs0000/QERC/internal/common"
	"github.com/dhjs0000/QERC/internal/pipeline"
)

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64  `json:"alloc_bytes"`       // Currently allocated bytes
	TotalAllocBytes uint64  `json:"total_alloc_bytes"` // Total allocated bytes (cumulative)
	SysBytes        uint64  `json:"sys_bytes"`         // Total bytes from system
	NumGC           uint32  `json:"num_gc"`            // Number of GC runs
	GCCPUFraction   float64 `json:"gc_cpu_fraction"`   // Fraction of CPU time spent in GC
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return MemoryStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		SysBytes:        m.Sys,
		NumGC:           m.NumGC,
		GCCPUFraction:   m.GCCPUFraction,
	}
}

// String returns a formatted string representation of memory stats.
func (m MemoryStats) String() string {
	return fmt.Sprintf("Alloc: %d KB, Total: %d KB, Sys: %d KB, GC: %d (%.2f%% CPU)",
		m.AllocBytes/1024,
		m.TotalAllocBytes/1024,
		m.SysBytes/1024,
		m.NumGC,
		m.GCCPUFraction*100)
}

// Result holds the outcome of one benchmark run.
type Result struct {
	Name         string        `json:"name"`
	Duration     time.Duration `json:"duration_ns"`
	MemoryBefore MemoryStats   `json:"memory_before"`
	MemoryAfter  MemoryStats   `json:"memory_after"`
	Iterations   int           `json:"iterations"`
	Error        error         `json:"-"`
}

// Average returns the mean duration of one iteration.
func (r Result) Average() time.Duration {
	if r.Iterations <= 0 {
		return 0
	}
	return r.Duration / time.Duration(r.Iterations)
}

// allocatedKB is the growth of total allocations during the run. TotalAlloc
// is cumulative, so it never goes negative.
func (r Result) allocatedKB() uint64 {
	return (r.MemoryAfter.TotalAllocBytes - r.MemoryBefore.TotalAllocBytes) / 1024
}

// String returns a formatted string representation of the result.
func (r Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Error)
	}
	return fmt.Sprintf("%s: %d iterations, avg: %v, total: %v, alloc: %d KB",
		r.Name, r.Iterations, r.Average(), r.Duration, r.allocatedKB())
}

// Benchmark is a named function run once per iteration.
type Benchmark struct {
	Name string
	Func func() error
}

// Suite manages multiple benchmarks.
type Suite struct {
	benchmarks []Benchmark
	results    []Result
	mu         sync.Mutex
}

// NewSuite creates an empty suite.
func NewSuite() *Suite {
	return &Suite{
		benchmarks: make([]Benchmark, 0),
		results:    make([]Result, 0),
	}
}

// Add adds a benchmark to the suite.
func (s *Suite) Add(name string, fn func() error) {
	s.benchmarks = append(s.benchmarks, Benchmark{Name: name, Func: fn})
}

// Run runs a single benchmark with the specified number of iterations.
func (s *Suite) Run(name string, iterations int) Result {
	for _, b := range s.benchmarks {
		if b.Name == name {
			return runBenchmark(b, iterations)
		}
	}
	return Result{Name: name, Error: fmt.Errorf("benchmark '%s' not found", name)}
}

// RunAll runs all benchmarks in registration order.
func (s *Suite) RunAll(iterations int) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = make([]Result, 0, len(s.benchmarks))
	for _, b := range s.benchmarks {
		s.results = append(s.results, runBenchmark(b, iterations))
	}
	return s.results
}

// Results returns the last RunAll results.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

// PrintResults writes one line per result.
func (s *Suite) PrintResults(w io.Writer) {
	_, _ = fmt.Fprintln(w, "\nBenchmark Results:")
	_, _ = fmt.Fprintln(w, "==================")
	for _, r := range s.Results() {
		_, _ = fmt.Fprintln(w, r.String())
	}
	_, _ = fmt.Fprintln(w)
}

func runBenchmark(b Benchmark, iterations int) Result {
	// Force garbage collection before measuring
	runtime.GC()
	memBefore := GetMemoryStats()

	timer := common.NewNamedTimer(b.Name)
	var err error
	for range iterations {
		if e := b.Func(); e != nil {
			err = e
			break
		}
	}

	return Result{
		Name:         b.Name,
		Duration:     timer.Stop(),
		MemoryBefore: memBefore,
		MemoryAfter:  GetMemoryStats(),
		Iterations:   iterations,
		Error:        err,
	}
}

// Case is one image searched by a workers comparison.
type Case struct {
	Name  string
	Image image.Image
}

// Comparison is the sequential and parallel timing of one case. Consistent
// is false when the two pool sizes found different sets.
type Comparison struct {
	Case       string  `json:"case"`
	Size       string  `json:"size"`
	Workers    int     `json:"workers"`
	Sequential Result  `json:"sequential"`
	Parallel   Result  `json:"parallel"`
	Speedup    float64 `json:"speedup"`
	Hits       int     `json:"hits"`
	Consistent bool    `json:"consistent"`
}

// String returns a one-line summary of the comparison.
func (c Comparison) String() string {
	if c.Sequential.Error != nil || c.Parallel.Error != nil {
		return fmt.Sprintf("%s (%s): failed: sequential=%v parallel=%v",
			c.Case, c.Size, c.Sequential.Error, c.Parallel.Error)
	}
	speed := "same speed"
	switch {
	case c.Speedup > 1.0:
		speed = fmt.Sprintf("%.2fx faster", c.Speedup)
	case c.Speedup > 0 && c.Speedup < 1.0:
		speed = fmt.Sprintf("%.2fx slower", 1.0/c.Speedup)
	}
	note := ""
	if !c.Consistent {
		note = ", RESULTS DIFFER"
	}
	return fmt.Sprintf("%s (%s): 1 worker: %v, %d workers: %v (%s), %d hits%s",
		c.Case, c.Size, c.Sequential.Average(), c.Workers, c.Parallel.Average(), speed, c.Hits, note)
}

// WorkersComparison times each case with a single worker and with a pool.
type WorkersComparison struct {
	cases   []Case
	workers int
	decoder barcode.Decoder
	config  pipeline.Config
	results []Comparison
}

// NewWorkersComparison compares one worker against workers (0 selects the
// searcher's default pool size).
func NewWorkersComparison(cfg pipeline.Config, workers int) *WorkersComparison {
	if workers <= 0 {
		workers = cfg.Parallel.Workers(len(cfg.Variants))
	}
	return &WorkersComparison{config: cfg, workers: workers}
}

// WithDecoder replaces the decoder, mostly for tests.
func (w *WorkersComparison) WithDecoder(dec barcode.Decoder) *WorkersComparison {
	w.decoder = dec
	return w
}

// AddCase adds an image to compare on.
func (w *WorkersComparison) AddCase(name string, img image.Image) {
	w.cases = append(w.cases, Case{Name: name, Image: img})
}

func (w *WorkersComparison) searcher(workers int) (*pipeline.Searcher, error) {
	b := pipeline.NewBuilder().WithConfig(w.config).WithParallelWorkers(workers)
	if w.decoder != nil {
		b = b.WithDecoder(w.decoder)
	}
	return b.Build()
}

// Run executes every case. A failing case is recorded, not fatal.
func (w *WorkersComparison) Run(ctx context.Context, iterations int) ([]Comparison, error) {
	if iterations <= 0 {
		return nil, fmt.Errorf("iterations must be positive, got %d", iterations)
	}
	sequential, err := w.searcher(1)
	if err != nil {
		return nil, err
	}
	parallel, err := w.searcher(w.workers)
	if err != nil {
		return nil, err
	}

	w.results = make([]Comparison, 0, len(w.cases))
	for _, c := range w.cases {
		if err := ctx.Err(); err != nil {
			return w.results, err
		}
		w.results = append(w.results, w.compare(ctx, c, sequential, parallel, iterations))
	}
	return w.results, nil
}

func (w *WorkersComparison) compare(ctx context.Context, c Case, seq, par *pipeline.Searcher, iterations int) Comparison {
	b := c.Image.Bounds()
	cmp := Comparison{
		Case:    c.Name,
		Size:    fmt.Sprintf("%dx%d (%.1fMP)", b.Dx(), b.Dy(), float64(b.Dx()*b.Dy())/1e6),
		Workers: w.workers,
	}

	var seqHits, parHits []string
	run := func(s *pipeline.Searcher, out *[]string) func() error {
		return func() error {
			report, err := s.Search(ctx, c.Image)
			if err != nil {
				return err
			}
			*out = hitKeys(report)
			return nil
		}
	}

	// Warmup
	_, _ = seq.Search(ctx, c.Image)

	suite := NewSuite()
	suite.Add("sequential", run(seq, &seqHits))
	suite.Add("parallel", run(par, &parHits))
	cmp.Sequential = suite.Run("sequential", iterations)
	cmp.Parallel = suite.Run("parallel", iterations)

	if cmp.Parallel.Duration > 0 {
		cmp.Speedup = float64(cmp.Sequential.Duration) / float64(cmp.Parallel.Duration)
	}
	cmp.Hits = len(seqHits)
	cmp.Consistent = sameSet(seqHits, parHits)
	return cmp
}

func hitKeys(r *pipeline.Report) []string {
	keys := make([]string, len(r.Hits))
	for i, h := range r.Hits {
		keys[i] = h.Format.String() + "|" + h.Text
	}
	return keys
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, k := range a {
		seen[k]++
	}
	for _, k := range b {
		if seen[k] == 0 {
			return false
		}
		seen[k]--
	}
	return true
}

// Results returns the comparisons of the last Run.
func (w *WorkersComparison) Results() []Comparison {
	return w.results
}

// PrintDetailedResults writes the system info, per-case lines and totals.
func (w *WorkersComparison) PrintDetailedResults(out io.Writer) {
	if len(w.results) == 0 {
		_, _ = fmt.Fprintln(out, "No benchmark results available")
		return
	}

	_, _ = fmt.Fprintln(out, "\n"+strings.Repeat("=", 80))
	_, _ = fmt.Fprintln(out, "Sequential vs Parallel Search Benchmark Results")
	_, _ = fmt.Fprintln(out, strings.Repeat("=", 80))

	_, _ = fmt.Fprintf(out, "System Information:\n")
	_, _ = fmt.Fprintf(out, "  GOOS: %s\n", runtime.GOOS)
	_, _ = fmt.Fprintf(out, "  GOARCH: %s\n", runtime.GOARCH)
	_, _ = fmt.Fprintf(out, "  NumCPU: %d\n", runtime.NumCPU())
	_, _ = fmt.Fprintf(out, "  Go Version: %s\n", runtime.Version())
	_, _ = fmt.Fprintf(out, "  Variants: %d\n\n", len(w.config.Variants))

	_, _ = fmt.Fprintln(out, "Individual Results:")
	_, _ = fmt.Fprintln(out, strings.Repeat("-", 50))
	for _, r := range w.results {
		_, _ = fmt.Fprintf(out, "• %s\n", r.String())
	}
	_, _ = fmt.Fprintln(out)

	var seqTotal, parTotal time.Duration
	inconsistent := 0
	for _, r := range w.results {
		seqTotal += r.Sequential.Duration
		parTotal += r.Parallel.Duration
		if !r.Consistent {
			inconsistent++
		}
	}
	_, _ = fmt.Fprintln(out, "Summary Statistics:")
	_, _ = fmt.Fprintln(out, strings.Repeat("-", 25))
	_, _ = fmt.Fprintf(out, "  Total sequential time: %v\n", seqTotal)
	_, _ = fmt.Fprintf(out, "  Total parallel time: %v\n", parTotal)
	if parTotal > 0 {
		_, _ = fmt.Fprintf(out, "  Overall speedup: %.2fx\n", float64(seqTotal)/float64(parTotal))
	}
	_, _ = fmt.Fprintf(out, "  Cases with differing results: %d/%d\n\n", inconsistent, len(w.results))
}
