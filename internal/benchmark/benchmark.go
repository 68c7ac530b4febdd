// Package benchmark times repeated morph runs and compares sequential with
// tiled parallel warping.
package benchmark

import (
	"context"
	"fmt"
	"io"
	"math"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/morpho/internal/common"
	"github.com/MeKo-Tech/morpho/internal/pipeline"
	"gonum.org/v1/gonum/stat"
)

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64  // Currently allocated bytes
	TotalAllocBytes uint64  // Total allocated bytes (cumulative)
	SysBytes        uint64  // Total bytes from system
	NumGC           uint32  // Number of GC runs
	GCCPUFraction   float64 // Fraction of CPU time spent in GC
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

func (m MemoryStats) String() string {
	return fmt.Sprintf("Alloc: %d KB, Total: %d KB, Sys: %d KB, GC: %d (%.2f%% CPU)",
		m.AllocBytes/1024,
		m.TotalAllocBytes/1024,
		m.SysBytes/1024,
		m.NumGC,
		m.GCCPUFraction*100)
}

// Result holds the result of a benchmark run.
type Result struct {
	Name         string
	Duration     time.Duration
	Samples      []time.Duration // one per completed iteration
	MemoryBefore MemoryStats
	MemoryAfter  MemoryStats
	Iterations   int
	Error        error
}

// Mean and StdDev of the per-iteration durations.
func (r Result) Mean() time.Duration {
	mean, _ := r.meanStdDev()
	return mean
}

func (r Result) StdDev() time.Duration {
	_, sd := r.meanStdDev()
	return sd
}

func (r Result) meanStdDev() (time.Duration, time.Duration) {
	if len(r.Samples) == 0 {
		return 0, 0
	}
	xs := make([]float64, len(r.Samples))
	for i, s := range r.Samples {
		xs[i] = float64(s)
	}
	if len(xs) == 1 {
		return r.Samples[0], 0
	}
	mean, sd := stat.MeanStdDev(xs, nil)
	return time.Duration(mean), time.Duration(sd)
}

// TotalAllocKB is the memory allocated during the run.
func (r Result) TotalAllocKB() int64 {
	diff := r.MemoryAfter.TotalAllocBytes - r.MemoryBefore.TotalAllocBytes
	if diff > math.MaxInt64 {
		return math.MaxInt64 / 1024
	}
	return int64(diff) / 1024
}

func (r Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Error)
	}
	return fmt.Sprintf("%s: %d iterations, avg: %v ± %v, total: %v, alloc: %d KB",
		r.Name, r.Iterations, r.Mean().Round(time.Microsecond), r.StdDev().Round(time.Microsecond),
		r.Duration.Round(time.Microsecond), r.TotalAllocKB())
}

// Benchmark represents a benchmark function.
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

// NewSuite creates a new benchmark suite.
func NewSuite() *Suite {
	return &Suite{}
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

// RunAll runs all benchmarks in the suite.
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

// WriteResults prints formatted benchmark results.
func (s *Suite) WriteResults(w io.Writer) {
	_, _ = fmt.Fprintln(w, "\nBenchmark Results:")
	_, _ = fmt.Fprintln(w, "==================")
	for _, r := range s.Results() {
		_, _ = fmt.Fprintln(w, r.String())
	}
}

func runBenchmark(b Benchmark, iterations int) Result {
	// Force garbage collection before measuring
	runtime.GC()
	memBefore := GetMemoryStats()

	total := common.NewNamedTimer(b.Name)
	samples := make([]time.Duration, 0, iterations)
	var err error
	for range iterations {
		t := common.NewNamedTimer(b.Name)
		if err = b.Func(); err != nil {
			break
		}
		samples = append(samples, t.Stop())
	}

	return Result{
		Name:         b.Name,
		Duration:     total.Stop(),
		Samples:      samples,
		MemoryBefore: memBefore,
		MemoryAfter:  GetMemoryStats(),
		Iterations:   iterations,
		Error:        err,
	}
}

// Comparison holds a sequential and a parallel run of the same job.
type Comparison struct {
	Width, Height int
	Frames        int
	Pairs         int
	Sequential    Result
	Parallel      Result
	Speedup       float64 // sequential mean / parallel mean
}

func (c Comparison) String() string {
	speedup := "n/a"
	switch {
	case c.Speedup > 1:
		speedup = fmt.Sprintf("%.2fx faster", c.Speedup)
	case c.Speedup > 0:
		speedup = fmt.Sprintf("%.2fx slower", 1/c.Speedup)
	}
	return fmt.Sprintf("%dx%d, %d frames, %d pairs: sequential %v, parallel %v (%s)",
		c.Width, c.Height, c.Frames, c.Pairs,
		c.Sequential.Mean().Round(time.Microsecond), c.Parallel.Mean().Round(time.Microsecond), speedup)
}

// Compare morphs job iterations times sequentially and iterations times in
// parallel after one warmup run.
func Compare(ctx context.Context, pl *pipeline.Pipeline, job pipeline.Job, iterations int) (Comparison, error) {
	if iterations < 1 {
		return Comparison{}, fmt.Errorf("iterations must be positive, got %d", iterations)
	}

	warm := job
	warm.Parallel = true
	out, err := pl.Run(ctx, warm)
	if err != nil {
		return Comparison{}, fmt.Errorf("warmup failed: %w", err)
	}

	c := Comparison{Width: out.Width, Height: out.Height, Frames: len(out.Frames)}
	if out.Pairs != nil {
		c.Pairs = out.Pairs.Len()
	}

	suite := NewSuite()
	for _, parallel := range []bool{false, true} {
		j := job
		j.Parallel = parallel
		suite.Add(modeName(parallel), func() error {
			_, err := pl.Run(ctx, j)
			return err
		})
	}
	results := suite.RunAll(iterations)
	c.Sequential, c.Parallel = results[0], results[1]
	for _, r := range results {
		if r.Error != nil {
			return c, r.Error
		}
	}
	if p := c.Parallel.Mean(); p > 0 {
		c.Speedup = float64(c.Sequential.Mean()) / float64(p)
	}
	return c, nil
}

func modeName(parallel bool) string {
	if parallel {
		return "parallel"
	}
	return "sequential"
}

// WriteReport prints the comparison with system information.
func (c Comparison) WriteReport(w io.Writer) {
	rule := strings.Repeat("=", 60)
	_, _ = fmt.Fprintln(w, rule)
	_, _ = fmt.Fprintln(w, "Sequential vs Parallel Morph Benchmark")
	_, _ = fmt.Fprintln(w, rule)
	_, _ = fmt.Fprintf(w, "System: %s/%s, %d CPUs, %s\n", runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), runtime.Version())
	_, _ = fmt.Fprintf(w, "Job: %dx%d, %d frames, %d line pairs\n\n", c.Width, c.Height, c.Frames, c.Pairs)
	_, _ = fmt.Fprintf(w, "  %s\n", c.Sequential)
	_, _ = fmt.Fprintf(w, "  %s\n\n", c.Parallel)
	_, _ = fmt.Fprintf(w, "Summary: %s\n", c)
}
