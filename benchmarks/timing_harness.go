// Package benchmarks provides timing benchmark infrastructure for the OTBN
// stand-in core.
package benchmarks

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sarchlab/rtlsim/model"
	"github.com/sarchlab/rtlsim/simctrl"
	"github.com/sarchlab/rtlsim/timing/core"
	"github.com/sarchlab/rtlsim/timing/latency"
)

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// SimulatedCycles is the total cycle count from the timing simulator
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of completed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi"`

	// StallCycles is the number of stall cycles
	StallCycles uint64 `json:"stall_cycles"`

	// LoopIterations is the number of loop back-edges taken
	LoopIterations uint64 `json:"loop_iterations"`

	// Warps is the number of loop counter changes made by loop warps
	Warps uint64 `json:"warps,omitempty"`

	// ControlOps is the number of retired LOOPI and ECALL instructions
	ControlOps uint64 `json:"control_ops"`

	// Fetch cache hits/misses
	FetchHits   uint64 `json:"fetch_hits"`
	FetchMisses uint64 `json:"fetch_misses"`

	// Passed reports whether the program ended at ECALL
	Passed bool `json:"passed"`

	// ErrBits is the error bits value for failed programs
	ErrBits uint32 `json:"err_bits,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Program is the IMEM image, loaded at address 0
	Program []byte

	// Warps maps instruction address -> iteration count -> new count
	Warps map[uint32]map[uint32]uint32

	// ExpectPass is whether the program should end at ECALL
	ExpectPass bool
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Timing is the core timing. Nil selects the defaults.
	Timing *latency.TimingConfig

	// MaxCycles bounds each run
	MaxCycles uint64

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables detailed output
	Verbose bool

	// WarmUp runs every program once before measuring, so the measured
	// run starts with a warm fetch cache
	WarmUp bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Timing:    latency.DefaultTimingConfig(),
		MaxCycles: 10_000_000,
		Output:    os.Stdout,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Timing == nil {
		config.Timing = latency.DefaultTimingConfig()
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() ([]BenchmarkResult, error) {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result, err := h.runBenchmark(bench)
		if err != nil {
			return nil, fmt.Errorf("benchmark %s: %w", bench.Name, err)
		}
		results = append(results, result)
	}

	return results, nil
}

// runBenchmark executes a single benchmark.
func (h *Harness) runBenchmark(bench Benchmark) (BenchmarkResult, error) {
	imem, err := model.NewMemory("imem", 32, 1024)
	if err != nil {
		return BenchmarkResult{}, err
	}
	if err := imem.Load(0, bench.Program); err != nil {
		return BenchmarkResult{}, fmt.Errorf("failed to load program: %w", err)
	}

	c := core.NewCore(imem, h.config.Timing)
	if bench.Warps != nil {
		c.SetWarpFunc(func(addr, count uint32) (uint32, error) {
			if to, ok := bench.Warps[addr][count]; ok {
				return to, nil
			}
			return count, nil
		})
	}

	if h.config.WarmUp {
		c.Start(0)
		if c.RunCycles(h.config.MaxCycles) {
			return BenchmarkResult{}, fmt.Errorf("warm-up did not finish within %d cycles", h.config.MaxCycles)
		}
		c.ResetStats()
	}

	start := time.Now()
	c.Start(0)
	if c.RunCycles(h.config.MaxCycles) {
		return BenchmarkResult{}, fmt.Errorf("did not finish within %d cycles", h.config.MaxCycles)
	}
	wallTime := time.Since(start)

	stats := c.Stats()
	fetch := c.FetchStats()
	result := BenchmarkResult{
		Name:                bench.Name,
		Description:         bench.Description,
		SimulatedCycles:     stats.Cycles,
		InstructionsRetired: stats.Instructions,
		StallCycles:         stats.Stalls,
		LoopIterations:      stats.LoopIterations,
		Warps:               stats.Warps,
		ControlOps:          stats.ControlOps,
		FetchHits:           fetch.Hits,
		FetchMisses:         fetch.Misses,
		Passed:              c.Passed(),
		ErrBits:             c.ErrBits(),
		WallTime:            wallTime,
	}
	if stats.Instructions > 0 {
		result.CPI = float64(stats.Cycles) / float64(stats.Instructions)
	}

	if result.Passed != bench.ExpectPass {
		return result, fmt.Errorf("passed=%v, expected %v (err bits 0x%x)",
			result.Passed, bench.ExpectPass, result.ErrBits)
	}

	return result, nil
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	w := h.config.Output
	_, _ = fmt.Fprintln(w, "=== OTBN Core Timing Benchmark Results ===")
	_, _ = fmt.Fprintln(w, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(w, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(w, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(w, "  Passed: %v\n", r.Passed)
		_, _ = fmt.Fprintln(w, "  --- Timing ---")
		_, _ = fmt.Fprintf(w, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(w, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(w, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(w, "  Stall Cycles:         %d\n", r.StallCycles)
		_, _ = fmt.Fprintf(w, "  Loop Iterations:      %d\n", r.LoopIterations)
		_, _ = fmt.Fprintf(w, "  Control Ops:          %d\n", r.ControlOps)
		if r.Warps > 0 {
			_, _ = fmt.Fprintf(w, "  Loop Warps:           %d\n", r.Warps)
		}

		_, _ = fmt.Fprintln(w, "  --- Fetch Cache ---")
		_, _ = fmt.Fprintf(w, "  Hits:   %d\n", r.FetchHits)
		_, _ = fmt.Fprintf(w, "  Misses: %d\n", r.FetchMisses)

		if h.config.Verbose {
			_, _ = fmt.Fprintf(w, "  Wall Time: %v\n", r.WallTime)
		}
		_, _ = fmt.Fprintln(w, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cycles,instructions,cpi,stalls,loop_iterations,warps,control_ops,fetch_hits,fetch_misses,passed")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%v\n",
			r.Name,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.StallCycles,
			r.LoopIterations,
			r.Warps,
			r.ControlOps,
			r.FetchHits,
			r.FetchMisses,
			r.Passed,
		)
	}
}

// BuildProgram assembles instruction words into a byte slice.
func BuildProgram(instrs ...uint32) []byte {
	program := make([]byte, 0, len(instrs)*4)
	for _, inst := range instrs {
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, inst)
		program = append(program, buf...)
	}
	return program
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Version of the simulator
	Version string `json:"version"`

	// Timing is the core timing used
	Timing *latency.TimingConfig `json:"timing"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// TotalCycles is the sum of all simulated cycles
	TotalCycles uint64 `json:"total_cycles"`

	// TotalInstructions is the sum of all instructions retired
	TotalInstructions uint64 `json:"total_instructions"`

	// AverageCPI is the average cycles per instruction
	AverageCPI float64 `json:"average_cpi"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	var totalCycles, totalInstructions uint64
	var totalWallTime time.Duration
	for _, r := range results {
		totalCycles += r.SimulatedCycles
		totalInstructions += r.InstructionsRetired
		totalWallTime += r.WallTime
	}

	avgCPI := float64(0)
	if totalInstructions > 0 {
		avgCPI = float64(totalCycles) / float64(totalInstructions)
	}

	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   simctrl.Version,
			Timing:    h.config.Timing,
		},
		Results: results,
		Summary: ReportSummary{
			TotalBenchmarks:   len(results),
			TotalCycles:       totalCycles,
			TotalInstructions: totalInstructions,
			AverageCPI:        avgCPI,
			TotalWallTime:     totalWallTime,
		},
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
