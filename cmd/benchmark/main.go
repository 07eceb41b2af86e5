// Command benchmark runs the OTBN core timing benchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	--csv          Output results in CSV format (default: human-readable)
//	--json         Output a JSON report
//	--timing FILE  Read the core timing from a YAML file
//	--core         Run only the core benchmarks
//	--warm-up      Measure with a warm fetch cache
//
// Example:
//
//	# Compare two timing configurations
//	go run ./cmd/benchmark --csv > default.csv
//	go run ./cmd/benchmark --csv --timing slow-imem.yaml > slow.csv
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/sarchlab/rtlsim/benchmarks"
	"github.com/sarchlab/rtlsim/timing/latency"
)

func main() {
	csvOutput := pflag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := pflag.Bool("json", false, "Output a JSON report")
	timingPath := pflag.String("timing", "", "Read the core timing from a YAML file")
	coreOnly := pflag.Bool("core", false, "Run only the core benchmarks")
	verbose := pflag.BoolP("verbose", "v", false, "Print wall-clock times")
	warmUp := pflag.Bool("warm-up", false, "Run each program once before measuring")
	pflag.Parse()

	config := benchmarks.DefaultConfig()
	config.Output = os.Stdout
	config.Verbose = *verbose
	config.WarmUp = *warmUp

	if *timingPath != "" {
		timing, err := latency.LoadConfig(*timingPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := timing.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid timing %s: %v\n", *timingPath, err)
			os.Exit(1)
		}
		config.Timing = timing
	}

	harness := benchmarks.NewHarness(config)
	if *coreOnly {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	} else {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	}

	results, err := harness.RunAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		fmt.Println("OTBN Core Timing Benchmark Harness")
		fmt.Println("==================================")
		fmt.Printf("Fetch cache: %d bytes, %d-way, %d-byte lines\n",
			config.Timing.FetchCacheSize, config.Timing.FetchCacheWays, config.Timing.FetchCacheBlockSize)
		fmt.Printf("Fetch latency: %d hit / %d miss\n",
			config.Timing.FetchHitLatency, config.Timing.FetchMissLatency)
		fmt.Println("")
		harness.PrintResults(results)
	}
}
