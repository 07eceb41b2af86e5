// Package main provides a profiling wrapper around the OTBN simulators to
// identify performance bottlenecks.
//
// Usage:
//
//	profile [--cpuprofile FILE] [--memprofile FILE] [--coco] -- [simulator options]
package main

import (
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/spf13/pflag"

	"github.com/sarchlab/rtlsim/launcher"
	"github.com/sarchlab/rtlsim/otbn"
)

var (
	cpuProfile = pflag.String("cpuprofile", "", "write cpu profile to file")
	memProfile = pflag.String("memprofile", "", "write memory profile to file")
	coco       = pflag.Bool("coco", false, "profile otbn_top_coco instead of otbn_top_sim")
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: profile [options] -- [simulator options]\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	os.Exit(run())
}

func run() int {
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			return 1
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			return 1
		}
		defer pprof.StopCPUProfile()
	}

	target := otbn.SimTarget()
	if *coco {
		target = otbn.CocoTarget()
	}

	l := launcher.New(target)
	start := time.Now()
	code := l.Run(pflag.Args())
	elapsed := time.Since(start)

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			return 1
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	fmt.Printf("\nProfiling Results:\n")
	fmt.Printf("Exit code: %d\n", code)
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if top, ok := l.Top().(*otbn.Top); ok {
		stats := top.Core().Stats()
		fmt.Printf("Instructions executed: %d\n", stats.Instructions)
		fmt.Printf("Control flow instructions: %d\n", stats.ControlOps)
		if stats.Instructions > 0 {
			fmt.Printf("Instructions/second: %.0f\n", float64(stats.Instructions)/elapsed.Seconds())
		}
	}
	return code
}
