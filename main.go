// Package main provides the entry point for rtlsim.
// rtlsim launches cycle-level simulations of the OTBN top-level wrappers.
//
// For the simulators, use: go run ./cmd/otbn-top-sim or ./cmd/otbn-top-coco
package main

import (
	"fmt"
	"os"

	"github.com/sarchlab/rtlsim/otbn"
)

func main() {
	fmt.Println("rtlsim - OTBN simulation launcher")
	fmt.Println("")
	fmt.Println("Binaries:")
	for _, t := range []struct{ cmd, scope string }{
		{"./cmd/otbn-top-sim", otbn.SimTarget().Scope},
		{"./cmd/otbn-top-coco", otbn.CocoTarget().Scope},
	} {
		fmt.Printf("  %-22s %s\n", t.cmd, t.scope)
	}
	fmt.Println("")
	fmt.Println("Tools:")
	fmt.Println("  ./cmd/benchmark        core timing benchmarks")
	fmt.Println("  ./cmd/profile          pprof wrapper around a simulator run")
	fmt.Println("")
	fmt.Println("Run a simulator with --help for its options.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use one of the binaries above instead.")
	}
}
