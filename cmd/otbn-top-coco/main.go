// Command otbn-top-coco simulates the otbn_top_coco wrapper.
//
// Usage:
//
//	otbn-top-coco [OPTIONS] [+PLUSARG[=VALUE]...]
//
// Run with --help for the options. Setting RTLSIM_SCOPE_GRAPH to a file
// name writes a graphviz view of the bound scope after a successful run.
// Setting RTLSIM_SCOPE_SUMMARY prints a text summary of it.
package main

import (
	"os"

	"github.com/sarchlab/rtlsim/launcher"
	"github.com/sarchlab/rtlsim/otbn"
)

func main() {
	l := launcher.New(otbn.CocoTarget())
	code := l.Run(os.Args[1:])
	if code == 0 {
		code = l.WriteScopeGraph(os.Getenv(launcher.ScopeGraphEnv))
	}
	if code == 0 && os.Getenv(launcher.ScopeSummaryEnv) != "" {
		code = l.PrintScopeSummary()
	}
	os.Exit(code)
}
