package launcher

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// Environment variables read by the binaries after a successful run.
const (
	// ScopeGraphEnv names the file the scope graph is written to.
	ScopeGraphEnv = "RTLSIM_SCOPE_GRAPH"
	// ScopeSummaryEnv, when non-empty, prints a text summary of the scope.
	ScopeSummaryEnv = "RTLSIM_SCOPE_SUMMARY"
)

// WriteScopeGraph writes a graphviz view of the active scope to path and
// returns an exit code. An empty path does nothing.
func (l *Launcher) WriteScopeGraph(path string) int {
	if path == "" {
		return 0
	}

	s, err := l.scopes.Active()
	if err != nil {
		fmt.Fprintf(l.errOut, "Error: %v\n", err)
		return 1
	}

	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(l.errOut, "Error: failed to create scope graph: %v\n", err)
		return 1
	}
	s.WriteGraph(f)
	if err := f.Close(); err != nil {
		fmt.Fprintf(l.errOut, "Error: failed to write scope graph: %v\n", err)
		return 1
	}

	l.debug("scope graph written", zap.String("scope", s.Name()), zap.String("file", path))
	return 0
}

// PrintScopeSummary prints the memories and signal values of the active
// scope to the launcher output and returns an exit code.
func (l *Launcher) PrintScopeSummary() int {
	s, err := l.scopes.Active()
	if err != nil {
		fmt.Fprintf(l.errOut, "Error: %v\n", err)
		return 1
	}

	if err := s.WriteSummary(l.out); err != nil {
		fmt.Fprintf(l.errOut, "Error: failed to write scope summary: %v\n", err)
		return 1
	}
	return 0
}
