//go:build !windows

package simctrl

import (
	"os"
	"os/signal"
	"syscall"
)

// notifySignals registers the signals the run loop reacts to.
// SIGINT and SIGTERM stop the run, SIGUSR1 toggles tracing.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1)
}

func isTraceToggle(sig os.Signal) bool {
	return sig == syscall.SIGUSR1
}
