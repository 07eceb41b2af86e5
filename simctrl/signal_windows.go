//go:build windows

package simctrl

import (
	"os"
	"os/signal"
)

// notifySignals registers the signals the run loop reacts to.
// On Windows, only os.Interrupt (Ctrl+C) is supported.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}

func isTraceToggle(os.Signal) bool {
	return false
}
