package model

// Top is a clock-driven top-level design. The driver sets the clock and
// reset ports and then calls Eval to let the design react.
type Top interface {
	// Eval evaluates the design on the current values of its input ports.
	Eval()

	// Finished reports whether the design has stopped the simulation and,
	// if so, whether it considers the run successful.
	Finished() (done bool, passed bool)
}

// PortLookup is implemented by designs that expose their ports by name.
type PortLookup interface {
	Port(name string) (*Signal, bool)
}

// Traceable is implemented by designs that publish signals for waveform
// tracing.
type Traceable interface {
	Signals() []*Signal
}

// Named is implemented by designs with an instance name.
type Named interface {
	Name() string
}

// FailureReporter is implemented by designs that can explain why a run
// they finished did not pass.
type FailureReporter interface {
	Err() error
}
