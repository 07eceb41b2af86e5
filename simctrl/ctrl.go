// Package simctrl drives a clocked top-level model through one simulation
// run: it parses the command line, sequences reset, toggles the clock,
// dispatches extension callbacks, enforces limits and reports the result.
package simctrl

import (
	"errors"
	"io"
	"os"
	"sync"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sarchlab/rtlsim/model"
)

// Version is reported by --version.
var Version = "dev"

// ErrAlreadyExecuted is returned when the controller is changed or run
// after Exec was called.
var ErrAlreadyExecuted = errors.New("simulation already executed")

// Hook positions invoked during a run. The hook item is the simulation
// time in half clock periods.
var (
	// HookPosReset is invoked when the reset level changes.
	HookPosReset = &sim.HookPos{Name: "SimCtrl Reset"}
	// HookPosClock is invoked on every rising clock edge, before Eval.
	HookPosClock = &sim.HookPos{Name: "SimCtrl Clock"}
	// HookPosEval is invoked after every Eval of the top.
	HookPosEval = &sim.HookPos{Name: "SimCtrl Eval"}
)

// Result is the outcome of Exec.
type Result struct {
	// ExitCode is the process exit code to report.
	ExitCode int
	// RanSimulation is false when the run stopped before simulating, for
	// help output, argument errors or setup failures.
	RanSimulation bool
}

// Extension is a pluggable component set up before and torn down after
// the run.
type Extension interface {
	PreExec(ctrl *Ctrl) error
	PostExec(ctrl *Ctrl) error
}

// ClockListener is implemented by extensions that want a callback on every
// rising clock edge.
type ClockListener interface {
	OnClock(simTime uint64)
}

// FlagParser is implemented by extensions, or by the top model, that add
// command line flags.
type FlagParser interface {
	// RegisterFlags adds the flags to the set before parsing.
	RegisterFlags(fs *pflag.FlagSet)
	// ArgsParsed is called after parsing. Returning exitApp stops the
	// program successfully without running.
	ArgsParsed(ctrl *Ctrl) (exitApp bool, err error)
}

// Ctrl owns one simulation run.
type Ctrl struct {
	sim.HookableBase

	name    string
	version string

	top      model.Top
	clk      *model.Signal
	rst      *model.Signal
	polarity model.ResetPolarity

	mu         sync.Mutex
	extensions []Extension
	executed   bool

	out    io.Writer
	errOut io.Writer
	logger *zap.Logger
	ownLog bool

	baseConfig *Config
	config     *Config
	plusargs   map[string]string
	runID      string

	simTime       uint64
	cycles        uint64
	stopRequested bool
	stopSuccess   bool
	tracer        *vcdTracer
	signals       chan os.Signal
}

// Name returns the program name used in messages.
func (c *Ctrl) Name() string {
	return c.name
}

// Top returns the model driven by the controller.
func (c *Ctrl) Top() model.Top {
	return c.top
}

// ResetPolarity returns the declared polarity of the reset port.
func (c *Ctrl) ResetPolarity() model.ResetPolarity {
	return c.polarity
}

// Output is where reports and user-facing messages go.
func (c *Ctrl) Output() io.Writer {
	return c.out
}

// ErrOutput is where error messages go.
func (c *Ctrl) ErrOutput() io.Writer {
	return c.errOut
}

// Logger returns the run logger.
func (c *Ctrl) Logger() *zap.Logger {
	return c.logger
}

// Config returns a copy of the effective configuration. Before the
// arguments are parsed this is the base configuration.
func (c *Ctrl) Config() *Config {
	if c.config == nil {
		return c.baseConfig.Clone()
	}
	return c.config.Clone()
}

// RunID identifies this run in reports and traces.
func (c *Ctrl) RunID() string {
	return c.runID
}

// SimTime returns the simulation time in half clock periods.
func (c *Ctrl) SimTime() uint64 {
	return c.simTime
}

// Cycles returns the number of rising clock edges simulated.
func (c *Ctrl) Cycles() uint64 {
	return c.cycles
}

// Plusarg returns the value of a +name[=value] argument.
func (c *Ctrl) Plusarg(name string) (string, bool) {
	v, ok := c.plusargs[name]
	return v, ok
}

// Plusargs returns a copy of all plusargs.
func (c *Ctrl) Plusargs() map[string]string {
	out := make(map[string]string, len(c.plusargs))
	for k, v := range c.plusargs {
		out[k] = v
	}
	return out
}

// RequestStop ends the run after the current half cycle.
func (c *Ctrl) RequestStop(success bool) {
	c.stopRequested = true
	c.stopSuccess = success
}

// TracingEnabled reports whether trace samples are being written.
func (c *Ctrl) TracingEnabled() bool {
	return c.tracer != nil && c.tracer.enabled
}

// RegisterExtension appends an extension. It fails once Exec has started.
func (c *Ctrl) RegisterExtension(ext Extension) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.executed {
		return ErrAlreadyExecuted
	}
	c.extensions = append(c.extensions, ext)
	return nil
}

// Extensions returns the registered extensions in order.
func (c *Ctrl) Extensions() []Extension {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Extension(nil), c.extensions...)
}

func (c *Ctrl) markExecuted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.executed {
		return false
	}
	c.executed = true
	return true
}
