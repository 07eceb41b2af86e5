// Package launcher turns a simulation target into a runnable program. It
// constructs the top-level model and the memory extension, hands both to
// the simulation control driver and, after a run that actually executed,
// binds the target's scope for tooling that runs later.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/sarchlab/rtlsim/memutil"
	"github.com/sarchlab/rtlsim/model"
	"github.com/sarchlab/rtlsim/scope"
	"github.com/sarchlab/rtlsim/simctrl"
	"github.com/sarchlab/rtlsim/toplevel"
)

// Env is what a target needs to construct its top.
type Env struct {
	Scopes  *scope.Registry
	Process *toplevel.Slot
	Logger  *zap.Logger
}

// Target describes one simulation binary.
type Target struct {
	// Name is the program name used in usage text.
	Name string
	// Scope is the hierarchical name of the top instance.
	Scope string

	ClockPort string
	ResetPort string
	// Polarity is the reset polarity the driver applies.
	Polarity model.ResetPolarity

	// NewTop constructs the top model. It must register Scope.
	NewTop func(env Env) (model.Top, error)
	// NewMemUtil constructs the memory provider for the instance at scope.
	NewMemUtil func(scope string) memutil.Provider
}

// Driver runs a simulation.
type Driver interface {
	Exec(args []string) simctrl.Result
}

// DriverFactory turns a configured builder into a driver.
type DriverFactory func(b simctrl.Builder) (Driver, error)

// Binder makes a scope the active one.
type Binder interface {
	Bind(name string) (*scope.Scope, error)
}

// State is the lifecycle position of a launcher.
type State int

// Launcher states, in the order they are reached.
const (
	StateUninitialized State = iota
	StateConstructed
	StateBound
	StateExecuting
	StateTerminatedEarly
	StateCompleted
	StateExited
)

var stateNames = [...]string{
	"uninitialized", "constructed", "bound", "executing",
	"terminated-early", "completed", "exited",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithScopes sets the scope registry. The default is scope.Process.
func WithScopes(reg *scope.Registry) Option {
	return func(l *Launcher) { l.scopes = reg }
}

// WithProcess sets the slot the top is published in. The default is
// toplevel.Process.
func WithProcess(slot *toplevel.Slot) Option {
	return func(l *Launcher) { l.process = slot }
}

// WithBinder replaces the post-run scope binder. The default binds in the
// scope registry.
func WithBinder(b Binder) Option {
	return func(l *Launcher) { l.binder = b }
}

// WithDriver replaces the simulation control driver.
func WithDriver(f DriverFactory) Option {
	return func(l *Launcher) { l.newDriver = f }
}

// WithOutput sets where reports are written.
func WithOutput(w io.Writer) Option {
	return func(l *Launcher) { l.out = w }
}

// WithErrOutput sets where errors are written.
func WithErrOutput(w io.Writer) Option {
	return func(l *Launcher) { l.errOut = w }
}

// WithLogger sets the logger shared with the driver.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Launcher) { l.logger = logger }
}

// Launcher runs one Target.
type Launcher struct {
	target Target

	scopes    *scope.Registry
	process   *toplevel.Slot
	binder    Binder
	newDriver DriverFactory
	out       io.Writer
	errOut    io.Writer
	logger    *zap.Logger

	state  State
	top    model.Top
	memExt *memutil.Extension
}

// New creates a launcher for target.
func New(target Target, opts ...Option) *Launcher {
	l := &Launcher{
		target:    target,
		scopes:    scope.Process,
		process:   toplevel.Process,
		newDriver: buildCtrl,
		out:       os.Stdout,
		errOut:    os.Stderr,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.binder == nil {
		l.binder = l.scopes
	}
	return l
}

func buildCtrl(b simctrl.Builder) (Driver, error) {
	ctrl, err := b.Build()
	if err != nil {
		return nil, err
	}
	return ctrl, nil
}

// State returns the lifecycle state.
func (l *Launcher) State() State {
	return l.state
}

// Top returns the model built by Run.
func (l *Launcher) Top() model.Top {
	return l.top
}

// MemUtil returns the memory extension built by Run.
func (l *Launcher) MemUtil() *memutil.Extension {
	return l.memExt
}

// Run runs the target with the command line args and returns the process
// exit code.
func (l *Launcher) Run(args []string) int {
	return l.RunContext(context.Background(), args)
}

// RunContext is Run with a context that stops the simulation when
// cancelled, if the driver supports it.
func (l *Launcher) RunContext(ctx context.Context, args []string) int {
	code, err := l.run(ctx, args)
	l.state = StateExited
	if err != nil {
		fmt.Fprintf(l.errOut, "Error: %v\n", err)
		return 1
	}
	return code
}

func (l *Launcher) run(ctx context.Context, args []string) (int, error) {
	t := l.target
	if t.NewTop == nil || t.NewMemUtil == nil {
		return 1, errors.New("target has no model or memory provider")
	}

	provider := t.NewMemUtil(t.Scope)
	if provider == nil {
		return 1, errors.New("target returned no memory provider")
	}
	if provider.Scope() != t.Scope {
		return 1, fmt.Errorf("memory provider scope %q does not match target scope %q",
			provider.Scope(), t.Scope)
	}
	l.memExt = memutil.NewExtension(provider, l.scopes)

	top, err := t.NewTop(Env{Scopes: l.scopes, Process: l.process, Logger: l.logger})
	if err != nil {
		return 1, fmt.Errorf("failed to construct top: %w", err)
	}
	if _, err := l.scopes.Lookup(t.Scope); err != nil {
		return 1, fmt.Errorf("top did not register its scope: %w", err)
	}
	l.top = top
	l.state = StateConstructed

	clk, rst, err := l.ports(top)
	if err != nil {
		return 1, err
	}

	b := simctrl.MakeBuilder().
		WithTop(top, clk, rst, t.Polarity).
		WithExtension(l.memExt).
		WithOutput(l.out).
		WithErrOutput(l.errOut)
	if t.Name != "" {
		b = b.WithName(t.Name)
	}
	if l.logger != nil {
		b = b.WithLogger(l.logger)
	}

	drv, err := l.newDriver(b)
	if err != nil {
		return 1, fmt.Errorf("failed to build simulation control: %w", err)
	}

	// Published only once the driver is built, so a failed setup leaves
	// the slot empty.
	if err := l.process.Publish(top); err != nil {
		return 1, fmt.Errorf("failed to publish top: %w", err)
	}
	l.state = StateBound
	l.debug("driver bound",
		zap.String("scope", t.Scope),
		zap.String("clock", t.ClockPort),
		zap.String("reset", t.ResetPort),
		zap.Stringer("polarity", t.Polarity))

	l.state = StateExecuting
	res := l.exec(ctx, drv, args)
	if res.ExitCode != 0 || !res.RanSimulation {
		l.state = StateTerminatedEarly
		return res.ExitCode, nil
	}

	if _, err := l.binder.Bind(t.Scope); err != nil {
		return 1, fmt.Errorf("failed to bind scope: %w", err)
	}
	l.state = StateCompleted
	l.debug("scope bound", zap.String("scope", t.Scope))
	return 0, nil
}

type contextDriver interface {
	ExecContext(ctx context.Context, args []string) simctrl.Result
}

func (l *Launcher) exec(ctx context.Context, drv Driver, args []string) simctrl.Result {
	if cd, ok := drv.(contextDriver); ok {
		return cd.ExecContext(ctx, args)
	}
	return drv.Exec(args)
}

func (l *Launcher) ports(top model.Top) (clk, rst *model.Signal, err error) {
	ports, ok := top.(model.PortLookup)
	if !ok {
		return nil, nil, fmt.Errorf("top %T does not expose its ports", top)
	}

	clk, ok = ports.Port(l.target.ClockPort)
	if !ok {
		return nil, nil, fmt.Errorf("top has no clock port %q", l.target.ClockPort)
	}
	rst, ok = ports.Port(l.target.ResetPort)
	if !ok {
		return nil, nil, fmt.Errorf("top has no reset port %q", l.target.ResetPort)
	}
	return clk, rst, nil
}

func (l *Launcher) debug(msg string, fields ...zap.Field) {
	if l.logger != nil {
		l.logger.Debug(msg, fields...)
	}
}
