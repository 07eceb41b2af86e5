package simctrl

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/sarchlab/akita/v4/sim"
	"go.uber.org/zap"

	"github.com/sarchlab/rtlsim/model"
)

// Exec runs the whole simulation for the given command line arguments
// (without the program name).
func (c *Ctrl) Exec(args []string) Result {
	return c.ExecContext(context.Background(), args)
}

// ExecContext is Exec with a context. Cancelling ctx stops the run like an
// interrupt does.
func (c *Ctrl) ExecContext(ctx context.Context, args []string) Result {
	if !c.markExecuted() {
		fmt.Fprintf(c.errOut, "Error: %v\n", ErrAlreadyExecuted)
		return Result{ExitCode: 1}
	}

	exitApp, err := c.parseArgs(args)
	if err != nil {
		fmt.Fprintf(c.errOut, "Error: %v\n", err)
		fmt.Fprintf(c.errOut, "Try '%s --help' for more information.\n", c.name)
		return Result{ExitCode: 1}
	}
	if exitApp {
		return Result{ExitCode: 0}
	}

	success, ran := c.runSimulation(ctx)
	if !ran {
		return Result{ExitCode: 1}
	}
	if !success {
		return Result{ExitCode: 1, RanSimulation: true}
	}
	return Result{ExitCode: 0, RanSimulation: true}
}

// runSimulation sets up the extensions, runs and tears down. ran is false
// when setup failed.
func (c *Ctrl) runSimulation(ctx context.Context) (success, ran bool) {
	defer func() { _ = c.logger.Sync() }()

	setUp, err := c.setup()
	if err != nil {
		fmt.Fprintf(c.errOut, "Error: failed to set up simulation: %v\n", err)
		c.teardown(setUp)
		return false, false
	}

	if c.config.StatsView {
		stop := startStatsView(c.config.StatsViewAddr, c.out)
		defer stop()
	}

	if c.config.TraceFile != "" {
		if err := c.enableTracing(); err != nil {
			fmt.Fprintf(c.errOut, "Error: %v\n", err)
			c.teardown(setUp)
			return false, false
		}
	}

	start := time.Now()
	success = c.run(ctx)
	elapsed := time.Since(start)

	if err := c.closeTracing(); err != nil {
		c.logger.Error("failed to close trace", zap.Error(err))
		success = false
	}
	if !c.teardown(setUp) {
		success = false
	}

	c.printStatistics(elapsed)
	return success, true
}

// setup calls PreExec in registration order and returns how many
// extensions were set up.
func (c *Ctrl) setup() (int, error) {
	for i, ext := range c.extensions {
		if err := ext.PreExec(c); err != nil {
			return i, err
		}
	}
	return len(c.extensions), nil
}

// teardown calls PostExec on the first n extensions in registration order.
func (c *Ctrl) teardown(n int) bool {
	ok := true
	for _, ext := range c.extensions[:n] {
		if err := ext.PostExec(c); err != nil {
			fmt.Fprintf(c.errOut, "Error: extension teardown failed: %v\n", err)
			ok = false
		}
	}
	return ok
}

// run is the clocking loop. Time advances in half clock periods.
func (c *Ctrl) run(ctx context.Context) bool {
	c.signals = make(chan os.Signal, 4)
	notifySignals(c.signals)
	defer signal.Stop(c.signals)

	fmt.Fprintln(c.out, "Simulation running, end by pressing CTRL-c.")
	c.logger.Debug("starting run",
		zap.String("run_id", c.runID),
		zap.Uint64("reset_delay", c.config.InitialResetDelayCycles),
		zap.Uint64("reset_duration", c.config.ResetDurationCycles),
		zap.String("polarity", c.polarity.String()))

	resetStart := c.config.InitialResetDelayCycles * 2
	resetEnd := (c.config.InitialResetDelayCycles + c.config.ResetDurationCycles) * 2

	c.polarity.Drive(c.rst, false)
	c.clk.SetLevel(false)
	c.InvokeHook(sim.HookCtx{Domain: c, Pos: HookPosEval, Item: c.simTime})

	inReset := false
	for {
		wantReset := c.simTime >= resetStart && c.simTime < resetEnd
		if wantReset != inReset {
			inReset = wantReset
			c.polarity.Drive(c.rst, inReset)
			c.InvokeHook(sim.HookCtx{Domain: c, Pos: HookPosReset, Item: c.simTime, Detail: inReset})
			c.logger.Debug("reset", zap.Bool("asserted", inReset), zap.Uint64("time", c.simTime))
		}

		c.clk.Toggle()
		if c.clk.Level() {
			c.cycles++
			c.onClock()
		}

		c.top.Eval()
		c.simTime++
		c.InvokeHook(sim.HookCtx{Domain: c, Pos: HookPosEval, Item: c.simTime})

		if c.stopRequested {
			fmt.Fprintln(c.out, "Received stop request, shutting down simulation.")
			return c.stopSuccess
		}
		if done, passed := c.top.Finished(); done {
			fmt.Fprintln(c.out, "Received $finish() from the design, shutting down simulation.")
			if !passed {
				c.reportFailure()
			}
			return passed
		}
		if c.config.TermAfterCycles != 0 && c.cycles >= c.config.TermAfterCycles {
			fmt.Fprintf(c.out, "Simulation timeout of %d cycles reached, shutting down simulation.\n",
				c.config.TermAfterCycles)
			return false
		}

		if c.poll(ctx) {
			fmt.Fprintln(c.out, "Received interrupt, shutting down simulation.")
			return true
		}
	}
}

func (c *Ctrl) reportFailure() {
	r, ok := c.top.(model.FailureReporter)
	if !ok {
		return
	}
	if err := r.Err(); err != nil {
		fmt.Fprintf(c.errOut, "Error: design failed: %v\n", err)
		c.logger.Debug("design failed", zap.Error(err), zap.Uint64("cycles", c.cycles))
	}
}

func (c *Ctrl) onClock() {
	for _, ext := range c.extensions {
		if l, ok := ext.(ClockListener); ok {
			l.OnClock(c.simTime)
		}
	}
	c.InvokeHook(sim.HookCtx{Domain: c, Pos: HookPosClock, Item: c.simTime})
}

// poll checks for signals and cancellation without blocking. It returns
// true when the run should stop.
func (c *Ctrl) poll(ctx context.Context) bool {
	select {
	case sig := <-c.signals:
		if isTraceToggle(sig) {
			c.toggleTracing()
			return false
		}
		c.logger.Info("signal received", zap.String("signal", sig.String()))
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (c *Ctrl) printStatistics(elapsed time.Duration) {
	seconds := elapsed.Seconds()
	speed := 0.0
	if seconds > 0 {
		speed = float64(c.cycles) / seconds
	}

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Simulation statistics")
	fmt.Fprintln(c.out, "=====================")
	fmt.Fprintf(c.out, "Run ID:           %s\n", c.runID)
	fmt.Fprintf(c.out, "Executed cycles:  %d\n", c.cycles)
	fmt.Fprintf(c.out, "Wallclock time:   %.3f s\n", seconds)
	fmt.Fprintf(c.out, "Simulation speed: %.2f cycles/s (%.2f kHz)\n", speed, speed/1000)
	if c.config.ClockFreq > 0 {
		fmt.Fprintf(c.out, "Simulated time:   %.3f us\n",
			float64(c.cycles)/float64(c.config.ClockFreq)*1e6)
	}

	if c.tracer != nil {
		fmt.Fprintln(c.out)
		fmt.Fprintln(c.out, "You can view the simulation traces by calling")
		fmt.Fprintf(c.out, "$ gtkwave %s\n", c.tracer.path)
	}
}
