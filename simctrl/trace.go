package simctrl

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sarchlab/akita/v4/sim"
	"go.uber.org/zap"

	"github.com/sarchlab/rtlsim/model"
)

// vcdTracer writes the clock, the reset and the signals published by the
// top into a Value Change Dump file. It samples on HookPosEval.
type vcdTracer struct {
	path       string
	file       *os.File
	w          *bufio.Writer
	signals    []*model.Signal
	ids        []string
	last       []uint64
	halfPeriod uint64
	enabled    bool
	dumped     bool
}

func (c *Ctrl) traceSignals() []*model.Signal {
	seen := map[*model.Signal]bool{c.clk: true, c.rst: true}
	signals := []*model.Signal{c.clk, c.rst}

	if t, ok := c.top.(model.Traceable); ok {
		for _, s := range t.Signals() {
			if s == nil || seen[s] {
				continue
			}
			seen[s] = true
			signals = append(signals, s)
		}
	}
	return signals
}

func (c *Ctrl) enableTracing() error {
	if c.tracer == nil {
		f, err := os.Create(c.config.TraceFile)
		if err != nil {
			return fmt.Errorf("failed to open trace file: %w", err)
		}

		signals := c.traceSignals()
		t := &vcdTracer{
			path:       c.config.TraceFile,
			file:       f,
			w:          bufio.NewWriter(f),
			signals:    signals,
			ids:        make([]string, len(signals)),
			last:       make([]uint64, len(signals)),
			halfPeriod: c.config.halfPeriodPS(),
		}
		for i := range signals {
			t.ids[i] = vcdID(i)
		}
		t.writeHeader(c.top, c.runID)

		c.tracer = t
		c.AcceptHook(t)
		fmt.Fprintf(c.out, "Tracing to %s\n", t.path)
	}

	c.tracer.enabled = true
	return nil
}

func (c *Ctrl) toggleTracing() {
	if c.tracer != nil && c.tracer.enabled {
		c.tracer.enabled = false
		fmt.Fprintln(c.out, "Tracing disabled.")
		return
	}

	if c.config.TraceFile == "" {
		c.config.TraceFile = DefaultTraceFile
	}
	if err := c.enableTracing(); err != nil {
		c.logger.Warn("cannot enable tracing", zap.Error(err))
		return
	}
	fmt.Fprintln(c.out, "Tracing enabled.")
}

func (c *Ctrl) closeTracing() error {
	if c.tracer == nil {
		return nil
	}
	return c.tracer.close()
}

// Func implements sim.Hook.
func (t *vcdTracer) Func(ctx sim.HookCtx) {
	if ctx.Pos != HookPosEval || !t.enabled {
		return
	}
	simTime, ok := ctx.Item.(uint64)
	if !ok {
		return
	}
	t.sample(simTime)
}

func (t *vcdTracer) writeHeader(top model.Top, runID string) {
	scopeName := "top"
	if n, ok := top.(model.Named); ok {
		scopeName = n.Name()
	}

	fmt.Fprintf(t.w, "$date\n  %s\n$end\n", time.Now().Format(time.RFC1123))
	fmt.Fprintf(t.w, "$version\n  rtlsim %s\n$end\n", Version)
	fmt.Fprintf(t.w, "$comment\n  run %s\n$end\n", runID)
	fmt.Fprintf(t.w, "$timescale 1ps $end\n")
	fmt.Fprintf(t.w, "$scope module %s $end\n", scopeName)
	for i, s := range t.signals {
		fmt.Fprintf(t.w, "$var wire %d %s %s $end\n", s.Width(), t.ids[i], s.Name())
	}
	fmt.Fprintf(t.w, "$upscope $end\n$enddefinitions $end\n")
}

func (t *vcdTracer) sample(simTime uint64) {
	stamp := simTime * t.halfPeriod

	if !t.dumped {
		fmt.Fprintf(t.w, "#%d\n$dumpvars\n", stamp)
		for i, s := range t.signals {
			t.last[i] = s.Value()
			t.writeValue(i, s)
		}
		fmt.Fprintf(t.w, "$end\n")
		t.dumped = true
		return
	}

	wroteTime := false
	for i, s := range t.signals {
		if s.Value() == t.last[i] {
			continue
		}
		if !wroteTime {
			fmt.Fprintf(t.w, "#%d\n", stamp)
			wroteTime = true
		}
		t.last[i] = s.Value()
		t.writeValue(i, s)
	}
}

func (t *vcdTracer) writeValue(i int, s *model.Signal) {
	if s.Width() == 1 {
		fmt.Fprintf(t.w, "%d%s\n", s.Value()&1, t.ids[i])
		return
	}
	fmt.Fprintf(t.w, "b%s %s\n", strconv.FormatUint(s.Value(), 2), t.ids[i])
}

func (t *vcdTracer) close() error {
	if err := t.w.Flush(); err != nil {
		_ = t.file.Close()
		return err
	}
	return t.file.Close()
}

// vcdID returns the short identifier code of the i-th variable.
func vcdID(i int) string {
	const first, n = '!', '~' - '!' + 1
	id := []byte{}
	for {
		id = append(id, byte(first+i%n))
		i /= n
		if i == 0 {
			break
		}
		i--
	}
	return string(id)
}
