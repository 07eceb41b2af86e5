// Package otbn provides a clocked stand-in for the OTBN top level. It has
// the ports, memories and scope names of the real design and runs programs
// as far as their control flow goes: it fetches from IMEM, follows
// hardware loops and stops at ECALL.
package otbn

import (
	"fmt"
	"sync"

	"github.com/spf13/pflag"

	"github.com/sarchlab/rtlsim/model"
	"github.com/sarchlab/rtlsim/scope"
	"github.com/sarchlab/rtlsim/simctrl"
	"github.com/sarchlab/rtlsim/timing/core"
	"github.com/sarchlab/rtlsim/timing/latency"
	"github.com/sarchlab/rtlsim/toplevel"
)

// Memory geometry.
const (
	IMEMWidthBits = 32
	IMEMWords     = 1024
	DMEMWidthBits = 256
	DMEMWords     = 96

	// IMEMBase and DMEMBase are the ELF load addresses of the memories.
	IMEMBase = 0x00000000
	DMEMBase = 0x10000000

	IMEMLocation = "u_imem"
	DMEMLocation = "u_dmem"
)

// Variant names the scope and ports of one top-level wrapper.
type Variant struct {
	Scope     string
	ClockPort string
	ResetPort string
}

var (
	// SimVariant is otbn_top_sim.
	SimVariant = Variant{Scope: "TOP.otbn_top_sim", ClockPort: "IO_CLK", ResetPort: "IO_RST_N"}
	// CocoVariant is otbn_top_coco.
	CocoVariant = Variant{Scope: "TOP.otbn_top_coco", ClockPort: "clk_sys", ResetPort: "rst_sys_n"}
)

// Option configures a Top.
type Option func(*Top)

// WithScopes registers the top in reg instead of scope.Process.
func WithScopes(reg *scope.Registry) Option {
	return func(t *Top) { t.scopes = reg }
}

// WithProcess resolves loop warps through slot instead of
// toplevel.Process.
func WithProcess(slot *toplevel.Slot) Option {
	return func(t *Top) { t.slot = slot }
}

// WithResetPolarity sets the reset polarity the design implements.
// The default is active low.
func WithResetPolarity(p model.ResetPolarity) Option {
	return func(t *Top) { t.polarity = p }
}

// WithTiming sets the core timing.
func WithTiming(config *latency.TimingConfig) Option {
	return func(t *Top) { t.timing = config }
}

// Top is the stand-in OTBN top level.
type Top struct {
	variant  Variant
	polarity model.ResetPolarity
	scopes   *scope.Registry
	slot     *toplevel.Slot
	timing   *latency.TimingConfig

	timingPath string

	clk     *model.Signal
	rst     *model.Signal
	busy    *model.Signal
	done    *model.Signal
	errBits *model.Signal
	insnCnt *model.Signal
	ports   map[string]*model.Signal

	imem  *model.Memory
	dmem  *model.Memory
	scope *scope.Scope
	core  *core.Core

	mu    sync.RWMutex
	warps map[uint32]map[uint32]uint32

	lastClk   bool
	resetSeen bool
	started   bool
}

// New creates the top and registers its scope.
func New(variant Variant, opts ...Option) (*Top, error) {
	t := &Top{
		variant:  variant,
		polarity: model.ResetPolarityNegative,
		scopes:   scope.Process,
		slot:     toplevel.Process,
		timing:   latency.DefaultTimingConfig(),
		warps:    make(map[uint32]map[uint32]uint32),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.scopes == nil {
		t.scopes = scope.Process
	}
	if t.slot == nil {
		t.slot = toplevel.Process
	}
	if t.timing == nil {
		t.timing = latency.DefaultTimingConfig()
	}
	if err := t.timing.Validate(); err != nil {
		return nil, fmt.Errorf("invalid otbn timing: %w", err)
	}

	var err error
	if t.imem, err = model.NewMemory("imem", IMEMWidthBits, IMEMWords); err != nil {
		return nil, err
	}
	if t.dmem, err = model.NewMemory("dmem", DMEMWidthBits, DMEMWords); err != nil {
		return nil, err
	}

	t.clk = model.NewWire(variant.ClockPort)
	t.rst = model.NewWire(variant.ResetPort)
	t.busy = model.NewWire("busy_o")
	t.done = model.NewWire("done_o")
	t.errBits = model.NewSignal("err_bits_o", 32)
	t.insnCnt = model.NewSignal("insn_cnt_o", 32)
	t.ports = make(map[string]*model.Signal)
	for _, s := range t.Signals() {
		t.ports[s.Name()] = s
	}
	t.polarity.Drive(t.rst, false)

	t.scope, err = t.scopes.Register(variant.Scope, t)
	if err != nil {
		return nil, fmt.Errorf("failed to register otbn scope: %w", err)
	}
	t.scope.AddMemory(IMEMLocation, t.imem)
	t.scope.AddMemory(DMEMLocation, t.dmem)
	for _, s := range t.Signals() {
		t.scope.AddSignal(s)
	}

	t.buildCore()
	return t, nil
}

func (t *Top) buildCore() {
	t.core = core.NewCore(t.imem, t.timing)
	slot := t.slot
	t.core.SetWarpFunc(func(addr, count uint32) (uint32, error) {
		return ApplyLoopWarp(slot, addr, count)
	})
}

// Name returns the scope name.
func (t *Top) Name() string {
	return t.variant.Scope
}

// Variant returns the wrapper the top was built as.
func (t *Top) Variant() Variant {
	return t.variant
}

// ResetPolarity returns the polarity the design implements.
func (t *Top) ResetPolarity() model.ResetPolarity {
	return t.polarity
}

// Scope returns the registered scope.
func (t *Top) Scope() *scope.Scope {
	return t.scope
}

// IMEM returns the instruction memory.
func (t *Top) IMEM() *model.Memory {
	return t.imem
}

// DMEM returns the data memory.
func (t *Top) DMEM() *model.Memory {
	return t.dmem
}

// Core returns the execution core.
func (t *Top) Core() *core.Core {
	return t.core
}

// Port implements model.PortLookup.
func (t *Top) Port(name string) (*model.Signal, bool) {
	s, ok := t.ports[name]
	return s, ok
}

// Signals implements model.Traceable.
func (t *Top) Signals() []*model.Signal {
	return []*model.Signal{t.clk, t.rst, t.busy, t.done, t.errBits, t.insnCnt}
}

// Eval implements model.Top. The core starts on the first rising clock
// edge after a reset has been seen and released.
func (t *Top) Eval() {
	rising := t.clk.Level() && !t.lastClk
	t.lastClk = t.clk.Level()

	if t.polarity.Asserted(t.rst) {
		if t.started {
			t.core.Reset()
			t.started = false
		}
		t.resetSeen = true
		t.updateOutputs()
		return
	}

	if !rising || !t.resetSeen {
		return
	}

	if !t.started {
		t.core.Start(IMEMBase)
		t.started = true
	}
	t.core.Tick()
	t.updateOutputs()
}

func (t *Top) updateOutputs() {
	t.busy.SetLevel(t.core.Running())
	t.done.SetLevel(t.core.Halted())
	t.errBits.Set(uint64(t.core.ErrBits()))
	t.insnCnt.Set(t.core.Stats().Instructions)
}

// Finished implements model.Top.
func (t *Top) Finished() (bool, bool) {
	if !t.core.Halted() {
		return false, false
	}
	return true, t.core.Passed()
}

// Err implements model.FailureReporter. It returns nil while the core has
// not halted with an error.
func (t *Top) Err() error {
	if err := t.core.Err(); err != nil {
		return err
	}
	if bits := t.core.ErrBits(); bits != 0 {
		return fmt.Errorf("core halted with error bits %#x", bits)
	}
	return nil
}

// RegisterFlags implements simctrl.FlagParser.
func (t *Top) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(&t.timingPath, "otbn-timing", "", "Read the OTBN core timing from a YAML file")
}

// ArgsParsed implements simctrl.FlagParser.
func (t *Top) ArgsParsed(*simctrl.Ctrl) (bool, error) {
	if t.timingPath == "" {
		return false, nil
	}

	config, err := latency.LoadConfig(t.timingPath)
	if err != nil {
		return false, err
	}
	if err := config.Validate(); err != nil {
		return false, fmt.Errorf("invalid otbn timing %s: %w", t.timingPath, err)
	}
	t.timing = config
	t.buildCore()
	return false, nil
}

// SetLoopWarps replaces the loop warp table: addr -> from -> to.
func (t *Top) SetLoopWarps(warps map[uint32]map[uint32]uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.warps = warps
}

// LoopWarp returns the iteration count to continue with when the
// instruction at addr retires with count iterations done.
func (t *Top) LoopWarp(addr, count uint32) uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if to, ok := t.warps[addr][count]; ok {
		return to
	}
	return count
}

// ApplyLoopWarp resolves the running top through slot and applies its
// loop warp table. It is called from inside the core's evaluation.
func ApplyLoopWarp(slot *toplevel.Slot, addr, count uint32) (uint32, error) {
	top, err := slot.Top()
	if err != nil {
		return count, err
	}
	t, ok := top.(*Top)
	if !ok {
		return count, fmt.Errorf("published top is %T, not an OTBN top", top)
	}
	return t.LoopWarp(addr, count), nil
}
