// Package core provides the clocked stand-in for the OTBN execution core.
// It fetches one word per cycle through a fetch cache, tracks hardware
// loops and stops at ECALL. Instruction semantics are not modelled.
package core

import (
	"fmt"

	"github.com/sarchlab/rtlsim/insts"
	"github.com/sarchlab/rtlsim/model"
	"github.com/sarchlab/rtlsim/timing/cache"
	"github.com/sarchlab/rtlsim/timing/latency"
)

// Error bits, laid out as in the OTBN ERR_BITS register.
const (
	ErrBitBadDataAddr uint32 = 1 << 0
	ErrBitBadInsnAddr uint32 = 1 << 1
	ErrBitCallStack   uint32 = 1 << 2
	ErrBitIllegalInsn uint32 = 1 << 3
	ErrBitLoop        uint32 = 1 << 4
)

// WarpFunc is called for every instruction retired inside a loop. It gets
// the address of the instruction and the number of iterations completed by
// the innermost loop, and returns the count to continue with.
type WarpFunc func(addr, count uint32) (uint32, error)

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the number of cycles the core was running.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Stalls is the number of cycles spent waiting on fetch or execution.
	Stalls uint64
	// LoopIterations counts loop back-edges taken.
	LoopIterations uint64
	// Warps counts loop counter changes made by the warp function.
	Warps uint64
	// ControlOps counts retired instructions that change control flow.
	ControlOps uint64
}

type loopFrame struct {
	start      uint32
	end        uint32
	iterations uint32
	count      uint32
}

// Core is the stand-in execution core.
type Core struct {
	imem    *model.Memory
	fetch   *cache.Cache
	table   *latency.Table
	decoder *insts.Decoder
	config  *latency.TimingConfig

	warp WarpFunc

	pc      uint32
	running bool
	halted  bool
	errBits uint32
	err     error

	pending     *insts.Instruction
	pendingAddr uint32
	stall       uint64

	loops []loopFrame
	stats Stats
}

// NewCore creates a core fetching from imem. A nil config selects the
// defaults. Later writes to imem invalidate the fetch cache lines they
// touch.
func NewCore(imem *model.Memory, config *latency.TimingConfig) *Core {
	if config == nil {
		config = latency.DefaultTimingConfig()
	}
	c := &Core{
		imem:    imem,
		fetch:   cache.New(config.FetchCacheConfig(), imem),
		table:   latency.NewTableWithConfig(config),
		decoder: insts.NewDecoder(),
		config:  config,
	}
	imem.Watch(c.fetch.InvalidateRange)
	return c
}

// SetWarpFunc installs the loop warp callback.
func (c *Core) SetWarpFunc(f WarpFunc) {
	c.warp = f
}

// Start begins execution at pc with an empty loop stack. It has no effect
// on a running core. Error bits of an earlier run are kept.
func (c *Core) Start(pc uint32) {
	if c.running {
		return
	}
	c.pc = pc
	c.running = true
	c.halted = false
	c.pending = nil
	c.stall = 0
	c.loops = c.loops[:0]
}

// Running reports whether the core has been started and not halted.
func (c *Core) Running() bool {
	return c.running
}

// Halted returns true once the core has executed ECALL or hit an error.
func (c *Core) Halted() bool {
	return c.halted
}

// Passed reports whether the core halted without errors.
func (c *Core) Passed() bool {
	return c.halted && c.errBits == 0
}

// ErrBits returns the accumulated error bits.
func (c *Core) ErrBits() uint32 {
	return c.errBits
}

// Err returns the error that halted the core, if it was caused by a
// failing callback rather than by the program.
func (c *Core) Err() error {
	return c.err
}

// PC returns the address of the next instruction to fetch.
func (c *Core) PC() uint32 {
	return c.pc
}

// LoopDepth returns the number of active loops.
func (c *Core) LoopDepth() int {
	return len(c.loops)
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	return c.stats
}

// FetchStats returns the fetch cache statistics.
func (c *Core) FetchStats() cache.Statistics {
	return c.fetch.Stats()
}

// ResetStats clears the core and fetch cache statistics but keeps the
// cache contents.
func (c *Core) ResetStats() {
	c.stats = Stats{}
	c.fetch.ResetStats()
}

// Tick advances the core by one clock cycle.
func (c *Core) Tick() {
	if !c.running {
		return
	}
	c.stats.Cycles++

	if c.pending == nil {
		if !c.fetchNext() {
			return
		}
	}

	if c.stall > 0 {
		c.stall--
		c.stats.Stalls++
		return
	}

	inst, addr := c.pending, c.pendingAddr
	c.pending = nil
	c.execute(inst, addr)
}

// RunCycles ticks the core for at most cycles cycles.
// Returns true if still running, false if halted.
func (c *Core) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles && c.running; i++ {
		c.Tick()
	}
	return c.running
}

// Reset clears all core state. The fetch cache is emptied so a reloaded
// program is seen.
func (c *Core) Reset() {
	c.pc = 0
	c.running = false
	c.halted = false
	c.errBits = 0
	c.err = nil
	c.pending = nil
	c.stall = 0
	c.loops = c.loops[:0]
	c.stats = Stats{}
	c.fetch.Reset()
}

func (c *Core) fetchNext() bool {
	addr := c.pc
	if addr%4 != 0 || uint64(addr)+4 > c.imem.Size() {
		c.fail(ErrBitBadInsnAddr, nil)
		return false
	}

	res := c.fetch.Read(uint64(addr), 4)
	inst := c.decoder.Decode(uint32(res.Data))

	c.pending = inst
	c.pendingAddr = addr
	c.stall = res.Latency - 1 + c.table.GetLatency(inst) - 1
	return true
}

func (c *Core) execute(inst *insts.Instruction, addr uint32) {
	switch inst.Op {
	case insts.OpIllegal:
		c.fail(ErrBitIllegalInsn, nil)
		return
	case insts.OpEcall:
		c.retire(inst)
		c.running = false
		c.halted = true
		return
	case insts.OpLoopi:
		if !c.pushLoop(inst, addr) {
			return
		}
	}

	c.retire(inst)
	c.advance(addr)
}

func (c *Core) retire(inst *insts.Instruction) {
	c.stats.Instructions++
	if c.table.IsControlOp(inst) {
		c.stats.ControlOps++
	}
}

func (c *Core) pushLoop(inst *insts.Instruction, addr uint32) bool {
	if inst.Iterations == 0 || inst.BodyLen == 0 {
		c.fail(ErrBitLoop, nil)
		return false
	}
	if len(c.loops) >= c.config.LoopStackDepth {
		c.fail(ErrBitLoop, nil)
		return false
	}

	c.loops = append(c.loops, loopFrame{
		start:      addr + 4,
		end:        addr + 4*inst.BodyLen,
		iterations: inst.Iterations,
	})
	return true
}

func (c *Core) advance(addr uint32) {
	next := addr + 4

	if top := c.innermost(); top != nil && c.warp != nil &&
		addr >= top.start && addr <= top.end {
		to, err := c.warp(addr, top.count)
		if err != nil {
			c.fail(ErrBitLoop, fmt.Errorf("loop warp at 0x%x: %w", addr, err))
			return
		}
		if to != top.count {
			c.stats.Warps++
			top.count = to
		}
	}

	for len(c.loops) > 0 {
		top := &c.loops[len(c.loops)-1]
		if addr != top.end {
			break
		}
		top.count++
		if top.count < top.iterations {
			c.stats.LoopIterations++
			next = top.start
			break
		}
		c.loops = c.loops[:len(c.loops)-1]
	}

	c.pc = next
}

func (c *Core) innermost() *loopFrame {
	if len(c.loops) == 0 {
		return nil
	}
	return &c.loops[len(c.loops)-1]
}

func (c *Core) fail(bits uint32, err error) {
	c.errBits |= bits
	c.err = err
	c.running = false
	c.halted = true
}
