// Package latency provides the instruction timing model of the stand-in
// OTBN core. Values can be configured via TimingConfig.
package latency

import (
	"github.com/sarchlab/rtlsim/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the execution latency in cycles for the given
// instruction, not counting the fetch.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	switch inst.Op {
	case insts.OpLoopi:
		return t.config.LoopSetupLatency
	case insts.OpEcall:
		return t.config.EcallLatency
	case insts.OpNop:
		return t.config.NopLatency
	default:
		return 1
	}
}

// IsControlOp returns true if the instruction changes control flow.
func (t *Table) IsControlOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.Op == insts.OpLoopi || inst.Op == insts.OpEcall
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
