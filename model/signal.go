// Package model defines the contract between a simulated top-level design
// and the code that drives it: named ports, word-addressed memories and the
// Top interface.
package model

import "fmt"

// Signal is a named port of a simulated design. Widths up to 64 bits are
// supported; one-bit signals are used for clocks and resets.
type Signal struct {
	name  string
	width int
	value uint64
}

// NewSignal creates a signal of the given width, initially zero.
func NewSignal(name string, width int) *Signal {
	if width < 1 {
		width = 1
	}
	if width > 64 {
		width = 64
	}
	return &Signal{name: name, width: width}
}

// NewWire creates a one-bit signal.
func NewWire(name string) *Signal {
	return NewSignal(name, 1)
}

// Name returns the port name.
func (s *Signal) Name() string {
	return s.name
}

// Width returns the width in bits.
func (s *Signal) Width() int {
	return s.width
}

// Value returns the current value.
func (s *Signal) Value() uint64 {
	return s.value
}

// Set drives the signal. Bits above the signal width are dropped.
func (s *Signal) Set(v uint64) {
	if s.width < 64 {
		v &= (uint64(1) << s.width) - 1
	}
	s.value = v
}

// Level returns true when the signal is non-zero.
func (s *Signal) Level() bool {
	return s.value != 0
}

// SetLevel drives a one-bit value.
func (s *Signal) SetLevel(high bool) {
	if high {
		s.value = 1
		return
	}
	s.value = 0
}

// Toggle inverts a one-bit signal.
func (s *Signal) Toggle() {
	s.SetLevel(!s.Level())
}

func (s *Signal) String() string {
	return fmt.Sprintf("%s=%#x", s.name, s.value)
}

// ResetPolarity tells at which logic level a reset signal is active.
type ResetPolarity int

const (
	// ResetPolarityNegative means the reset is active low.
	ResetPolarityNegative ResetPolarity = iota
	// ResetPolarityPositive means the reset is active high.
	ResetPolarityPositive
)

// Valid reports whether p is one of the defined polarities.
func (p ResetPolarity) Valid() bool {
	return p == ResetPolarityNegative || p == ResetPolarityPositive
}

// AssertedLevel returns the signal level that puts the design into reset.
func (p ResetPolarity) AssertedLevel() bool {
	return p == ResetPolarityPositive
}

// Asserted reports whether sig currently holds the design in reset.
func (p ResetPolarity) Asserted(sig *Signal) bool {
	return sig.Level() == p.AssertedLevel()
}

// Drive puts sig into (assert=true) or out of reset.
func (p ResetPolarity) Drive(sig *Signal, assert bool) {
	if assert {
		sig.SetLevel(p.AssertedLevel())
		return
	}
	sig.SetLevel(!p.AssertedLevel())
}

func (p ResetPolarity) String() string {
	switch p {
	case ResetPolarityNegative:
		return "active-low"
	case ResetPolarityPositive:
		return "active-high"
	default:
		return fmt.Sprintf("ResetPolarity(%d)", int(p))
	}
}
