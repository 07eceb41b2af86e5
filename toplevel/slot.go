// Package toplevel publishes the running top-level model so that callbacks
// raised from inside the model's own evaluation can find it without being
// handed a reference.
package toplevel

import (
	"errors"
	"sync"

	"github.com/sarchlab/rtlsim/model"
)

var (
	// ErrNotPublished is returned when the slot is read before a top is
	// published.
	ErrNotPublished = errors.New("no top-level model published")
	// ErrAlreadyPublished is returned on a second Publish.
	ErrAlreadyPublished = errors.New("top-level model already published")
)

// Slot holds at most one top-level model. It is written once and never
// cleared.
type Slot struct {
	mu  sync.RWMutex
	top model.Top
}

// NewSlot creates an empty slot.
func NewSlot() *Slot {
	return &Slot{}
}

// Process is the slot used by the simulation binaries.
var Process = NewSlot()

// Publish stores top. Only the first call succeeds.
func (s *Slot) Publish(top model.Top) error {
	if top == nil {
		return errors.New("cannot publish a nil top-level model")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.top != nil {
		return ErrAlreadyPublished
	}
	s.top = top
	return nil
}

// Top returns the published model.
func (s *Slot) Top() (model.Top, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.top == nil {
		return nil, ErrNotPublished
	}
	return s.top, nil
}

// Published reports whether a model has been published.
func (s *Slot) Published() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.top != nil
}
