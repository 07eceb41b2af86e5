// Package scope maps hierarchical instance names such as "TOP.otbn_top_sim"
// to the simulated instance behind them, and tracks which scope is active
// for tooling that runs after a simulation.
package scope

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sarchlab/rtlsim/model"
)

var (
	// ErrNotFound is returned when no scope is registered under a name.
	ErrNotFound = errors.New("scope not found")
	// ErrDuplicate is returned when a name is registered twice.
	ErrDuplicate = errors.New("scope already registered")
	// ErrNoActiveScope is returned when tooling runs before a scope is bound.
	ErrNoActiveScope = errors.New("no active scope")
	// ErrInvalidName is returned for malformed hierarchical names.
	ErrInvalidName = errors.New("invalid scope name")
)

// Root is the first element of every scope name.
const Root = "TOP"

// Scope is one simulated instance in the design hierarchy.
type Scope struct {
	name  string
	owner any

	mu      sync.RWMutex
	mems    map[string]*model.Memory
	signals []*model.Signal
}

// Name returns the full hierarchical name.
func (s *Scope) Name() string {
	return s.name
}

// Owner returns the instance that registered the scope.
func (s *Scope) Owner() any {
	return s.owner
}

// AddMemory makes a memory reachable under the scope as <scope>.<loc>.
func (s *Scope) AddMemory(loc string, m *model.Memory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mems[loc] = m
}

// AddSignal publishes a signal for inspection.
func (s *Scope) AddSignal(sig *model.Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, sig)
}

// Memory returns the memory registered at loc, relative to the scope.
func (s *Scope) Memory(loc string) (*model.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.mems[loc]
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", s.name, loc, ErrNotFound)
	}
	return m, nil
}

// MemoryLocations returns the registered memory locations in sorted order.
func (s *Scope) MemoryLocations() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	locs := make([]string, 0, len(s.mems))
	for loc := range s.mems {
		locs = append(locs, loc)
	}
	sort.Strings(locs)
	return locs
}

// Signals returns the published signals in registration order.
func (s *Scope) Signals() []*model.Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*model.Signal(nil), s.signals...)
}

// Signal finds a published signal by name.
func (s *Scope) Signal(name string) (*model.Signal, error) {
	for _, sig := range s.Signals() {
		if sig.Name() == name {
			return sig, nil
		}
	}
	return nil, fmt.Errorf("%s.%s: %w", s.name, name, ErrNotFound)
}

// ValidName checks that name is a dot-separated path rooted at TOP.
func ValidName(name string) error {
	parts := strings.Split(name, ".")
	if len(parts) < 2 || parts[0] != Root {
		return fmt.Errorf("%q must start with %s.: %w", name, Root, ErrInvalidName)
	}
	for _, p := range parts[1:] {
		if p == "" {
			return fmt.Errorf("%q has an empty component: %w", name, ErrInvalidName)
		}
	}
	return nil
}

// Registry holds all scopes of a process.
type Registry struct {
	mu     sync.RWMutex
	scopes map[string]*Scope
	active *Scope
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{scopes: make(map[string]*Scope)}
}

// Process is the registry used by the simulation binaries.
var Process = NewRegistry()

// Register creates the scope name owned by owner.
func (r *Registry) Register(name string, owner any) (*Scope, error) {
	if err := ValidName(name); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.scopes[name]; ok {
		return nil, fmt.Errorf("%s: %w", name, ErrDuplicate)
	}

	s := &Scope{
		name:  name,
		owner: owner,
		mems:  make(map[string]*model.Memory),
	}
	r.scopes[name] = s
	return s, nil
}

// Lookup finds a scope by its full name.
func (r *Registry) Lookup(name string) (*Scope, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.scopes[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return s, nil
}

// Names returns all registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.scopes))
	for n := range r.scopes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SetActive makes s the active scope and returns the previous one.
func (r *Registry) SetActive(s *Scope) *Scope {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.active
	r.active = s
	return prev
}

// Active returns the active scope.
func (r *Registry) Active() (*Scope, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.active == nil {
		return nil, ErrNoActiveScope
	}
	return r.active, nil
}

// Bind looks up name and makes it the active scope.
func (r *Registry) Bind(name string) (*Scope, error) {
	s, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	r.SetActive(s)
	return s, nil
}
