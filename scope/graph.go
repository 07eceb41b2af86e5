package scope

import (
	"fmt"
	"io"

	"github.com/bradleyjkemp/memviz"
)

// MemorySummary describes one memory in a Snapshot.
type MemorySummary struct {
	Location  string
	WidthBits int
	Depth     int
	UsedWords int
}

// SignalValue is the value of one signal in a Snapshot.
type SignalValue struct {
	Name  string
	Width int
	Value uint64
}

// Snapshot is a plain-data view of a scope at one point in time.
type Snapshot struct {
	Name     string
	Memories []MemorySummary
	Signals  []SignalValue
}

// Snapshot captures the current memories and signal values.
func (s *Scope) Snapshot() Snapshot {
	snap := Snapshot{Name: s.name}
	for _, loc := range s.MemoryLocations() {
		m, err := s.Memory(loc)
		if err != nil {
			continue
		}
		snap.Memories = append(snap.Memories, MemorySummary{
			Location:  loc,
			WidthBits: m.WidthBits(),
			Depth:     m.Depth(),
			UsedWords: m.UsedWords(),
		})
	}
	for _, sig := range s.Signals() {
		snap.Signals = append(snap.Signals, SignalValue{
			Name:  sig.Name(),
			Width: sig.Width(),
			Value: sig.Value(),
		})
	}
	return snap
}

// WriteGraph writes a graphviz description of the scope snapshot.
func (s *Scope) WriteGraph(w io.Writer) {
	snap := s.Snapshot()
	memviz.Map(w, &snap)
}

// WriteSummary prints the snapshot as text.
func (s *Scope) WriteSummary(w io.Writer) error {
	snap := s.Snapshot()
	if _, err := fmt.Fprintf(w, "Scope %s\n", snap.Name); err != nil {
		return err
	}
	for _, m := range snap.Memories {
		if _, err := fmt.Fprintf(w, "  mem %-10s %4d x %3d bits, %d words used\n",
			m.Location, m.Depth, m.WidthBits, m.UsedWords); err != nil {
			return err
		}
	}
	for _, sig := range snap.Signals {
		if _, err := fmt.Fprintf(w, "  sig %-10s = %#x\n", sig.Name, sig.Value); err != nil {
			return err
		}
	}
	return nil
}
