// Package loader reads ELF images that are to be placed into simulated
// memories.
package loader

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Segment represents a loadable segment from an ELF binary.
type Segment struct {
	// VirtAddr is the address the program sees the segment at.
	VirtAddr uint64
	// PhysAddr is the load address. Memories are filled by this address.
	PhysAddr uint64
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint64
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Symbol is an entry from the ELF symbol table.
type Symbol struct {
	Name  string
	Value uint64
	Size  uint64
}

// Program is the loadable content of an ELF file.
type Program struct {
	// Path is the file the program was read from.
	Path string
	// EntryPoint is the address where execution should begin.
	EntryPoint uint64
	// Class is elf.ELFCLASS32 or elf.ELFCLASS64.
	Class elf.Class
	// Machine is the target architecture recorded in the header.
	Machine elf.Machine
	// Segments contains all PT_LOAD segments.
	Segments []Segment
	// Symbols contains the symbol table, empty for stripped files.
	Symbols []Symbol
}

// IsELF reports whether the file at path starts with the ELF magic.
func IsELF(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, err
	}
	return string(magic) == elf.ELFMAG, nil
}

// Load parses the ELF file at path.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	prog := &Program{
		Path:       path,
		EntryPoint: f.Entry,
		Class:      f.Class,
		Machine:    f.Machine,
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		seg, err := readSegment(phdr)
		if err != nil {
			return nil, err
		}
		prog.Segments = append(prog.Segments, seg)
	}

	syms, err := f.Symbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, fmt.Errorf("failed to read symbol table: %w", err)
	}
	for _, s := range syms {
		if s.Name == "" {
			continue
		}
		prog.Symbols = append(prog.Symbols, Symbol{
			Name:  s.Name,
			Value: s.Value,
			Size:  s.Size,
		})
	}

	return prog, nil
}

// LoadFor parses the ELF file at path and checks its target architecture.
func LoadFor(path string, machine elf.Machine) (*Program, error) {
	prog, err := Load(path)
	if err != nil {
		return nil, err
	}
	if prog.Machine != machine {
		return nil, fmt.Errorf("ELF file %s targets %v, want %v", path, prog.Machine, machine)
	}
	return prog, nil
}

func readSegment(phdr *elf.Prog) (Segment, error) {
	data := make([]byte, phdr.Filesz)
	if phdr.Filesz > 0 {
		n, err := phdr.ReadAt(data, 0)
		if err != nil && err != io.EOF {
			return Segment{}, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Paddr, err)
		}
		if uint64(n) != phdr.Filesz {
			return Segment{}, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
				phdr.Paddr, n, phdr.Filesz)
		}
	}

	var flags SegmentFlags
	if phdr.Flags&elf.PF_X != 0 {
		flags |= SegmentFlagExecute
	}
	if phdr.Flags&elf.PF_W != 0 {
		flags |= SegmentFlagWrite
	}
	if phdr.Flags&elf.PF_R != 0 {
		flags |= SegmentFlagRead
	}

	return Segment{
		VirtAddr: phdr.Vaddr,
		PhysAddr: phdr.Paddr,
		Data:     data,
		MemSize:  phdr.Memsz,
		Flags:    flags,
	}, nil
}

// Image returns the bytes a segment occupies in memory, with the BSS part
// zero-filled.
func (s Segment) Image() []byte {
	if s.MemSize <= uint64(len(s.Data)) {
		return s.Data
	}
	img := make([]byte, s.MemSize)
	copy(img, s.Data)
	return img
}

// Lookup returns the first symbol called name.
func (p *Program) Lookup(name string) (Symbol, bool) {
	for _, s := range p.Symbols {
		if s.Name == name {
			return s, true
		}
	}
	return Symbol{}, false
}
