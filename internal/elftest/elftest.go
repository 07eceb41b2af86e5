// Package elftest builds small little-endian ELF32 files for tests.
package elftest

import (
	"debug/elf"
	"encoding/binary"
	"os"
)

const (
	ehdrSize = 52
	phdrSize = 32
	shdrSize = 40
	symSize  = 16
)

// Segment is one PT_LOAD entry.
type Segment struct {
	VAddr   uint32
	PAddr   uint32
	Data    []byte
	MemSize uint32 // defaults to len(Data)
	Flags   elf.ProgFlag
}

// Symbol is one global absolute symbol.
type Symbol struct {
	Name  string
	Value uint32
}

// Image describes the file to build.
type Image struct {
	Machine  elf.Machine // defaults to EM_RISCV
	Entry    uint32
	Segments []Segment
	Symbols  []Symbol
}

// Build encodes the image.
func Build(img Image) []byte {
	le := binary.LittleEndian
	machine := img.Machine
	if machine == elf.EM_NONE {
		machine = elf.EM_RISCV
	}

	phoff := uint32(ehdrSize)
	dataOff := phoff + uint32(len(img.Segments))*phdrSize

	var body []byte
	phdrs := make([]byte, 0, len(img.Segments)*phdrSize)
	for _, seg := range img.Segments {
		memSize := seg.MemSize
		if memSize == 0 {
			memSize = uint32(len(seg.Data))
		}
		flags := seg.Flags
		if flags == 0 {
			flags = elf.PF_R | elf.PF_X
		}

		ph := make([]byte, phdrSize)
		le.PutUint32(ph[0:], uint32(elf.PT_LOAD))
		le.PutUint32(ph[4:], dataOff+uint32(len(body)))
		le.PutUint32(ph[8:], seg.VAddr)
		le.PutUint32(ph[12:], seg.PAddr)
		le.PutUint32(ph[16:], uint32(len(seg.Data)))
		le.PutUint32(ph[20:], memSize)
		le.PutUint32(ph[24:], uint32(flags))
		le.PutUint32(ph[28:], 4)
		phdrs = append(phdrs, ph...)
		body = append(body, seg.Data...)
	}

	// Section names: "\0.shstrtab\0.strtab\0.symtab\0"
	shstrtab := []byte("\x00.shstrtab\x00.strtab\x00.symtab\x00")
	const (
		nameShstrtab = 1
		nameStrtab   = 11
		nameSymtab   = 19
	)

	strtab := []byte{0}
	symtab := make([]byte, symSize) // null symbol
	for _, s := range img.Symbols {
		sym := make([]byte, symSize)
		le.PutUint32(sym[0:], uint32(len(strtab)))
		le.PutUint32(sym[4:], s.Value)
		sym[12] = byte(elf.STB_GLOBAL)<<4 | byte(elf.STT_NOTYPE)
		le.PutUint16(sym[14:], uint16(elf.SHN_ABS))
		symtab = append(symtab, sym...)
		strtab = append(strtab, []byte(s.Name)...)
		strtab = append(strtab, 0)
	}

	file := make([]byte, ehdrSize)
	file = append(file, phdrs...)
	file = append(file, body...)

	shstrtabOff := uint32(len(file))
	file = append(file, shstrtab...)
	strtabOff := uint32(len(file))
	file = append(file, strtab...)
	file = pad4(file)
	symtabOff := uint32(len(file))
	file = append(file, symtab...)
	file = pad4(file)
	shoff := uint32(len(file))

	section := func(name, typ, off, size, link, info, align, entsize uint32) []byte {
		sh := make([]byte, shdrSize)
		le.PutUint32(sh[0:], name)
		le.PutUint32(sh[4:], typ)
		le.PutUint32(sh[16:], off)
		le.PutUint32(sh[20:], size)
		le.PutUint32(sh[24:], link)
		le.PutUint32(sh[28:], info)
		le.PutUint32(sh[32:], align)
		le.PutUint32(sh[36:], entsize)
		return sh
	}
	file = append(file, make([]byte, shdrSize)...)
	file = append(file, section(nameShstrtab, uint32(elf.SHT_STRTAB), shstrtabOff, uint32(len(shstrtab)), 0, 0, 1, 0)...)
	file = append(file, section(nameStrtab, uint32(elf.SHT_STRTAB), strtabOff, uint32(len(strtab)), 0, 0, 1, 0)...)
	file = append(file, section(nameSymtab, uint32(elf.SHT_SYMTAB), symtabOff, uint32(len(symtab)), 2, 1, 4, symSize)...)

	h := file[:ehdrSize]
	copy(h[0:4], elf.ELFMAG)
	h[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	h[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	h[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	le.PutUint16(h[16:], uint16(elf.ET_EXEC))
	le.PutUint16(h[18:], uint16(machine))
	le.PutUint32(h[20:], uint32(elf.EV_CURRENT))
	le.PutUint32(h[24:], img.Entry)
	if len(img.Segments) > 0 {
		le.PutUint32(h[28:], phoff)
	}
	le.PutUint32(h[32:], shoff)
	le.PutUint16(h[40:], ehdrSize)
	le.PutUint16(h[42:], phdrSize)
	le.PutUint16(h[44:], uint16(len(img.Segments)))
	le.PutUint16(h[46:], shdrSize)
	le.PutUint16(h[48:], 4)
	le.PutUint16(h[50:], 1)

	return file
}

// Write encodes the image into a file at path.
func Write(path string, img Image) error {
	return os.WriteFile(path, Build(img), 0644)
}

func pad4(b []byte) []byte {
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}
