package model

import "fmt"

// Memory is a word-organised storage array inside a simulated design.
// Addresses used by Read, Write and Load are byte offsets from the start of
// the array; words are stored little-endian.
type Memory struct {
	name      string
	widthBits int
	depth     int
	data      []byte

	watchers []func(addr, size uint64)
}

// NewMemory creates a memory of depth words, each widthBits wide.
// widthBits must be a non-zero multiple of 8.
func NewMemory(name string, widthBits, depth int) (*Memory, error) {
	if widthBits <= 0 || widthBits%8 != 0 {
		return nil, fmt.Errorf("memory %s: width %d is not a multiple of 8", name, widthBits)
	}
	if depth <= 0 {
		return nil, fmt.Errorf("memory %s: depth must be > 0", name)
	}

	return &Memory{
		name:      name,
		widthBits: widthBits,
		depth:     depth,
		data:      make([]byte, widthBits/8*depth),
	}, nil
}

// Watch registers fn to be called with the byte range of every change made
// through Write, Load, WriteWord or Clear.
func (m *Memory) Watch(fn func(addr, size uint64)) {
	m.watchers = append(m.watchers, fn)
}

func (m *Memory) notify(addr, size uint64) {
	if size == 0 || addr >= m.Size() {
		return
	}
	if size > m.Size()-addr {
		size = m.Size() - addr
	}
	for _, fn := range m.watchers {
		fn(addr, size)
	}
}

// Name returns the instance name of the memory.
func (m *Memory) Name() string {
	return m.name
}

// WidthBits returns the word width.
func (m *Memory) WidthBits() int {
	return m.widthBits
}

// WordBytes returns the word width in bytes.
func (m *Memory) WordBytes() int {
	return m.widthBits / 8
}

// Depth returns the number of words.
func (m *Memory) Depth() int {
	return m.depth
}

// Size returns the capacity in bytes.
func (m *Memory) Size() uint64 {
	return uint64(len(m.data))
}

// Read returns size bytes starting at addr. Bytes outside the array read
// as zero.
func (m *Memory) Read(addr uint64, size int) []byte {
	out := make([]byte, size)
	for i := 0; i < size; i++ {
		a := addr + uint64(i)
		if a < uint64(len(m.data)) {
			out[i] = m.data[a]
		}
	}
	return out
}

// Write stores data at addr. Bytes outside the array are dropped.
func (m *Memory) Write(addr uint64, data []byte) {
	for i, b := range data {
		a := addr + uint64(i)
		if a < uint64(len(m.data)) {
			m.data[a] = b
		}
	}
	m.notify(addr, uint64(len(data)))
}

// Load stores data at addr and fails if any byte falls outside the array.
func (m *Memory) Load(addr uint64, data []byte) error {
	end := addr + uint64(len(data))
	if end < addr || end > uint64(len(m.data)) {
		return fmt.Errorf("memory %s: %d bytes at 0x%x exceed size 0x%x",
			m.name, len(data), addr, len(m.data))
	}
	copy(m.data[addr:end], data)
	m.notify(addr, uint64(len(data)))
	return nil
}

// ReadWord returns a copy of word idx.
func (m *Memory) ReadWord(idx int) ([]byte, error) {
	if idx < 0 || idx >= m.depth {
		return nil, fmt.Errorf("memory %s: word index %d out of range", m.name, idx)
	}
	wb := m.WordBytes()
	return append([]byte(nil), m.data[idx*wb:(idx+1)*wb]...), nil
}

// WriteWord overwrites word idx. Short words are zero-extended.
func (m *Memory) WriteWord(idx int, word []byte) error {
	if idx < 0 || idx >= m.depth {
		return fmt.Errorf("memory %s: word index %d out of range", m.name, idx)
	}
	wb := m.WordBytes()
	if len(word) > wb {
		return fmt.Errorf("memory %s: %d-byte word wider than %d bits", m.name, len(word), m.widthBits)
	}
	dst := m.data[idx*wb : (idx+1)*wb]
	for i := range dst {
		dst[i] = 0
	}
	copy(dst, word)
	m.notify(uint64(idx*wb), uint64(wb))
	return nil
}

// Clear zeroes the whole array.
func (m *Memory) Clear() {
	for i := range m.data {
		m.data[i] = 0
	}
	m.notify(0, m.Size())
}

// UsedWords counts the words holding a non-zero value.
func (m *Memory) UsedWords() int {
	wb := m.WordBytes()
	n := 0
	for i := 0; i < m.depth; i++ {
		for _, b := range m.data[i*wb : (i+1)*wb] {
			if b != 0 {
				n++
				break
			}
		}
	}
	return n
}
