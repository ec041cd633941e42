package wishbone

// Memory is a word-organized RAM target. Offsets past the end wrap, as the
// unused address bits of a RAM macro do.
type Memory struct {
	words []uint32
}

// NewMemory returns a zeroed memory of size bytes.
func NewMemory(size uint32) *Memory {
	return &Memory{words: make([]uint32, size/4)}
}

// Size returns the capacity in bytes.
func (m *Memory) Size() uint32 { return uint32(len(m.words)) * 4 }

func (m *Memory) Read(off uint32) uint32 {
	return m.words[off%uint32(len(m.words))]
}

func (m *Memory) Write(off, dat uint32, sel uint8) {
	i := off % uint32(len(m.words))
	m.words[i] = Merge(m.words[i], dat, sel)
}

// Clear zeroes the whole memory.
func (m *Memory) Clear() { clear(m.words) }
