// Package memory implements the byte-addressed symbolic memory that
// backs both the register file and RAM: a map from address to an 8-bit
// expression, optionally backed by an immutable concrete AddressSpace
// for addresses the map itself has never been written to.
package memory

import (
	"fmt"
	"sync"

	"github.com/borzacchiello/naazgo/internal/bvconst"
	"github.com/borzacchiello/naazgo/internal/expr"
)

// Endianness selects byte ordering for multi-byte reads and writes.
type Endianness int

const (
	LittleEndian Endianness = iota
	BigEndian
)

// UninitPolicy controls what a read of an address absent from both the
// map and the backing AddressSpace produces.
type UninitPolicy int

const (
	// RetSym returns a fresh named symbol "<name>_0x<addr>" of width 8,
	// so distinct memories (RAM, registers, file contents) never alias
	// each other's uninitialized bytes; the RAM store is named "mem",
	// giving its symbols the conventional mem_0x<addr> spelling.
	RetSym UninitPolicy = iota
	// RetZero returns a concrete zero byte.
	RetZero
	// Fail panics: the caller configured memory that must never see an
	// uninitialized read (e.g. the interpreter's per-instruction
	// unique-space scratch).
	Fail
)

// AddressSpace is the immutable concrete backing a MapMemory may
// consult before falling back to its uninitialized-read policy. Loaders
// implement this over their mapped segments.
type AddressSpace interface {
	// ReadByte returns the concrete byte at addr and true, or ok=false
	// if addr is not backed by any segment.
	ReadByte(addr uint64) (value byte, ok bool)
}

// MapMemory is a byte-granular symbolic store.
type MapMemory struct {
	mu sync.RWMutex

	name    string
	b       *expr.Builder
	as      AddressSpace
	policy  UninitPolicy
	bytes   map[uint64]*expr.Node
}

// New creates an empty MapMemory named name (used only in generated
// symbol names for uninitialized reads), optionally backed by as.
func New(b *expr.Builder, name string, as AddressSpace, policy UninitPolicy) *MapMemory {
	return &MapMemory{
		name:   name,
		b:      b,
		as:     as,
		policy: policy,
		bytes:  make(map[uint64]*expr.Node),
	}
}

// ReadByte returns the 8-bit expression at addr, populating the map
// on first access so concrete-backed and symbolic-defaulted bytes are
// memoized identically to explicitly written ones.
func (m *MapMemory) ReadByte(addr uint64) *expr.Node {
	m.mu.RLock()
	if n, ok := m.bytes[addr]; ok {
		m.mu.RUnlock()
		return n
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.bytes[addr]; ok {
		return n
	}

	if m.as != nil {
		if v, ok := m.as.ReadByte(addr); ok {
			n := m.b.ConstU64(uint64(v), 8)
			m.bytes[addr] = n
			return n
		}
	}

	switch m.policy {
	case RetZero:
		n := m.b.ConstU64(0, 8)
		m.bytes[addr] = n
		return n
	case Fail:
		panic(fmt.Sprintf("memory[%s]: uninitialized read at 0x%x", m.name, addr))
	default:
		n := m.b.Sym(fmt.Sprintf("%s_0x%x", m.name, addr), 8)
		m.bytes[addr] = n
		return n
	}
}

// WriteByte stores an 8-bit expression at addr. It panics if value is
// not exactly 8 bits wide.
func (m *MapMemory) WriteByte(addr uint64, value *expr.Node) {
	if value.Width() != 8 {
		panic(fmt.Sprintf("memory[%s]: write_byte expects an 8-bit value, got %d", m.name, value.Width()))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytes[addr] = value
}

// Read decomposes into nBytes single-byte reads and reassembles them
// via the builder's canonicalizing Concat in the requested byte order.
func (m *MapMemory) Read(addr uint64, nBytes uint32, end Endianness) *expr.Node {
	if nBytes == 0 {
		panic(fmt.Sprintf("memory[%s]: read of zero length", m.name))
	}
	bytesRead := make([]*expr.Node, nBytes)
	for i := uint32(0); i < nBytes; i++ {
		bytesRead[i] = m.ReadByte(addr + uint64(i))
	}

	if end == BigEndian {
		// bytesRead[0] (lowest address) is the most-significant byte.
		result := bytesRead[0]
		for i := 1; i < len(bytesRead); i++ {
			result = m.b.Concat(result, bytesRead[i])
		}
		return result
	}
	// LittleEndian: bytesRead[0] (lowest address) is the least-significant
	// byte, so it must end up as the low bits of the result.
	result := bytesRead[len(bytesRead)-1]
	for i := len(bytesRead) - 2; i >= 0; i-- {
		result = m.b.Concat(result, bytesRead[i])
	}
	return result
}

// Write decomposes value into single-byte stores in the requested byte
// order. value's width must be a multiple of 8.
func (m *MapMemory) Write(addr uint64, value *expr.Node, end Endianness) {
	width := value.Width()
	if width%8 != 0 {
		panic(fmt.Sprintf("memory[%s]: write value width %d is not a multiple of 8", m.name, width))
	}
	n := width / 8
	for i := uint32(0); i < n; i++ {
		var hi, lo uint32
		if end == BigEndian {
			hi = width - 1 - 8*i
			lo = width - 8 - 8*i
		} else {
			hi = 8*i + 7
			lo = 8 * i
		}
		m.WriteByte(addr+uint64(i), m.b.Extract(value, hi, lo))
	}
}

// ReadConst is a convenience for callers that already know the read
// must resolve to a concrete value (e.g. instruction fetch); it panics
// if the composite read is not a Const node.
func (m *MapMemory) ReadConst(addr uint64, nBytes uint32, end Endianness) bvconst.BVConst {
	n := m.Read(addr, nBytes, end)
	if n.Kind() != expr.KindConst {
		panic(fmt.Sprintf("memory[%s]: expected a concrete read at 0x%x, got a symbolic expression", m.name, addr))
	}
	return n.AsConst()
}

// Clone produces a deep copy of the byte map; the backing AddressSpace
// is shared immutably.
func (m *MapMemory) Clone() *MapMemory {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := &MapMemory{
		name:   m.name,
		b:      m.b,
		as:     m.as,
		policy: m.policy,
		bytes:  make(map[uint64]*expr.Node, len(m.bytes)),
	}
	for addr, n := range m.bytes {
		out.bytes[addr] = n
	}
	return out
}
