// Package loader defines the reference AddressSpace contract consumed
// by internal/memory and internal/models (spec §6, "Address space
// contract"): a read-only concrete backing, an iterable segment list,
// a symbol table, and a relocation list. LoadELF (elf.go) is a thin,
// real reference loader over the standard library's debug/elf reader;
// BFD-grade loaders (PE, Mach-O) are out of scope and would build the
// same AddressSpace type.
package loader

import "fmt"

// Perm is a segment's access permission bitmask.
type Perm uint8

const (
	PermRead Perm = 1 << iota
	PermWrite
	PermExec
)

// SymbolType classifies an entry in the address space's symbol table.
type SymbolType int

const (
	SymFunction SymbolType = iota
	SymExtFunction
	SymLocal
	SymGlobal
	SymUnknown
)

func (t SymbolType) String() string {
	switch t {
	case SymFunction:
		return "function"
	case SymExtFunction:
		return "ext_function"
	case SymLocal:
		return "local"
	case SymGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// Symbol is a named address in the binary.
type Symbol struct {
	Addr uint64
	Name string
	Type SymbolType
}

// RelocationKind distinguishes the (currently single) relocation kind
// the core consumes: an imported-function PLT-style slot.
type RelocationKind int

const (
	RelocFunc RelocationKind = iota
)

// Relocation names a site that must be patched with the (sentinel)
// address of an imported function once the Linker resolves it.
type Relocation struct {
	SiteAddr uint64
	Name     string
	Kind     RelocationKind
}

// Segment is a contiguous mapped byte range with fixed permissions.
type Segment struct {
	Name  string
	Addr  uint64
	Data  []byte
	Perm  Perm
}

// Contains reports whether addr falls within the segment.
func (s *Segment) Contains(addr uint64) bool {
	return addr >= s.Addr && addr < s.Addr+uint64(len(s.Data))
}

// ReadByte returns the concrete byte at addr within the segment.
func (s *Segment) ReadByte(addr uint64) (byte, bool) {
	if !s.Contains(addr) {
		return 0, false
	}
	return s.Data[addr-s.Addr], true
}

// AddressSpace is the full loader contract: a concrete backing image
// (satisfying memory.AddressSpace via ReadByte) plus the segment,
// symbol, and relocation metadata the linker and debugger need. It
// accumulates symbols at the same address rather than discarding
// earlier registrations (spec §9 Open Question, resolved in favor of
// accumulation).
type AddressSpace struct {
	segments    []*Segment
	symbols     map[uint64][]Symbol
	relocations []Relocation
}

// New creates an empty AddressSpace.
func New() *AddressSpace {
	return &AddressSpace{symbols: make(map[uint64][]Symbol)}
}

// RegisterSegment appends a mapped segment and returns it.
func (as *AddressSpace) RegisterSegment(name string, addr uint64, data []byte, perm Perm) *Segment {
	s := &Segment{Name: name, Addr: addr, Data: data, Perm: perm}
	as.segments = append(as.segments, s)
	return s
}

// Segments returns every registered segment in registration order.
func (as *AddressSpace) Segments() []*Segment { return as.segments }

// ReadByte implements memory.AddressSpace: the concrete byte at addr,
// or ok=false if no segment backs it.
func (as *AddressSpace) ReadByte(addr uint64) (byte, bool) {
	for _, s := range as.segments {
		if s.Contains(addr) {
			return s.ReadByte(addr)
		}
	}
	return 0, false
}

// GetRef returns the backing slice at addr, truncated to the
// containing segment's remainder — used by the interpreter's
// instruction-fetch path to hand the lifter a contiguous byte window.
func (as *AddressSpace) GetRef(addr uint64) ([]byte, bool) {
	for _, s := range as.segments {
		if s.Contains(addr) {
			return s.Data[addr-s.Addr:], true
		}
	}
	return nil, false
}

// RegisterSymbol accumulates a symbol at addr; addresses may carry
// more than one symbol (aliases, thunks), so this never overwrites a
// prior registration at the same address.
func (as *AddressSpace) RegisterSymbol(addr uint64, name string, typ SymbolType) {
	as.symbols[addr] = append(as.symbols[addr], Symbol{Addr: addr, Name: name, Type: typ})
}

// SymbolAt returns every symbol registered at addr.
func (as *AddressSpace) SymbolAt(addr uint64) []Symbol { return as.symbols[addr] }

// Symbols returns the full address-to-symbols map. Callers must not
// mutate it.
func (as *AddressSpace) Symbols() map[uint64][]Symbol { return as.symbols }

// RegisterRelocation appends a relocation entry.
func (as *AddressSpace) RegisterRelocation(r Relocation) {
	as.relocations = append(as.relocations, r)
}

// Relocations returns every registered relocation.
func (as *AddressSpace) Relocations() []Relocation { return as.relocations }

// String renders a short human summary of the segment, symbol and
// relocation counts.
func (as *AddressSpace) String() string {
	return fmt.Sprintf("AddressSpace{segments=%d symbols=%d relocations=%d}",
		len(as.segments), len(as.symbols), len(as.relocations))
}
