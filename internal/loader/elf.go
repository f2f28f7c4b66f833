package loader

import (
	"debug/elf"
	"fmt"

	"golang.org/x/sys/unix"
)

// pageSize is queried from the host via golang.org/x/sys/unix the way
// the teacher's page-aligned MMIO regions do, purely to round segment
// sizes the same way a real loader's mmap-backed image would.
func pageSize() uint64 {
	sz := unix.Getpagesize()
	if sz <= 0 {
		return 4096
	}
	return uint64(sz)
}

func alignUp(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

// LoadELF parses path with the standard library's debug/elf reader and
// builds an AddressSpace from its PT_LOAD segments, .dynsym/.symtab
// entries, and PLT-bound relocations. It is a deliberately thin
// reference loader (spec §5.12): real deployments can swap in a
// fuller BFD-style loader behind the same AddressSpace type.
func LoadELF(path string) (*AddressSpace, *elf.File, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loader: open %s: %w", path, err)
	}

	as := New()
	page := pageSize()

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		size := alignUp(prog.Memsz, page)
		data := make([]byte, size)
		buf := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(buf, 0); err != nil && prog.Filesz > 0 {
			return nil, nil, fmt.Errorf("loader: read segment at 0x%x: %w", prog.Vaddr, err)
		}
		copy(data, buf)

		perm := Perm(0)
		if prog.Flags&elf.PF_R != 0 {
			perm |= PermRead
		}
		if prog.Flags&elf.PF_W != 0 {
			perm |= PermWrite
		}
		if prog.Flags&elf.PF_X != 0 {
			perm |= PermExec
		}
		as.RegisterSegment(fmt.Sprintf("LOAD@0x%x", prog.Vaddr), prog.Vaddr, data, perm)
	}

	registerSymbols(as, f)
	registerRelocations(as, f)

	return as, f, nil
}

func registerSymbols(as *AddressSpace, f *elf.File) {
	for _, syms := range [][]elf.Symbol{symbolsOf(f, false), symbolsOf(f, true)} {
		for _, s := range syms {
			if s.Name == "" || s.Value == 0 {
				continue
			}
			typ := classifySymbol(s)
			as.RegisterSymbol(s.Value, s.Name, typ)
		}
	}
}

func symbolsOf(f *elf.File, dynamic bool) []elf.Symbol {
	var syms []elf.Symbol
	var err error
	if dynamic {
		syms, err = f.DynamicSymbols()
	} else {
		syms, err = f.Symbols()
	}
	if err != nil {
		return nil
	}
	return syms
}

func classifySymbol(s elf.Symbol) SymbolType {
	switch elf.ST_TYPE(s.Info) {
	case elf.STT_FUNC:
		if s.Section == elf.SHN_UNDEF {
			return SymExtFunction
		}
		return SymFunction
	case elf.STT_OBJECT:
		if elf.ST_BIND(s.Info) == elf.STB_GLOBAL {
			return SymGlobal
		}
		return SymLocal
	default:
		return SymUnknown
	}
}

func registerRelocations(as *AddressSpace, f *elf.File) {
	dynSyms, err := f.DynamicSymbols()
	if err != nil {
		return
	}
	for _, sec := range f.Sections {
		if sec.Type != elf.SHT_RELA && sec.Type != elf.SHT_REL {
			continue
		}
		rels, err := relocationEntries(f, sec)
		if err != nil {
			continue
		}
		for _, r := range rels {
			if int(r.symIdx) >= len(dynSyms) || r.symIdx == 0 {
				continue
			}
			sym := dynSyms[r.symIdx]
			if sym.Name == "" {
				continue
			}
			as.RegisterRelocation(Relocation{SiteAddr: r.offset, Name: sym.Name, Kind: RelocFunc})
		}
	}
}

type rawReloc struct {
	offset uint64
	symIdx uint32
}

// relocationEntries decodes the raw fields of a rela/rel section
// without depending on architecture-specific reloc-type constants,
// since the core only needs the site address and symbol index.
func relocationEntries(f *elf.File, sec *elf.Section) ([]rawReloc, error) {
	data, err := sec.Data()
	if err != nil {
		return nil, err
	}
	is64 := f.Class == elf.ELFCLASS64
	entSize := 16
	if sec.Type == elf.SHT_RELA && is64 {
		entSize = 24
	} else if sec.Type == elf.SHT_REL && is64 {
		entSize = 16
	} else if !is64 {
		entSize = 8
		if sec.Type == elf.SHT_RELA {
			entSize = 12
		}
	}
	var out []rawReloc
	byteOrder := f.ByteOrder
	for off := 0; off+entSize <= len(data); off += entSize {
		entry := data[off : off+entSize]
		var r rawReloc
		if is64 {
			r.offset = byteOrder.Uint64(entry[0:8])
			info := byteOrder.Uint64(entry[8:16])
			r.symIdx = uint32(info >> 32)
		} else {
			r.offset = uint64(byteOrder.Uint32(entry[0:4]))
			info := byteOrder.Uint32(entry[4:8])
			r.symIdx = info >> 8
		}
		out = append(out, r)
	}
	return out, nil
}
