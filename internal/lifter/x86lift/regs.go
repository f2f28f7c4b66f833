package x86lift

import "github.com/borzacchiello/naazgo/internal/lifter"

// Register-file layout: each of the 16 general-purpose registers gets
// an 8-byte slot; sub-register views (32/16/8-bit) are the low bytes
// of the same slot, matching how x86-64 actually overlaps EAX inside
// RAX. Flags follow as individual 1-byte slots (spec §4.7's varnode
// model has no notion of a packed flags word, so each condition flag
// is its own addressable byte, mirroring how the teacher's cpu_x86.go
// keeps a single packed Flags field only for its own concrete ALU —
// here every flag needs to be independently readable/writable through
// the register MapMemory).
const (
	offRAX = 0
	offRCX = 8
	offRDX = 16
	offRBX = 24
	offRSP = 32
	offRBP = 40
	offRSI = 48
	offRDI = 56
	offR8  = 64
	offR9  = 72
	offR10 = 80
	offR11 = 88
	offR12 = 96
	offR13 = 104
	offR14 = 112
	offR15 = 120

	offFSBase = 128

	offCF = 136
	offPF = 137
	offAF = 138
	offZF = 139
	offSF = 140
	offDF = 141
	offOF = 142
	offIF = 143
)

// gp64Names indexes the 16 GPR slots by their ModRM/REX-extended
// register number, for RegName / disassembly purposes.
var gp64Names = [16]string{
	"RAX", "RCX", "RDX", "RBX", "RSP", "RBP", "RSI", "RDI",
	"R8", "R9", "R10", "R11", "R12", "R13", "R14", "R15",
}

var gp64Offsets = [16]uint64{
	offRAX, offRCX, offRDX, offRBX, offRSP, offRBP, offRSI, offRDI,
	offR8, offR9, offR10, offR11, offR12, offR13, offR14, offR15,
}

// flagRegs is the full set of named single-byte condition-flag
// registers, the same eight InitState (internal/arch) zeroes.
var flagRegs = map[string]uint64{
	"CF": offCF, "PF": offPF, "AF": offAF, "ZF": offZF,
	"SF": offSF, "DF": offDF, "OF": offOF, "IF": offIF,
}

// namedRegs is the Reg()/RegName() table exposed through the Lifter
// contract: full 64-bit GPRs, the flags, and the FS segment base
// models.libc/arch use for thread-local relocations.
func namedRegs() map[string]lifter.Varnode {
	m := make(map[string]lifter.Varnode, len(gp64Names)+len(flagRegs)+1)
	for i, name := range gp64Names {
		m[name] = lifter.Varnode{Space: lifter.SpaceRegister, Offset: gp64Offsets[i], Size: 8}
	}
	for name, off := range flagRegs {
		m[name] = lifter.Varnode{Space: lifter.SpaceRegister, Offset: off, Size: 1}
	}
	m["FS_OFFSET"] = lifter.Varnode{Space: lifter.SpaceRegister, Offset: offFSBase, Size: 8}
	return m
}

// gpVarnode returns the Varnode for GPR number n (0-15, already
// REX-extended by the caller) at the given operand size in bytes (1,
// 4, or 8 — 16-bit operands are not supported, see package doc).
func gpVarnode(n int, size uint32) lifter.Varnode {
	return lifter.Varnode{Space: lifter.SpaceRegister, Offset: gp64Offsets[n], Size: size}
}

func flagVarnode(name string) lifter.Varnode {
	return lifter.Varnode{Space: lifter.SpaceRegister, Offset: flagRegs[name], Size: 1}
}
