package x86lift

import "github.com/borzacchiello/naazgo/internal/lifter"

// regOperand returns the register Varnode a ModRM rm field names at
// size bytes, when the instruction's rm operand is register-direct.
func regOperand(in *insn, size uint32) lifter.Varnode {
	return gpVarnode(in.rm, size)
}

// effectiveAddress computes the 8-byte address Varnode a ModRM memory
// operand names, emitting whatever ALU ops the base/index/disp/RIP-
// relative/segment-override combination requires (spec §4.7: loads
// and stores always go through LOAD/STORE with a value-carrying
// address operand, never a statically-offset RAM varnode, because the
// address here is only known at run time).
func effectiveAddress(ib *instrBuilder, in *insn) lifter.Varnode {
	var addr lifter.Varnode
	first := true

	add := func(v lifter.Varnode) {
		if first {
			addr = v
			first = false
			return
		}
		addr = ib.bin(lifter.OpIntAdd, addr, v, 8)
	}

	if in.ripRel {
		nextAddr := in.pc + uint64(in.length)
		target := int64(nextAddr) + in.disp
		add(constVn(uint64(target), 8))
	} else {
		if !in.noBase {
			add(gpVarnode(in.base, 8))
		}
		if !in.noIndex {
			idx := gpVarnode(in.index, 8)
			if in.scale > 1 {
				idx = ib.bin(lifter.OpIntMul, idx, constVn(uint64(in.scale), 8), 8)
			}
			add(idx)
		}
		if in.dispSize != 0 {
			add(constVn(uint64(in.disp), 8))
		}
		if first {
			// mod==00, rm names a base register that happens to be
			// absent only in the SIB "no base, no index, no disp"
			// corner case; fall back to a zero base so the address is
			// still well-formed instead of panicking on an empty sum.
			add(constVn(0, 8))
		}
	}

	if in.segFS {
		fsBase := lifter.Varnode{Space: lifter.SpaceRegister, Offset: offFSBase, Size: 8}
		addr = ib.bin(lifter.OpIntAdd, addr, fsBase, 8)
	}

	return addr
}

// loadOperand reads the instruction's rm operand (register or memory)
// at the given size, returning a Varnode holding its value.
func loadOperand(ib *instrBuilder, in *insn, size uint32) lifter.Varnode {
	if !in.isMem {
		return regOperand(in, size)
	}
	addr := effectiveAddress(ib, in)
	out := ib.newTmp(size)
	ib.emit(lifter.OpLoad, []lifter.Varnode{addr}, &out)
	return out
}

// storeOperand writes value (size bytes) into the instruction's rm
// operand, handling x86-64's partial-register-write rules when the
// target is a register (spec §4.7's write policy only covers the
// Boolean-to-byte case; the zero/merge-extension rules below are this
// lifter's own responsibility as the producer of register writes).
func storeOperand(ib *instrBuilder, in *insn, size uint32, value lifter.Varnode) {
	if in.isMem {
		addr := effectiveAddress(ib, in)
		ib.emit(lifter.OpStore, []lifter.Varnode{addr, value}, nil)
		return
	}
	writeReg(ib, in.rm, size, value)
}

// writeReg stores a size-byte value into GPR n, following x86-64's
// sub-register write semantics: a 32-bit write zero-extends into the
// full 64-bit slot; an 8-bit write merges into the low byte, leaving
// the upper 56 bits untouched; a 64-bit write replaces the slot
// outright.
func writeReg(ib *instrBuilder, n int, size uint32, value lifter.Varnode) {
	switch size {
	case 8:
		dst := gpVarnode(n, 8)
		ib.copyTo(value, dst)
	case 4:
		wide := ib.zext(value, 8)
		dst := gpVarnode(n, 8)
		ib.copyTo(wide, dst)
	case 1:
		full := gpVarnode(n, 8)
		mask := ib.bin(lifter.OpIntAnd, full, constVn(0xffffffffffffff00, 8), 8)
		widened := ib.zext(value, 8)
		merged := ib.bin(lifter.OpIntOr, mask, widened, 8)
		ib.copyTo(merged, full)
	default:
		dst := gpVarnode(n, size)
		ib.copyTo(value, dst)
	}
}
