package x86lift

import "github.com/borzacchiello/naazgo/internal/lifter"

// instrBuilder accumulates the pcode ops for one instruction and hands
// out non-overlapping unique-space scratch slots, discarded by the
// interpreter once the instruction finishes (spec §4.7).
type instrBuilder struct {
	ops    []lifter.PcodeOp
	tmpOff uint64
}

func (ib *instrBuilder) newTmp(size uint32) lifter.Varnode {
	v := lifter.Varnode{Space: lifter.SpaceUnique, Offset: ib.tmpOff, Size: size}
	ib.tmpOff += uint64(size) + 8
	return v
}

func (ib *instrBuilder) emit(op lifter.Op, inputs []lifter.Varnode, out *lifter.Varnode) {
	ib.ops = append(ib.ops, lifter.PcodeOp{Opcode: op, Inputs: inputs, Output: out})
}

// bin emits a binary op producing a fresh temp of the given size.
func (ib *instrBuilder) bin(op lifter.Op, a, c lifter.Varnode, size uint32) lifter.Varnode {
	out := ib.newTmp(size)
	ib.emit(op, []lifter.Varnode{a, c}, &out)
	return out
}

// binBool emits a binary op producing a fresh one-byte Boolean temp
// (comparisons, carry/overflow predicates).
func (ib *instrBuilder) binBool(op lifter.Op, a, c lifter.Varnode) lifter.Varnode {
	out := ib.newTmp(1)
	ib.emit(op, []lifter.Varnode{a, c}, &out)
	return out
}

func (ib *instrBuilder) un(op lifter.Op, a lifter.Varnode, size uint32) lifter.Varnode {
	out := ib.newTmp(size)
	ib.emit(op, []lifter.Varnode{a}, &out)
	return out
}

func (ib *instrBuilder) unTo(op lifter.Op, a lifter.Varnode, size uint32, out lifter.Varnode) {
	ib.emit(op, []lifter.Varnode{a}, &out)
}

func (ib *instrBuilder) copyTo(src, dst lifter.Varnode) {
	ib.emit(lifter.OpCopy, []lifter.Varnode{src}, &dst)
}

func (ib *instrBuilder) zext(a lifter.Varnode, toSize uint32) lifter.Varnode {
	out := ib.newTmp(toSize)
	ib.emit(lifter.OpIntZext, []lifter.Varnode{a}, &out)
	return out
}

func (ib *instrBuilder) sext(a lifter.Varnode, toSize uint32) lifter.Varnode {
	out := ib.newTmp(toSize)
	ib.emit(lifter.OpIntSext, []lifter.Varnode{a}, &out)
	return out
}

func constVn(value uint64, size uint32) lifter.Varnode {
	return lifter.Varnode{Space: lifter.SpaceConst, Offset: value, Size: size}
}

// setFlag writes a one-byte Boolean-valued varnode into a flag
// register, going through BOOL_NEGATE(BOOL_NEGATE(x)) would be a
// no-op; writeToVarnode (internal/interp) already knows how to widen a
// Boolean write target of size 1, so flags are just ordinary outputs.
func (ib *instrBuilder) setFlag(name string, value lifter.Varnode) {
	dst := flagVarnode(name)
	ib.emit(lifter.OpCopy, []lifter.Varnode{value}, &dst)
}

func (ib *instrBuilder) readFlag(name string) lifter.Varnode { return flagVarnode(name) }
