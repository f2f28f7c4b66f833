package interp

import (
	"fmt"

	"github.com/borzacchiello/naazgo/internal/expr"
	"github.com/borzacchiello/naazgo/internal/lifter"
	"github.com/borzacchiello/naazgo/internal/memory"
)

// resolveVarnode reads the value a Varnode currently names, per its
// address space (spec §4.7's varnode-resolution rule).
func resolveVarnode(ctx *execContext, v lifter.Varnode) *expr.Node {
	switch v.Space {
	case lifter.SpaceConst:
		return ctx.s.B.ConstU64(v.Offset, v.Size*8)
	case lifter.SpaceRegister:
		return ctx.s.RegReadOffset(v.Offset, v.Size)
	case lifter.SpaceRAM:
		return ctx.s.Read(v.Offset, v.Size)
	case lifter.SpaceUnique:
		return ctx.tmp.Read(v.Offset, v.Size, memory.LittleEndian)
	default:
		panic(fmt.Sprintf("interp: unknown varnode space %v", v.Space))
	}
}

// writeToVarnode stores value into the storage v names. A Boolean value
// targeting a 1-byte varnode is widened to a bit-vector and zero-extended
// first (spec §4.7, "Write policy"); any other width mismatch is a hard
// failure.
func writeToVarnode(ctx *execContext, v lifter.Varnode, value *expr.Node) {
	if value.IsBool() {
		if v.Size != 1 {
			panic(fmt.Sprintf("interp: boolean write to a %d-byte varnode", v.Size))
		}
		value = ctx.s.B.Zext(ctx.s.B.BoolToBV(value), 8)
	} else if value.Width() != v.Size*8 {
		panic(fmt.Sprintf("interp: write width mismatch: value is %d bits, varnode is %d bytes", value.Width(), v.Size))
	}

	switch v.Space {
	case lifter.SpaceRegister:
		ctx.s.RegWriteOffset(v.Offset, value)
	case lifter.SpaceRAM:
		ctx.s.Write(v.Offset, value)
	case lifter.SpaceUnique:
		ctx.tmp.Write(v.Offset, value, memory.LittleEndian)
	default:
		panic(fmt.Sprintf("interp: cannot write to varnode space %v", v.Space))
	}
}

// toBool coerces a bit-vector condition operand to Boolean (x != 0); a
// node that is already Boolean-kinded is returned unchanged.
func toBool(ctx *execContext, x *expr.Node) *expr.Node {
	if x.IsBool() {
		return x
	}
	b := ctx.s.B
	return b.BoolNot(b.Eq(x, b.ConstU64(0, x.Width())))
}

// signBit extracts the most significant bit of x as a 1-bit value.
func signBit(ctx *execContext, x *expr.Node) *expr.Node {
	return ctx.s.B.Extract(x, x.Width()-1, x.Width()-1)
}
