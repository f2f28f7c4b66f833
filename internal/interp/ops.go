package interp

import (
	"fmt"

	"github.com/borzacchiello/naazgo/internal/expr"
	"github.com/borzacchiello/naazgo/internal/lifter"
)

// executeOp dispatches one pcode op. It returns terminal=true once the
// op has decided ctx.succ (a control-flow op); every other op writes
// its result and returns false so the instruction loop continues.
func (I *Interpreter) executeOp(ctx *execContext, op lifter.PcodeOp) (bool, error) {
	switch op.Opcode {
	case lifter.OpBranch, lifter.OpCBranch, lifter.OpBranchInd,
		lifter.OpCall, lifter.OpCallInd, lifter.OpCallOther, lifter.OpReturn:
		return I.executeControlOp(ctx, op)
	}

	b := ctx.s.B
	in := func(i int) *expr.Node { return resolveVarnode(ctx, op.Inputs[i]) }

	var result *expr.Node
	switch op.Opcode {
	case lifter.OpCopy:
		result = in(0)
	case lifter.OpLoad:
		result = ctx.s.ReadAt(in(0), op.Output.Size)
	case lifter.OpStore:
		ctx.s.WriteAt(in(0), in(1))
		return false, nil

	case lifter.OpIntAdd:
		result = b.Add(in(0), in(1))
	case lifter.OpIntSub:
		result = b.Sub(in(0), in(1))
	case lifter.OpIntMul:
		result = b.Mul(in(0), in(1))
	case lifter.OpIntSDiv:
		result = b.SDiv(in(0), in(1))
	case lifter.OpIntUDiv:
		result = b.UDiv(in(0), in(1))
	case lifter.OpIntSRem:
		result = b.SRem(in(0), in(1))
	case lifter.OpIntURem:
		result = b.URem(in(0), in(1))
	case lifter.OpIntAnd:
		result = b.And(in(0), in(1))
	case lifter.OpIntOr:
		result = b.Or(in(0), in(1))
	case lifter.OpIntXor:
		result = b.Xor(in(0), in(1))
	case lifter.OpIntLeft:
		result = b.Shl(in(0), in(1))
	case lifter.OpIntRight:
		result = b.LShr(in(0), in(1))
	case lifter.OpIntSRight:
		result = b.AShr(in(0), in(1))

	case lifter.OpIntEqual:
		result = b.Eq(in(0), in(1))
	case lifter.OpIntNotEqual:
		result = b.BoolNot(b.Eq(in(0), in(1)))
	case lifter.OpIntSLess:
		result = b.Slt(in(0), in(1))
	case lifter.OpIntULess:
		result = b.Ult(in(0), in(1))
	case lifter.OpIntSLessEqual:
		result = b.Sle(in(0), in(1))
	case lifter.OpIntULessEqual:
		result = b.Ule(in(0), in(1))

	case lifter.OpIntCarry:
		a, c := in(0), in(1)
		sum := b.Add(a, c)
		result = b.Ult(sum, a)
	case lifter.OpIntSCarry:
		a, c := in(0), in(1)
		sum := b.Add(a, c)
		sameSign := b.Eq(signBit(ctx, a), signBit(ctx, c))
		sumDiffers := b.BoolNot(b.Eq(signBit(ctx, sum), signBit(ctx, a)))
		result = b.BoolAnd(sameSign, sumDiffers)
	case lifter.OpIntSBorrow:
		a, c := in(0), in(1)
		diff := b.Sub(a, c)
		signsDiffer := b.BoolNot(b.Eq(signBit(ctx, a), signBit(ctx, c)))
		resultDiffers := b.BoolNot(b.Eq(signBit(ctx, diff), signBit(ctx, a)))
		result = b.BoolAnd(signsDiffer, resultDiffers)

	case lifter.OpIntNegate:
		result = b.Not(in(0))
	case lifter.OpInt2Comp:
		result = b.Neg(in(0))
	case lifter.OpIntZext:
		result = b.Zext(in(0), op.Output.Size*8)
	case lifter.OpIntSext:
		result = b.Sext(in(0), op.Output.Size*8)
	case lifter.OpIntITE:
		result = b.ITE(toBool(ctx, in(0)), in(1), in(2))

	case lifter.OpBoolNegate:
		result = b.BoolNot(in(0))
	case lifter.OpBoolAnd:
		result = b.BoolAnd(in(0), in(1))
	case lifter.OpBoolOr:
		result = b.BoolOr(in(0), in(1))
	case lifter.OpBoolXor:
		a, c := in(0), in(1)
		result = b.BoolOr(b.BoolAnd(a, b.BoolNot(c)), b.BoolAnd(b.BoolNot(a), c))

	case lifter.OpPiece:
		result = b.Concat(in(0), in(1))
	case lifter.OpSubpiece:
		shiftBytes := op.Inputs[1].Offset
		shifted := b.LShr(in(0), b.ConstU64(shiftBytes*8, in(0).Width()))
		result = b.Extract(shifted, op.Output.Size*8-1, 0)

	case lifter.OpFloatAdd, lifter.OpFloatSub, lifter.OpFloatMul, lifter.OpFloatDiv,
		lifter.OpFloatNeg, lifter.OpFloatEqual, lifter.OpFloatLess, lifter.OpFloatNaN:
		result = I.executeFloatOp(ctx, op, in)
	case lifter.OpFloatInt2Float:
		outFmt := formatForSize(op.Output.Size)
		fp := b.IntToFP(in(0), outFmt, true)
		result = b.FPToBV(fp)
	case lifter.OpFloatFloat2Float:
		inFmt := formatForSize(op.Inputs[0].Size)
		outFmt := formatForSize(op.Output.Size)
		fp := b.FPConvert(b.BVToFP(in(0), inFmt), outFmt)
		result = b.FPToBV(fp)

	default:
		panic(fmt.Sprintf("interp: unimplemented pcode opcode %v", op.Opcode))
	}

	if op.Output != nil {
		writeToVarnode(ctx, *op.Output, result)
	}
	return false, nil
}

// executeFloatOp handles the arithmetic/comparison FLOAT_* ops, which
// all need their bit-vector-stored operands reinterpreted as floating
// point before computing and reinterpreted back before storing (RAM and
// registers only ever hold bit-vector bytes).
func (I *Interpreter) executeFloatOp(ctx *execContext, op lifter.PcodeOp, in func(int) *expr.Node) *expr.Node {
	b := ctx.s.B
	format := formatForSize(op.Inputs[0].Size)
	fpIn := func(i int) *expr.Node { return b.BVToFP(in(i), format) }

	switch op.Opcode {
	case lifter.OpFloatAdd:
		return b.FPToBV(b.FPAdd(fpIn(0), fpIn(1)))
	case lifter.OpFloatSub:
		return b.FPToBV(b.FPAdd(fpIn(0), b.FPNeg(fpIn(1))))
	case lifter.OpFloatMul:
		return b.FPToBV(b.FPMul(fpIn(0), fpIn(1)))
	case lifter.OpFloatDiv:
		return b.FPToBV(b.FPDiv(fpIn(0), fpIn(1)))
	case lifter.OpFloatNeg:
		return b.FPToBV(b.FPNeg(fpIn(0)))
	case lifter.OpFloatEqual:
		return b.FPEq(fpIn(0), fpIn(1))
	case lifter.OpFloatLess:
		return b.FPLt(fpIn(0), fpIn(1))
	case lifter.OpFloatNaN:
		return b.FPIsNaN(fpIn(0))
	default:
		panic(fmt.Sprintf("interp: executeFloatOp: unreachable opcode %v", op.Opcode))
	}
}

func formatForSize(sizeBytes uint32) expr.FPFormat {
	switch sizeBytes {
	case 4:
		return expr.FPFormatSingle
	case 8:
		return expr.FPFormatDouble
	default:
		panic(fmt.Sprintf("interp: unsupported floating-point width: %d bytes", sizeBytes))
	}
}
