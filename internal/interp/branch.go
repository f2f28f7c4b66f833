package interp

import (
	"fmt"

	"github.com/borzacchiello/naazgo/internal/lifter"
	"github.com/borzacchiello/naazgo/internal/solver"
	"github.com/borzacchiello/naazgo/internal/state"
)

// executeControlOp handles the seven opcodes that end a basic block:
// it always returns terminal=true, having fully populated ctx.succ.
func (I *Interpreter) executeControlOp(ctx *execContext, op lifter.PcodeOp) (bool, error) {
	switch op.Opcode {
	case lifter.OpBranch:
		return I.execBranch(ctx, op)
	case lifter.OpCBranch:
		return I.execCBranch(ctx, op)
	case lifter.OpBranchInd:
		return I.execBranchInd(ctx, op)
	case lifter.OpCall:
		return I.execCall(ctx, op)
	case lifter.OpCallInd:
		return I.execCallInd(ctx, op)
	case lifter.OpCallOther:
		return I.execCallOther(ctx, op)
	case lifter.OpReturn:
		return I.execReturn(ctx, op)
	default:
		panic(fmt.Sprintf("interp: executeControlOp: unreachable opcode %v", op.Opcode))
	}
}

func (I *Interpreter) execBranch(ctx *execContext, op lifter.PcodeOp) (bool, error) {
	target, ok := mustConstU64(resolveVarnode(ctx, op.Inputs[0]))
	if !ok {
		panic("interp: BRANCH with a non-constant target")
	}
	ctx.s.SetPC(target)
	ctx.succ.Active = append(ctx.succ.Active, ctx.s)
	return true, nil
}

// execCBranch implements conditional branching (spec §4.7): a concrete
// guard picks one of target/fallthrough outright; a symbolic guard
// either forks both directions immediately (LazySolve) or queries
// satisfiability of each direction first, forking only the surviving
// ones and adding the corresponding constraint to each. When both
// directions are produced, the fall-through successor is always
// appended before the taken one (spec §5, "the interpreter's output
// successor list for one instruction is emitted in the order the
// branches were generated — fall-through first for CBRANCH").
func (I *Interpreter) execCBranch(ctx *execContext, op lifter.PcodeOp) (bool, error) {
	target, ok := mustConstU64(resolveVarnode(ctx, op.Inputs[0]))
	if !ok {
		panic("interp: CBRANCH with a non-constant target")
	}
	guard := toBool(ctx, resolveVarnode(ctx, op.Inputs[1]))
	fallAddr := fallthroughAddr(ctx.instr)

	if guard.IsConst() {
		if guard.AsBool() {
			ctx.s.SetPC(target)
		} else {
			ctx.s.SetPC(fallAddr)
		}
		ctx.succ.Active = append(ctx.succ.Active, ctx.s)
		return true, nil
	}

	b := ctx.s.B
	notGuard := b.BoolNot(guard)

	if I.Opts.LazySolve {
		notTaken := ctx.s.Clone()

		taken := ctx.s
		taken.Solver.Add(guard)
		taken.SetPC(target)

		notTaken.Solver.Add(notGuard)
		notTaken.SetPC(fallAddr)

		ctx.succ.Active = append(ctx.succ.Active, notTaken, taken)
		return true, nil
	}

	takenSat, err := ctx.s.Solver.MayBeTrue(guard)
	if err != nil {
		return true, err
	}
	notTakenSat, err := ctx.s.Solver.MayBeTrue(notGuard)
	if err != nil {
		return true, err
	}

	switch {
	case takenSat == solver.SAT && notTakenSat == solver.SAT:
		notTaken := ctx.s.Clone()
		ctx.s.Solver.Add(guard)
		ctx.s.SetPC(target)
		notTaken.Solver.Add(notGuard)
		notTaken.SetPC(fallAddr)
		ctx.succ.Active = append(ctx.succ.Active, notTaken, ctx.s)
	case takenSat == solver.SAT:
		ctx.s.Solver.Add(guard)
		ctx.s.SetPC(target)
		ctx.succ.Active = append(ctx.succ.Active, ctx.s)
	case notTakenSat == solver.SAT:
		ctx.s.Solver.Add(notGuard)
		ctx.s.SetPC(fallAddr)
		ctx.succ.Active = append(ctx.succ.Active, ctx.s)
	}
	return true, nil
}

// execBranchInd resolves an indirect jump target, forking up to
// Opts.MaxPCFork states when it is symbolic (spec §4.7, "Symbolic PC").
func (I *Interpreter) execBranchInd(ctx *execContext, op lifter.PcodeOp) (bool, error) {
	target := resolveVarnode(ctx, op.Inputs[0])
	if addr, ok := mustConstU64(target); ok {
		ctx.s.SetPC(addr)
		ctx.succ.Active = append(ctx.succ.Active, ctx.s)
		return true, nil
	}
	ctx.succ.Active = append(ctx.succ.Active, I.forkSymbolicPC(ctx.s, target)...)
	return true, nil
}

func (I *Interpreter) execCall(ctx *execContext, op lifter.PcodeOp) (bool, error) {
	target, ok := mustConstU64(resolveVarnode(ctx, op.Inputs[0]))
	if !ok {
		panic("interp: CALL with a non-constant target")
	}
	I.pushCallFrame(ctx.s, ctx.instr)
	ctx.s.SetPC(target)
	ctx.succ.Active = append(ctx.succ.Active, ctx.s)
	return true, nil
}

func (I *Interpreter) execCallInd(ctx *execContext, op lifter.PcodeOp) (bool, error) {
	target := resolveVarnode(ctx, op.Inputs[0])
	if addr, ok := mustConstU64(target); ok {
		I.pushCallFrame(ctx.s, ctx.instr)
		ctx.s.SetPC(addr)
		ctx.succ.Active = append(ctx.succ.Active, ctx.s)
		return true, nil
	}
	for _, clone := range I.forkSymbolicPC(ctx.s, target) {
		I.pushCallFrame(clone, ctx.instr)
		ctx.succ.Active = append(ctx.succ.Active, clone)
	}
	return true, nil
}

// pushCallFrame records retAddr in both the bookkeeping stack trace and
// wherever the architecture's calling convention expects a CALL to
// leave it (the stack for x86-64, the link register for ARM32LE).
func (I *Interpreter) pushCallFrame(s *state.State, instr *lifter.Instruction) {
	retAddr := fallthroughAddr(instr)
	s.PushReturn(retAddr)
	I.Arch.SetReturn(s, s.B.ConstU64(retAddr, uint32(I.Arch.PtrSize())))
}

func (I *Interpreter) execCallOther(ctx *execContext, op lifter.PcodeOp) (bool, error) {
	sys, ok := I.syscalls[op.CallOtherNum]
	if !ok {
		ctx.s.MarkExited(309, fmt.Sprintf("unmodelled intrinsic/syscall %d", op.CallOtherNum))
		ctx.succ.Exited = append(ctx.succ.Exited, ctx.s)
		return true, nil
	}
	// the trap is one pcode op, not a CALL: there is no pushed return
	// address, so control resumes at the next instruction unless the
	// model overrides PC itself.
	ctx.s.SetPC(fallthroughAddr(ctx.instr))
	res := sys.Exec(ctx.s)
	ctx.succ.Active = append(ctx.succ.Active, res.Active...)
	ctx.succ.Exited = append(ctx.succ.Exited, res.Exited...)
	return true, nil
}

func (I *Interpreter) execReturn(ctx *execContext, op lifter.PcodeOp) (bool, error) {
	target, ok := mustConstU64(resolveVarnode(ctx, op.Inputs[0]))
	if !ok {
		panic("interp: RETURN with a symbolic target")
	}
	ctx.s.PopReturn()
	ctx.s.SetPC(target)
	ctx.succ.Active = append(ctx.succ.Active, ctx.s)
	return true, nil
}
