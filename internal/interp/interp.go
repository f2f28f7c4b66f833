// Package interp implements the IR instruction interpreter (spec
// §4.7): it lifts one basic block at a time via the configured
// lifter.Lifter, executes each pcode-like op against a state's
// registers/RAM/unique scratch through the expression builder, and
// returns the resulting successor states — forking on symbolic
// branches and symbolic indirect/PC targets.
package interp

import (
	"fmt"

	"github.com/borzacchiello/naazgo/internal/arch"
	"github.com/borzacchiello/naazgo/internal/expr"
	"github.com/borzacchiello/naazgo/internal/lifter"
	"github.com/borzacchiello/naazgo/internal/memory"
	"github.com/borzacchiello/naazgo/internal/state"
)

// maxInstrFetch bounds a single instruction-fetch window; real
// instructions are much shorter, this is just generous enough that a
// lifter never needs a second fetch to decode one block.
const maxInstrFetch = 4096

// Syscall is the interface a platform syscall model satisfies (spec
// §4.9, "CALLOTHER: ... dispatch to the platform's syscall model by
// number"). It lives here rather than in internal/models to avoid an
// import cycle the same way state.Model does.
type Syscall interface {
	Name() string
	Exec(s *state.State) state.Successors
}

// Options are the interpreter's configurable knobs (spec §4.7 and the
// "Lazy-solving CBRANCH mode" / symbolic-PC-fork-bound supplements).
type Options struct {
	// LazySolve, when true, makes CBRANCH produce both successors
	// without querying the solver; infeasible paths are expected to be
	// pruned later by a satisfiability check at the scheduler/driver
	// level instead of eagerly here.
	LazySolve bool

	// MaxPCFork bounds how many concrete values a symbolic BRANCHIND
	// or CALLIND target is forked into.
	// Defaults to 256 per spec §4.7.
	MaxPCFork int
}

// DefaultOptions returns the spec's documented defaults.
func DefaultOptions() Options {
	return Options{LazySolve: false, MaxPCFork: 256}
}

// Interpreter steps one State across one basic block.
type Interpreter struct {
	Arch     arch.Architecture
	Opts     Options
	syscalls map[uint64]Syscall
}

// New creates an Interpreter bound to arch a with the given options.
func New(a arch.Architecture, opts Options) *Interpreter {
	return &Interpreter{Arch: a, Opts: opts, syscalls: make(map[uint64]Syscall)}
}

// RegisterSyscall installs the model invoked when a CALLOTHER op names
// num as its intrinsic/syscall number.
func (I *Interpreter) RegisterSyscall(num uint64, sys Syscall) {
	I.syscalls[num] = sys
}

// execContext carries the per-instruction-call state the op dispatcher
// needs: the state being stepped, its per-instruction unique-space
// scratch memory (discarded between instructions per spec §4.7), the
// instruction being executed (for fallthrough-address computation),
// and the outflow successor lists being accumulated.
type execContext struct {
	s     *state.State
	tmp   *memory.MapMemory
	instr *lifter.Instruction
	succ  *state.Successors
}

// ExecuteBasicBlock steps s across one basic block: if s.PC() is a
// registered linked-function sentinel, the model runs instead of
// lifting bytes. Otherwise the block at s.PC() is lifted and its
// instructions executed in order until a control-flow op ends the
// block, producing zero or more successor states.
func (I *Interpreter) ExecuteBasicBlock(s *state.State) (state.Successors, error) {
	if model := s.LinkedModel(s.PC()); model != nil {
		return model.Exec(s), nil
	}

	code, ok := s.GetCodeAt(s.PC(), maxInstrFetch)
	if !ok {
		panic(fmt.Sprintf("interp: unable to fetch code at 0x%x", s.PC()))
	}

	block, err := s.Lifter.Lift(s.PC(), code)
	if err != nil {
		return state.Successors{}, fmt.Errorf("interp: lift at 0x%x: %w", s.PC(), err)
	}

	var succ state.Successors
	for i := range block.Instructions {
		instr := &block.Instructions[i]
		s.SetPC(instr.Address)

		terminal, err := I.executeInstruction(s, instr, &succ)
		if err != nil {
			return succ, err
		}
		if terminal {
			return succ, nil
		}
	}
	panic("interp: block did not end in a control-flow op")
}

// executeInstruction runs every pcode op of instr in order over a
// fresh unique-space scratch memory. It returns terminal=true once a
// control-flow op (branch/call/return/callother) has decided the
// successor set; ALU/data ops never terminate.
func (I *Interpreter) executeInstruction(s *state.State, instr *lifter.Instruction, succ *state.Successors) (bool, error) {
	ctx := &execContext{
		s:     s,
		tmp:   memory.New(s.B, "unique", nil, memory.Fail),
		instr: instr,
		succ:  succ,
	}
	for _, op := range instr.Ops {
		terminal, err := I.executeOp(ctx, op)
		if err != nil {
			return terminal, err
		}
		if terminal {
			return true, nil
		}
	}
	return false, nil
}

// fallthroughAddr is the address of the machine instruction following
// instr, used as CALL's pushed return address and CBRANCH's
// not-taken target.
func fallthroughAddr(instr *lifter.Instruction) uint64 {
	return instr.Address + uint64(instr.Length)
}

func mustConstU64(n *expr.Node) (uint64, bool) {
	if n.Kind() != expr.KindConst {
		return 0, false
	}
	v, err := n.AsConst().AsU64()
	if err != nil {
		return 0, false
	}
	return v, true
}

// forkSymbolicPC evaluates pcExpr to up to MaxPCFork distinct
// satisfying values under s's path condition and returns one cloned
// successor per value, each with the constraint pc == v_i added (spec
// §4.7, "Symbolic PC").
func (I *Interpreter) forkSymbolicPC(s *state.State, pcExpr *expr.Node) []*state.State {
	vals, ok := s.Solver.EvaluateUpto(pcExpr, I.Opts.MaxPCFork)
	if !ok {
		return nil
	}
	out := make([]*state.State, 0, len(vals))
	for _, v := range vals {
		clone := s.Clone()
		u, err := v.AsU64()
		if err != nil {
			continue
		}
		clone.Solver.Add(clone.B.Eq(pcExpr, clone.B.Const(v)))
		clone.SetPC(u)
		out = append(out, clone)
	}
	return out
}
