// Package arch defines the Architecture contract (spec §6): the
// per-ISA knowledge the core needs but does not hard-code — pointer
// width, endianness, fixed virtual addresses, initial register state,
// return-handling, and integer calling-convention accessors. Two
// reference architectures (x86-64, ARM32LE) satisfy it, demonstrating
// it is truly architecture-neutral.
package arch

import (
	"fmt"

	"github.com/borzacchiello/naazgo/internal/expr"
	"github.com/borzacchiello/naazgo/internal/memory"
	"github.com/borzacchiello/naazgo/internal/state"
)

// Endianness mirrors memory.Endianness at the architecture boundary so
// this package does not need to import memory for just an enum.
type Endianness = memory.Endianness

// CallConv names an integer calling convention; only the System V
// AMD64 / AAPCS-style "register then stack" convention is modeled
// (spec's Non-goals exclude floating-point/vector calling-convention
// nuance).
type CallConv int

const (
	CallConvCDecl CallConv = iota
)

// Architecture is the per-ISA contract consumed by the interpreter,
// the models/linker, and CLI drivers.
type Architecture interface {
	Name() string
	Endianness() Endianness
	PtrSize() uint64 // in bits

	StackBase() uint64
	HeapBase() uint64
	ExtFuncBase() uint64

	// InitState populates the initial register file (stack pointer,
	// flag registers, etc.) for a freshly constructed State.
	InitState(s *state.State)

	// HandleReturn pops a return address (from the stack or a link
	// register, per ISA) and sets PC, appending s to succ.Active. A
	// symbolic return target is a hard failure (spec §4.7).
	HandleReturn(s *state.State, succ *state.Successors)

	// SetReturn writes a return address to wherever a CALL instruction
	// expects to find it (the stack for x86, the link register for
	// link-register ISAs — see SetReturn on each implementation for details).
	SetReturn(s *state.State, addr *expr.Node)

	GetIntParam(cv CallConv, s *state.State, i uint32) *expr.Node
	SetIntParams(cv CallConv, s *state.State, values []*expr.Node)
	SetReturnIntValue(cv CallConv, s *state.State, val *expr.Node)
	GetReturnIntValue(cv CallConv, s *state.State) *expr.Node
}

func unsupportedCallConv(component string, cv CallConv) {
	panic(fmt.Sprintf("%s: unsupported calling convention %d", component, cv))
}
