// Package x86lift is a reference lifter.Lifter for a practical subset
// of the x86-64 instruction set: integer ALU/MOV/LEA/PUSH/POP/shift
// forms, direct and indirect jumps/calls/returns, and MOVZX/MOVSX/
// CDQE/CQO. It intentionally does not model 16-bit operands, string
// instructions, MUL/IMUL/DIV/IDIV, x87/MMX/SSE, VEX-encoded
// instructions, CMOVcc/SETcc, or far control transfers; any of these
// (or any other unrecognized opcode) is reported as a lift error
// rather than silently mistranslated. GS is modeled identically to FS
// (a single flat per-thread base register), since this engine targets
// userspace binaries where both conventionally address the same
// thread-control block in different ABIs.
//
// Decoding happens in two passes (see decode.go and translate.go):
// decodeOne first classifies raw bytes into a structured insn,
// establishing the instruction's length; translate then turns that
// struct into pcode, so that RIP-relative operands can reference
// pc+length correctly.
package x86lift

import (
	"fmt"

	"github.com/borzacchiello/naazgo/internal/lifter"
)

// maxInstrLen bounds how many trailing bytes of the fetch window a
// single instruction is allowed to need; x86-64 instructions are at
// most 15 bytes architecturally, this is a generous margin.
const maxInstrLen = 16

// Lifter implements lifter.Lifter for the x86-64 subset described in
// the package doc.
type Lifter struct {
	regs map[string]lifter.Varnode
}

// New returns a ready-to-use x86-64 Lifter.
func New() *Lifter {
	return &Lifter{regs: namedRegs()}
}

// Lift decodes and translates instructions starting at pc from code
// until one ends a basic block (a branch, call, or return), per spec
// §4.7. An unsupported opcode anywhere in the block makes Lift return
// an error and no block.
func (l *Lifter) Lift(pc uint64, code []byte) (*lifter.Block, error) {
	block := &lifter.Block{Address: pc}
	offset := uint64(0)

	for {
		if int(offset) >= len(code) {
			return nil, fmt.Errorf("x86lift: ran out of bytes lifting block at 0x%x", pc)
		}
		window := code[offset:]
		if len(window) > maxInstrLen*4 {
			window = window[:maxInstrLen*4]
		}
		addr := pc + offset
		in, err := decodeOne(window, addr)
		if err != nil {
			return nil, err
		}
		ops, err := translate(in)
		if err != nil {
			return nil, err
		}
		block.Instructions = append(block.Instructions, lifter.Instruction{
			Address: addr,
			Length:  in.length,
			Ops:     ops,
		})
		offset += uint64(in.length)
		if isBlockEnd(in) {
			return block, nil
		}
	}
}

// Reg returns the Varnode backing the named register, if any.
func (l *Lifter) Reg(name string) (lifter.Varnode, bool) {
	v, ok := l.regs[name]
	return v, ok
}

// RegName returns the register name backing v, or "" if v does not
// name one of this Lifter's known registers exactly.
func (l *Lifter) RegName(v lifter.Varnode) string {
	for name, rv := range l.regs {
		if rv == v {
			return name
		}
	}
	return ""
}
