package arch

import (
	"github.com/borzacchiello/naazgo/internal/expr"
	"github.com/borzacchiello/naazgo/internal/memory"
	"github.com/borzacchiello/naazgo/internal/state"
)

// ARM32LE is the AAPCS (32-bit, little-endian) calling-convention
// architecture, grounded on original_source/arch/arm32LE.cpp. Unlike
// x86-64 it returns via a link register rather than a stack slot.
type ARM32LE struct {
	StackPtr uint64
	HeapPtr  uint64
	ExtBase  uint64
}

// NewARM32LE returns an ARM32LE with the original's default virtual
// address layout.
func NewARM32LE() *ARM32LE {
	return &ARM32LE{
		StackPtr: 0xcc000000,
		HeapPtr:  0xdd000000,
		ExtBase:  0x50000000,
	}
}

func (a *ARM32LE) Name() string           { return "arm32LE" }
func (a *ARM32LE) Endianness() Endianness { return memory.LittleEndian }
func (a *ARM32LE) PtrSize() uint64        { return 32 }
func (a *ARM32LE) StackBase() uint64      { return a.StackPtr }
func (a *ARM32LE) HeapBase() uint64       { return a.HeapPtr }
func (a *ARM32LE) ExtFuncBase() uint64    { return a.ExtBase }

func (a *ARM32LE) InitState(s *state.State) {
	s.RegWrite("sp", s.B.ConstU64(a.StackPtr, 32))
	s.SetHeapBase(a.HeapPtr)
	s.ExtBase = a.ExtBase
}

func (a *ARM32LE) stackPop(s *state.State) *expr.Node {
	b := s.B
	sp := s.RegRead("sp")
	val := s.ReadAt(sp, 4)
	s.RegWrite("sp", b.Add(sp, b.ConstU64(4, 32)))
	return val
}

func (a *ARM32LE) stackPush(s *state.State, val *expr.Node) {
	if val.Width() != 32 {
		panic("arch/arm32LE: invalid stack_push: expected 32-bit value")
	}
	b := s.B
	sp := b.Sub(s.RegRead("sp"), b.ConstU64(4, 32))
	s.WriteAt(sp, val)
	s.RegWrite("sp", sp)
}

func (a *ARM32LE) SetReturn(s *state.State, addr *expr.Node) {
	if addr.Width() != 32 {
		panic("arch/arm32LE: SetReturn: invalid return value width")
	}
	s.RegWrite("lr", addr)
}

func (a *ARM32LE) HandleReturn(s *state.State, succ *state.Successors) {
	retAddr := s.RegRead("lr")
	if retAddr.Kind() != expr.KindConst {
		panic("arch/arm32LE: HandleReturn: symbolic return address is unsupported")
	}
	s.PopReturn()
	s.SetPC(mustU64(retAddr))
	succ.Active = append(succ.Active, s)
}

func (a *ARM32LE) GetIntParam(cv CallConv, s *state.State, i uint32) *expr.Node {
	if cv != CallConvCDecl {
		unsupportedCallConv("arch/arm32LE", cv)
	}
	regs := []string{"r0", "r1", "r2", "r3"}
	if int(i) < len(regs) {
		return s.RegRead(regs[i])
	}
	b := s.B
	stackOff := (uint64(i) - 4) * 4
	addr := b.Add(s.RegRead("sp"), b.ConstU64(stackOff, 32))
	return s.ReadAt(addr, 4)
}

func (a *ARM32LE) SetIntParams(cv CallConv, s *state.State, values []*expr.Node) {
	if cv != CallConvCDecl {
		unsupportedCallConv("arch/arm32LE", cv)
	}
	regs := []string{"r0", "r1", "r2", "r3"}
	// stack overflow args are pushed right-to-left so arg 4 ends up at
	// the lowest address, where GetIntParam expects it
	for i := len(values) - 1; i >= len(regs); i-- {
		a.stackPush(s, values[i])
	}
	for i, val := range values {
		if i >= len(regs) {
			break
		}
		s.RegWrite(regs[i], val)
	}
}

func (a *ARM32LE) SetReturnIntValue(cv CallConv, s *state.State, val *expr.Node) {
	if cv != CallConvCDecl {
		unsupportedCallConv("arch/arm32LE", cv)
	}
	s.RegWrite("r0", s.B.Zext(val, 32))
}

func (a *ARM32LE) GetReturnIntValue(cv CallConv, s *state.State) *expr.Node {
	if cv != CallConvCDecl {
		unsupportedCallConv("arch/arm32LE", cv)
	}
	return s.RegRead("r0")
}
