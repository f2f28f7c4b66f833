package arch

import (
	"github.com/borzacchiello/naazgo/internal/expr"
	"github.com/borzacchiello/naazgo/internal/memory"
	"github.com/borzacchiello/naazgo/internal/state"
)

// X86_64 is the System V AMD64 calling-convention architecture,
// grounded on original_source/arch/x86_64.cpp.
type X86_64 struct {
	StackPtr    uint64
	HeapPtr     uint64
	ExtBase     uint64
	FSBase      uint64
}

// NewX86_64 returns an X86_64 with the original's default virtual
// address layout.
func NewX86_64() *X86_64 {
	return &X86_64{
		StackPtr: 0xc00000000,
		HeapPtr:  0xd00000000,
		ExtBase:  0x4000000000,
		FSBase:   0x6000000000,
	}
}

func (a *X86_64) Name() string           { return "x86_64" }
func (a *X86_64) Endianness() Endianness { return memory.LittleEndian }
func (a *X86_64) PtrSize() uint64        { return 64 }
func (a *X86_64) StackBase() uint64      { return a.StackPtr }
func (a *X86_64) HeapBase() uint64       { return a.HeapPtr }
func (a *X86_64) ExtFuncBase() uint64    { return a.ExtBase }

func (a *X86_64) InitState(s *state.State) {
	b := s.B
	s.RegWrite("RSP", b.ConstU64(a.StackPtr, 64))
	s.RegWrite("FS_OFFSET", b.ConstU64(a.FSBase, 64))
	for _, flag := range []string{"PF", "AF", "ZF", "SF", "IF", "DF", "OF", "CF"} {
		s.RegWrite(flag, b.ConstU64(0, 8))
	}
	s.SetHeapBase(a.HeapPtr)
	s.ExtBase = a.ExtBase
}

func (a *X86_64) stackPop(s *state.State) *expr.Node {
	b := s.B
	sp := s.RegRead("RSP")
	val := s.ReadAt(sp, 8)
	s.RegWrite("RSP", b.Add(sp, b.ConstU64(8, 64)))
	return val
}

func (a *X86_64) stackPush(s *state.State, val *expr.Node) {
	if val.Width() != 64 {
		panic("arch/x86_64: invalid stack_push: expected 64-bit value")
	}
	b := s.B
	sp := b.Sub(s.RegRead("RSP"), b.ConstU64(8, 64))
	s.WriteAt(sp, val)
	s.RegWrite("RSP", sp)
}

func (a *X86_64) SetReturn(s *state.State, addr *expr.Node) {
	a.stackPush(s, addr)
}

func (a *X86_64) HandleReturn(s *state.State, succ *state.Successors) {
	retAddr := a.stackPop(s)
	if retAddr.Kind() != expr.KindConst {
		panic("arch/x86_64: HandleReturn: symbolic return address is unsupported")
	}
	s.PopReturn()
	s.SetPC(mustU64(retAddr))
	succ.Active = append(succ.Active, s)
}

func (a *X86_64) GetIntParam(cv CallConv, s *state.State, i uint32) *expr.Node {
	if cv != CallConvCDecl {
		unsupportedCallConv("arch/x86_64", cv)
	}
	regs := []string{"RDI", "RSI", "RDX", "RCX", "R8", "R9"}
	if int(i) < len(regs) {
		return s.RegRead(regs[i])
	}
	b := s.B
	stackOff := (uint64(i) + 1 - 6) * 8
	addr := b.Add(s.RegRead("RSP"), b.ConstU64(stackOff, 64))
	return s.ReadAt(addr, 8)
}

func (a *X86_64) SetIntParams(cv CallConv, s *state.State, values []*expr.Node) {
	if cv != CallConvCDecl {
		unsupportedCallConv("arch/x86_64", cv)
	}
	regs := []string{"RDI", "RSI", "RDX", "RCX", "R8", "R9"}
	// stack overflow args are pushed right-to-left so that, once a CALL
	// pushes the return address on top, arg 6 sits at RSP+8
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

func (a *X86_64) SetReturnIntValue(cv CallConv, s *state.State, val *expr.Node) {
	if cv != CallConvCDecl {
		unsupportedCallConv("arch/x86_64", cv)
	}
	s.RegWrite("RAX", s.B.Zext(val, 64))
}

func (a *X86_64) GetReturnIntValue(cv CallConv, s *state.State) *expr.Node {
	if cv != CallConvCDecl {
		unsupportedCallConv("arch/x86_64", cv)
	}
	return s.RegRead("RAX")
}

func mustU64(n *expr.Node) uint64 {
	if n.Kind() != expr.KindConst {
		panic("arch: expected a concrete address")
	}
	v, err := n.AsConst().AsU64()
	if err != nil {
		panic("arch: " + err.Error())
	}
	return v
}
