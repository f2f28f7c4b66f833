package arch

import (
	"testing"

	"github.com/borzacchiello/naazgo/internal/expr"
	"github.com/borzacchiello/naazgo/internal/lifter"
	"github.com/borzacchiello/naazgo/internal/lifter/x86lift"
	"github.com/borzacchiello/naazgo/internal/loader"
	"github.com/borzacchiello/naazgo/internal/state"
)

func newX86State(t *testing.T) (*X86_64, *state.State) {
	t.Helper()
	b := expr.NewBuilder()
	a := NewX86_64()
	as := loader.New()
	as.RegisterSegment("stack", a.StackPtr-0x8000, make([]byte, 0x10000), loader.PermRead|loader.PermWrite)
	s := state.New(b, as, x86lift.New(), nil, 0x1000)
	a.InitState(s)
	return a, s
}

func TestX86InitState(t *testing.T) {
	a, s := newX86State(t)
	rsp, err := s.RegRead("RSP").AsConst().AsU64()
	if err != nil {
		t.Fatal(err)
	}
	if rsp != a.StackPtr {
		t.Fatalf("RSP = 0x%x, want 0x%x", rsp, a.StackPtr)
	}
	for _, flag := range []string{"CF", "ZF", "SF", "OF"} {
		v, err := s.RegRead(flag).AsConst().AsU64()
		if err != nil || v != 0 {
			t.Fatalf("flag %s not zero-initialized", flag)
		}
	}
}

func TestX86SetReturnHandleReturn(t *testing.T) {
	a, s := newX86State(t)
	rsp0, _ := s.RegRead("RSP").AsConst().AsU64()

	a.SetReturn(s, s.B.ConstU64(0x401234, 64))
	rsp1, _ := s.RegRead("RSP").AsConst().AsU64()
	if rsp1 != rsp0-8 {
		t.Fatalf("SetReturn must push one pointer: RSP 0x%x -> 0x%x", rsp0, rsp1)
	}

	s.PushReturn(0x401234)
	var succ state.Successors
	a.HandleReturn(s, &succ)

	if s.PC() != 0x401234 {
		t.Fatalf("PC after return = 0x%x, want 0x401234", s.PC())
	}
	rsp2, _ := s.RegRead("RSP").AsConst().AsU64()
	if rsp2 != rsp0 {
		t.Fatalf("RSP not restored after return: 0x%x != 0x%x", rsp2, rsp0)
	}
	if len(succ.Active) != 1 || succ.Active[0] != s {
		t.Fatalf("HandleReturn must append the state to Active")
	}
	if len(s.StackTrace()) != 0 {
		t.Fatalf("stack trace not popped")
	}
}

func TestX86HandleReturnSymbolicPanics(t *testing.T) {
	a, s := newX86State(t)
	sp, _ := s.RegRead("RSP").AsConst().AsU64()
	s.Write(sp-8, s.B.Sym("ret", 64))
	s.RegWrite("RSP", s.B.ConstU64(sp-8, 64))

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a symbolic return address panic")
		}
	}()
	var succ state.Successors
	a.HandleReturn(s, &succ)
}

func TestX86StackPushWidthChecked(t *testing.T) {
	a, s := newX86State(t)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a width panic on a 32-bit push")
		}
	}()
	a.SetReturn(s, s.B.ConstU64(0x1234, 32))
}

func TestX86CallConvRoundTrip(t *testing.T) {
	a, s := newX86State(t)
	b := s.B

	vals := make([]*expr.Node, 8)
	for i := range vals {
		vals[i] = b.ConstU64(uint64(0x100+i), 64)
	}
	a.SetIntParams(CallConvCDecl, s, vals)

	for i := 0; i < 6; i++ {
		got, err := a.GetIntParam(CallConvCDecl, s, uint32(i)).AsConst().AsU64()
		if err != nil {
			t.Fatal(err)
		}
		if got != uint64(0x100+i) {
			t.Fatalf("register param %d = 0x%x, want 0x%x", i, got, 0x100+i)
		}
	}

	ret := b.ConstU64(0x7f, 32)
	a.SetReturnIntValue(CallConvCDecl, s, ret)
	got, err := a.GetReturnIntValue(CallConvCDecl, s).AsConst().AsU64()
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x7f {
		t.Fatalf("return value = 0x%x, want 0x7f (zero-extended into RAX)", got)
	}
}

// armLifter is a minimal register-name table standing in for an ARM
// lifter, which this module does not ship; the architecture contract
// only needs Reg lookups.
type armLifter struct{ regs map[string]lifter.Varnode }

func newARMLifter() *armLifter {
	regs := make(map[string]lifter.Varnode)
	names := []string{
		"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7",
		"r8", "r9", "r10", "r11", "r12", "sp", "lr", "pc",
	}
	for i, name := range names {
		regs[name] = lifter.Varnode{Space: lifter.SpaceRegister, Offset: uint64(i * 4), Size: 4}
	}
	return &armLifter{regs: regs}
}

func (l *armLifter) Lift(pc uint64, code []byte) (*lifter.Block, error) {
	panic("armLifter: decoding is not implemented")
}
func (l *armLifter) Reg(name string) (lifter.Varnode, bool) {
	v, ok := l.regs[name]
	return v, ok
}
func (l *armLifter) RegName(lifter.Varnode) string { return "" }

func newARMState(t *testing.T) (*ARM32LE, *state.State) {
	t.Helper()
	b := expr.NewBuilder()
	a := NewARM32LE()
	as := loader.New()
	as.RegisterSegment("stack", a.StackPtr-0x8000, make([]byte, 0x10000), loader.PermRead|loader.PermWrite)
	s := state.New(b, as, newARMLifter(), nil, 0x8000)
	a.InitState(s)
	return a, s
}

func TestARMReturnsThroughLinkRegister(t *testing.T) {
	a, s := newARMState(t)
	sp0, _ := s.RegRead("sp").AsConst().AsU64()

	a.SetReturn(s, s.B.ConstU64(0x8888, 32))
	sp1, _ := s.RegRead("sp").AsConst().AsU64()
	if sp1 != sp0 {
		t.Fatalf("SetReturn on ARM must use lr, not the stack")
	}

	var succ state.Successors
	a.HandleReturn(s, &succ)
	if s.PC() != 0x8888 {
		t.Fatalf("PC after return = 0x%x, want 0x8888", s.PC())
	}
}

func TestARMCallConvUsesFourRegisters(t *testing.T) {
	a, s := newARMState(t)
	b := s.B

	a.SetIntParams(CallConvCDecl, s, []*expr.Node{
		b.ConstU64(1, 32), b.ConstU64(2, 32), b.ConstU64(3, 32), b.ConstU64(4, 32),
	})
	for i := 0; i < 4; i++ {
		got, err := a.GetIntParam(CallConvCDecl, s, uint32(i)).AsConst().AsU64()
		if err != nil {
			t.Fatal(err)
		}
		if got != uint64(i+1) {
			t.Fatalf("param %d = %d, want %d", i, got, i+1)
		}
	}
}
