package debugtrace

import (
	"testing"

	"github.com/borzacchiello/naazgo/internal/arch"
	"github.com/borzacchiello/naazgo/internal/bvconst"
	"github.com/borzacchiello/naazgo/internal/expr"
	"github.com/borzacchiello/naazgo/internal/interp"
	"github.com/borzacchiello/naazgo/internal/lifter/x86lift"
	"github.com/borzacchiello/naazgo/internal/loader"
	"github.com/borzacchiello/naazgo/internal/solver"
	"github.com/borzacchiello/naazgo/internal/state"
)

// concreteOnlyBackend is enough for these tests: every condition below
// touches only concrete values, so Check never needs to search.
type concreteOnlyBackend struct{ b *expr.Builder }

func (c *concreteOnlyBackend) Check(query *expr.Node) (solver.CheckResult, error) {
	result := expr.Evaluate(c.b, query, nil, true)
	if result.Kind() == expr.KindBoolConst && result.AsBool() {
		return solver.SAT, nil
	}
	return solver.UNSAT, nil
}
func (c *concreteOnlyBackend) Model() map[uint32]bvconst.BVConst { return nil }
func (c *concreteOnlyBackend) EvalUpto(val, pi *expr.Node, n int) ([]bvconst.BVConst, error) {
	return nil, nil
}

var regNames = []string{
	"RAX", "RCX", "RDX", "RBX", "RSP", "RBP", "RSI", "RDI",
	"R8", "R9", "R10", "R11", "R12", "R13", "R14", "R15",
	"CF", "ZF", "SF", "OF",
}

func newDebugger(t *testing.T, code []byte, pc uint64) (*Debugger, *state.State) {
	t.Helper()
	b := expr.NewBuilder()
	a := arch.NewX86_64()
	as := loader.New()
	as.RegisterSegment("code", pc, code, loader.PermRead|loader.PermExec)
	as.RegisterSegment("stack", a.StackPtr-0x8000, make([]byte, 0x10000), loader.PermRead|loader.PermWrite)
	l := x86lift.New()
	s := state.New(b, as, l, &concreteOnlyBackend{b: b}, pc)
	a.InitState(s)
	I := interp.New(a, interp.DefaultOptions())
	return New(s, I, regNames), s
}

func TestDebuggerGetRegisters(t *testing.T) {
	// mov rax, 7
	code := []byte{0x48, 0xc7, 0xc0, 0x07, 0x00, 0x00, 0x00}
	d, _ := newDebugger(t, code, 0x1000)
	if _, err := d.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	regs := d.GetRegisters()
	var rax *RegisterInfo
	for i := range regs {
		if regs[i].Name == "RAX" {
			rax = &regs[i]
		}
	}
	if rax == nil {
		t.Fatal("RAX missing from GetRegisters")
	}
	if rax.Symbolic || rax.Value != 7 {
		t.Fatalf("RAX = %+v, want concrete 7", rax)
	}
}

func TestDebuggerBreakpointFires(t *testing.T) {
	// mov rax, 1 ; ret
	code := []byte{0x48, 0xc7, 0xc0, 0x01, 0x00, 0x00, 0x00, 0xc3}
	d, _ := newDebugger(t, code, 0x2000)
	d.SetBreakpoint(0x2000)
	if !d.HasBreakpoint(0x2000) {
		t.Fatal("expected breakpoint to be registered")
	}

	if _, err := d.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	select {
	case ev := <-d.Events():
		if ev.IsWatch || ev.Address != 0x2000 {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatal("expected a breakpoint event after stepping past pc 0x2000")
	}
}

func TestDebuggerConditionalBreakpointSkipsWhenFalse(t *testing.T) {
	// mov rax, 1 ; ret
	code := []byte{0x48, 0xc7, 0xc0, 0x01, 0x00, 0x00, 0x00, 0xc3}
	d, _ := newDebugger(t, code, 0x3000)
	d.SetConditionalBreakpoint(0x3000, &BreakpointCondition{
		Source:  CondSourceRegister,
		RegName: "RAX",
		Op:      CondOpEqual,
		Value:   99,
	})

	if _, err := d.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	select {
	case ev := <-d.Events():
		t.Fatalf("did not expect a breakpoint event, got %+v", ev)
	default:
	}
}

func TestDebuggerWatchpointFiresOnWrite(t *testing.T) {
	// mov rax, 0x2a ; mov [rax_target], al  -- store a byte at a fixed address
	// We use: mov rax, 0x2a ; mov rcx, <addr> ; mov [rcx], al
	addr := uint64(0x9000)
	code := []byte{
		0x48, 0xc7, 0xc0, 0x2a, 0x00, 0x00, 0x00, // mov rax, 0x2a
		0x48, 0xc7, 0xc1, byte(addr), byte(addr >> 8), byte(addr >> 16), byte(addr >> 24), // mov rcx, addr
		0x88, 0x01, // mov [rcx], al
	}
	d, s := newDebugger(t, code, 0x4000)
	// No segment backs the watched address: the store writes a concrete
	// byte, so the read-back resolves to a concrete value anyway.
	_ = s
	d.SetWatchpoint(addr)

	if _, err := d.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	select {
	case ev := <-d.Events():
		if !ev.IsWatch || ev.WatchAddr != addr || ev.WatchNewValue != 0x2a {
			t.Fatalf("unexpected watch event: %+v", ev)
		}
	default:
		t.Fatal("expected a watchpoint event")
	}
}
