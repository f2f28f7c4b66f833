package models

import (
	"testing"

	"github.com/borzacchiello/naazgo/internal/arch"
	"github.com/borzacchiello/naazgo/internal/expr"
	"github.com/borzacchiello/naazgo/internal/interp"
	"github.com/borzacchiello/naazgo/internal/lifter/x86lift"
	"github.com/borzacchiello/naazgo/internal/loader"
	"github.com/borzacchiello/naazgo/internal/state"
)

func newLinkedState(t *testing.T, relocs []loader.Relocation) (*state.State, *interp.Interpreter, arch.Architecture) {
	t.Helper()
	b := expr.NewBuilder()
	a := arch.NewX86_64()
	as := loader.New()
	// a writable GOT page plus a stack
	as.RegisterSegment("got", 0x600000, make([]byte, 0x1000), loader.PermRead|loader.PermWrite)
	as.RegisterSegment("stack", a.StackPtr-0x8000, make([]byte, 0x10000), loader.PermRead|loader.PermWrite)
	for _, r := range relocs {
		as.RegisterRelocation(r)
	}

	s := state.New(b, as, x86lift.New(), nil, 0x400000)
	a.InitState(s)

	l := NewLinker(a)
	RegisterDefaults(l)
	l.Link(s)

	return s, interp.New(a, interp.DefaultOptions()), a
}

func TestLinkPatchesRelocationSites(t *testing.T) {
	s, _, _ := newLinkedState(t, []loader.Relocation{
		{SiteAddr: 0x600010, Name: "malloc", Kind: loader.RelocFunc},
	})

	slot, err := s.Read(0x600010, 8).AsConst().AsU64()
	if err != nil {
		t.Fatal(err)
	}
	if !s.IsLinkedFunction(slot) {
		t.Fatalf("relocation slot 0x%x does not point at a linked sentinel", slot)
	}
	if got := s.LinkedModel(slot).Name(); got != "malloc" {
		t.Fatalf("sentinel model = %q, want malloc", got)
	}
	if s.LibcStartMainExitAddr == 0 {
		t.Fatalf("exit-wrapper sentinel not allocated")
	}
}

func TestUnmodelledImportExitsWith309(t *testing.T) {
	s, I, _ := newLinkedState(t, []loader.Relocation{
		{SiteAddr: 0x600020, Name: "qsort", Kind: loader.RelocFunc},
	})

	slot, err := s.Read(0x600020, 8).AsConst().AsU64()
	if err != nil {
		t.Fatal(err)
	}
	s.SetPC(slot)

	succ, err := I.ExecuteBasicBlock(s)
	if err != nil {
		t.Fatalf("ExecuteBasicBlock: %v", err)
	}
	if len(succ.Exited) != 1 || len(succ.Active) != 0 {
		t.Fatalf("expected exactly one exited successor, got %+v", succ)
	}
	out := succ.Exited[0]
	if !out.Exited || out.Exit.Code != 309 {
		t.Fatalf("unmodelled import must exit with retcode 309, got %+v", out.Exit)
	}
}

// Running the malloc sentinel end-to-end: parameters read through the
// calling convention, heap bump returned in RAX, control handed back
// to the pushed return address.
func TestMallocModelThroughTrampoline(t *testing.T) {
	s, I, a := newLinkedState(t, []loader.Relocation{
		{SiteAddr: 0x600010, Name: "malloc", Kind: loader.RelocFunc},
	})

	slot, _ := s.Read(0x600010, 8).AsConst().AsU64()
	retAddr := uint64(0x400100)
	a.SetReturn(s, s.B.ConstU64(retAddr, 64))
	s.RegWrite("RDI", s.B.ConstU64(32, 64))
	s.SetPC(slot)

	succ, err := I.ExecuteBasicBlock(s)
	if err != nil {
		t.Fatalf("ExecuteBasicBlock: %v", err)
	}
	if len(succ.Active) != 1 {
		t.Fatalf("expected one active successor, got %+v", succ)
	}
	out := succ.Active[0]
	if out.PC() != retAddr {
		t.Fatalf("PC after model return = 0x%x, want 0x%x", out.PC(), retAddr)
	}
	rax, err := out.RegRead("RAX").AsConst().AsU64()
	if err != nil {
		t.Fatal(err)
	}
	if rax != a.HeapBase() {
		t.Fatalf("malloc returned 0x%x, want the heap base 0x%x", rax, a.HeapBase())
	}

	// a second allocation must come back bumped past the first
	a.SetReturn(out, out.B.ConstU64(retAddr, 64))
	out.RegWrite("RDI", out.B.ConstU64(8, 64))
	out.SetPC(slot)
	succ2, err := I.ExecuteBasicBlock(out)
	if err != nil {
		t.Fatal(err)
	}
	rax2, _ := succ2.Active[0].RegRead("RAX").AsConst().AsU64()
	if rax2 != a.HeapBase()+32 {
		t.Fatalf("second malloc = 0x%x, want 0x%x", rax2, a.HeapBase()+32)
	}
}

// exit(n) records the retcode and never returns through the ABI.
func TestExitModel(t *testing.T) {
	s, I, _ := newLinkedState(t, []loader.Relocation{
		{SiteAddr: 0x600018, Name: "exit", Kind: loader.RelocFunc},
	})

	slot, _ := s.Read(0x600018, 8).AsConst().AsU64()
	s.RegWrite("RDI", s.B.ConstU64(7, 64))
	s.SetPC(slot)

	succ, err := I.ExecuteBasicBlock(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(succ.Exited) != 1 || succ.Exited[0].Exit.Code != 7 {
		t.Fatalf("exit(7) must produce an exited state with retcode 7, got %+v", succ)
	}
}
