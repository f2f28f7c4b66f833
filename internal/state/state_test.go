package state

import (
	"testing"

	"github.com/borzacchiello/naazgo/internal/expr"
	"github.com/borzacchiello/naazgo/internal/loader"
)

func newPlainState(t *testing.T) (*State, *expr.Builder) {
	t.Helper()
	b := expr.NewBuilder()
	as := loader.New()
	as.RegisterSegment("data", 0x1000, []byte{0xde, 0xad, 0xbe, 0xef}, loader.PermRead)
	return New(b, as, nil, nil, 0x1000), b
}

func TestBackedReadAndWriteShadowing(t *testing.T) {
	s, b := newPlainState(t)

	v, err := s.Read(0x1000, 1).AsConst().AsU64()
	if err != nil {
		t.Fatal(err)
	}
	if v != 0xde {
		t.Fatalf("backed read = 0x%x, want 0xde", v)
	}

	s.Write(0x1000, b.ConstU64(0x42, 8))
	v, err = s.Read(0x1000, 1).AsConst().AsU64()
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x42 {
		t.Fatalf("write did not shadow the backing image: 0x%x", v)
	}
}

func TestCloneIndependence(t *testing.T) {
	s, b := newPlainState(t)
	s.RegWriteOffset(0, b.ConstU64(7, 64))
	s.PushReturn(0xcafe)
	s.SetArgv([][]byte{[]byte("prog")})

	c := s.Clone()
	c.RegWriteOffset(0, b.ConstU64(9, 64))
	c.Write(0x2000, b.ConstU64(0x55, 8))
	c.PushReturn(0xbabe)
	c.SetPC(0x9999)

	if v, _ := s.RegReadOffset(0, 8).AsConst().AsU64(); v != 7 {
		t.Fatalf("original register changed after clone write: %d", v)
	}
	if len(s.StackTrace()) != 1 || s.StackTrace()[0] != 0xcafe {
		t.Fatalf("original stack trace changed: %v", s.StackTrace())
	}
	if s.PC() != 0x1000 {
		t.Fatalf("original PC changed: 0x%x", s.PC())
	}
	if len(c.StackTrace()) != 2 {
		t.Fatalf("clone stack trace = %v", c.StackTrace())
	}
	if len(c.Argv()) != 1 || string(c.Argv()[0]) != "prog" {
		t.Fatalf("argv not carried into the clone")
	}
}

func TestStackTracePushPop(t *testing.T) {
	s, _ := newPlainState(t)
	if _, ok := s.PopReturn(); ok {
		t.Fatalf("pop of an empty stack trace must report not-ok")
	}
	s.PushReturn(0x10)
	s.PushReturn(0x20)
	if addr, ok := s.PopReturn(); !ok || addr != 0x20 {
		t.Fatalf("pop = (0x%x, %v), want (0x20, true)", addr, ok)
	}
	if addr, ok := s.PopReturn(); !ok || addr != 0x10 {
		t.Fatalf("pop = (0x%x, %v), want (0x10, true)", addr, ok)
	}
}

func TestHeapBumpAlignment(t *testing.T) {
	s, _ := newPlainState(t)
	s.SetHeapBase(0x10000)

	p1 := s.Allocate(1)
	p2 := s.Allocate(17)
	p3 := s.Allocate(16)

	if p1 != 0x10000 {
		t.Fatalf("first allocation = 0x%x, want heap base", p1)
	}
	if p2 != 0x10010 {
		t.Fatalf("second allocation = 0x%x, want 0x10010 (16-byte aligned)", p2)
	}
	if p3 != 0x10030 {
		t.Fatalf("third allocation = 0x%x, want 0x10030", p3)
	}
}

func TestLinkedFunctions(t *testing.T) {
	s, _ := newPlainState(t)
	if s.IsLinkedFunction(0x4000000000) {
		t.Fatalf("no model registered yet")
	}
	m := &stubModel{}
	s.RegisterLinkedFunction(0x4000000000, m)
	if !s.IsLinkedFunction(0x4000000000) || s.LinkedModel(0x4000000000) != m {
		t.Fatalf("linked function lookup failed")
	}

	c := s.Clone()
	if c.LinkedModel(0x4000000000) != m {
		t.Fatalf("linked table not carried into the clone")
	}
}

type stubModel struct{}

func (*stubModel) Name() string            { return "stub" }
func (*stubModel) Exec(s *State) Successors { return Successors{} }

func TestSymbolicAddressPanics(t *testing.T) {
	s, b := newPlainState(t)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a symbolic memory access panic")
		}
	}()
	s.ReadAt(b.Sym("ptr", 64), 8)
}

func TestMarkExited(t *testing.T) {
	s, _ := newPlainState(t)
	s.MarkExited(42, "exit syscall")
	if !s.Exited || s.Exit.Code != 42 || s.Exit.Reason != "exit syscall" {
		t.Fatalf("exit bookkeeping wrong: %+v", s.Exit)
	}
}

func TestDumpFSConcreteContents(t *testing.T) {
	s, b := newPlainState(t)
	fd := s.FS.Open("flag.txt")
	s.FS.Write(fd, b.ConstU64(0x68690a, 24)) // "hi\n"

	dumped := make(map[string][]byte)
	err := s.DumpFS(func(name string, data []byte) error {
		dumped[name] = data
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(dumped["flag.txt"]) != "hi\n" {
		t.Fatalf("dumped contents = %q, want \"hi\\n\"", dumped["flag.txt"])
	}
}
