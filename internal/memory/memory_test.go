package memory

import (
	"testing"

	"github.com/borzacchiello/naazgo/internal/expr"
)

func TestRoundTripLittleEndian(t *testing.T) {
	b := expr.NewBuilder()
	m := New(b, "ram", nil, RetSym)
	x := b.Sym("x", 32)
	m.Write(0x1000, x, LittleEndian)
	got := m.Read(0x1000, 4, LittleEndian)
	if got != x {
		t.Fatalf("round-trip little-endian write/read did not return the original expression")
	}
}

func TestRoundTripBigEndian(t *testing.T) {
	b := expr.NewBuilder()
	m := New(b, "ram", nil, RetSym)
	x := b.Sym("x", 32)
	m.Write(0x2000, x, BigEndian)
	got := m.Read(0x2000, 4, BigEndian)
	if got != x {
		t.Fatalf("round-trip big-endian write/read did not return the original expression")
	}
}

func TestMemoryOverlapScenario(t *testing.T) {
	// write Sym("x",32) big-endian at 0xaabbcc, read one byte at
	// 0xaabbcc; the read must equal Extract(x, 31, 24).
	b := expr.NewBuilder()
	m := New(b, "ram", nil, RetSym)
	x := b.Sym("x", 32)
	m.Write(0xaabbcc, x, BigEndian)
	got := m.Read(0xaabbcc, 1, BigEndian)
	want := b.Extract(x, 31, 24)
	if got != want {
		t.Fatalf("single-byte read after big-endian write = %v, want Extract(x,31,24)", got)
	}
}

type fakeAddressSpace struct {
	data map[uint64]byte
}

func (f *fakeAddressSpace) ReadByte(addr uint64) (byte, bool) {
	v, ok := f.data[addr]
	return v, ok
}

func TestBackingAddressSpace(t *testing.T) {
	b := expr.NewBuilder()
	as := &fakeAddressSpace{data: map[uint64]byte{0x400000: 0x7f, 0x400001: 'E'}}
	m := New(b, "ram", as, RetSym)

	got := m.ReadByte(0x400000)
	if got.Kind() != expr.KindConst {
		t.Fatalf("expected a concrete byte from the backing address space")
	}
	v, _ := got.AsConst().AsU64()
	if v != 0x7f {
		t.Fatalf("backing byte = 0x%x, want 0x7f", v)
	}
}

func TestUninitPolicies(t *testing.T) {
	b := expr.NewBuilder()

	sym := New(b, "ram", nil, RetSym)
	if got := sym.ReadByte(0x10); got.Kind() != expr.KindSym {
		t.Fatalf("RetSym policy should return a symbolic byte")
	}

	zero := New(b, "ram", nil, RetZero)
	if got := zero.ReadByte(0x10); got.Kind() != expr.KindConst || !got.AsConst().IsZero() {
		t.Fatalf("RetZero policy should return a concrete zero byte")
	}

	fail := New(b, "ram", nil, Fail)
	defer func() {
		if recover() == nil {
			t.Fatalf("Fail policy should panic on an uninitialized read")
		}
	}()
	fail.ReadByte(0x10)
}

func TestWriteByteWidthMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on non-8-bit write_byte")
		}
	}()
	b := expr.NewBuilder()
	m := New(b, "ram", nil, RetSym)
	m.WriteByte(0, b.Sym("x", 16))
}

func TestCloneIndependence(t *testing.T) {
	b := expr.NewBuilder()
	m := New(b, "ram", nil, RetSym)
	m.Write(0, b.ConstU64(0xdeadbeef, 32), LittleEndian)

	clone := m.Clone()
	clone.Write(0, b.ConstU64(0, 32), LittleEndian)

	orig := m.ReadConst(0, 4, LittleEndian)
	v, _ := orig.AsU64()
	if v != 0xdeadbeef {
		t.Fatalf("mutating the clone affected the original memory")
	}
}

func BenchmarkWriteRead64(b *testing.B) {
	bld := expr.NewBuilder()
	m := New(bld, "ram", nil, RetZero)
	val := bld.ConstU64(0x0102030405060708, 64)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Write(0x1000, val, LittleEndian)
		m.Read(0x1000, 8, LittleEndian)
	}
}
