package fs

import (
	"testing"

	"github.com/borzacchiello/naazgo/internal/expr"
)

func TestReservedFds(t *testing.T) {
	f := New(expr.NewBuilder())
	if f.File("stdin") == nil || f.File("stdout") == nil || f.File("stderr") == nil {
		t.Fatalf("expected stdin/stdout/stderr to exist on construction")
	}
	if fd := f.Open("input.bin"); fd != 3 {
		t.Fatalf("first user fd = %d, want 3", fd)
	}
}

func TestFdReuseOnlyWhenLastClosed(t *testing.T) {
	f := New(expr.NewBuilder())
	a := f.Open("a") // 3
	c := f.Open("b") // 4

	f.Close(c)
	if fd := f.Open("c"); fd != 4 {
		t.Fatalf("closing the last-allocated fd must free it for reuse, got %d", fd)
	}

	f.Close(a)
	if fd := f.Open("d"); fd != 5 {
		t.Fatalf("closing a non-last fd must not rewind the counter, got %d", fd)
	}
}

func TestReadPastSizeGrowsSymbolic(t *testing.T) {
	f := New(expr.NewBuilder())
	data := f.Read(0, 4) // stdin, empty
	if data.Width() != 32 {
		t.Fatalf("read width = %d, want 32", data.Width())
	}
	if data.IsConst() {
		t.Fatalf("a read past the end must produce symbolic bytes")
	}
	if got := f.File("stdin").Size(); got != 4 {
		t.Fatalf("stdin size = %d, want 4 after the read grew it", got)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	b := expr.NewBuilder()
	f := New(b)
	fd := f.Open("out")

	val := b.ConstU64(0xdeadbeef, 32)
	f.Write(fd, val)
	if off := uint64(4); f.File("out").Size() != off {
		t.Fatalf("size = %d, want %d", f.File("out").Size(), off)
	}

	f.Seek(fd, 0)
	back := f.Read(fd, 4)
	if back != val {
		t.Fatalf("read-back is not structurally equal to the written value: %v != %v", back, val)
	}
}

func TestSeekAndOffsetTracking(t *testing.T) {
	b := expr.NewBuilder()
	f := New(b)
	fd := f.Open("x")
	f.Write(fd, b.ConstU64(0x11223344, 32))
	f.Seek(fd, 2)
	one := f.Read(fd, 1)
	v, err := one.AsConst().AsU64()
	if err != nil {
		t.Fatal(err)
	}
	// files are big-endian byte streams: offset 2 holds 0x33
	if v != 0x33 {
		t.Fatalf("byte at offset 2 = 0x%x, want 0x33", v)
	}
}

func TestCloneIndependence(t *testing.T) {
	b := expr.NewBuilder()
	f := New(b)
	fd := f.Open("shared")
	f.Write(fd, b.ConstU64(0xaa, 8))

	c := f.Clone()
	c.Write(fd, b.ConstU64(0xbb, 8)) // clone's cursor is at 1
	c.Seek(fd, 100)

	if got := f.File("shared").Size(); got != 1 {
		t.Fatalf("original file grew after a clone write: size %d", got)
	}
	f.Seek(fd, 0)
	v, err := f.Read(fd, 1).AsConst().AsU64()
	if err != nil {
		t.Fatal(err)
	}
	if v != 0xaa {
		t.Fatalf("original content changed after clone write: 0x%x", v)
	}
	if got := c.File("shared").Size(); got != 2 {
		t.Fatalf("clone size = %d, want 2", got)
	}
}

func TestCloseUnknownFdPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic on closing an unknown fd")
		}
	}()
	New(expr.NewBuilder()).Close(99)
}
