package libc

import (
	"github.com/borzacchiello/naazgo/internal/state"
)

// malloc implements libc's malloc(size_t) as a bump allocation on the
// state's heap cursor (spec §4.9; original_source/models/libc/alloc.cpp).
type malloc struct{ base }

func (m *malloc) Name() string { return "malloc" }
func (m *malloc) Exec(s *state.State) state.Successors {
	size := mustConstU64("libc.malloc", m.intParam(s, 0))
	ptr := s.Allocate(size)

	m.setReturnInt(s, s.B.ConstU64(ptr, uint32(m.Arch.PtrSize())))
	var succ state.Successors
	m.handleReturn(s, &succ)
	return succ
}

// calloc additionally zero-fills the allocated region.
type calloc struct{ base }

func (m *calloc) Name() string { return "calloc" }
func (m *calloc) Exec(s *state.State) state.Successors {
	nmemb := mustConstU64("libc.calloc", m.intParam(s, 0))
	elemSize := mustConstU64("libc.calloc", m.intParam(s, 1))
	size := nmemb * elemSize

	ptr := s.Allocate(size)
	zero := s.B.ConstU64(0, 8)
	for i := uint64(0); i < size; i++ {
		s.Write(ptr+i, zero)
	}

	m.setReturnInt(s, s.B.ConstU64(ptr, uint32(m.Arch.PtrSize())))
	var succ state.Successors
	m.handleReturn(s, &succ)
	return succ
}

// realloc allocates a fresh region and copies the old contents over;
// it never shrinks or frees in place, matching the original's
// documented corner-case FIXME.
type realloc struct{ base }

func (m *realloc) Name() string { return "realloc" }
func (m *realloc) Exec(s *state.State) state.Successors {
	oldPtr := mustConstU64("libc.realloc", m.intParam(s, 0))
	size := mustConstU64("libc.realloc", m.intParam(s, 1))

	ptr := s.Allocate(size)
	s.WriteBuf(ptr, s.ReadBuf(oldPtr, uint32(size)))

	m.setReturnInt(s, s.B.ConstU64(ptr, uint32(m.Arch.PtrSize())))
	var succ state.Successors
	m.handleReturn(s, &succ)
	return succ
}

// free is a no-op: the bump allocator never reclaims memory.
type free struct{ base }

func (m *free) Name() string { return "free" }
func (m *free) Exec(s *state.State) state.Successors {
	var succ state.Successors
	m.handleReturn(s, &succ)
	return succ
}
