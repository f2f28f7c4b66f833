package libc

import "github.com/borzacchiello/naazgo/internal/state"

// memcpy implements libc's memcpy(void*, const void*, size_t); dst,
// src and size must be concrete (documented FIXME in
// original_source/models/libc/string.cpp).
type memcpy struct{ base }

func (m *memcpy) Name() string { return "memcpy" }
func (m *memcpy) Exec(s *state.State) state.Successors {
	dst := mustConstU64("libc.memcpy", m.intParam(s, 0))
	src := mustConstU64("libc.memcpy", m.intParam(s, 1))
	size := mustConstU64("libc.memcpy", m.intParam(s, 2))

	s.WriteBuf(dst, s.ReadBuf(src, uint32(size)))
	var succ state.Successors
	m.handleReturn(s, &succ)
	return succ
}

// memcmp implements libc's memcmp(const void*, const void*, size_t) as
// a single wide equality test rather than the true lexicographic
// ordering, matching the original's documented simplification.
type memcmp struct{ base }

func (m *memcmp) Name() string { return "memcmp" }
func (m *memcmp) Exec(s *state.State) state.Successors {
	buf1 := mustConstU64("libc.memcmp", m.intParam(s, 0))
	buf2 := mustConstU64("libc.memcmp", m.intParam(s, 1))
	size := mustConstU64("libc.memcmp", m.intParam(s, 2))

	b := s.B
	eq := b.Eq(s.ReadBuf(buf1, uint32(size)), s.ReadBuf(buf2, uint32(size)))
	ret := b.ITE(eq, b.ConstU64(0, 8), b.ConstU64(1, 8))

	m.setReturnInt(s, ret)
	var succ state.Successors
	m.handleReturn(s, &succ)
	return succ
}

// strlen implements libc's strlen(const char*), forking one successor
// per feasible terminator position when the string's length is not
// concretely determined (spec §4.9, original_source/models/libc/string.cpp).
type strlen struct{ base }

const strlenMaxForks = 32

func (m *strlen) Name() string { return "strlen" }
func (m *strlen) Exec(s *state.State) state.Successors {
	addr := mustConstU64("libc.strlen", m.intParam(s, 0))

	var succ state.Successors
	for _, r := range resolveString(s, addr, strlenMaxForks, -1) {
		length := uint64(r.NumBytes - 1)
		m.setReturnInt(r.State, r.State.B.ConstU64(length, uint32(m.Arch.PtrSize())))
		m.handleReturn(r.State, &succ)
	}
	return succ
}

// strncpy implements libc's strncpy(char*, const char*, size_t),
// copying at most n bytes of src (resolved the same forking way as
// strlen) into dst.
type strncpy struct{ base }

func (m *strncpy) Name() string { return "strncpy" }
func (m *strncpy) Exec(s *state.State) state.Successors {
	dst := mustConstU64("libc.strncpy", m.intParam(s, 0))
	src := mustConstU64("libc.strncpy", m.intParam(s, 1))
	n := mustConstU64("libc.strncpy", m.intParam(s, 2))

	dstPtr := s.B.ConstU64(dst, uint32(m.Arch.PtrSize()))

	var succ state.Successors
	for _, r := range resolveString(s, src, strlenMaxForks, int(n)) {
		r.State.WriteBuf(dst, r.Data)
		m.setReturnInt(r.State, dstPtr)
		m.handleReturn(r.State, &succ)
	}
	return succ
}

// strcmp implements libc's strcmp(const char*, const char*) as a
// concrete string comparison: both arguments must resolve to fully
// concrete byte content, a tighter restriction than the original's
// memcmp-only coverage but representative of the same "concrete
// pointers/content only" scope.
type strcmp struct{ base }

func (m *strcmp) Name() string { return "strcmp" }
func (m *strcmp) Exec(s *state.State) state.Successors {
	p1 := mustConstU64("libc.strcmp", m.intParam(s, 0))
	p2 := mustConstU64("libc.strcmp", m.intParam(s, 1))

	a := readCString(s, p1)
	c := readCString(s, p2)

	var result int64
	switch {
	case a < c:
		result = -1
	case a > c:
		result = 1
	}

	m.setReturnInt(s, s.B.ConstU64(uint64(int32(result)), 32))
	var succ state.Successors
	m.handleReturn(s, &succ)
	return succ
}
