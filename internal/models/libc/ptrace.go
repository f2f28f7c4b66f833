package libc

import "github.com/borzacchiello/naazgo/internal/state"

// ptrace is a stub that always reports success (0), matching
// original_source/models/libc/ptrace.cpp: binaries that merely probe
// for a debugger via ptrace(PTRACE_TRACEME, ...) continue unimpeded.
type ptrace struct{ base }

func (m *ptrace) Name() string { return "ptrace" }
func (m *ptrace) Exec(s *state.State) state.Successors {
	m.setReturnInt(s, s.B.ConstU64(0, 8))
	var succ state.Successors
	m.handleReturn(s, &succ)
	return succ
}
