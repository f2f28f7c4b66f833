package libc

import "github.com/borzacchiello/naazgo/internal/state"

const putsMaxSize = 256

// puts implements libc's puts(const char*): the string is resolved
// without forking (maxForks=0, matching the original's call shape) and
// written to fd 1 followed by a newline, per
// original_source/models/libc/stdio.cpp.
type puts struct{ base }

func (m *puts) Name() string { return "puts" }
func (m *puts) Exec(s *state.State) state.Successors {
	addr := mustConstU64("libc.puts", m.intParam(s, 0))

	resolved := resolveString(s, addr, 0, putsMaxSize)
	if len(resolved) != 1 {
		panic("libc.puts: unable to resolve the string")
	}
	r := resolved[0]
	r.State.FS.Write(1, r.Data)
	r.State.FS.Write(1, r.State.B.ConstU64('\n', 8))

	var succ state.Successors
	m.handleReturn(r.State, &succ)
	return succ
}
