package libc

import "github.com/borzacchiello/naazgo/internal/state"

// exit implements libc's exit(int): it records retcode and terminates
// the state, without ever invoking Arch.HandleReturn (the process does
// not return), per original_source/models/libc/exit.cpp.
type exit struct{ base }

func (m *exit) Name() string { return "exit" }
func (m *exit) Exec(s *state.State) state.Successors {
	retcode := mustConstU64("libc.exit", m.intParam(s, 0))
	s.MarkExited(int32(retcode), "exit")
	return state.Successors{Exited: []*state.State{s}}
}
