package libc

import (
	"github.com/borzacchiello/naazgo/internal/expr"
	"github.com/borzacchiello/naazgo/internal/state"
)

// libcStartMain implements __libc_start_main: it points the return
// address a CALL to it would normally use at the
// libc_start_main_exit_wrapper sentinel models.Linker pre-allocates,
// then jumps straight to the program's main (spec §4.9,
// original_source/models/libc/libc_start_main.cpp).
type libcStartMain struct{ base }

func (m *libcStartMain) Name() string { return "__libc_start_main" }
func (m *libcStartMain) Exec(s *state.State) state.Successors {
	mainAddr := mustConstU64("libc.__libc_start_main", m.intParam(s, 0))

	m.Arch.SetReturn(s, s.B.ConstU64(s.LibcStartMainExitAddr, uint32(m.Arch.PtrSize())))
	s.SetPC(mainAddr)
	return state.Successors{Active: []*state.State{s}}
}

// libcStartMainExitWrapper is the trampoline main returns into: it
// reads main's integer return value and uses it as the process
// retcode.
type libcStartMainExitWrapper struct{ base }

func (m *libcStartMainExitWrapper) Name() string { return "libc_start_main_exit_wrapper" }
func (m *libcStartMainExitWrapper) Exec(s *state.State) state.Successors {
	retval := m.Arch.GetReturnIntValue(m.CC, s)
	var retcode int32
	if retval.Kind() == expr.KindConst {
		v, err := retval.AsConst().AsU64()
		if err == nil {
			retcode = int32(v)
		}
	}
	s.MarkExited(retcode, "libc_start_main_exit_wrapper")
	return state.Successors{Exited: []*state.State{s}}
}
