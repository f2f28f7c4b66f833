package linux

import (
	"github.com/borzacchiello/naazgo/internal/arch"
	"github.com/borzacchiello/naazgo/internal/expr"
	"github.com/borzacchiello/naazgo/internal/state"
)

// base mirrors models/libc's helper: syscall models need the
// architecture and calling convention to read arguments and write a
// return value the same way a CALLOTHER-reached function would.
type base struct {
	arch arch.Architecture
	cc   arch.CallConv
}

func (b base) param(s *state.State, i uint32) *expr.Node {
	return b.arch.GetIntParam(b.cc, s, i)
}

func (b base) setReturn(s *state.State, val *expr.Node) {
	b.arch.SetReturnIntValue(b.cc, s, val)
}

func mustConstU64(component string, n *expr.Node) uint64 {
	if n.Kind() != expr.KindConst {
		panic(component + ": symbolic parameter is not supported")
	}
	v, err := n.AsConst().AsU64()
	if err != nil {
		panic(component + ": " + err.Error())
	}
	return v
}

// sys_read(fd, buf, count) — original_source/models/linux_syscalls/read.cpp.
// CALLOTHER syscalls return by falling through to the next instruction
// rather than via Arch.HandleReturn: the trap itself is one pcode op,
// not a CALL, so there is no pushed return address to pop.
type sysRead struct{ base }

func (m *sysRead) Name() string { return "sys_read" }
func (m *sysRead) Exec(s *state.State) state.Successors {
	fd := mustConstU64("linux.sys_read", m.param(s, 0))
	buf := mustConstU64("linux.sys_read", m.param(s, 1))
	size := mustConstU64("linux.sys_read", m.param(s, 2))

	data := s.FS.Read(int(fd), uint32(size))
	s.WriteBuf(buf, data)
	m.setReturn(s, s.B.ConstU64(size, uint32(m.arch.PtrSize())))
	return state.Successors{Active: []*state.State{s}}
}

// sys_write(fd, buf, count).
type sysWrite struct{ base }

func (m *sysWrite) Name() string { return "sys_write" }
func (m *sysWrite) Exec(s *state.State) state.Successors {
	fd := mustConstU64("linux.sys_write", m.param(s, 0))
	buf := mustConstU64("linux.sys_write", m.param(s, 1))
	size := mustConstU64("linux.sys_write", m.param(s, 2))

	s.FS.Write(int(fd), s.ReadBuf(buf, uint32(size)))
	m.setReturn(s, s.B.ConstU64(size, uint32(m.arch.PtrSize())))
	return state.Successors{Active: []*state.State{s}}
}

// sys_open(path, flags, mode) — original_source/models/linux_syscalls/open.cpp;
// flags/mode are ignored, matching the original's documented FIXME.
type sysOpen struct{ base }

func (m *sysOpen) Name() string { return "sys_open" }
func (m *sysOpen) Exec(s *state.State) state.Successors {
	pathPtr := mustConstU64("linux.sys_open", m.param(s, 0))

	var path []byte
	for off := uint64(0); ; off++ {
		b := mustConstU64("linux.sys_open", s.Read(pathPtr+off, 1))
		if b == 0 {
			break
		}
		path = append(path, byte(b))
	}

	fd := s.FS.Open(string(path))
	m.setReturn(s, s.B.ConstU64(uint64(uint32(fd)), 32))
	return state.Successors{Active: []*state.State{s}}
}

// sys_close(fd).
type sysClose struct{ base }

func (m *sysClose) Name() string { return "sys_close" }
func (m *sysClose) Exec(s *state.State) state.Successors {
	fd := mustConstU64("linux.sys_close", m.param(s, 0))
	s.FS.Close(int(fd))
	m.setReturn(s, s.B.ConstU64(0, 32))
	return state.Successors{Active: []*state.State{s}}
}

// sys_exit(status).
type sysExit struct{ base }

func (m *sysExit) Name() string { return "sys_exit" }
func (m *sysExit) Exec(s *state.State) state.Successors {
	status := mustConstU64("linux.sys_exit", m.param(s, 0))
	s.MarkExited(int32(status), "sys_exit")
	return state.Successors{Exited: []*state.State{s}}
}
