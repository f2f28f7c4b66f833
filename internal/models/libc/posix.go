package libc

import "github.com/borzacchiello/naazgo/internal/state"

// open implements libc's open(const char*, int, ...): the mode/flags
// parameters are ignored (spec's documented "representative, not
// exhaustive" scope), matching
// original_source/models/libc/posix_file_handling.cpp.
type open struct{ base }

func (m *open) Name() string { return "open" }
func (m *open) Exec(s *state.State) state.Successors {
	pathPtr := mustConstU64("libc.open", m.intParam(s, 0))
	path := readCString(s, pathPtr)

	fd := s.FS.Open(path)
	m.setReturnInt(s, s.B.ConstU64(uint64(uint32(fd)), 32))
	var succ state.Successors
	m.handleReturn(s, &succ)
	return succ
}

// read implements libc's read(int, void*, size_t) over the state's FS.
type read struct{ base }

func (m *read) Name() string { return "read" }
func (m *read) Exec(s *state.State) state.Successors {
	fd := mustConstU64("libc.read", m.intParam(s, 0))
	buf := mustConstU64("libc.read", m.intParam(s, 1))
	size := mustConstU64("libc.read", m.intParam(s, 2))

	data := s.FS.Read(int(fd), uint32(size))
	s.WriteBuf(buf, data)
	var succ state.Successors
	m.handleReturn(s, &succ)
	return succ
}

// write implements libc's write(int, const void*, size_t).
type write struct{ base }

func (m *write) Name() string { return "write" }
func (m *write) Exec(s *state.State) state.Successors {
	fd := mustConstU64("libc.write", m.intParam(s, 0))
	buf := mustConstU64("libc.write", m.intParam(s, 1))
	size := mustConstU64("libc.write", m.intParam(s, 2))

	data := s.ReadBuf(buf, uint32(size))
	s.FS.Write(int(fd), data)

	m.setReturnInt(s, s.B.ConstU64(size, uint32(m.Arch.PtrSize())))
	var succ state.Successors
	m.handleReturn(s, &succ)
	return succ
}

// close implements libc's close(int).
type closeFd struct{ base }

func (m *closeFd) Name() string { return "close" }
func (m *closeFd) Exec(s *state.State) state.Successors {
	fd := mustConstU64("libc.close", m.intParam(s, 0))
	s.FS.Close(int(fd))
	var succ state.Successors
	m.handleReturn(s, &succ)
	return succ
}
