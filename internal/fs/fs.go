// Package fs implements the POSIX-like file system a State carries: a
// process-local {path -> File} map plus an {fd -> Handle} table with
// three reserved descriptors (stdin, stdout, stderr) created on
// construction. File contents live in a MapMemory so reads past the
// declared size produce fresh symbolic bytes the same way an
// uninitialized RAM read does.
package fs

import (
	"fmt"

	"github.com/borzacchiello/naazgo/internal/expr"
	"github.com/borzacchiello/naazgo/internal/memory"
)

// File owns the symbolic contents of one path and its logical size.
// Size grows on writes past the current end and on reads past it (a
// read past size is defined to extend the file with fresh symbolic
// bytes, mirroring a FIFO/stdin-like source of unbounded symbolic
// input).
type File struct {
	name    string
	size    uint64
	content *memory.MapMemory
}

func newFile(b *expr.Builder, name string) *File {
	return &File{
		name:    name,
		content: memory.New(b, "file:"+name, nil, memory.RetSym),
	}
}

// Name returns the file's path as it was opened.
func (f *File) Name() string { return f.name }

// Size returns the file's current logical size in bytes.
func (f *File) Size() uint64 { return f.size }

func (f *File) enlarge(off uint64) {
	if off > f.size {
		f.size = off
	}
}

// Read returns an nBytes*8-wide big-endian expression starting at off,
// growing the file if the read runs past the current size.
func (f *File) Read(off uint64, nBytes uint32) *expr.Node {
	f.enlarge(off + uint64(nBytes))
	return f.content.Read(off, nBytes, memory.BigEndian)
}

// Write stores data (whose width must be a multiple of 8) at off,
// growing the file as needed.
func (f *File) Write(off uint64, data *expr.Node) {
	f.enlarge(off + uint64(data.Width())/8)
	f.content.Write(off, data, memory.BigEndian)
}

func (f *File) clone() *File {
	return &File{name: f.name, size: f.size, content: f.content.Clone()}
}

// Handle is a per-fd cursor into a File.
type Handle struct {
	filename string
	off      uint64
	fd       int
}

// Fd returns the file descriptor this handle was allocated for.
func (h *Handle) Fd() int { return h.fd }

// Off returns the handle's current read/write cursor.
func (h *Handle) Off() uint64 { return h.off }

// FileSystem is the per-state POSIX-like file table.
type FileSystem struct {
	b      *expr.Builder
	files  map[string]*File
	open   map[int]*Handle
	freeFd int
}

// New creates a FileSystem with stdin (0), stdout (1), stderr (2)
// already open, matching the reserved-fd contract of spec §3.
func New(b *expr.Builder) *FileSystem {
	fs := &FileSystem{
		b:     b,
		files: make(map[string]*File),
		open:  make(map[int]*Handle),
	}
	for _, name := range []string{"stdin", "stdout", "stderr"} {
		fd := fs.Open(name)
		if name == "stdin" && fd != 0 {
			panic("fs: unexpected stdin fd")
		}
		if name == "stdout" && fd != 1 {
			panic("fs: unexpected stdout fd")
		}
		if name == "stderr" && fd != 2 {
			panic("fs: unexpected stderr fd")
		}
	}
	return fs
}

// Open creates the named File if absent, allocates a fresh handle, and
// returns its fd. Fds are assigned from a monotonic counter, reused
// only when the last-allocated fd is closed (spec §4.6).
func (fs *FileSystem) Open(path string) int {
	f, ok := fs.files[path]
	if !ok {
		f = newFile(fs.b, path)
		fs.files[path] = f
	}
	fd := fs.freeFd
	fs.freeFd++
	fs.open[fd] = &Handle{filename: path, fd: fd}
	return fd
}

// Close releases fd. It panics if fd is not open (a driver/model bug).
func (fs *FileSystem) Close(fd int) {
	if _, ok := fs.open[fd]; !ok {
		panic(fmt.Sprintf("fs: close(): unknown descriptor %d", fd))
	}
	delete(fs.open, fd)
	if fd == fs.freeFd-1 {
		fs.freeFd--
	}
}

func (fs *FileSystem) handle(fd int) *Handle {
	h, ok := fs.open[fd]
	if !ok {
		panic(fmt.Sprintf("fs: unknown descriptor %d", fd))
	}
	return h
}

// Seek repositions fd's cursor to off.
func (fs *FileSystem) Seek(fd int, off uint64) {
	fs.handle(fd).off = off
}

// Read returns nBytes from fd's current offset and advances it,
// growing the backing file with fresh symbolic bytes if needed.
func (fs *FileSystem) Read(fd int, nBytes uint32) *expr.Node {
	h := fs.handle(fd)
	f := fs.files[h.filename]
	out := f.Read(h.off, nBytes)
	h.off += uint64(nBytes)
	return out
}

// Write stores data at fd's current offset and advances it.
func (fs *FileSystem) Write(fd int, data *expr.Node) {
	h := fs.handle(fd)
	f := fs.files[h.filename]
	f.Write(h.off, data)
	h.off += uint64(data.Width()) / 8
}

// File returns the named File, or nil if it has never been opened.
func (fs *FileSystem) File(path string) *File { return fs.files[path] }

// Files returns every File currently tracked, for dump-on-exit drivers.
func (fs *FileSystem) Files() []*File {
	out := make([]*File, 0, len(fs.files))
	for _, f := range fs.files {
		out = append(out, f)
	}
	return out
}

// Clone deep-copies every File and Handle.
func (fs *FileSystem) Clone() *FileSystem {
	out := &FileSystem{
		b:      fs.b,
		files:  make(map[string]*File, len(fs.files)),
		open:   make(map[int]*Handle, len(fs.open)),
		freeFd: fs.freeFd,
	}
	for path, f := range fs.files {
		out.files[path] = f.clone()
	}
	for fd, h := range fs.open {
		out.open[fd] = &Handle{filename: h.filename, off: h.off, fd: h.fd}
	}
	return out
}
