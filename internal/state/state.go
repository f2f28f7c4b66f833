// Package state implements the composite State (spec §3, unnumbered
// "State" paragraph): the register file, RAM, file system, solver
// facade, program counter, call-return stack trace, argv, heap bump
// cursor, exit status, and the linked-external-function table a
// single symbolic execution path owns. Cloning a State produces an
// independent path that shares the backing AddressSpace and lifter
// but deep-copies everything else (spec §5, "per-state resources").
package state

import (
	"fmt"

	"github.com/borzacchiello/naazgo/internal/expr"
	"github.com/borzacchiello/naazgo/internal/fs"
	"github.com/borzacchiello/naazgo/internal/lifter"
	"github.com/borzacchiello/naazgo/internal/loader"
	"github.com/borzacchiello/naazgo/internal/memory"
	"github.com/borzacchiello/naazgo/internal/solver"
)

// Model is the interface a linked external-function/syscall stub
// satisfies (spec §4.9). It lives here, not in internal/models, so
// that State can hold a {addr -> Model} table without models needing
// to import state's own package cycle back: models.* types satisfy
// this interface structurally.
type Model interface {
	Name() string
	Exec(s *State) Successors
}

// Successors is the pair of outflow lists a single interpreter step or
// model invocation produces: states still runnable, and states that
// have exited (spec §4.7/§4.9, mirrors the original's ExecutorResult).
type Successors struct {
	Active []*State
	Exited []*State
}

// Exit records why a state left the active pool.
type Exit struct {
	Code   int32
	Reason string
}

// State is the composite symbolic execution path.
type State struct {
	B *expr.Builder

	Regs *memory.MapMemory
	RAM  *memory.MapMemory
	FS   *fs.FileSystem

	Solver *solver.Solver

	AS     *loader.AddressSpace
	Lifter lifter.Lifter

	pc         uint64
	stackTrace []uint64
	argv       [][]byte
	heapPtr    uint64

	linked map[uint64]Model

	Exited  bool
	Exit    Exit
	ExtBase uint64 // where the next linked-function sentinel PC is allocated

	// LibcStartMainExitAddr is the sentinel PC models.Linker installs
	// for the libc_start_main_exit_wrapper trampoline, the address
	// __libc_start_main's model hands to Arch.SetReturn before
	// jumping to main (spec §4.9, original_source/models/libc/libc_start_main.cpp).
	LibcStartMainExitAddr uint64
}

// New creates a fresh State at entry pc over as, using lifter l to
// decode instructions and backend for SMT queries. RAM is backed by as
// (uninitialized reads fall through to concrete bytes, then to the
// configured policy); the register file is never backed by a concrete
// image.
func New(b *expr.Builder, as *loader.AddressSpace, l lifter.Lifter, backend solver.Backend, pc uint64) *State {
	return &State{
		B:      b,
		Regs:   memory.New(b, "regs", nil, memory.RetSym),
		RAM:    memory.New(b, "mem", as, memory.RetSym),
		FS:     fs.New(b),
		Solver: solver.New(b, backend),
		AS:     as,
		Lifter: l,
		pc:     pc,
		linked: make(map[uint64]Model),
	}
}

// PC returns the next address to fetch/execute.
func (s *State) PC() uint64 { return s.pc }

// SetPC updates the next address to fetch/execute.
func (s *State) SetPC(pc uint64) { s.pc = pc }

// StackTrace returns the vector of pushed return addresses, outermost
// call first.
func (s *State) StackTrace() []uint64 { return s.stackTrace }

// PushReturn records retAddr as the fall-through of a CALL.
func (s *State) PushReturn(retAddr uint64) {
	s.stackTrace = append(s.stackTrace, retAddr)
}

// PopReturn pops and returns the most recent pushed return address. It
// is a no-op (returning 0, false) on an empty stack trace, matching
// the original's tolerant register_ret().
func (s *State) PopReturn() (uint64, bool) {
	if len(s.stackTrace) == 0 {
		return 0, false
	}
	n := len(s.stackTrace) - 1
	addr := s.stackTrace[n]
	s.stackTrace = s.stackTrace[:n]
	return addr, true
}

// Argv returns the program's argument vector as raw byte strings.
func (s *State) Argv() [][]byte { return s.argv }

// SetArgv installs argv, each argument stored concretely.
func (s *State) SetArgv(argv [][]byte) { s.argv = argv }

// Allocate bumps the heap cursor by size bytes (rounded up to a 16-byte
// alignment, matching a conventional malloc's minimum alignment) and
// returns the base address of the new region.
func (s *State) Allocate(size uint64) uint64 {
	const align = 16
	ptr := s.heapPtr
	s.heapPtr += (size + align - 1) &^ (align - 1)
	return ptr
}

// SetHeapBase initializes the bump allocator's starting address; call
// once during Arch.InitState.
func (s *State) SetHeapBase(base uint64) { s.heapPtr = base }

// Read reads nBytes little-endian bytes from RAM at a concrete address.
func (s *State) Read(addr uint64, nBytes uint32) *expr.Node {
	return s.RAM.Read(addr, nBytes, memory.LittleEndian)
}

// Write writes data to RAM at a concrete address, little-endian.
func (s *State) Write(addr uint64, data *expr.Node) {
	s.RAM.Write(addr, data, memory.LittleEndian)
}

// mustConcreteAddr resolves addr to a concrete uint64, panicking with
// the spec's "symbolic memory access" hard-failure otherwise (spec
// §4.5: symbolic addresses in loads/stores are explicitly unsupported).
func mustConcreteAddr(addr *expr.Node) uint64 {
	if addr.Kind() != expr.KindConst {
		panic("state: symbolic memory access")
	}
	v, err := addr.AsConst().AsU64()
	if err != nil {
		panic("state: " + err.Error())
	}
	return v
}

// ReadAt reads nBytes at an address expression, which must evaluate to
// a concrete constant; used by architecture/model helpers that carry
// addresses as expr.Node (e.g. the stack pointer).
func (s *State) ReadAt(addr *expr.Node, nBytes uint32) *expr.Node {
	return s.Read(mustConcreteAddr(addr), nBytes)
}

// WriteAt writes data at an address expression, which must evaluate to
// a concrete constant.
func (s *State) WriteAt(addr *expr.Node, data *expr.Node) {
	s.Write(mustConcreteAddr(addr), data)
}

// ReadBuf reads a buffer of concrete length nBytes, byte by byte, as a
// single wide expression; distinct from Read only in name, kept to
// mirror the original's read_buf/read naming split used for
// memcpy-style bulk model operations.
func (s *State) ReadBuf(addr uint64, nBytes uint32) *expr.Node {
	return s.Read(addr, nBytes)
}

// WriteBuf is the bulk-copy counterpart of ReadBuf.
func (s *State) WriteBuf(addr uint64, data *expr.Node) {
	s.Write(addr, data)
}

// RegRead reads a register by name.
func (s *State) RegRead(name string) *expr.Node {
	v, ok := s.Lifter.Reg(name)
	if !ok {
		panic(fmt.Sprintf("state: missing register %q", name))
	}
	return s.Regs.Read(v.Offset, v.Size, memory.LittleEndian)
}

// RegWrite writes a register by name.
func (s *State) RegWrite(name string, val *expr.Node) {
	v, ok := s.Lifter.Reg(name)
	if !ok {
		panic(fmt.Sprintf("state: missing register %q", name))
	}
	if val.Width() != v.Size*8 {
		panic(fmt.Sprintf("state: reg_write(%s): width mismatch: %d != %d", name, val.Width(), v.Size*8))
	}
	s.Regs.Write(v.Offset, val, memory.LittleEndian)
}

// RegReadOffset reads size bytes of the register file at a raw offset,
// used by the interpreter when resolving a register-space varnode.
func (s *State) RegReadOffset(offset uint64, size uint32) *expr.Node {
	return s.Regs.Read(offset, size, memory.LittleEndian)
}

// RegWriteOffset writes a raw register-file offset.
func (s *State) RegWriteOffset(offset uint64, val *expr.Node) {
	s.Regs.Write(offset, val, memory.LittleEndian)
}

// GetCodeAt returns up to maxLen bytes of the concrete backing image
// starting at addr, for instruction fetch. Symbolic code regions are
// not supported: the AddressSpace is always concrete.
func (s *State) GetCodeAt(addr uint64, maxLen uint32) ([]byte, bool) {
	ref, ok := s.AS.GetRef(addr)
	if !ok {
		return nil, false
	}
	if uint32(len(ref)) > maxLen {
		ref = ref[:maxLen]
	}
	return ref, true
}

// RegisterLinkedFunction records that addr is a sentinel trampoline PC
// running model m instead of lifted bytes.
func (s *State) RegisterLinkedFunction(addr uint64, m Model) {
	s.linked[addr] = m
}

// IsLinkedFunction reports whether addr is a registered sentinel PC.
func (s *State) IsLinkedFunction(addr uint64) bool {
	_, ok := s.linked[addr]
	return ok
}

// LinkedModel returns the model registered at addr, or nil.
func (s *State) LinkedModel(addr uint64) Model { return s.linked[addr] }

// Satisfiable reports whether the state's path condition is
// satisfiable, per the solver facade.
func (s *State) Satisfiable() (solver.CheckResult, error) {
	return s.Solver.Satisfiable()
}

// MarkExited marks the state as exited with the given retcode and reason,
// the path-level-error outflow (spec §7 tier 2).
func (s *State) MarkExited(code int32, reason string) {
	s.Exited = true
	s.Exit = Exit{Code: code, Reason: reason}
}

// Clone produces an independent State: memories, solver, and the
// stack trace are deep-copied; the AddressSpace, Lifter, and builder
// are shared by reference (spec §3 Clone invariant).
func (s *State) Clone() *State {
	linked := make(map[uint64]Model, len(s.linked))
	for k, v := range s.linked {
		linked[k] = v
	}
	stackTrace := make([]uint64, len(s.stackTrace))
	copy(stackTrace, s.stackTrace)
	argv := make([][]byte, len(s.argv))
	copy(argv, s.argv)

	return &State{
		B:                     s.B,
		Regs:                  s.Regs.Clone(),
		RAM:                   s.RAM.Clone(),
		FS:                    s.FS.Clone(),
		Solver:                s.Solver.Clone(),
		AS:                    s.AS,
		Lifter:                s.Lifter,
		pc:                    s.pc,
		stackTrace:            stackTrace,
		argv:                  argv,
		heapPtr:               s.heapPtr,
		linked:                linked,
		Exited:                s.Exited,
		Exit:                  s.Exit,
		ExtBase:               s.ExtBase,
		LibcStartMainExitAddr: s.LibcStartMainExitAddr,
	}
}

// DumpFS evaluates every byte of every open file under the state's
// current model and writes it to outDir/<name>, for driver use after a
// satisfying state is found (spec §6, "Persisted state").
func (s *State) DumpFS(writeFile func(name string, data []byte) error) error {
	for _, f := range s.FS.Files() {
		size := f.Size()
		if size == 0 {
			continue
		}
		data := make([]byte, size)
		for i := uint64(0); i < size; i++ {
			b := f.Read(i, 1)
			v, ok := s.Solver.Evaluate(b)
			if !ok {
				return fmt.Errorf("state: DumpFS: %s: unsatisfiable at offset %d", f.Name(), i)
			}
			u, err := v.AsU64()
			if err != nil {
				return fmt.Errorf("state: DumpFS: %s: %w", f.Name(), err)
			}
			data[i] = byte(u)
		}
		if err := writeFile(f.Name(), data); err != nil {
			return err
		}
	}
	return nil
}
