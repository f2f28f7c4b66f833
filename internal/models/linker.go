// Package models implements the external-function/syscall dispatch
// layer (spec §4.9): a Linker that resolves a binary's imported-
// function relocations to sentinel PCs and registers the Model that
// runs when the interpreter's PC lands on one, plus a reference set of
// libc (internal/models/libc) and Linux syscall (internal/models/linux)
// stubs grounded on original_source/models/*.
package models

import (
	"github.com/borzacchiello/naazgo/internal/arch"
	"github.com/borzacchiello/naazgo/internal/loader"
	"github.com/borzacchiello/naazgo/internal/state"
)

// Model is the interface an external-function stub satisfies; it is
// exactly state.Model, named here so model implementations read as
// "models.Model" rather than reaching into the state package.
type Model = state.Model

// unmodelledFunction is the fallback Model for an imported function
// with no registered stub: it terminates the state with a sentinel
// retcode rather than crashing the engine (spec §4.9).
type unmodelledFunction struct{ name string }

func (u *unmodelledFunction) Name() string { return "unmodelled_function" }
func (u *unmodelledFunction) Exec(s *state.State) state.Successors {
	s.MarkExited(309, "unmodelled function: "+u.name)
	return state.Successors{Exited: []*state.State{s}}
}

// Linker resolves a binary's imported-function relocations against a
// named registry of Models, allocating each a sentinel PC in the
// architecture's reserved external-function range (spec §4.9,
// grounded on original_source/models/Linker.cpp).
type Linker struct {
	arch     arch.Architecture
	models   map[string]Model
	nextAddr uint64
}

// NewLinker creates a Linker over a, its sentinel counter starting at
// a.ExtFuncBase().
func NewLinker(a arch.Architecture) *Linker {
	return &Linker{arch: a, models: make(map[string]Model), nextAddr: a.ExtFuncBase()}
}

// Register installs m under name, overriding any previous registration
// (the mechanism models.LoadLuaOverride uses to replace a stub without
// a recompile).
func (l *Linker) Register(name string, m Model) {
	l.models[name] = m
}

func (l *Linker) allocSentinel() uint64 {
	addr := l.nextAddr
	l.nextAddr += l.arch.PtrSize() / 8
	return addr
}

// Link walks s's address space relocations, resolving each imported
// function to a fresh sentinel PC: the resolved address is written at
// the relocation site and the sentinel is registered against the
// matching (or, absent one, the unmodelled-function fallback) Model.
// It also allocates a sentinel for the libc_start_main_exit_wrapper
// trampoline unconditionally, mirroring
// original_source/models/Linker.cpp's Linker::link.
func (l *Linker) Link(s *state.State) {
	ptrBits := uint32(l.arch.PtrSize())

	exitWrapper, ok := l.models["libc_start_main_exit_wrapper"]
	if !ok {
		panic("models: Linker.Link: libc_start_main_exit_wrapper not registered (call RegisterDefaults first)")
	}
	exitAddr := l.allocSentinel()
	s.RegisterLinkedFunction(exitAddr, exitWrapper)
	s.LibcStartMainExitAddr = exitAddr

	for _, reloc := range s.AS.Relocations() {
		if reloc.Kind != loader.RelocFunc {
			continue
		}
		model, ok := l.models[reloc.Name]
		if !ok {
			model = &unmodelledFunction{name: reloc.Name}
		}
		addr := l.allocSentinel()
		s.Write(reloc.SiteAddr, s.B.ConstU64(addr, ptrBits))
		s.RegisterLinkedFunction(addr, model)
	}
}
