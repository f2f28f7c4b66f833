// Package bootstrap assembles a ready-to-run entry state.State from a
// binary on disk: load the ELF image, pick the x86-64 architecture and
// reference lifter, link the default libc models and Linux syscalls,
// and initialize registers per the calling convention. It is grounded
// on original_source/loader/BFDLoader.cpp's entry_state(), which plays
// the same role for the original's tools/*.cpp drivers.
package bootstrap

import (
	"fmt"

	"github.com/borzacchiello/naazgo/internal/arch"
	"github.com/borzacchiello/naazgo/internal/expr"
	"github.com/borzacchiello/naazgo/internal/interp"
	"github.com/borzacchiello/naazgo/internal/lifter/x86lift"
	"github.com/borzacchiello/naazgo/internal/loader"
	"github.com/borzacchiello/naazgo/internal/models"
	"github.com/borzacchiello/naazgo/internal/solver/z3"
	"github.com/borzacchiello/naazgo/internal/state"
)

// EntryState loads path (an x86-64 ELF executable), builds an entry
// state.State at its entry point with argv set, and returns it along
// with an Interpreter ready to step it. Only x86-64 is supported: the
// reference lifter this module ships covers no other architecture
// (spec §5.11).
func EntryState(path string, argv []string) (*state.State, *interp.Interpreter, error) {
	as, f, err := loader.LoadELF(path)
	if err != nil {
		return nil, nil, err
	}
	if f.Machine != elfMachineX8664 {
		return nil, nil, fmt.Errorf("bootstrap: unsupported architecture %v (only x86-64 is supported)", f.Machine)
	}

	b := expr.NewBuilder()
	a := arch.NewX86_64()
	l := x86lift.New()
	backend := z3.New()
	s := state.New(b, as, l, backend, f.Entry)
	a.InitState(s)

	argvBytes := make([][]byte, len(argv))
	for i, arg := range argv {
		argvBytes[i] = []byte(arg)
	}
	s.SetArgv(argvBytes)

	linker := models.NewLinker(a)
	models.RegisterDefaults(linker)
	linker.Link(s)

	I := interp.New(a, interp.DefaultOptions())
	models.RegisterLinuxSyscalls(I, a)

	return s, I, nil
}

// elfMachineX8664 mirrors elf.EM_X86_64 without importing debug/elf
// here purely for that one constant (bootstrap only needs to compare,
// never to parse the file itself — that's internal/loader's job).
const elfMachineX8664 = 62
