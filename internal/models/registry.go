package models

import (
	"github.com/borzacchiello/naazgo/internal/arch"
	"github.com/borzacchiello/naazgo/internal/interp"
	"github.com/borzacchiello/naazgo/internal/models/libc"
	"github.com/borzacchiello/naazgo/internal/models/linux"
)

// RegisterDefaults installs the reference libc function registry into
// l, the static-registry-assembled-at-start pattern spec §9 prefers
// over the original's constructor-side-effect REGISTER_LIBC_FUNCTIONS
// macro (original_source/models/Linker.cpp).
func RegisterDefaults(l *Linker) {
	for name, m := range libc.Models(l.arch, arch.CallConvCDecl) {
		l.Register(name, m)
	}
}

// RegisterLinuxSyscalls installs the reference Linux syscall registry
// into I, dispatched by number through the interpreter's CALLOTHER
// intrinsic table (spec §4.9).
func RegisterLinuxSyscalls(I *interp.Interpreter, a arch.Architecture) {
	for num, sys := range linux.Models(a, arch.CallConvCDecl) {
		I.RegisterSyscall(num, sys)
	}
}
