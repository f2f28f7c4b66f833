// Package linux implements a representative subset of the Linux
// syscall table, dispatched by the interpreter's CALLOTHER intrinsic
// table keyed by syscall number rather than the Linker's by-name
// external-function table (spec §4.9,
// original_source/models/linux_syscalls/*.cpp). Parameters are read
// through the same integer calling-convention accessor the libc
// models use (arch.CallConvCDecl) rather than a dedicated raw-syscall-
// ABI accessor — a deliberate simplification, since this reference
// engine only models one integer calling convention end to end.
package linux

import (
	"github.com/borzacchiello/naazgo/internal/arch"
	"github.com/borzacchiello/naazgo/internal/interp"
)

// x86-64 syscall numbers for the subset modeled here.
const (
	SysRead  = 0
	SysWrite = 1
	SysOpen  = 2
	SysClose = 3
	SysExit  = 60
)

// Models returns the {syscall number -> Syscall} registry for
// architecture a's integer calling convention.
func Models(a arch.Architecture, cc arch.CallConv) map[uint64]interp.Syscall {
	b := base{arch: a, cc: cc}
	return map[uint64]interp.Syscall{
		SysRead:  &sysRead{b},
		SysWrite: &sysWrite{b},
		SysOpen:  &sysOpen{b},
		SysClose: &sysClose{b},
		SysExit:  &sysExit{b},
	}
}
