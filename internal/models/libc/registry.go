package libc

import (
	"github.com/borzacchiello/naazgo/internal/arch"
	"github.com/borzacchiello/naazgo/internal/state"
)

// Models returns the reference libc function registry, each bound to
// architecture a's integer calling convention cc, keyed by the symbol
// name a relocation entry would name (spec §5.14).
func Models(a arch.Architecture, cc arch.CallConv) map[string]state.Model {
	b := base{Arch: a, CC: cc}
	return map[string]state.Model{
		"malloc":                       &malloc{b},
		"calloc":                       &calloc{b},
		"realloc":                      &realloc{b},
		"free":                         &free{b},
		"exit":                         &exit{b},
		"__libc_start_main":            &libcStartMain{b},
		"libc_start_main_exit_wrapper": &libcStartMainExitWrapper{b},
		"open":                         &open{b},
		"read":                         &read{b},
		"write":                        &write{b},
		"close":                        &closeFd{b},
		"memcpy":                       &memcpy{b},
		"memcmp":                       &memcmp{b},
		"strlen":                       &strlen{b},
		"strncpy":                      &strncpy{b},
		"strcmp":                       &strcmp{b},
		"puts":                         &puts{b},
		"srand":                        &srand{b},
		"rand":                         &rand{b},
		"ptrace":                       &ptrace{b},
	}
}
