// Package libc implements the reference libc function models
// registered by models.RegisterDefaults (spec §4.9, §5.14), grounded
// on original_source/models/libc/*.cpp: a representative, non-
// exhaustive subset of the dynamic symbols a statically-linked-against
// binary typically imports.
package libc

import (
	"github.com/borzacchiello/naazgo/internal/arch"
	"github.com/borzacchiello/naazgo/internal/expr"
	"github.com/borzacchiello/naazgo/internal/state"
)

// base is embedded by every libc model: it carries the architecture
// instance and calling convention a model call needs to read
// parameters and hand control back, since state.State itself carries
// no Architecture reference (doing so would cycle arch <-> state).
type base struct {
	Arch arch.Architecture
	CC   arch.CallConv
}

func (b base) intParam(s *state.State, i uint32) *expr.Node {
	return b.Arch.GetIntParam(b.CC, s, i)
}

func (b base) setReturnInt(s *state.State, val *expr.Node) {
	b.Arch.SetReturnIntValue(b.CC, s, val)
}

func (b base) handleReturn(s *state.State, succ *state.Successors) {
	b.Arch.HandleReturn(s, succ)
}

// mustConstU64 resolves n to a concrete value or panics with a
// component-prefixed diagnostic, mirroring the original's
// exit_fail()-on-symbolic-parameter pattern for the arguments these
// reference models do not attempt to support symbolically (spec's
// documented "FIXME: symbolic buffer/size" scope).
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

// readCString reads a NUL-terminated byte string from addr, one
// concrete byte at a time. A symbolic byte is a hard failure, matching
// the original's open()/sys_open() path-resolution loop.
func readCString(s *state.State, addr uint64) string {
	var out []byte
	for off := uint64(0); ; off++ {
		b := mustConstU64("libc: readCString", s.Read(addr+off, 1))
		if b == 0 {
			break
		}
		out = append(out, byte(b))
	}
	return string(out)
}
