package libc

import (
	"github.com/borzacchiello/naazgo/internal/expr"
	"github.com/borzacchiello/naazgo/internal/solver"
	"github.com/borzacchiello/naazgo/internal/state"
)

// resolvedString is one concrete resolution of a NUL-terminated byte
// string: the state it was resolved under (possibly a clone, if the
// terminator's position was symbolic and forked), the concatenated
// bytes read including the terminator, and their count.
type resolvedString struct {
	State    *state.State
	Data     *expr.Node
	NumBytes int
}

// resolveString reads a NUL-terminated string starting at addr,
// forking up to maxForks additional states whenever the byte at the
// current offset could be either the terminator or not; maxSize<0
// means unbounded. Ported from
// original_source/models/libc/string_utils.cpp::resolve_string.
func resolveString(s *state.State, addr uint64, maxForks int, maxSize int) []resolvedString {
	b := s.B
	zero := b.ConstU64(0, 8)

	var res []resolvedString
	var cur *expr.Node
	off := uint64(0)

	for maxSize != 0 {
		if maxSize > 0 {
			maxSize--
		}

		byt := s.Read(addr+off, 1)
		if cur == nil {
			cur = byt
		} else {
			cur = b.Concat(cur, byt)
		}

		if byt.Kind() == expr.KindConst {
			v, err := byt.AsConst().AsU64()
			if err != nil {
				panic("libc: resolveString: " + err.Error())
			}
			if v == 0 {
				break
			}
		} else {
			isZero := b.Eq(byt, zero)
			sat, err := s.Solver.MayBeTrue(isZero)
			if err != nil {
				panic("libc: resolveString: " + err.Error())
			}
			if sat == solver.SAT {
				succ := s
				if maxForks > 0 {
					succ = s.Clone()
				}
				succ.Solver.Add(isZero)
				succ.Write(addr+off, zero)
				res = append(res, resolvedString{State: succ, Data: cur, NumBytes: int(off) + 1})

				if maxForks <= 0 {
					return res
				}
				notZeroSat, err := s.Solver.CheckSatAndAddIfSat(b.BoolNot(isZero))
				if err != nil {
					panic("libc: resolveString: " + err.Error())
				}
				if notZeroSat != solver.SAT {
					return res
				}
				maxForks--
			} else {
				s.Write(addr+off, zero)
			}
		}
		off++
	}

	res = append(res, resolvedString{State: s, Data: cur, NumBytes: int(off) + 1})
	return res
}
