// Package z3 adapts github.com/aclements/go-z3's bindings to the
// solver.Backend contract: translate an expression-DAG query to Z3 ASTs,
// check satisfiability, and read back a model or a bounded distinct-value
// enumeration.
package z3

import (
	"fmt"
	"sync"

	"github.com/aclements/go-z3/z3"

	"github.com/borzacchiello/naazgo/internal/bvconst"
	"github.com/borzacchiello/naazgo/internal/expr"
	"github.com/borzacchiello/naazgo/internal/solver"
)

// Backend is a single-threaded Z3 solver instance. Z3 contexts are not
// safe for concurrent use, so a Backend must not be shared between
// states advanced on different goroutines without external locking; the
// mutex below only protects against accidental concurrent Check calls
// from within this process, it does not parallelize them.
type Backend struct {
	mu  sync.Mutex
	ctx *z3.Context

	lastModel map[uint32]bvconst.BVConst
}

// New creates a Z3-backed solver.Backend.
func New() *Backend {
	cfg := z3.NewContextConfig()
	ctx := z3.NewContext(cfg)
	return &Backend{ctx: ctx}
}

var _ solver.Backend = (*Backend)(nil)

// Check determines satisfiability of query by translating it to Z3 and
// running a fresh solver instance against it.
func (z *Backend) Check(query *expr.Node) (solver.CheckResult, error) {
	z.mu.Lock()
	defer z.mu.Unlock()

	s := z.ctx.NewSolver()
	tr := newTranslator(z.ctx)
	ast, err := tr.toBool(query)
	if err != nil {
		return solver.UNKNOWN, err
	}
	s.Assert(ast)

	sat, err := s.Check()
	if err != nil {
		return solver.UNKNOWN, err
	}
	if !sat {
		z.lastModel = nil
		return solver.UNSAT, nil
	}

	model, err := readModel(s, tr)
	if err != nil {
		return solver.UNKNOWN, err
	}
	z.lastModel = model
	return solver.SAT, nil
}

// Model returns the model populated by the most recent SAT Check call.
func (z *Backend) Model() map[uint32]bvconst.BVConst {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.lastModel
}

// EvalUpto enumerates up to n distinct satisfying values of val under
// pi, by repeatedly asserting val != every value found so far and
// re-querying until UNSAT or the bound is reached.
func (z *Backend) EvalUpto(val, pi *expr.Node, n int) ([]bvconst.BVConst, error) {
	z.mu.Lock()
	defer z.mu.Unlock()

	s := z.ctx.NewSolver()
	tr := newTranslator(z.ctx)
	piAst, err := tr.toBool(pi)
	if err != nil {
		return nil, err
	}
	s.Assert(piAst)

	valAst, err := tr.toBV(val)
	if err != nil {
		return nil, err
	}

	var out []bvconst.BVConst
	for len(out) < n {
		sat, err := s.Check()
		if err != nil {
			return out, err
		}
		if !sat {
			break
		}
		m := s.Model()
		v, err := evalBVInModel(m, valAst, val.Width())
		if err != nil {
			return out, err
		}
		out = append(out, v)
		excluded, err := tr.neqConst(valAst, v)
		if err != nil {
			return out, err
		}
		s.Assert(excluded)
	}
	return out, nil
}

func readModel(s *z3.Solver, tr *translator) (map[uint32]bvconst.BVConst, error) {
	m := s.Model()
	out := make(map[uint32]bvconst.BVConst, len(tr.symByID))
	for id, ast := range tr.symByID {
		width := tr.symWidth[id]
		v, err := evalBVInModel(m, ast, width)
		if err != nil {
			return nil, fmt.Errorf("z3: reading model for symbol %d: %w", id, err)
		}
		out[id] = v
	}
	return out, nil
}

func evalBVInModel(m *z3.Model, ast z3.BV, width uint32) (bvconst.BVConst, error) {
	val, ok := m.Eval(ast)
	if !ok {
		return bvconst.Zero(width), nil
	}
	s, err := val.AsBigInt()
	if err != nil {
		return bvconst.BVConst{}, err
	}
	return bvconst.FromBig(s, width), nil
}
