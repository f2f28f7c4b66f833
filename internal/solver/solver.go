// Package solver implements the solver facade: a constraint manager
// plus a current model, cheap model-completion evaluation, and a
// pluggable backend invoked only when model-completion is inconclusive.
package solver

import (
	"sync"

	"github.com/borzacchiello/naazgo/internal/bvconst"
	"github.com/borzacchiello/naazgo/internal/constraint"
	"github.com/borzacchiello/naazgo/internal/expr"
)

// CheckResult is the three-valued outcome of a satisfiability query.
// UNKNOWN must be treated by callers as non-reachability: it is not
// proof that a path is infeasible, only that the backend could not
// decide it within its resource bounds.
type CheckResult int

const (
	SAT CheckResult = iota
	UNSAT
	UNKNOWN
)

func (r CheckResult) String() string {
	switch r {
	case SAT:
		return "SAT"
	case UNSAT:
		return "UNSAT"
	default:
		return "UNKNOWN"
	}
}

// Backend is the minimal SMT contract the facade drives: a query of
// "is pi(query) ∧ query satisfiable", a model for the last SAT check,
// and a bounded distinct-values enumeration used by evaluate_upto.
type Backend interface {
	Check(query *expr.Node) (CheckResult, error)
	Model() map[uint32]bvconst.BVConst
	EvalUpto(val, pi *expr.Node, n int) ([]bvconst.BVConst, error)
}

// Solver owns a constraint manager and a possibly-partial/stale model
// of symbol assignments. It is the per-state facade the interpreter and
// scheduler query; it is not safe for concurrent use by multiple
// goroutines over the same state (a state forks rather than shares).
type Solver struct {
	mu      sync.Mutex
	manager *constraint.Manager
	model   map[uint32]bvconst.BVConst
	backend Backend
	b       *expr.Builder
}

// New creates a Solver with an empty constraint manager.
func New(b *expr.Builder, backend Backend) *Solver {
	return &Solver{
		manager: constraint.NewManager(b),
		model:   make(map[uint32]bvconst.BVConst),
		backend: backend,
		b:       b,
	}
}

// Manager returns the underlying constraint manager.
func (s *Solver) Manager() *constraint.Manager { return s.manager }

// Add forwards c to the manager and invalidates model entries for every
// symbol in c's dependency closure, since c may contradict the
// assumptions those entries were derived under.
func (s *Solver) Add(c *expr.Node) {
	s.addInternal(c, true)
}

func (s *Solver) addInternal(c *expr.Node, invalidateModel bool) {
	if c.Kind() == expr.KindBoolConst && c.AsBool() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manager.Add(c)
	if invalidateModel {
		for sym := range s.manager.Dependencies(c) {
			delete(s.model, sym)
		}
	}
}

// checkSat is the shared core of Satisfiable/MayBeTrue/CheckSatAndAddIfSat:
// it first tries to decide query purely via model-completion (cheap),
// falling back to the backend only when that is inconclusive.
func (s *Solver) checkSat(query *expr.Node, populateModel bool) (CheckResult, error) {
	if query.Kind() == expr.KindBoolConst {
		if query.AsBool() {
			return SAT, nil
		}
		return UNSAT, nil
	}

	s.mu.Lock()
	modelCopy := make(map[uint32]bvconst.BVConst, len(s.model))
	for k, v := range s.model {
		modelCopy[k] = v
	}
	s.mu.Unlock()

	evaluated := expr.Evaluate(s.b, query, modelCopy, false)
	if evaluated.Kind() == expr.KindBoolConst && evaluated.AsBool() {
		return SAT, nil
	}

	s.mu.Lock()
	pi := s.manager.Pi(query)
	s.mu.Unlock()

	res, err := s.backend.Check(s.b.BoolAnd(pi, query))
	if err != nil {
		return UNKNOWN, err
	}
	if res == SAT && populateModel {
		m := s.backend.Model()
		s.mu.Lock()
		for sym, val := range m {
			s.model[sym] = val
		}
		s.mu.Unlock()
	}
	return res, nil
}

// Satisfiable reports whether the current path condition is satisfiable.
func (s *Solver) Satisfiable() (CheckResult, error) {
	s.mu.Lock()
	pi := s.manager.Pi(nil)
	s.mu.Unlock()
	return s.checkSat(pi, true)
}

// MayBeTrue reports whether pi() ∧ c is satisfiable, without mutating
// the manager or requiring c to already have been added.
func (s *Solver) MayBeTrue(c *expr.Node) (CheckResult, error) {
	return s.checkSat(c, false)
}

// CheckSatAndAddIfSat is MayBeTrue(c) followed by Add(c) when SAT, using
// the model the check already produced rather than re-invalidating it.
func (s *Solver) CheckSatAndAddIfSat(c *expr.Node) (CheckResult, error) {
	res, err := s.checkSat(c, true)
	if err != nil {
		return res, err
	}
	if res == SAT {
		s.addInternal(c, false)
	}
	return res, nil
}

// Evaluate tries model-completion first; only if some symbol in e's
// dependency closure is missing from the model does it fall back to a
// satisfiability check. A missing symbol after a SAT result is completed
// with zero, so evaluation is total whenever the path is feasible at all.
func (s *Solver) Evaluate(e *expr.Node) (bvconst.BVConst, bool) {
	s.mu.Lock()
	deps := s.manager.Dependencies(e)
	needsCheck := false
	for sym := range deps {
		if _, ok := s.model[sym]; !ok {
			needsCheck = true
			break
		}
	}
	s.mu.Unlock()

	if needsCheck {
		s.mu.Lock()
		pi := s.manager.Pi(e)
		s.mu.Unlock()
		res, err := s.checkSat(pi, true)
		if err != nil || res != SAT {
			return bvconst.BVConst{}, false
		}
	}

	s.mu.Lock()
	modelCopy := make(map[uint32]bvconst.BVConst, len(s.model))
	for k, v := range s.model {
		modelCopy[k] = v
	}
	s.mu.Unlock()

	result := expr.Evaluate(s.b, e, modelCopy, true)
	switch result.Kind() {
	case expr.KindConst:
		return result.AsConst(), true
	case expr.KindBoolConst:
		if result.AsBool() {
			return bvconst.FromU64(1, 1), true
		}
		return bvconst.FromU64(0, 1), true
	default:
		return bvconst.BVConst{}, false
	}
}

// EvaluateUpto returns up to n distinct satisfying values of e, or
// (nil, false) if e's path condition is itself unsatisfiable.
func (s *Solver) EvaluateUpto(e *expr.Node, n int) ([]bvconst.BVConst, bool) {
	s.mu.Lock()
	pi := s.manager.Pi(e)
	s.mu.Unlock()

	res, err := s.checkSat(pi, true)
	if err != nil || res != SAT {
		return nil, false
	}
	vals, err := s.backend.EvalUpto(e, pi, n)
	if err != nil {
		return nil, false
	}
	return vals, true
}

// Clone produces an independent solver sharing the same backend and
// builder but copying the manager and model by value.
func (s *Solver) Clone() *Solver {
	s.mu.Lock()
	defer s.mu.Unlock()
	model := make(map[uint32]bvconst.BVConst, len(s.model))
	for k, v := range s.model {
		model[k] = v
	}
	return &Solver{
		manager: s.manager.Clone(),
		model:   model,
		backend: s.backend,
		b:       s.b,
	}
}
