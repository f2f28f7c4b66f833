package solver

import (
	"testing"

	"github.com/borzacchiello/naazgo/internal/bvconst"
	"github.com/borzacchiello/naazgo/internal/expr"
)

// bruteForceBackend is a Backend test double: for the small, narrow-width
// queries these tests exercise it just enumerates every assignment of
// every symbol mentioned in the query and checks the result concretely.
// It exists purely to exercise the facade's model-cache and query-shape
// logic without requiring a real SMT engine in the test binary.
type bruteForceBackend struct {
	b       *expr.Builder
	symbols *expr.SymbolTable
	lastSAT map[uint32]bvconst.BVConst
}

func newBruteForceBackend(b *expr.Builder) *bruteForceBackend {
	return &bruteForceBackend{b: b, symbols: b.Symbols}
}

func collectSyms(n *expr.Node, out map[uint32]uint32, visited map[uint64]bool) {
	if visited[n.ID()] {
		return
	}
	visited[n.ID()] = true
	if n.Kind() == expr.KindSym {
		out[n.SymID()] = n.Width()
	}
	for _, c := range n.Children() {
		collectSyms(c, out, visited)
	}
}

func (f *bruteForceBackend) Check(query *expr.Node) (CheckResult, error) {
	syms := make(map[uint32]uint32)
	collectSyms(query, syms, make(map[uint64]bool))

	ids := make([]uint32, 0, len(syms))
	widths := make([]uint32, 0, len(syms))
	for id, w := range syms {
		ids = append(ids, id)
		widths = append(widths, w)
	}

	var assignment = make([]uint64, len(ids))
	var search func(i int) bool
	search = func(i int) bool {
		if i == len(ids) {
			model := make(map[uint32]bvconst.BVConst, len(ids))
			for k, id := range ids {
				model[id] = bvconst.FromU64(assignment[k], widths[k])
			}
			result := expr.Evaluate(f.b, query, model, true)
			if result.Kind() == expr.KindBoolConst && result.AsBool() {
				f.lastSAT = model
				return true
			}
			return false
		}
		limit := uint64(1) << widths[i]
		if limit > 16 {
			limit = 16 // bounded search: tests only use small domains
		}
		for v := uint64(0); v < limit; v++ {
			assignment[i] = v
			if search(i + 1) {
				return true
			}
		}
		return false
	}

	if search(0) {
		return SAT, nil
	}
	return UNSAT, nil
}

func (f *bruteForceBackend) Model() map[uint32]bvconst.BVConst { return f.lastSAT }

func (f *bruteForceBackend) EvalUpto(val, pi *expr.Node, n int) ([]bvconst.BVConst, error) {
	syms := make(map[uint32]uint32)
	collectSyms(pi, syms, make(map[uint64]bool))
	collectSyms(val, syms, make(map[uint64]bool))

	ids := make([]uint32, 0, len(syms))
	widths := make([]uint32, 0, len(syms))
	for id, w := range syms {
		ids = append(ids, id)
		widths = append(widths, w)
	}

	seen := make(map[string]bool)
	var out []bvconst.BVConst
	var assignment = make([]uint64, len(ids))
	var search func(i int) bool
	search = func(i int) bool {
		if len(out) >= n {
			return true
		}
		if i == len(ids) {
			model := make(map[uint32]bvconst.BVConst, len(ids))
			for k, id := range ids {
				model[id] = bvconst.FromU64(assignment[k], widths[k])
			}
			pr := expr.Evaluate(f.b, pi, model, true)
			if pr.Kind() != expr.KindBoolConst || !pr.AsBool() {
				return false
			}
			vr := expr.Evaluate(f.b, val, model, true)
			if vr.Kind() != expr.KindConst {
				return false
			}
			key := vr.AsConst().HexString()
			if !seen[key] {
				seen[key] = true
				out = append(out, vr.AsConst())
			}
			return len(out) >= n
		}
		limit := uint64(1) << widths[i]
		if limit > 16 {
			limit = 16
		}
		for v := uint64(0); v < limit; v++ {
			assignment[i] = v
			if search(i + 1) {
				return true
			}
		}
		return false
	}
	search(0)
	return out, nil
}

func TestSatisfiableEmptyIsSAT(t *testing.T) {
	b := expr.NewBuilder()
	s := New(b, newBruteForceBackend(b))
	res, err := s.Satisfiable()
	if err != nil || res != SAT {
		t.Fatalf("empty solver should be trivially SAT, got %v, err=%v", res, err)
	}
}

func TestAddThenSatisfiable(t *testing.T) {
	b := expr.NewBuilder()
	s := New(b, newBruteForceBackend(b))
	x := b.Sym("x", 4)
	s.Add(b.Eq(x, b.ConstU64(3, 4)))

	res, err := s.Satisfiable()
	if err != nil || res != SAT {
		t.Fatalf("x==3 should be SAT, got %v, err=%v", res, err)
	}

	s.Add(b.Eq(x, b.ConstU64(5, 4)))
	res, err = s.Satisfiable()
	if err != nil || res != UNSAT {
		t.Fatalf("x==3 && x==5 should be UNSAT, got %v, err=%v", res, err)
	}
}

func TestModelInvalidationOnAdd(t *testing.T) {
	b := expr.NewBuilder()
	s := New(b, newBruteForceBackend(b))
	x := b.Sym("x", 4)
	s.Add(b.Eq(x, b.ConstU64(3, 4)))
	if _, err := s.Satisfiable(); err != nil {
		t.Fatal(err)
	}
	if v, ok := s.Evaluate(x); !ok || !v.Eq(bvconst.FromU64(3, 4)) {
		t.Fatalf("expected x to evaluate to 3 under the cached model")
	}

	// Adding a fresh constraint over x must drop the stale model entry.
	y := b.Sym("y", 4)
	s.Add(b.Ult(x, y))
	s.mu.Lock()
	_, stillCached := s.model[x.SymID()]
	s.mu.Unlock()
	if stillCached {
		t.Fatalf("model entry for x should have been invalidated by a new constraint over x")
	}
}

func TestMayBeTrueDoesNotMutate(t *testing.T) {
	b := expr.NewBuilder()
	s := New(b, newBruteForceBackend(b))
	x := b.Sym("x", 4)
	s.Add(b.Eq(x, b.ConstU64(1, 4)))

	before := len(s.manager.All())
	res, err := s.MayBeTrue(b.Eq(x, b.ConstU64(2, 4)))
	if err != nil || res != UNSAT {
		t.Fatalf("x==1, asking x==2: expected UNSAT, got %v", res)
	}
	if len(s.manager.All()) != before {
		t.Fatalf("MayBeTrue must not add the queried constraint")
	}
}

func TestCheckSatAndAddIfSat(t *testing.T) {
	b := expr.NewBuilder()
	s := New(b, newBruteForceBackend(b))
	x := b.Sym("x", 4)

	res, err := s.CheckSatAndAddIfSat(b.Eq(x, b.ConstU64(7, 4)))
	if err != nil || res != SAT {
		t.Fatalf("expected SAT, got %v, err=%v", res, err)
	}
	if len(s.manager.All()) != 1 {
		t.Fatalf("CheckSatAndAddIfSat should have added the constraint on SAT")
	}

	res, err = s.CheckSatAndAddIfSat(b.Eq(x, b.ConstU64(2, 4)))
	if err != nil || res != UNSAT {
		t.Fatalf("expected UNSAT, got %v, err=%v", res, err)
	}
	if len(s.manager.All()) != 1 {
		t.Fatalf("CheckSatAndAddIfSat must not add the constraint on UNSAT")
	}
}

func TestEvaluateUpto(t *testing.T) {
	b := expr.NewBuilder()
	s := New(b, newBruteForceBackend(b))
	x := b.Sym("x", 4)
	s.Add(b.Ult(x, b.ConstU64(3, 4)))

	vals, ok := s.EvaluateUpto(x, 10)
	if !ok {
		t.Fatalf("expected EvaluateUpto to succeed")
	}
	if len(vals) != 3 {
		t.Fatalf("x<3 over a 4-bit symbol has exactly 3 satisfying values, got %d", len(vals))
	}
}

func TestCloneIndependence(t *testing.T) {
	b := expr.NewBuilder()
	s := New(b, newBruteForceBackend(b))
	x := b.Sym("x", 4)
	s.Add(b.Eq(x, b.ConstU64(1, 4)))

	clone := s.Clone()
	clone.Add(b.Eq(x, b.ConstU64(2, 4)))

	if len(s.manager.All()) != 1 {
		t.Fatalf("mutating the clone's manager affected the original")
	}
	if len(clone.manager.All()) != 2 {
		t.Fatalf("clone should retain the original constraint plus its own")
	}
}
