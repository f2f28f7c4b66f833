package sched

import (
	"testing"

	"github.com/borzacchiello/naazgo/internal/bvconst"
	"github.com/borzacchiello/naazgo/internal/expr"
	"github.com/borzacchiello/naazgo/internal/interp"
	"github.com/borzacchiello/naazgo/internal/lifter"
	"github.com/borzacchiello/naazgo/internal/loader"
	"github.com/borzacchiello/naazgo/internal/solver"
	"github.com/borzacchiello/naazgo/internal/state"
)

// bruteForceBackendForSched is a minimal solver.Backend test double;
// the fork scenario below only ever needs to prove a 1-byte symbol's
// comparison both ways, so exhaustive enumeration is cheap and exact.
type bruteForceBackendForSched struct {
	b       *expr.Builder
	lastSAT map[uint32]bvconst.BVConst
}

func collectSymsForSched(n *expr.Node, out map[uint32]uint32, visited map[uint64]bool) {
	if visited[n.ID()] {
		return
	}
	visited[n.ID()] = true
	if n.Kind() == expr.KindSym {
		out[n.SymID()] = n.Width()
	}
	for _, c := range n.Children() {
		collectSymsForSched(c, out, visited)
	}
}

func (f *bruteForceBackendForSched) Check(query *expr.Node) (solver.CheckResult, error) {
	syms := make(map[uint32]uint32)
	collectSymsForSched(query, syms, make(map[uint64]bool))
	ids := make([]uint32, 0, len(syms))
	widths := make([]uint32, 0, len(syms))
	for id, w := range syms {
		ids = append(ids, id)
		widths = append(widths, w)
	}
	assignment := make([]uint64, len(ids))
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
		if limit > 256 {
			limit = 256
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
		return solver.SAT, nil
	}
	return solver.UNSAT, nil
}

func (f *bruteForceBackendForSched) Model() map[uint32]bvconst.BVConst { return f.lastSAT }

func (f *bruteForceBackendForSched) EvalUpto(val, pi *expr.Node, n int) ([]bvconst.BVConst, error) {
	return nil, nil
}

func newBareState(t *testing.T, pc uint64) *state.State {
	t.Helper()
	b := expr.NewBuilder()
	as := loader.New()
	return state.New(b, as, nil, nil, pc)
}

func TestFIFOOrder(t *testing.T) {
	f := NewFIFO()
	f.Push(newBareState(t, 0x100))
	f.Push(newBareState(t, 0x200))
	f.Push(newBareState(t, 0x300))

	want := []uint64{0x100, 0x200, 0x300}
	for _, w := range want {
		s, ok := f.Pop()
		if !ok || s.PC() != w {
			t.Fatalf("expected FIFO to yield 0x%x next", w)
		}
	}
	if _, ok := f.Pop(); ok {
		t.Fatalf("expected FIFO to be drained")
	}
}

func TestLIFOOrder(t *testing.T) {
	l := NewLIFO()
	l.Push(newBareState(t, 0x100))
	l.Push(newBareState(t, 0x200))
	l.Push(newBareState(t, 0x300))

	want := []uint64{0x300, 0x200, 0x100}
	for _, w := range want {
		s, ok := l.Pop()
		if !ok || s.PC() != w {
			t.Fatalf("expected LIFO to yield 0x%x next", w)
		}
	}
}

func TestRandLIFODrainsEverything(t *testing.T) {
	r := NewRandLIFO()
	pushed := []uint64{0x10, 0x20, 0x30, 0x40, 0x50}
	for _, pc := range pushed {
		r.Push(newBareState(t, pc))
	}
	seen := make(map[uint64]bool)
	for r.Len() > 0 {
		s, ok := r.Pop()
		if !ok {
			t.Fatalf("Pop reported empty while Len()>0")
		}
		seen[s.PC()] = true
	}
	if len(seen) != len(pushed) {
		t.Fatalf("expected every pushed state to be drained exactly once, got %d distinct", len(seen))
	}
}

func TestCoveragePrioritizesLessVisitedContext(t *testing.T) {
	c := NewCoverage()
	sA := newBareState(t, 0x10)
	c.Push(sA)
	if popped, ok := c.Pop(); !ok || popped != sA {
		t.Fatalf("expected sA back first")
	}

	sB := newBareState(t, 0x10) // same context as sA, now visited once
	c.Push(sB)
	sC := newBareState(t, 0x20) // fresh context
	c.Push(sC)

	first, ok := c.Pop()
	if !ok || first != sC {
		t.Fatalf("expected the never-visited context (sC) to come before the once-visited one")
	}
	second, ok := c.Pop()
	if !ok || second != sB {
		t.Fatalf("expected sB next")
	}
}

// --- driver tests, exercised over a tiny two-way-fork program ---

type haltModel struct{ seen *uint64 }

func (h *haltModel) Name() string { return "halt" }
func (h *haltModel) Exec(s *state.State) state.Successors {
	*h.seen = s.PC()
	s.MarkExited(0, "halt")
	return state.Successors{Exited: []*state.State{s}}
}

type forkLifter struct {
	regs  map[string]lifter.Varnode
	block *lifter.Block
}

func (l *forkLifter) Lift(pc uint64, _ []byte) (*lifter.Block, error) { return l.block, nil }
func (l *forkLifter) Reg(name string) (lifter.Varnode, bool)          { v, ok := l.regs[name]; return v, ok }
func (l *forkLifter) RegName(lifter.Varnode) string                  { return "" }

// newForkScenario builds a state whose single block at 0x2000 forks into
// a taken branch (0x5000) and a fallthrough (0x2004), both registered as
// halt sentinels so one interpreter step per fork fully resolves it.
func newForkScenario(t *testing.T) (*interp.Interpreter, *state.State, *uint64, *uint64) {
	t.Helper()
	regX := lifter.Varnode{Space: lifter.SpaceRegister, Offset: 0, Size: 1}
	guardSlot := lifter.Varnode{Space: lifter.SpaceUnique, Offset: 0, Size: 1}
	block := &lifter.Block{
		Address: 0x2000,
		Instructions: []lifter.Instruction{
			{Address: 0x2000, Length: 4, Ops: []lifter.PcodeOp{
				{Opcode: lifter.OpIntULess,
					Inputs: []lifter.Varnode{regX, {Space: lifter.SpaceConst, Offset: 10, Size: 1}},
					Output: &guardSlot},
				{Opcode: lifter.OpCBranch,
					Inputs: []lifter.Varnode{
						{Space: lifter.SpaceConst, Offset: 0x5000, Size: 8},
						guardSlot,
					}},
			}},
		},
	}
	l := &forkLifter{regs: map[string]lifter.Varnode{"x": regX}, block: block}

	b := expr.NewBuilder()
	as := loader.New()
	as.RegisterSegment("code", 0, make([]byte, 0x10000), loader.PermRead|loader.PermExec)
	backend := &bruteForceBackendForSched{b: b}
	s := state.New(b, as, l, backend, 0x2000)
	s.RegWriteOffset(0, b.Sym("x", 8))

	var takenSeen, fallSeen uint64
	s.RegisterLinkedFunction(0x5000, &haltModel{seen: &takenSeen})
	s.RegisterLinkedFunction(0x2004, &haltModel{seen: &fallSeen})

	I := interp.New(nil, interp.DefaultOptions())
	return I, s, &takenSeen, &fallSeen
}

func TestGenPathsVisitsBothForks(t *testing.T) {
	I, s, _, _ := newForkScenario(t)
	visited := 0
	err := GenPaths(I, NewFIFO(), s, func(*state.State) bool {
		visited++
		return true
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// initial block, two forked-active reports, two terminal-exit reports
	if visited != 5 {
		t.Fatalf("expected 5 callback invocations, got %d", visited)
	}
}

func TestExploreFindsTakenBranchAndAvoidsFallthrough(t *testing.T) {
	I, s, takenSeen, _ := newForkScenario(t)
	find := func(s *state.State) bool { return s.Exited && s.PC() == 0x5000 }
	avoid := func(s *state.State) bool { return !s.Exited && s.PC() == 0x2004 }

	found, avoided, err := Explore(I, NewFIFO(), s, find, avoid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found == nil || found.PC() != 0x5000 {
		t.Fatalf("expected to find the state that exited at the taken branch")
	}
	if *takenSeen != 0x5000 {
		t.Fatalf("expected the halt model at the taken branch to have run")
	}
	if len(avoided) != 1 || avoided[0].PC() != 0x2004 {
		t.Fatalf("expected the fallthrough branch to be diverted into avoided, got %+v", avoided)
	}
}
