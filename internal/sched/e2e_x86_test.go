package sched

import (
	"sort"
	"testing"

	"github.com/borzacchiello/naazgo/internal/arch"
	"github.com/borzacchiello/naazgo/internal/bvconst"
	"github.com/borzacchiello/naazgo/internal/expr"
	"github.com/borzacchiello/naazgo/internal/interp"
	"github.com/borzacchiello/naazgo/internal/lifter"
	"github.com/borzacchiello/naazgo/internal/lifter/x86lift"
	"github.com/borzacchiello/naazgo/internal/loader"
	"github.com/borzacchiello/naazgo/internal/solver"
	"github.com/borzacchiello/naazgo/internal/state"
)

// guidedBackend is the solver.Backend double the end-to-end scenarios
// run on: brute-force enumeration seeded with candidate byte values
// harvested from the query's own constants (each byte of every
// constant, plus its complement). Equality chains like
// "input ^ K == M" have their unique solution inside that harvested
// set, which plain low-to-high enumeration over four 8-bit symbols
// would only reach after billions of combinations. When the candidate
// pass fails, enumeration falls back to iterative deepening over the
// full byte range, so small-valued solutions stay cheap to find.
type guidedBackend struct {
	b       *expr.Builder
	lastSAT map[uint32]bvconst.BVConst
}

func harvestConstBytes(n *expr.Node, out map[uint64]bool, visited map[uint64]bool) {
	if visited[n.ID()] {
		return
	}
	visited[n.ID()] = true
	if n.Kind() == expr.KindConst && n.Width()%8 == 0 {
		for _, v := range n.AsConst().AsBytes(bvconst.LittleEndian) {
			out[uint64(v)] = true
			out[uint64(^v)] = true
		}
	}
	for _, c := range n.Children() {
		harvestConstBytes(c, out, visited)
	}
}

const maxHarvested = 16

func (g *guidedBackend) candidates(query *expr.Node) []uint64 {
	set := map[uint64]bool{0: true, 1: true}
	harvestConstBytes(query, set, make(map[uint64]bool))
	out := make([]uint64, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	if len(out) > maxHarvested {
		out = out[:maxHarvested]
	}
	return out
}

// search runs a DFS over per-symbol value lists, evaluating the query
// under each complete assignment; on success the satisfying model is
// stored in lastSAT.
func (g *guidedBackend) search(query *expr.Node, ids, widths []uint32, valuesFor func(w uint32) []uint64) bool {
	assignment := make([]uint64, len(ids))
	var rec func(i int) bool
	rec = func(i int) bool {
		if i == len(ids) {
			model := make(map[uint32]bvconst.BVConst, len(ids))
			for k, id := range ids {
				model[id] = bvconst.FromU64(assignment[k], widths[k])
			}
			result := expr.Evaluate(g.b, query, model, true)
			if result.Kind() == expr.KindBoolConst && result.AsBool() {
				g.lastSAT = model
				return true
			}
			return false
		}
		for _, v := range valuesFor(widths[i]) {
			assignment[i] = v
			if rec(i + 1) {
				return true
			}
		}
		return false
	}
	return rec(0)
}

func (g *guidedBackend) Check(query *expr.Node) (solver.CheckResult, error) {
	syms := make(map[uint32]uint32)
	collectSymsForSched(query, syms, make(map[uint64]bool))
	ids := make([]uint32, 0, len(syms))
	for id := range syms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	widths := make([]uint32, len(ids))
	for i, id := range ids {
		widths[i] = syms[id]
	}

	cands := g.candidates(query)
	if g.search(query, ids, widths, func(w uint32) []uint64 {
		limit := uint64(1) << w
		out := make([]uint64, 0, len(cands))
		for _, v := range cands {
			if w >= 64 || v < limit {
				out = append(out, v)
			}
		}
		return out
	}) {
		return solver.SAT, nil
	}

	for _, bound := range []uint64{4, 16, 256} {
		if g.search(query, ids, widths, func(w uint32) []uint64 {
			limit := uint64(1) << w
			if w >= 64 || limit > bound {
				limit = bound
			}
			out := make([]uint64, limit)
			for v := range out {
				out[v] = uint64(v)
			}
			return out
		}) {
			return solver.SAT, nil
		}
	}
	return solver.UNSAT, nil
}

func (g *guidedBackend) Model() map[uint32]bvconst.BVConst { return g.lastSAT }

func (g *guidedBackend) EvalUpto(val, pi *expr.Node, n int) ([]bvconst.BVConst, error) {
	return nil, nil
}

// newX86Scenario builds a ready-to-explore state over real x86-64 code
// mapped at base, the same wiring cmd/finder gets from bootstrap but
// with the guided test backend in place of Z3.
func newX86Scenario(t *testing.T, code []byte, base uint64) (*state.State, *interp.Interpreter) {
	t.Helper()
	b := expr.NewBuilder()
	a := arch.NewX86_64()
	as := loader.New()
	as.RegisterSegment("code", base, code, loader.PermRead|loader.PermExec)
	as.RegisterSegment("stack", a.StackPtr-0x8000, make([]byte, 0x10000), loader.PermRead|loader.PermWrite)
	s := state.New(b, as, x86lift.New(), &guidedBackend{b: b}, base)
	a.InitState(s)
	return s, interp.New(a, interp.DefaultOptions())
}

func findPC(pc uint64) func(*state.State) bool {
	return func(s *state.State) bool { return !s.Exited && s.PC() == pc }
}

func avoidPC(pc uint64) func(*state.State) bool {
	return func(s *state.State) bool { return !s.Exited && s.PC() == pc }
}

// Both operands concrete and equal: the je must be taken without any
// solver involvement and explore must return the target under the
// default (empty) model.
func TestExploreTrivialBranch(t *testing.T) {
	base := uint64(0x400000)
	code := []byte{
		0x48, 0xc7, 0xc0, 0x0a, 0x00, 0x00, 0x00, // mov rax, 10
		0x48, 0xc7, 0xc3, 0x0a, 0x00, 0x00, 0x00, // mov rbx, 10
		0x48, 0x39, 0xd8, // cmp rax, rbx
		0x74, 0x00, // je 0x400013
		0xc3, // ret
	}
	s, I := newX86Scenario(t, code, base)

	found, _, err := Explore(I, NewLIFO(), s, findPC(base+0x13), nil)
	if err != nil {
		t.Fatalf("explore: %v", err)
	}
	if found == nil {
		t.Fatalf("expected the taken-branch target to be reachable")
	}
	if found.PC() != base+0x13 {
		t.Fatalf("found PC = 0x%x, want 0x%x", found.PC(), base+0x13)
	}
}

// ECX starts symbolic; the branch is reachable only when
// ecx ^ 0xaabbccdd == 0xffffffff, i.e. ecx == 0x55443322.
func TestExploreSingleSymbolicConstraint(t *testing.T) {
	base := uint64(0x1000)
	code := []byte{
		0x81, 0xf1, 0xdd, 0xcc, 0xbb, 0xaa, // xor ecx, 0xaabbccdd
		0x81, 0xf9, 0xff, 0xff, 0xff, 0xff, // cmp ecx, 0xffffffff
		0x74, 0x02, // je 0x1010
		0xc3, 0x90, // ret; nop
		0xc3, // ret (taken-branch target)
	}
	s, I := newX86Scenario(t, code, base)
	ecx0 := s.B.Extract(s.RegRead("RCX"), 31, 0)

	found, avoided, err := Explore(I, NewFIFO(), s, findPC(base+0x10), avoidPC(base+0xe))
	if err != nil {
		t.Fatalf("explore: %v", err)
	}
	if found == nil {
		t.Fatalf("expected the taken branch to be satisfiable")
	}
	if len(avoided) != 1 {
		t.Fatalf("expected the fallthrough to land in avoided, got %d", len(avoided))
	}

	v, ok := found.Solver.Evaluate(ecx0)
	if !ok {
		t.Fatalf("expected a model for the initial ecx")
	}
	u, err := v.AsU64()
	if err != nil {
		t.Fatal(err)
	}
	if u != 0x55443322 {
		t.Fatalf("ecx model = 0x%x, want 0x55443322", u)
	}
}

// EDI starts symbolic; EAX counts loop iterations until edi >= 10, and
// the magic block is reachable only with eax == 7 at loop exit, which
// pins the initial edi to exactly 3.
func TestExploreLoopAccumulator(t *testing.T) {
	base := uint64(0x2000)
	code := []byte{
		0xb8, 0x00, 0x00, 0x00, 0x00, // mov eax, 0
		0x83, 0xff, 0x0a, // loop: cmp edi, 10
		0x7d, 0x06, // jge done
		0xff, 0xc0, // inc eax
		0xff, 0xc7, // inc edi
		0xeb, 0xf5, // jmp loop
		0x83, 0xf8, 0x07, // done: cmp eax, 7
		0x74, 0x02, // je magic
		0xc3, 0x90, // ret; nop
		0xc3, // magic: ret
	}
	s, I := newX86Scenario(t, code, base)
	edi0 := s.B.Extract(s.RegRead("RDI"), 31, 0)

	found, _, err := Explore(I, NewFIFO(), s, findPC(base+0x17), avoidPC(base+0x15))
	if err != nil {
		t.Fatalf("explore: %v", err)
	}
	if found == nil {
		t.Fatalf("expected the magic block to be reachable")
	}

	v, ok := found.Solver.Evaluate(edi0)
	if !ok {
		t.Fatalf("expected a model for the initial edi")
	}
	u, err := v.AsU64()
	if err != nil {
		t.Fatal(err)
	}
	if u != 3 {
		t.Fatalf("edi model = 0x%x, want 3", u)
	}
}

// countingScheduler wraps a discipline and counts how many states it
// hands to the driver, the step metric the coverage-vs-DFS comparison
// below is stated in.
type countingScheduler struct {
	Scheduler
	pops int
}

func (c *countingScheduler) Pop() (*state.State, bool) {
	s, ok := c.Scheduler.Pop()
	if ok {
		c.pops++
	}
	return s, ok
}

// multiBlockLifter serves hand-built blocks keyed by address.
type multiBlockLifter struct {
	blocks map[uint64]*lifter.Block
	regs   map[string]lifter.Varnode
}

func (l *multiBlockLifter) Lift(pc uint64, _ []byte) (*lifter.Block, error) {
	b, ok := l.blocks[pc]
	if !ok {
		panic("no block registered at this address")
	}
	return b, nil
}
func (l *multiBlockLifter) Reg(name string) (lifter.Varnode, bool) {
	v, ok := l.regs[name]
	return v, ok
}
func (l *multiBlockLifter) RegName(lifter.Varnode) string { return "" }

// newFrontierScenario builds the coverage-vs-DFS program: a symbolic
// fork at the entry whose taken side is a three-iteration concrete
// loop ending in a halt, and whose fall-through side reaches the find
// address only after two more never-visited blocks. DFS dives into the
// loop first; coverage demotes the loop's re-entries to the lowest
// queue and reaches the frontier sooner.
func newFrontierScenario(t *testing.T) (*interp.Interpreter, *state.State) {
	t.Helper()
	counter := lifter.Varnode{Space: lifter.SpaceRegister, Offset: 0, Size: 1}
	guard := lifter.Varnode{Space: lifter.SpaceRegister, Offset: 8, Size: 1}
	loopCond := lifter.Varnode{Space: lifter.SpaceUnique, Offset: 0, Size: 1}
	sum := lifter.Varnode{Space: lifter.SpaceUnique, Offset: 8, Size: 1}
	constVN := func(v uint64, size uint32) lifter.Varnode {
		return lifter.Varnode{Space: lifter.SpaceConst, Offset: v, Size: size}
	}

	blocks := map[uint64]*lifter.Block{
		// entry: fork on the symbolic guard register.
		0x1000: {Address: 0x1000, Instructions: []lifter.Instruction{
			{Address: 0x1000, Length: 4, Ops: []lifter.PcodeOp{
				{Opcode: lifter.OpCBranch, Inputs: []lifter.Varnode{constVN(0x2000, 8), guard}},
			}},
		}},
		// fall-through side: two fresh blocks before the find address.
		0x1004: {Address: 0x1004, Instructions: []lifter.Instruction{
			{Address: 0x1004, Length: 4, Ops: []lifter.PcodeOp{
				{Opcode: lifter.OpBranch, Inputs: []lifter.Varnode{constVN(0x3000, 8)}},
			}},
		}},
		0x3000: {Address: 0x3000, Instructions: []lifter.Instruction{
			{Address: 0x3000, Length: 4, Ops: []lifter.PcodeOp{
				{Opcode: lifter.OpBranch, Inputs: []lifter.Varnode{constVN(0x3004, 8)}},
			}},
		}},
		// taken side: counter += 1; repeat while counter != 3.
		0x2000: {Address: 0x2000, Instructions: []lifter.Instruction{
			{Address: 0x2000, Length: 4, Ops: []lifter.PcodeOp{
				{Opcode: lifter.OpIntAdd, Inputs: []lifter.Varnode{counter, constVN(1, 1)}, Output: &sum},
				{Opcode: lifter.OpCopy, Inputs: []lifter.Varnode{sum}, Output: &counter},
				{Opcode: lifter.OpIntNotEqual, Inputs: []lifter.Varnode{sum, constVN(3, 1)}, Output: &loopCond},
				{Opcode: lifter.OpCBranch, Inputs: []lifter.Varnode{constVN(0x2000, 8), loopCond}},
			}},
		}},
	}

	l := &multiBlockLifter{
		blocks: blocks,
		regs: map[string]lifter.Varnode{
			"counter": counter,
			"guard":   guard,
		},
	}

	b := expr.NewBuilder()
	as := loader.New()
	as.RegisterSegment("code", 0, make([]byte, 0x10000), loader.PermRead|loader.PermExec)
	s := state.New(b, as, l, &guidedBackend{b: b}, 0x1000)
	s.RegWriteOffset(0, b.ConstU64(0, 8)) // concrete loop counter
	s.RegisterLinkedFunction(0x2004, &haltModel{seen: new(uint64)})

	return interp.New(nil, interp.DefaultOptions()), s
}

func exploreCountingSteps(t *testing.T, disc Scheduler) int {
	t.Helper()
	I, s := newFrontierScenario(t)
	counting := &countingScheduler{Scheduler: disc}
	found, _, err := Explore(I, counting, s, findPC(0x3004), nil)
	if err != nil {
		t.Fatalf("explore: %v", err)
	}
	if found == nil {
		t.Fatalf("expected 0x3004 to be reachable")
	}
	return counting.pops
}

// The find address sits behind two new-address frontiers while a loop
// tempts DFS into re-visiting the same block; the coverage discipline
// must reach the target in no more steps than DFS does.
func TestCoverageReachesFrontierNoSlowerThanDFS(t *testing.T) {
	dfsSteps := exploreCountingSteps(t, NewLIFO())
	covSteps := exploreCountingSteps(t, NewCoverage())
	if covSteps > dfsSteps {
		t.Fatalf("coverage took %d steps, DFS took %d; coverage must not be slower", covSteps, dfsSteps)
	}
	if covSteps == dfsSteps {
		t.Logf("coverage matched DFS at %d steps", covSteps)
	}
}
