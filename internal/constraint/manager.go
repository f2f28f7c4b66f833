// Package constraint implements the path-constraint manager: a
// symbol-indexed store of Boolean path constraints plus a symbol
// adjacency graph used to answer "which constraints could possibly be
// affected by this expression" without re-walking every constraint ever
// added.
package constraint

import (
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/borzacchiello/naazgo/internal/expr"
)

// supportGroup memoizes an expression's transitive symbol support. The
// cache is process-global and append-only: expression identities are
// unique and immutable once interned, so a support set computed once is
// valid forever and may be shared across every Manager in the process.
var (
	supportMu    sync.RWMutex
	supportCache = make(map[uint64]map[uint32]struct{})
	supportGroup singleflight.Group
)

// Support returns the set of symbol ids reachable from e's DAG. The
// result must not be mutated by callers.
func Support(e *expr.Node) map[uint32]struct{} {
	supportMu.RLock()
	if s, ok := supportCache[e.ID()]; ok {
		supportMu.RUnlock()
		return s
	}
	supportMu.RUnlock()

	key := supportKey(e.ID())
	v, _, _ := supportGroup.Do(key, func() (interface{}, error) {
		supportMu.RLock()
		if s, ok := supportCache[e.ID()]; ok {
			supportMu.RUnlock()
			return s, nil
		}
		supportMu.RUnlock()

		s := make(map[uint32]struct{})
		walkSupport(e, s, make(map[uint64]struct{}))

		supportMu.Lock()
		supportCache[e.ID()] = s
		supportMu.Unlock()
		return s, nil
	})
	return v.(map[uint32]struct{})
}

func walkSupport(n *expr.Node, out map[uint32]struct{}, visited map[uint64]struct{}) {
	if _, ok := visited[n.ID()]; ok {
		return
	}
	visited[n.ID()] = struct{}{}
	if n.Kind() == expr.KindSym {
		out[n.SymID()] = struct{}{}
	}
	for _, c := range n.Children() {
		walkSupport(c, out, visited)
	}
}

func supportKey(id uint64) string {
	// A hand-rolled decimal key avoids allocating through fmt.Sprintf on
	// this hot path.
	buf := make([]byte, 0, 20)
	if id == 0 {
		return "0"
	}
	var tmp [20]byte
	i := len(tmp)
	for id > 0 {
		i--
		tmp[i] = byte('0' + id%10)
		id /= 10
	}
	buf = append(buf, tmp[i:]...)
	return string(buf)
}

// Manager indexes path constraints by the symbols they touch and
// maintains a symbol adjacency graph used to compute a constraint's
// dependency closure.
type Manager struct {
	mu sync.RWMutex

	// bySymbol[s] is the set of constraints whose support includes s.
	bySymbol map[uint32]map[*expr.Node]struct{}
	// adjacency[s] is the set of symbols that have co-occurred with s in
	// some constraint's support.
	adjacency map[uint32]map[uint32]struct{}

	// all preserves insertion order for deterministic pi() output.
	all []*expr.Node

	b *expr.Builder
}

// NewManager creates an empty constraint manager. b is the shared
// expression builder used to build the canonicalized conjunction
// returned by Pi.
func NewManager(b *expr.Builder) *Manager {
	return &Manager{
		bySymbol:  make(map[uint32]map[*expr.Node]struct{}),
		adjacency: make(map[uint32]map[uint32]struct{}),
		b:         b,
	}
}

// Add inserts c under every symbol in its support and unions that
// support cliquewise into the adjacency graph.
func (m *Manager) Add(c *expr.Node) {
	supp := Support(c)

	m.mu.Lock()
	defer m.mu.Unlock()

	for s := range supp {
		set, ok := m.bySymbol[s]
		if !ok {
			set = make(map[*expr.Node]struct{})
			m.bySymbol[s] = set
		}
		set[c] = struct{}{}

		row, ok := m.adjacency[s]
		if !ok {
			row = make(map[uint32]struct{})
			m.adjacency[s] = row
		}
		for t := range supp {
			if t != s {
				row[t] = struct{}{}
			}
		}
	}
	m.all = append(m.all, c)
}

// Dependencies returns the reflexive-transitive closure, over the
// adjacency graph, of e's own symbol support.
func (m *Manager) Dependencies(e *expr.Node) map[uint32]struct{} {
	supp := Support(e)

	m.mu.RLock()
	defer m.mu.RUnlock()

	closure := make(map[uint32]struct{})
	queue := make([]uint32, 0, len(supp))
	for s := range supp {
		if _, ok := closure[s]; !ok {
			closure[s] = struct{}{}
			queue = append(queue, s)
		}
	}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for t := range m.adjacency[s] {
			if _, ok := closure[t]; !ok {
				closure[t] = struct{}{}
				queue = append(queue, t)
			}
		}
	}
	return closure
}

// Pi returns the conjunction of every stored constraint whose symbol
// support lies in Dependencies(e). If e is nil, every stored constraint
// is included. If no constraint qualifies, Pi returns the constant
// true. Build order follows insertion order, so two managers that see
// the same Add calls in the same order produce the identical node.
func (m *Manager) Pi(e *expr.Node) *expr.Node {
	m.mu.RLock()
	var deps map[uint32]struct{}
	if e != nil {
		deps = m.dependenciesLocked(e)
	}
	var relevant []*expr.Node
	for _, c := range m.all {
		if e == nil || supportIntersects(Support(c), deps) {
			relevant = append(relevant, c)
		}
	}
	m.mu.RUnlock()

	if len(relevant) == 0 {
		return m.b.BoolConst(true)
	}
	if len(relevant) == 1 {
		return relevant[0]
	}
	return m.b.BoolAnd(relevant...)
}

// dependenciesLocked is Dependencies without acquiring the lock, for use
// by callers that already hold it.
func (m *Manager) dependenciesLocked(e *expr.Node) map[uint32]struct{} {
	supp := Support(e)
	closure := make(map[uint32]struct{})
	queue := make([]uint32, 0, len(supp))
	for s := range supp {
		if _, ok := closure[s]; !ok {
			closure[s] = struct{}{}
			queue = append(queue, s)
		}
	}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for t := range m.adjacency[s] {
			if _, ok := closure[t]; !ok {
				closure[t] = struct{}{}
				queue = append(queue, t)
			}
		}
	}
	return closure
}

func supportIntersects(supp, allowed map[uint32]struct{}) bool {
	if len(supp) == 0 {
		// A ground (symbol-free) constraint is never excluded by a
		// dependency filter: it holds unconditionally.
		return true
	}
	for s := range supp {
		if _, ok := allowed[s]; ok {
			return true
		}
	}
	return false
}

// All returns every stored constraint in insertion order. Callers must
// not mutate the returned slice.
func (m *Manager) All() []*expr.Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*expr.Node, len(m.all))
	copy(out, m.all)
	return out
}

// Clone produces an independent manager sharing no mutable state with m.
func (m *Manager) Clone() *Manager {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := NewManager(m.b)
	for s, set := range m.bySymbol {
		ns := make(map[*expr.Node]struct{}, len(set))
		for c := range set {
			ns[c] = struct{}{}
		}
		out.bySymbol[s] = ns
	}
	for s, row := range m.adjacency {
		nr := make(map[uint32]struct{}, len(row))
		for t := range row {
			nr[t] = struct{}{}
		}
		out.adjacency[s] = nr
	}
	out.all = append([]*expr.Node(nil), m.all...)
	return out
}

// sortedSymbols returns a deterministic, ascending view of a symbol set.
// Nothing in the module calls it at present.
func sortedSymbols(s map[uint32]struct{}) []uint32 {
	out := make([]uint32, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
