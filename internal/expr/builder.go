package expr

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/borzacchiello/naazgo/internal/bvconst"
)

// Builder is the single point of construction for expression nodes. Every
// entry point performs local simplification before interning, and the
// interning table guarantees that two structurally equal nodes share one
// *Node pointer. The table stores weak references so that nodes with no
// other referrer become collectible; GC periodically removes the resulting
// stale entries. This is one of the two strategies spec §9 ("Design Notes")
// allows — the other, a pure per-state arena, is not used here because the
// builder is explicitly shared across every live state (§5, Concurrency).
type Builder struct {
	mu      sync.Mutex
	cache   map[string]weak.Pointer[Node]
	nextID  atomic.Uint64
	Symbols *SymbolTable
}

// NewBuilder creates an empty builder with its own symbol table.
func NewBuilder() *Builder {
	return &Builder{
		cache:   make(map[string]weak.Pointer[Node]),
		Symbols: NewSymbolTable(),
	}
}

// GC removes interning-table entries whose node has already been
// collected. It is safe to call at any time; it never changes the value
// of any live node.
func (b *Builder) GC() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, wp := range b.cache {
		if wp.Value() == nil {
			delete(b.cache, k)
		}
	}
}

func (b *Builder) intern(key string, build func(id uint64) *Node) *Node {
	b.mu.Lock()
	defer b.mu.Unlock()
	if wp, ok := b.cache[key]; ok {
		if n := wp.Value(); n != nil {
			return n
		}
	}
	n := build(b.nextID.Add(1))
	b.cache[key] = weak.Make(n)
	return n
}

func childKey(children []*Node) string {
	var sb strings.Builder
	for _, c := range children {
		fmt.Fprintf(&sb, "%d,", c.id)
	}
	return sb.String()
}

func bvKey(kind Kind, width uint32, children []*Node, extra string) string {
	return fmt.Sprintf("%d|%d|%s|%s", kind, width, childKey(children), extra)
}

// ---------------------------------------------------------------------
// Leaves
// ---------------------------------------------------------------------

// Sym returns a fresh or existing symbolic bit-vector leaf of the given
// width, named and tracked via the builder's symbol table.
func (b *Builder) Sym(name string, width uint32) *Node {
	id := b.Symbols.Intern(name, width)
	key := bvKey(KindSym, width, nil, fmt.Sprintf("sym:%d", id))
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: KindSym, width: width, symID: id, symWidth: width}
	})
}

// Const returns the constant node wrapping v.
func (b *Builder) Const(v bvconst.BVConst) *Node {
	key := bvKey(KindConst, v.Width(), nil, "c:"+v.HexString())
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: KindConst, width: v.Width(), constVal: v}
	})
}

// ConstU64 is shorthand for Const(bvconst.FromU64(value, width)).
func (b *Builder) ConstU64(value uint64, width uint32) *Node {
	return b.Const(bvconst.FromU64(value, width))
}

// BoolConst returns the constant Boolean node for v.
func (b *Builder) BoolConst(v bool) *Node {
	key := fmt.Sprintf("%d|bool|%v", KindBoolConst, v)
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: KindBoolConst, boolVal: v}
	})
}

// ---------------------------------------------------------------------
// Width-changing operators
// ---------------------------------------------------------------------

func checkBVWidthsEqual(children ...*Node) {
	if len(children) == 0 {
		return
	}
	w := children[0].width
	for _, c := range children[1:] {
		if c.width != w {
			panic(fmt.Sprintf("expr: width mismatch: %d != %d", c.width, w))
		}
	}
}

// Extract returns the [hi:lo] slice of x (width hi-lo+1). lo <= hi < x.Width().
func (b *Builder) Extract(x *Node, hi, lo uint32) *Node {
	if lo > hi || hi >= x.width {
		panic(fmt.Sprintf("expr: extract(%d,%d) out of range for width %d", hi, lo, x.width))
	}
	width := hi - lo + 1

	// Identity: extract(x, w-1, 0) -> x
	if lo == 0 && hi == x.width-1 {
		return x
	}
	if x.kind == KindConst {
		return b.Const(x.constVal.Extract(hi, lo))
	}
	// Extract(Extract(x,a,b), h, l) -> Extract(x, a+l, a+h-l... ) shape: base+l..base+h
	if x.kind == KindExtract {
		_, innerLo := x.ExtractBounds()
		return b.Extract(x.children[0], innerLo+hi, innerLo+lo)
	}
	// Extract(Concat(...)) lowered to the minimal concat of intersected children.
	if x.kind == KindConcat {
		return b.extractFromConcat(x, hi, lo)
	}

	key := bvKey(KindExtract, width, []*Node{x}, fmt.Sprintf("e:%d:%d", hi, lo))
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: KindExtract, width: width, children: []*Node{x}, hi: hi, lo: lo}
	})
}

// extractFromConcat rebuilds Extract(Concat(c0..cn), hi, lo) as the minimal
// concat of whichever children the window [hi:lo] intersects, each
// re-extracted to its intersected sub-range.
func (b *Builder) extractFromConcat(concat *Node, hi, lo uint32) *Node {
	children := concat.children // children[0] is most-significant
	var pieces []*Node
	// compute each child's [childHi:childLo] position within concat
	offset := concat.width
	for _, c := range children {
		childHi := offset - 1
		childLo := offset - c.width
		offset = childLo
		// intersection of [childLo,childHi] with [lo,hi]
		iLo := childLo
		if lo > iLo {
			iLo = lo
		}
		iHi := childHi
		if hi < iHi {
			iHi = hi
		}
		if iLo > iHi {
			continue
		}
		pieces = append(pieces, b.Extract(c, iHi-childLo, iLo-childLo))
	}
	if len(pieces) == 0 {
		panic("expr: extractFromConcat produced no pieces")
	}
	result := pieces[0]
	for _, p := range pieces[1:] {
		result = b.Concat(result, p)
	}
	return result
}

// Concat returns hi:lo concatenation of hiNode (high bits) and loNode (low
// bits); width hiNode.Width()+loNode.Width().
func (b *Builder) Concat(hiNode, loNode *Node) *Node {
	width := hiNode.width + loNode.width
	if hiNode.kind == KindConst && loNode.kind == KindConst {
		return b.Const(hiNode.constVal.Concat(loNode.constVal))
	}
	// Concat(Extract(x,h1,l1), Extract(x,h2,l2)) with l1 == h2+1 recombines
	// into the single wider Extract(x,h1,l2) — the shape a byte-at-a-time
	// memory read rebuilds into, so re-reading a just-written expression
	// in matching chunks folds back to the original expression.
	if hiNode.kind == KindExtract && loNode.kind == KindExtract &&
		hiNode.children[0] == loNode.children[0] {
		h1, l1 := hiNode.ExtractBounds()
		h2, l2 := loNode.ExtractBounds()
		if l1 == h2+1 {
			return b.Extract(hiNode.children[0], h1, l2)
		}
	}
	key := bvKey(KindConcat, width, []*Node{hiNode, loNode}, "")
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: KindConcat, width: width, children: []*Node{hiNode, loNode}}
	})
}

// Zext zero-extends x to width m (m >= x.Width()).
func (b *Builder) Zext(x *Node, m uint32) *Node {
	if m < x.width {
		panic(fmt.Sprintf("expr: zext target %d smaller than source %d", m, x.width))
	}
	if m == x.width {
		return x
	}
	if x.kind == KindConst {
		return b.Const(x.constVal.Zext(m))
	}
	key := bvKey(KindZext, m, []*Node{x}, "")
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: KindZext, width: m, children: []*Node{x}}
	})
}

// Sext sign-extends x to width m (m >= x.Width()).
func (b *Builder) Sext(x *Node, m uint32) *Node {
	if m < x.width {
		panic(fmt.Sprintf("expr: sext target %d smaller than source %d", m, x.width))
	}
	if m == x.width {
		return x
	}
	if x.kind == KindConst {
		return b.Const(x.constVal.Sext(m))
	}
	key := bvKey(KindSext, m, []*Node{x}, "")
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: KindSext, width: m, children: []*Node{x}}
	})
}

// BoolToBV widens a Boolean to a 1-bit bit-vector (1 for true, 0 for false).
func (b *Builder) BoolToBV(x *Node) *Node {
	if x.kind == KindBoolConst {
		if x.boolVal {
			return b.ConstU64(1, 1)
		}
		return b.ConstU64(0, 1)
	}
	key := bvKey(KindBoolToBV, 1, []*Node{x}, "")
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: KindBoolToBV, width: 1, children: []*Node{x}}
	})
}

// ---------------------------------------------------------------------
// ITE
// ---------------------------------------------------------------------

// ITE selects then or else based on guard.
func (b *Builder) ITE(guard, then, els *Node) *Node {
	if guard.kind == KindBoolConst {
		if guard.boolVal {
			return then
		}
		return els
	}
	if then.kind == KindConst && els.kind == KindConst && then.constVal.Eq(els.constVal) {
		return then
	}
	if then.id == els.id {
		return then
	}
	key := bvKey(KindITE, then.width, []*Node{guard, then, els}, "")
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: KindITE, width: then.width, children: []*Node{guard, then, els}}
	})
}

// ---------------------------------------------------------------------
// Unary
// ---------------------------------------------------------------------

// Neg returns the two's-complement negation of x.
func (b *Builder) Neg(x *Node) *Node {
	if x.kind == KindNeg {
		return x.children[0]
	}
	if x.kind == KindConst {
		return b.Const(x.constVal.Neg())
	}
	key := bvKey(KindNeg, x.width, []*Node{x}, "")
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: KindNeg, width: x.width, children: []*Node{x}}
	})
}

// Not returns the bitwise complement of x.
func (b *Builder) Not(x *Node) *Node {
	if x.kind == KindNot {
		return x.children[0]
	}
	if x.kind == KindConst {
		return b.Const(x.constVal.Not())
	}
	key := bvKey(KindNot, x.width, []*Node{x}, "")
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: KindNot, width: x.width, children: []*Node{x}}
	})
}

// BoolNot returns the Boolean negation of x.
func (b *Builder) BoolNot(x *Node) *Node {
	if x.kind == KindBoolNot {
		return x.children[0]
	}
	if x.kind == KindBoolConst {
		return b.BoolConst(!x.boolVal)
	}
	key := fmt.Sprintf("%d|%s", KindBoolNot, childKey([]*Node{x}))
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: KindBoolNot, children: []*Node{x}}
	})
}

// ---------------------------------------------------------------------
// Shifts
// ---------------------------------------------------------------------

func (b *Builder) shiftOp(kind Kind, x, k *Node) *Node {
	checkBVWidthsEqual(x, k)
	if k.kind == KindConst {
		if k.constVal.IsZero() {
			return x
		}
		if x.kind == KindConst {
			kv, err := k.constVal.AsU64()
			if err == nil {
				switch kind {
				case KindShl:
					return b.Const(x.constVal.Shl(uint32(kv)))
				case KindLShr:
					return b.Const(x.constVal.LShr(uint32(kv)))
				case KindAShr:
					return b.Const(x.constVal.AShr(uint32(kv)))
				}
			}
		}
	}
	key := bvKey(kind, x.width, []*Node{x, k}, "")
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: kind, width: x.width, children: []*Node{x, k}}
	})
}

// Shl returns x shifted left by k bits (k is a bit-vector operand).
func (b *Builder) Shl(x, k *Node) *Node { return b.shiftOp(KindShl, x, k) }

// LShr returns x shifted logically right by k bits.
func (b *Builder) LShr(x, k *Node) *Node { return b.shiftOp(KindLShr, x, k) }

// AShr returns x shifted arithmetically right by k bits.
func (b *Builder) AShr(x, k *Node) *Node { return b.shiftOp(KindAShr, x, k) }

// ---------------------------------------------------------------------
// n-ary associative/commutative operators: Add, Mul, And, Or, Xor
// ---------------------------------------------------------------------

// flatten expands nested nodes of the same kind into a single child list.
func flatten(kind Kind, nodes []*Node) []*Node {
	var out []*Node
	for _, n := range nodes {
		if n.kind == kind {
			out = append(out, flatten(kind, n.children)...)
		} else {
			out = append(out, n)
		}
	}
	return out
}

func sortByID(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].id < nodes[j].id })
}

func foldBVConstants(kind Kind, consts []bvconst.BVConst) bvconst.BVConst {
	acc := consts[0]
	for _, c := range consts[1:] {
		switch kind {
		case KindAdd:
			acc = acc.Add(c)
		case KindMul:
			acc = acc.Mul(c)
		case KindAnd:
			acc = acc.And(c)
		case KindOr:
			acc = acc.Or(c)
		case KindXor:
			acc = acc.Xor(c)
		}
	}
	return acc
}

// nAry builds one of Add/Mul/And/Or/Xor: flattens nested same-kind nodes,
// sorts children by identity, folds runs of constants, applies the
// per-operator identity/annihilator rules, and collapses a singleton
// result to its sole child.
func (b *Builder) nAry(kind Kind, nodes []*Node) *Node {
	if len(nodes) < 2 {
		panic("expr: n-ary operator requires at least 2 operands")
	}
	checkBVWidthsEqual(nodes...)
	width := nodes[0].width

	flat := flatten(kind, nodes)
	sortByID(flat)

	// Fold all constants in the list into one, keep symbolic operands in order.
	var symbolic []*Node
	var consts []bvconst.BVConst
	for _, n := range flat {
		if n.kind == KindConst {
			consts = append(consts, n.constVal)
		} else {
			symbolic = append(symbolic, n)
		}
	}

	var foldedConst *bvconst.BVConst
	if len(consts) > 0 {
		v := foldBVConstants(kind, consts)
		foldedConst = &v
	}

	// Annihilators / identities against the folded constant.
	if foldedConst != nil {
		switch kind {
		case KindMul:
			if foldedConst.IsZero() {
				return b.Const(bvconst.Zero(width))
			}
			if foldedConst.Eq(bvconst.FromU64(1, width)) && len(symbolic) > 0 {
				foldedConst = nil
			}
		case KindAnd:
			if foldedConst.IsZero() {
				return b.Const(bvconst.Zero(width))
			}
			if foldedConst.Eq(bvconst.Ones(width)) && len(symbolic) > 0 {
				foldedConst = nil
			}
		case KindOr:
			if foldedConst.Eq(bvconst.Ones(width)) {
				return b.Const(bvconst.Ones(width))
			}
			if foldedConst.IsZero() && len(symbolic) > 0 {
				foldedConst = nil
			}
		case KindAdd:
			if foldedConst.IsZero() && len(symbolic) > 0 {
				foldedConst = nil
			}
		case KindXor:
			if foldedConst.IsZero() && len(symbolic) > 0 {
				foldedConst = nil
			}
		}
	}

	var children []*Node
	if foldedConst != nil {
		children = append(children, b.Const(*foldedConst))
	}
	children = append(children, symbolic...)

	if kind == KindXor || kind == KindAdd {
		children = cancelSelfInverse(kind, children)
	}

	if len(children) == 0 {
		switch kind {
		case KindAdd, KindXor, KindOr:
			return b.Const(bvconst.Zero(width))
		case KindMul, KindAnd:
			return b.Const(bvconst.Ones(width))
		}
	}
	if len(children) == 1 {
		return children[0]
	}
	sortByID(children)

	key := bvKey(kind, width, children, "")
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: kind, width: width, children: children}
	})
}

// cancelSelfInverse removes x,Neg(x) pairs from an Add list (after the
// Sub(a,b)->Add(a,Neg(b)) canonical rewrite) and x,x pairs from an Xor
// list, both of which reduce to the operator's identity element.
func cancelSelfInverse(kind Kind, children []*Node) []*Node {
	removed := make(map[int]bool)
	idx := make(map[uint64][]int)
	for i, c := range children {
		idx[c.id] = append(idx[c.id], i)
	}

	if kind == KindXor {
		for _, positions := range idx {
			for len(positions) >= 2 {
				removed[positions[0]] = true
				removed[positions[1]] = true
				positions = positions[2:]
			}
		}
	}
	if kind == KindAdd {
		for _, c := range children {
			if c.kind != KindNeg {
				continue
			}
			baseID := c.children[0].id
			positions, ok := idx[baseID]
			if !ok {
				continue
			}
			for _, p := range positions {
				if removed[p] {
					continue
				}
				negPositions := idx[c.id]
				for _, np := range negPositions {
					if !removed[np] {
						removed[p] = true
						removed[np] = true
						break
					}
				}
				break
			}
		}
	}
	if len(removed) == 0 {
		return children
	}
	out := make([]*Node, 0, len(children))
	for i, c := range children {
		if !removed[i] {
			out = append(out, c)
		}
	}
	return out
}

// Add returns the sum of two or more same-width bit-vectors.
func (b *Builder) Add(nodes ...*Node) *Node { return b.nAry(KindAdd, nodes) }

// Mul returns the product of two or more same-width bit-vectors.
func (b *Builder) Mul(nodes ...*Node) *Node { return b.nAry(KindMul, nodes) }

// And returns the bitwise AND of two or more same-width bit-vectors.
func (b *Builder) And(nodes ...*Node) *Node { return b.nAry(KindAnd, nodes) }

// Or returns the bitwise OR of two or more same-width bit-vectors.
func (b *Builder) Or(nodes ...*Node) *Node { return b.nAry(KindOr, nodes) }

// Xor returns the bitwise XOR of two or more same-width bit-vectors.
func (b *Builder) Xor(nodes ...*Node) *Node { return b.nAry(KindXor, nodes) }

// Sub returns a-b, canonicalized internally as Add(a, Neg(b)) per spec §4.2.
func (b *Builder) Sub(a, c *Node) *Node {
	checkBVWidthsEqual(a, c)
	if a.kind == KindConst && c.kind == KindConst {
		return b.Const(a.constVal.Sub(c.constVal))
	}
	if a.id == c.id {
		return b.Const(bvconst.Zero(a.width))
	}
	return b.Add(a, b.Neg(c))
}

// ---------------------------------------------------------------------
// Division / remainder (binary, not n-ary)
// ---------------------------------------------------------------------

func (b *Builder) divRem(kind Kind, a, c *Node) *Node {
	checkBVWidthsEqual(a, c)
	if a.kind == KindConst && c.kind == KindConst {
		switch kind {
		case KindUDiv:
			return b.Const(a.constVal.UDiv(c.constVal))
		case KindSDiv:
			return b.Const(a.constVal.SDiv(c.constVal))
		case KindURem:
			return b.Const(a.constVal.URem(c.constVal))
		case KindSRem:
			return b.Const(a.constVal.SRem(c.constVal))
		}
	}
	key := bvKey(kind, a.width, []*Node{a, c}, "")
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: kind, width: a.width, children: []*Node{a, c}}
	})
}

// UDiv returns the unsigned quotient a/c.
func (b *Builder) UDiv(a, c *Node) *Node { return b.divRem(KindUDiv, a, c) }

// SDiv returns the signed quotient a/c.
func (b *Builder) SDiv(a, c *Node) *Node { return b.divRem(KindSDiv, a, c) }

// URem returns the unsigned remainder a%c.
func (b *Builder) URem(a, c *Node) *Node { return b.divRem(KindURem, a, c) }

// SRem returns the signed remainder a%c.
func (b *Builder) SRem(a, c *Node) *Node { return b.divRem(KindSRem, a, c) }

// ---------------------------------------------------------------------
// Boolean n-ary / comparisons
// ---------------------------------------------------------------------

func (b *Builder) boolNAry(kind Kind, nodes []*Node) *Node {
	if len(nodes) < 2 {
		panic("expr: Boolean n-ary operator requires at least 2 operands")
	}
	flat := flatten(kind, nodes)
	sortByID(flat)

	identity := kind == KindBoolAnd // And's identity is true, Or's is false
	var kept []*Node
	for _, n := range flat {
		if n.kind == KindBoolConst {
			if kind == KindBoolAnd && !n.boolVal {
				return b.BoolConst(false)
			}
			if kind == KindBoolOr && n.boolVal {
				return b.BoolConst(true)
			}
			continue // drop identity-valued constant
		}
		kept = append(kept, n)
	}
	if len(kept) == 0 {
		return b.BoolConst(identity)
	}
	if len(kept) == 1 {
		return kept[0]
	}
	sortByID(kept)
	key := fmt.Sprintf("%d|%s", kind, childKey(kept))
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: kind, children: kept}
	})
}

// BoolAnd returns the conjunction of two or more Boolean expressions.
func (b *Builder) BoolAnd(nodes ...*Node) *Node { return b.boolNAry(KindBoolAnd, nodes) }

// BoolOr returns the disjunction of two or more Boolean expressions.
func (b *Builder) BoolOr(nodes ...*Node) *Node { return b.boolNAry(KindBoolOr, nodes) }

func (b *Builder) cmp(kind Kind, a, c *Node) *Node {
	checkBVWidthsEqual(a, c)
	if a.id == c.id && (kind == KindEq || kind == KindUle || kind == KindUge || kind == KindSle || kind == KindSge) {
		return b.BoolConst(true)
	}
	if a.kind == KindConst && c.kind == KindConst {
		var v bool
		switch kind {
		case KindEq:
			v = a.constVal.Eq(c.constVal)
		case KindUlt:
			v = a.constVal.Ult(c.constVal)
		case KindUle:
			v = a.constVal.Ule(c.constVal)
		case KindUgt:
			v = a.constVal.Ugt(c.constVal)
		case KindUge:
			v = a.constVal.Uge(c.constVal)
		case KindSlt:
			v = a.constVal.Slt(c.constVal)
		case KindSle:
			v = a.constVal.Sle(c.constVal)
		case KindSgt:
			v = a.constVal.Sgt(c.constVal)
		case KindSge:
			v = a.constVal.Sge(c.constVal)
		}
		return b.BoolConst(v)
	}
	key := fmt.Sprintf("%d|%s", kind, childKey([]*Node{a, c}))
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: kind, children: []*Node{a, c}}
	})
}

// Eq returns a Boolean testing bit-vector equality.
func (b *Builder) Eq(a, c *Node) *Node { return b.cmp(KindEq, a, c) }

// Ult returns a < c, unsigned.
func (b *Builder) Ult(a, c *Node) *Node { return b.cmp(KindUlt, a, c) }

// Ule returns a <= c, unsigned.
func (b *Builder) Ule(a, c *Node) *Node { return b.cmp(KindUle, a, c) }

// Ugt returns a > c, unsigned.
func (b *Builder) Ugt(a, c *Node) *Node { return b.cmp(KindUgt, a, c) }

// Uge returns a >= c, unsigned.
func (b *Builder) Uge(a, c *Node) *Node { return b.cmp(KindUge, a, c) }

// Slt returns a < c, signed.
func (b *Builder) Slt(a, c *Node) *Node { return b.cmp(KindSlt, a, c) }

// Sle returns a <= c, signed.
func (b *Builder) Sle(a, c *Node) *Node { return b.cmp(KindSle, a, c) }

// Sgt returns a > c, signed.
func (b *Builder) Sgt(a, c *Node) *Node { return b.cmp(KindSgt, a, c) }

// Sge returns a >= c, signed.
func (b *Builder) Sge(a, c *Node) *Node { return b.cmp(KindSge, a, c) }

// ---------------------------------------------------------------------
// Floating point (minimal; spec non-goal excludes IEEE edge-case fidelity)
// ---------------------------------------------------------------------

// FPConst returns a constant floating-point node in the given format.
func (b *Builder) FPConst(v float64, format FPFormat) *Node {
	key := fmt.Sprintf("%d|%d|%v", KindFPConst, format, v)
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: KindFPConst, fpFormat: format, fpConst: v}
	})
}

// BVToFP reinterprets a bit-vector's bits as a floating-point value of
// the given format.
func (b *Builder) BVToFP(x *Node, format FPFormat) *Node {
	key := fmt.Sprintf("%d|%d|%s", KindBVToFP, format, childKey([]*Node{x}))
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: KindBVToFP, fpFormat: format, children: []*Node{x}}
	})
}

// FPToBV reinterprets x's bits as a bit-vector of the format's width.
func (b *Builder) FPToBV(x *Node) *Node {
	width := x.fpFormat.Width()
	key := bvKey(KindFPToBV, width, []*Node{x}, "")
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: KindFPToBV, width: width, children: []*Node{x}}
	})
}

// FPConvert converts x to a different floating-point format.
func (b *Builder) FPConvert(x *Node, format FPFormat) *Node {
	key := fmt.Sprintf("%d|%d|%s", KindFPConvert, format, childKey([]*Node{x}))
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: KindFPConvert, fpFormat: format, children: []*Node{x}}
	})
}

// IntToFP converts an integer bit-vector to a floating-point value.
func (b *Builder) IntToFP(x *Node, format FPFormat, signed bool) *Node {
	sig := "u"
	if signed {
		sig = "s"
	}
	key := fmt.Sprintf("%d|%d|%s|%s", KindIntToFP, format, sig, childKey([]*Node{x}))
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: KindIntToFP, fpFormat: format, children: []*Node{x}}
	})
}

// FPIsNaN tests whether x is NaN.
func (b *Builder) FPIsNaN(x *Node) *Node {
	key := fmt.Sprintf("%d|%s", KindFPIsNaN, childKey([]*Node{x}))
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: KindFPIsNaN, children: []*Node{x}}
	})
}

// FPNeg returns the floating-point negation of x.
func (b *Builder) FPNeg(x *Node) *Node {
	key := fmt.Sprintf("%d|%d|%s", KindFPNeg, x.fpFormat, childKey([]*Node{x}))
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: KindFPNeg, fpFormat: x.fpFormat, children: []*Node{x}}
	})
}

// FPAdd returns the sum of two or more floating-point values.
func (b *Builder) FPAdd(nodes ...*Node) *Node {
	key := fmt.Sprintf("%d|%d|%s", KindFPAdd, nodes[0].fpFormat, childKey(nodes))
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: KindFPAdd, fpFormat: nodes[0].fpFormat, children: nodes}
	})
}

// FPMul returns the product of two or more floating-point values.
func (b *Builder) FPMul(nodes ...*Node) *Node {
	key := fmt.Sprintf("%d|%d|%s", KindFPMul, nodes[0].fpFormat, childKey(nodes))
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: KindFPMul, fpFormat: nodes[0].fpFormat, children: nodes}
	})
}

// FPDiv returns the floating-point quotient a/c.
func (b *Builder) FPDiv(a, c *Node) *Node {
	key := fmt.Sprintf("%d|%d|%s", KindFPDiv, a.fpFormat, childKey([]*Node{a, c}))
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: KindFPDiv, fpFormat: a.fpFormat, children: []*Node{a, c}}
	})
}

// FPLt tests a < c.
func (b *Builder) FPLt(a, c *Node) *Node {
	key := fmt.Sprintf("%d|%s", KindFPLt, childKey([]*Node{a, c}))
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: KindFPLt, children: []*Node{a, c}}
	})
}

// FPEq tests a == c.
func (b *Builder) FPEq(a, c *Node) *Node {
	key := fmt.Sprintf("%d|%s", KindFPEq, childKey([]*Node{a, c}))
	return b.intern(key, func(nid uint64) *Node {
		return &Node{id: nid, kind: KindFPEq, children: []*Node{a, c}}
	})
}
