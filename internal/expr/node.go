// Package expr implements the hash-consed symbolic expression DAG: an
// immutable, structurally-shared graph of bit-vector, Boolean, and
// floating-point nodes with algebraic simplification performed eagerly at
// construction time. Every node built through a Builder carries a stable
// identity such that two structurally equal expressions are the same *Node
// pointer — structural equality is therefore pointer equality, O(1).
package expr

import "github.com/borzacchiello/naazgo/internal/bvconst"

// Node is an immutable value in the expression DAG. Its Kind selects which
// of the fields below are meaningful, mirroring the sum-type node kinds in
// spec §3: Sym, Const, Extract, Concat, Zext, Sext, ITE, Neg, Not, shifts,
// n-ary arithmetic/logic, div/rem, BoolToBV, the Boolean comparisons, and
// the floating-point operators.
type Node struct {
	id    uint64
	kind  Kind
	width uint32 // bit-vector result width; meaningless for Bool nodes

	children []*Node

	// KindSym
	symID    uint32
	symWidth uint32

	// KindConst
	constVal bvconst.BVConst

	// KindBoolConst
	boolVal bool

	// KindExtract
	hi, lo uint32

	// KindITE: children[0]=guard children[1]=then children[2]=else

	// floating point
	fpFormat FPFormat
	fpConst  float64
}

// ID returns a process-unique, stable identifier assigned at interning
// time. Two nodes with the same ID are the same node.
func (n *Node) ID() uint64 { return n.id }

// Kind returns the node's operator tag.
func (n *Node) Kind() Kind { return n.kind }

// Width returns the node's bit-vector width. It is undefined for Bool
// nodes, which have no width, and meaningful in bits-occupied-as-BV sense
// for FP nodes.
func (n *Node) Width() uint32 { return n.width }

// Children returns the node's operands in evaluation order. The slice
// must not be mutated by callers.
func (n *Node) Children() []*Node { return n.children }

// IsBool reports whether this node is a Boolean-valued node.
func (n *Node) IsBool() bool { return n.kind.IsBool() }

// IsConst reports whether this node is a concrete constant (bit-vector,
// Boolean, or floating-point).
func (n *Node) IsConst() bool {
	return n.kind == KindConst || n.kind == KindBoolConst || n.kind == KindFPConst
}

// AsConst returns the node's concrete BVConst value; it panics if the
// node is not a KindConst node.
func (n *Node) AsConst() bvconst.BVConst {
	if n.kind != KindConst {
		panic("expr: AsConst called on non-Const node")
	}
	return n.constVal
}

// AsBool returns the node's concrete Boolean value; it panics if the node
// is not a KindBoolConst node.
func (n *Node) AsBool() bool {
	if n.kind != KindBoolConst {
		panic("expr: AsBool called on non-BoolConst node")
	}
	return n.boolVal
}

// SymID returns the symbol id of a KindSym node; it panics otherwise.
func (n *Node) SymID() uint32 {
	if n.kind != KindSym {
		panic("expr: SymID called on non-Sym node")
	}
	return n.symID
}

// ExtractBounds returns (hi, lo) for a KindExtract node; it panics otherwise.
func (n *Node) ExtractBounds() (uint32, uint32) {
	if n.kind != KindExtract {
		panic("expr: ExtractBounds called on non-Extract node")
	}
	return n.hi, n.lo
}
