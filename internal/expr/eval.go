package expr

import "github.com/borzacchiello/naazgo/internal/bvconst"

// Evaluate substitutes every KindSym node in e with its value from model
// (rebuilding e bottom-up through b, so the builder's own simplifications
// do the folding) and returns the result. When complete is true, symbols
// absent from model are substituted with the zero value of their width,
// guaranteeing the result folds to a Const/BoolConst. When complete is
// false, unresolved symbols are left in place, so the result may still
// contain Sym nodes if model does not cover e's full support.
//
// This mirrors the "evaluate under a possibly partial model" primitive
// the solver facade uses to try cheap model-completion before falling
// back to an SMT query.
func Evaluate(b *Builder, e *Node, model map[uint32]bvconst.BVConst, complete bool) *Node {
	memo := make(map[uint64]*Node)
	return evalRec(b, e, model, complete, memo)
}

func evalRec(b *Builder, n *Node, model map[uint32]bvconst.BVConst, complete bool, memo map[uint64]*Node) *Node {
	if out, ok := memo[n.ID()]; ok {
		return out
	}
	out := evalNode(b, n, model, complete, memo)
	memo[n.ID()] = out
	return out
}

func evalChildren(b *Builder, n *Node, model map[uint32]bvconst.BVConst, complete bool, memo map[uint64]*Node) []*Node {
	children := n.Children()
	out := make([]*Node, len(children))
	for i, c := range children {
		out[i] = evalRec(b, c, model, complete, memo)
	}
	return out
}

func evalNode(b *Builder, n *Node, model map[uint32]bvconst.BVConst, complete bool, memo map[uint64]*Node) *Node {
	switch n.Kind() {
	case KindSym:
		if v, ok := model[n.SymID()]; ok {
			return b.Const(v)
		}
		if complete {
			return b.Const(bvconst.Zero(n.Width()))
		}
		return n
	case KindConst, KindBoolConst, KindFPConst:
		return n

	case KindExtract:
		hi, lo := n.ExtractBounds()
		return b.Extract(evalRec(b, n.children[0], model, complete, memo), hi, lo)
	case KindConcat:
		return b.Concat(evalRec(b, n.children[0], model, complete, memo), evalRec(b, n.children[1], model, complete, memo))
	case KindZext:
		return b.Zext(evalRec(b, n.children[0], model, complete, memo), n.width)
	case KindSext:
		return b.Sext(evalRec(b, n.children[0], model, complete, memo), n.width)
	case KindITE:
		c := evalChildren(b, n, model, complete, memo)
		return b.ITE(c[0], c[1], c[2])
	case KindNeg:
		return b.Neg(evalRec(b, n.children[0], model, complete, memo))
	case KindNot:
		return b.Not(evalRec(b, n.children[0], model, complete, memo))
	case KindShl:
		c := evalChildren(b, n, model, complete, memo)
		return b.Shl(c[0], c[1])
	case KindLShr:
		c := evalChildren(b, n, model, complete, memo)
		return b.LShr(c[0], c[1])
	case KindAShr:
		c := evalChildren(b, n, model, complete, memo)
		return b.AShr(c[0], c[1])
	case KindAdd:
		return b.Add(evalChildren(b, n, model, complete, memo)...)
	case KindMul:
		return b.Mul(evalChildren(b, n, model, complete, memo)...)
	case KindAnd:
		return b.And(evalChildren(b, n, model, complete, memo)...)
	case KindOr:
		return b.Or(evalChildren(b, n, model, complete, memo)...)
	case KindXor:
		return b.Xor(evalChildren(b, n, model, complete, memo)...)
	case KindSDiv:
		c := evalChildren(b, n, model, complete, memo)
		return b.SDiv(c[0], c[1])
	case KindUDiv:
		c := evalChildren(b, n, model, complete, memo)
		return b.UDiv(c[0], c[1])
	case KindSRem:
		c := evalChildren(b, n, model, complete, memo)
		return b.SRem(c[0], c[1])
	case KindURem:
		c := evalChildren(b, n, model, complete, memo)
		return b.URem(c[0], c[1])
	case KindBoolToBV:
		return b.BoolToBV(evalRec(b, n.children[0], model, complete, memo))

	case KindBoolNot:
		return b.BoolNot(evalRec(b, n.children[0], model, complete, memo))
	case KindBoolAnd:
		return b.BoolAnd(evalChildren(b, n, model, complete, memo)...)
	case KindBoolOr:
		return b.BoolOr(evalChildren(b, n, model, complete, memo)...)
	case KindEq:
		c := evalChildren(b, n, model, complete, memo)
		return b.Eq(c[0], c[1])
	case KindUlt:
		c := evalChildren(b, n, model, complete, memo)
		return b.Ult(c[0], c[1])
	case KindUle:
		c := evalChildren(b, n, model, complete, memo)
		return b.Ule(c[0], c[1])
	case KindUgt:
		c := evalChildren(b, n, model, complete, memo)
		return b.Ugt(c[0], c[1])
	case KindUge:
		c := evalChildren(b, n, model, complete, memo)
		return b.Uge(c[0], c[1])
	case KindSlt:
		c := evalChildren(b, n, model, complete, memo)
		return b.Slt(c[0], c[1])
	case KindSle:
		c := evalChildren(b, n, model, complete, memo)
		return b.Sle(c[0], c[1])
	case KindSgt:
		c := evalChildren(b, n, model, complete, memo)
		return b.Sgt(c[0], c[1])
	case KindSge:
		c := evalChildren(b, n, model, complete, memo)
		return b.Sge(c[0], c[1])

	case KindBVToFP:
		return b.BVToFP(evalRec(b, n.children[0], model, complete, memo), n.fpFormat)
	case KindFPToBV:
		return b.FPToBV(evalRec(b, n.children[0], model, complete, memo))
	case KindFPConvert:
		return b.FPConvert(evalRec(b, n.children[0], model, complete, memo), n.fpFormat)
	case KindIntToFP:
		return b.IntToFP(evalRec(b, n.children[0], model, complete, memo), n.fpFormat, false)
	case KindFPIsNaN:
		return b.FPIsNaN(evalRec(b, n.children[0], model, complete, memo))
	case KindFPNeg:
		return b.FPNeg(evalRec(b, n.children[0], model, complete, memo))
	case KindFPAdd:
		return b.FPAdd(evalChildren(b, n, model, complete, memo)...)
	case KindFPMul:
		return b.FPMul(evalChildren(b, n, model, complete, memo)...)
	case KindFPDiv:
		c := evalChildren(b, n, model, complete, memo)
		return b.FPDiv(c[0], c[1])
	case KindFPLt:
		c := evalChildren(b, n, model, complete, memo)
		return b.FPLt(c[0], c[1])
	case KindFPEq:
		c := evalChildren(b, n, model, complete, memo)
		return b.FPEq(c[0], c[1])
	}
	panic("expr: Evaluate: unhandled kind " + n.Kind().String())
}
