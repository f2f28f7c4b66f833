package z3

import (
	"fmt"

	"github.com/aclements/go-z3/z3"

	"github.com/borzacchiello/naazgo/internal/bvconst"
	"github.com/borzacchiello/naazgo/internal/expr"
)

// translator converts one query's expression DAG into Z3 ASTs, caching
// by node id so that the DAG's sharing is preserved in the Z3 query
// instead of being re-expanded into a tree.
type translator struct {
	ctx *z3.Context

	bvCache   map[uint64]z3.BV
	boolCache map[uint64]z3.Bool

	symByID  map[uint32]z3.BV
	symWidth map[uint32]uint32
}

func newTranslator(ctx *z3.Context) *translator {
	return &translator{
		ctx:       ctx,
		bvCache:   make(map[uint64]z3.BV),
		boolCache: make(map[uint64]z3.Bool),
		symByID:   make(map[uint32]z3.BV),
		symWidth:  make(map[uint32]uint32),
	}
}

func (t *translator) toBool(n *expr.Node) (z3.Bool, error) {
	if ast, ok := t.boolCache[n.ID()]; ok {
		return ast, nil
	}
	ast, err := t.buildBool(n)
	if err != nil {
		return z3.Bool{}, err
	}
	t.boolCache[n.ID()] = ast
	return ast, nil
}

func (t *translator) toBV(n *expr.Node) (z3.BV, error) {
	if ast, ok := t.bvCache[n.ID()]; ok {
		return ast, nil
	}
	ast, err := t.buildBV(n)
	if err != nil {
		return z3.BV{}, err
	}
	t.bvCache[n.ID()] = ast
	return ast, nil
}

func (t *translator) buildBool(n *expr.Node) (z3.Bool, error) {
	switch n.Kind() {
	case expr.KindBoolConst:
		return t.ctx.FromBool(n.AsBool()), nil
	case expr.KindBoolNot:
		c, err := t.toBool(n.Children()[0])
		if err != nil {
			return z3.Bool{}, err
		}
		return c.Not(), nil
	case expr.KindBoolAnd:
		cs, err := t.boolChildren(n)
		if err != nil {
			return z3.Bool{}, err
		}
		return z3.And(cs...), nil
	case expr.KindBoolOr:
		cs, err := t.boolChildren(n)
		if err != nil {
			return z3.Bool{}, err
		}
		return z3.Or(cs...), nil
	case expr.KindEq, expr.KindUlt, expr.KindUle, expr.KindUgt, expr.KindUge,
		expr.KindSlt, expr.KindSle, expr.KindSgt, expr.KindSge:
		a, err := t.toBV(n.Children()[0])
		if err != nil {
			return z3.Bool{}, err
		}
		b, err := t.toBV(n.Children()[1])
		if err != nil {
			return z3.Bool{}, err
		}
		switch n.Kind() {
		case expr.KindEq:
			return a.Eq(b), nil
		case expr.KindUlt:
			return a.ULT(b), nil
		case expr.KindUle:
			return a.ULE(b), nil
		case expr.KindUgt:
			return a.UGT(b), nil
		case expr.KindUge:
			return a.UGE(b), nil
		case expr.KindSlt:
			return a.SLT(b), nil
		case expr.KindSle:
			return a.SLE(b), nil
		case expr.KindSgt:
			return a.SGT(b), nil
		default: // KindSge
			return a.SGE(b), nil
		}
	default:
		return z3.Bool{}, fmt.Errorf("z3: unsupported Boolean node kind %s", n.Kind())
	}
}

func (t *translator) boolChildren(n *expr.Node) ([]z3.Bool, error) {
	children := n.Children()
	out := make([]z3.Bool, len(children))
	for i, c := range children {
		ast, err := t.toBool(c)
		if err != nil {
			return nil, err
		}
		out[i] = ast
	}
	return out, nil
}

func (t *translator) bvChildren(n *expr.Node) ([]z3.BV, error) {
	children := n.Children()
	out := make([]z3.BV, len(children))
	for i, c := range children {
		ast, err := t.toBV(c)
		if err != nil {
			return nil, err
		}
		out[i] = ast
	}
	return out, nil
}

func (t *translator) buildBV(n *expr.Node) (z3.BV, error) {
	switch n.Kind() {
	case expr.KindSym:
		name := fmt.Sprintf("sym_%d", n.SymID())
		ast := t.ctx.BVConst(name, int(n.Width()))
		t.symByID[n.SymID()] = ast
		t.symWidth[n.SymID()] = n.Width()
		return ast, nil

	case expr.KindConst:
		v := n.AsConst()
		return t.ctx.FromBigInt(v.AsBigInt(), t.ctx.BVSort(int(n.Width()))), nil

	case expr.KindBoolToBV:
		c, err := t.toBool(n.Children()[0])
		if err != nil {
			return z3.BV{}, err
		}
		one := t.ctx.FromInt(1, t.ctx.BVSort(1))
		zero := t.ctx.FromInt(0, t.ctx.BVSort(1))
		return c.IfThenElse(one, zero).(z3.BV), nil

	case expr.KindExtract:
		hi, lo := n.ExtractBounds()
		c, err := t.toBV(n.Children()[0])
		if err != nil {
			return z3.BV{}, err
		}
		return c.Extract(int(hi), int(lo)), nil

	case expr.KindConcat:
		cs, err := t.bvChildren(n)
		if err != nil {
			return z3.BV{}, err
		}
		return cs[0].Concat(cs[1]), nil

	case expr.KindZext:
		c, err := t.toBV(n.Children()[0])
		if err != nil {
			return z3.BV{}, err
		}
		return c.ZeroExtend(int(n.Width()) - c.SortSize()), nil

	case expr.KindSext:
		c, err := t.toBV(n.Children()[0])
		if err != nil {
			return z3.BV{}, err
		}
		return c.SignExtend(int(n.Width()) - c.SortSize()), nil

	case expr.KindITE:
		children := n.Children()
		guard, err := t.toBool(children[0])
		if err != nil {
			return z3.BV{}, err
		}
		then, err := t.toBV(children[1])
		if err != nil {
			return z3.BV{}, err
		}
		els, err := t.toBV(children[2])
		if err != nil {
			return z3.BV{}, err
		}
		return guard.IfThenElse(then, els).(z3.BV), nil

	case expr.KindNeg:
		c, err := t.toBV(n.Children()[0])
		if err != nil {
			return z3.BV{}, err
		}
		return c.Neg(), nil

	case expr.KindNot:
		c, err := t.toBV(n.Children()[0])
		if err != nil {
			return z3.BV{}, err
		}
		return c.Not(), nil

	case expr.KindShl, expr.KindLShr, expr.KindAShr:
		cs, err := t.bvChildren(n)
		if err != nil {
			return z3.BV{}, err
		}
		switch n.Kind() {
		case expr.KindShl:
			return cs[0].Lsh(cs[1]), nil
		case expr.KindLShr:
			return cs[0].URsh(cs[1]), nil
		default:
			return cs[0].SRsh(cs[1]), nil
		}

	case expr.KindAdd, expr.KindMul, expr.KindAnd, expr.KindOr, expr.KindXor:
		cs, err := t.bvChildren(n)
		if err != nil {
			return z3.BV{}, err
		}
		acc := cs[0]
		for _, c := range cs[1:] {
			switch n.Kind() {
			case expr.KindAdd:
				acc = acc.Add(c)
			case expr.KindMul:
				acc = acc.Mul(c)
			case expr.KindAnd:
				acc = acc.And(c)
			case expr.KindOr:
				acc = acc.Or(c)
			case expr.KindXor:
				acc = acc.Xor(c)
			}
		}
		return acc, nil

	case expr.KindUDiv, expr.KindSDiv, expr.KindURem, expr.KindSRem:
		cs, err := t.bvChildren(n)
		if err != nil {
			return z3.BV{}, err
		}
		switch n.Kind() {
		case expr.KindUDiv:
			return cs[0].UDiv(cs[1]), nil
		case expr.KindSDiv:
			return cs[0].SDiv(cs[1]), nil
		case expr.KindURem:
			return cs[0].URem(cs[1]), nil
		default:
			return cs[0].SRem(cs[1]), nil
		}

	default:
		return z3.BV{}, fmt.Errorf("z3: unsupported bit-vector node kind %s", n.Kind())
	}
}

// neqConst builds ast != v as a Boolean, used to exclude an
// already-found value when enumerating evaluate_upto's distinct results.
func (t *translator) neqConst(ast z3.BV, v bvconst.BVConst) (z3.Bool, error) {
	c := t.ctx.FromBigInt(v.AsBigInt(), ast.Sort())
	return ast.Eq(c).Not(), nil
}
