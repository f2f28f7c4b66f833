package expr

// Kind tags the sum type of expression nodes. The set is closed and
// performance sensitive, so a tagged enum with switch dispatch is used
// throughout this package instead of per-kind types with virtual methods.
type Kind int

const (
	KindSym Kind = iota
	KindConst
	KindExtract
	KindConcat
	KindZext
	KindSext
	KindITE
	KindNeg
	KindNot
	KindShl
	KindLShr
	KindAShr
	KindAdd
	KindMul
	KindAnd
	KindOr
	KindXor
	KindSDiv
	KindUDiv
	KindSRem
	KindURem
	KindBoolToBV

	KindBoolConst
	KindBoolNot
	KindBoolAnd
	KindBoolOr
	KindEq
	KindUlt
	KindUle
	KindUgt
	KindUge
	KindSlt
	KindSle
	KindSgt
	KindSge

	KindFPConst
	KindBVToFP
	KindFPToBV
	KindFPConvert
	KindIntToFP
	KindFPIsNaN
	KindFPNeg
	KindFPAdd
	KindFPMul
	KindFPDiv
	KindFPLt
	KindFPEq
)

// IsBool reports whether a node of this kind evaluates to a Boolean
// rather than a bit-vector or floating-point value.
func (k Kind) IsBool() bool {
	switch k {
	case KindBoolConst, KindBoolNot, KindBoolAnd, KindBoolOr, KindEq,
		KindUlt, KindUle, KindUgt, KindUge, KindSlt, KindSle, KindSgt, KindSge,
		KindFPIsNaN, KindFPLt, KindFPEq:
		return true
	default:
		return false
	}
}

// IsFP reports whether a node of this kind produces a floating-point value.
func (k Kind) IsFP() bool {
	switch k {
	case KindFPConst, KindBVToFP, KindFPConvert, KindIntToFP, KindFPNeg, KindFPAdd, KindFPMul, KindFPDiv:
		return true
	default:
		return false
	}
}

// IsNAry reports whether a kind is one of the associative/commutative
// n-ary operators that the builder flattens and sorts during canonicalization.
func (k Kind) IsNAry() bool {
	switch k {
	case KindAdd, KindMul, KindAnd, KindOr, KindXor, KindBoolAnd, KindBoolOr:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	names := [...]string{
		"Sym", "Const", "Extract", "Concat", "Zext", "Sext", "ITE", "Neg", "Not",
		"Shl", "LShr", "AShr", "Add", "Mul", "And", "Or", "Xor", "SDiv", "UDiv",
		"SRem", "URem", "BoolToBV",
		"BoolConst", "BoolNot", "BoolAnd", "BoolOr", "Eq", "Ult", "Ule", "Ugt",
		"Uge", "Slt", "Sle", "Sgt", "Sge",
		"FPConst", "BVToFP", "FPToBV", "FPConvert", "IntToFP", "FPIsNaN",
		"FPNeg", "FPAdd", "FPMul", "FPDiv", "FPLt", "FPEq",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}
