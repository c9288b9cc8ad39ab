package arena

import (
	"math"

	rerr "rowexpr/internal/errors"
	"rowexpr/internal/region"
	"rowexpr/internal/types"
)

// folded is the result of collapsing a literal-only subtree into a
// single constant.
type folded struct {
	Type   types.Kind
	Scalar Scalar
}

func foldUnary(op Op, kind types.Kind, s Scalar) (folded, bool) {
	switch op {
	case OpCastLong:
		switch kind {
		case types.KindBool:
			return boolToLong(s), true
		case types.KindDouble:
			return folded{types.KindLong, Scalar{L: int64(s.D)}}, true
		}
	case OpCastDouble:
		switch kind {
		case types.KindBool:
			b := 0.0
			if s.B {
				b = 1.0
			}
			return folded{types.KindDouble, Scalar{D: b}}, true
		case types.KindLong:
			return folded{types.KindDouble, Scalar{D: float64(s.L)}}, true
		}
	case OpNeg:
		switch kind {
		case types.KindLong:
			return folded{types.KindLong, Scalar{L: -s.L}}, true
		case types.KindDouble:
			return folded{types.KindDouble, Scalar{D: -s.D}}, true
		}
	case OpNot:
		if kind == types.KindBool {
			return folded{types.KindBool, Scalar{B: !s.B}}, true
		}
	case OpBitNot:
		if kind == types.KindBitStr {
			return folded{types.KindBitStr, Scalar{S: BitNot(s.S)}}, true
		}
	}
	return folded{}, false
}

func boolToLong(s Scalar) folded {
	if s.B {
		return folded{types.KindLong, Scalar{L: 1}}
	}
	return folded{types.KindLong, Scalar{L: 0}}
}

func foldBinary(op Op, kind types.Kind, a, b Scalar) (folded, bool, error) {
	switch kind {
	case types.KindBitStr:
		return foldBitBinary(op, a, b)
	case types.KindString:
		return foldStringBinary(op, a, b)
	case types.KindLong:
		return foldLongBinary(op, a, b)
	case types.KindDouble:
		return foldDoubleBinary(op, a, b)
	case types.KindBool:
		return foldBoolBinary(op, a, b)
	}
	return folded{}, false, nil
}

func foldBitBinary(op Op, a, b Scalar) (folded, bool, error) {
	switch op {
	case OpBitAnd:
		return folded{types.KindBitStr, Scalar{S: BitAnd(a.S, b.S)}}, true, nil
	case OpBitOr:
		return folded{types.KindBitStr, Scalar{S: BitOr(a.S, b.S)}}, true, nil
	case OpConcat:
		return folded{types.KindBitStr, Scalar{S: BitConcat(a.S, b.S)}}, true, nil
	case OpEq:
		return folded{types.KindBool, Scalar{B: BitEqual(a.S, b.S)}}, true, nil
	case OpNe:
		return folded{types.KindBool, Scalar{B: !BitEqual(a.S, b.S)}}, true, nil
	case OpLt:
		return folded{types.KindBool, Scalar{B: BitToInt(a.S) < BitToInt(b.S)}}, true, nil
	case OpLe:
		return folded{types.KindBool, Scalar{B: BitToInt(a.S) <= BitToInt(b.S)}}, true, nil
	case OpGt:
		return folded{types.KindBool, Scalar{B: BitToInt(a.S) > BitToInt(b.S)}}, true, nil
	case OpGe:
		return folded{types.KindBool, Scalar{B: BitToInt(a.S) >= BitToInt(b.S)}}, true, nil
	}
	return folded{}, false, nil
}

func foldStringBinary(op Op, a, b Scalar) (folded, bool, error) {
	switch op {
	case OpConcat, OpAdd:
		return folded{types.KindString, Scalar{S: a.S + b.S}}, true, nil
	case OpEq:
		return folded{types.KindBool, Scalar{B: a.S == b.S}}, true, nil
	case OpNe:
		return folded{types.KindBool, Scalar{B: a.S != b.S}}, true, nil
	case OpLt:
		return folded{types.KindBool, Scalar{B: a.S < b.S}}, true, nil
	case OpLe:
		return folded{types.KindBool, Scalar{B: a.S <= b.S}}, true, nil
	case OpGt:
		return folded{types.KindBool, Scalar{B: a.S > b.S}}, true, nil
	case OpGe:
		return folded{types.KindBool, Scalar{B: a.S >= b.S}}, true, nil
	}
	return folded{}, false, nil
}

func foldLongBinary(op Op, a, b Scalar) (folded, bool, error) {
	switch op {
	case OpAdd:
		return folded{types.KindLong, Scalar{L: a.L + b.L}}, true, nil
	case OpSub:
		return folded{types.KindLong, Scalar{L: a.L - b.L}}, true, nil
	case OpMul:
		return folded{types.KindLong, Scalar{L: a.L * b.L}}, true, nil
	case OpDiv:
		if b.L == 0 {
			return folded{}, false, rerr.New(rerr.DomainError, "division by zero", 0, 0, 0)
		}
		return folded{types.KindLong, Scalar{L: a.L / b.L}}, true, nil
	case OpMod:
		if b.L == 0 {
			return folded{}, false, rerr.New(rerr.DomainError, "division by zero", 0, 0, 0)
		}
		return folded{types.KindLong, Scalar{L: a.L % b.L}}, true, nil
	case OpEq:
		return folded{types.KindBool, Scalar{B: a.L == b.L}}, true, nil
	case OpNe:
		return folded{types.KindBool, Scalar{B: a.L != b.L}}, true, nil
	case OpLt:
		return folded{types.KindBool, Scalar{B: a.L < b.L}}, true, nil
	case OpLe:
		return folded{types.KindBool, Scalar{B: a.L <= b.L}}, true, nil
	case OpGt:
		return folded{types.KindBool, Scalar{B: a.L > b.L}}, true, nil
	case OpGe:
		return folded{types.KindBool, Scalar{B: a.L >= b.L}}, true, nil
	case OpApprox:
		return folded{types.KindBool, Scalar{B: a.L == b.L}}, true, nil
	}
	return folded{}, false, nil
}

// approxEqual implements the '~' fuzzy comparison: true when the two
// values agree to within a small relative tolerance, which absorbs the
// rounding noise introduced by FITS single-precision storage.
func approxEqual(a, b float64) bool {
	const tol = 1e-6
	diff := math.Abs(a - b)
	if diff == 0 {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return diff <= tol*scale
}

func foldDoubleBinary(op Op, a, b Scalar) (folded, bool, error) {
	switch op {
	case OpAdd:
		return folded{types.KindDouble, Scalar{D: a.D + b.D}}, true, nil
	case OpSub:
		return folded{types.KindDouble, Scalar{D: a.D - b.D}}, true, nil
	case OpMul:
		return folded{types.KindDouble, Scalar{D: a.D * b.D}}, true, nil
	case OpDiv:
		if b.D == 0 {
			return folded{}, false, rerr.New(rerr.DomainError, "division by zero", 0, 0, 0)
		}
		return folded{types.KindDouble, Scalar{D: a.D / b.D}}, true, nil
	case OpMod:
		if b.D == 0 {
			return folded{}, false, rerr.New(rerr.DomainError, "division by zero", 0, 0, 0)
		}
		return folded{types.KindDouble, Scalar{D: a.D - b.D*math.Trunc(a.D/b.D)}}, true, nil
	case OpPow:
		return folded{types.KindDouble, Scalar{D: math.Pow(a.D, b.D)}}, true, nil
	case OpEq:
		return folded{types.KindBool, Scalar{B: a.D == b.D}}, true, nil
	case OpNe:
		return folded{types.KindBool, Scalar{B: a.D != b.D}}, true, nil
	case OpLt:
		return folded{types.KindBool, Scalar{B: a.D < b.D}}, true, nil
	case OpLe:
		return folded{types.KindBool, Scalar{B: a.D <= b.D}}, true, nil
	case OpGt:
		return folded{types.KindBool, Scalar{B: a.D > b.D}}, true, nil
	case OpGe:
		return folded{types.KindBool, Scalar{B: a.D >= b.D}}, true, nil
	case OpApprox:
		return folded{types.KindBool, Scalar{B: approxEqual(a.D, b.D)}}, true, nil
	}
	return folded{}, false, nil
}

func foldBoolBinary(op Op, a, b Scalar) (folded, bool, error) {
	switch op {
	case OpAnd:
		return folded{types.KindBool, Scalar{B: a.B && b.B}}, true, nil
	case OpOr:
		// OR dominance: a defined-true or b defined-true always yields
		// defined-true; constants are always defined, so this is plain
		// boolean OR here.
		return folded{types.KindBool, Scalar{B: a.B || b.B}}, true, nil
	case OpEq:
		return folded{types.KindBool, Scalar{B: a.B == b.B}}, true, nil
	case OpNe:
		return folded{types.KindBool, Scalar{B: a.B != b.B}}, true, nil
	}
	return folded{}, false, nil
}

// foldFunc attempts to fold a function call whose arguments are all
// constants. Functions not listed here (RANDOM, #ROW, and anything
// needing per-row context) are never folded and the caller must not
// invoke this for them.
func foldFunc(op Op, returnKind types.Kind, children []int32, a *Arena) (Scalar, bool, error) {
	arg := func(i int) Scalar { return a.At(children[i]).Scalar }
	argKind := func(i int) types.Kind { return a.At(children[i]).Type }

	switch op {
	case FuncAbs:
		switch argKind(0) {
		case types.KindLong:
			v := arg(0).L
			if v < 0 {
				v = -v
			}
			return Scalar{L: v}, true, nil
		case types.KindDouble:
			return Scalar{D: math.Abs(arg(0).D)}, true, nil
		}
	case FuncSin:
		return Scalar{D: math.Sin(arg(0).D)}, true, nil
	case FuncCos:
		return Scalar{D: math.Cos(arg(0).D)}, true, nil
	case FuncTan:
		return Scalar{D: math.Tan(arg(0).D)}, true, nil
	case FuncArcsin:
		if arg(0).D < -1 || arg(0).D > 1 {
			return Scalar{}, false, rerr.New(rerr.DomainError, "ARCSIN argument outside [-1,1]", 0, 0, 0)
		}
		return Scalar{D: math.Asin(arg(0).D)}, true, nil
	case FuncArccos:
		if arg(0).D < -1 || arg(0).D > 1 {
			return Scalar{}, false, rerr.New(rerr.DomainError, "ARCCOS argument outside [-1,1]", 0, 0, 0)
		}
		return Scalar{D: math.Acos(arg(0).D)}, true, nil
	case FuncArctan:
		return Scalar{D: math.Atan(arg(0).D)}, true, nil
	case FuncArctan2:
		return Scalar{D: math.Atan2(arg(0).D, arg(1).D)}, true, nil
	case FuncExp:
		return Scalar{D: math.Exp(arg(0).D)}, true, nil
	case FuncLog:
		if arg(0).D <= 0 {
			return Scalar{}, false, rerr.New(rerr.DomainError, "LOG of non-positive value", 0, 0, 0)
		}
		return Scalar{D: math.Log(arg(0).D)}, true, nil
	case FuncLog10:
		if arg(0).D <= 0 {
			return Scalar{}, false, rerr.New(rerr.DomainError, "LOG10 of non-positive value", 0, 0, 0)
		}
		return Scalar{D: math.Log10(arg(0).D)}, true, nil
	case FuncSqrt:
		if arg(0).D < 0 {
			return Scalar{}, false, rerr.New(rerr.DomainError, "SQRT of negative value", 0, 0, 0)
		}
		return Scalar{D: math.Sqrt(arg(0).D)}, true, nil
	case FuncNear:
		return Scalar{B: region.Near(arg(0).D, arg(1).D, arg(2).D)}, true, nil
	case FuncCircle:
		return Scalar{B: region.InCircle(arg(0).D, arg(1).D, arg(2).D, arg(3).D, arg(4).D)}, true, nil
	case FuncBox:
		return Scalar{B: region.InBox(arg(0).D, arg(1).D, arg(2).D, arg(3).D, arg(4).D, arg(5).D, arg(6).D)}, true, nil
	case FuncEllipse:
		return Scalar{B: region.InEllipse(arg(0).D, arg(1).D, arg(2).D, arg(3).D, arg(4).D, arg(5).D, arg(6).D)}, true, nil
	case FuncIsNull:
		// A constant is never null.
		return Scalar{B: false}, true, nil
	case FuncDefnull:
		return arg(0), true, nil
	case FuncSum:
		return arg(0), true, nil
	}
	return Scalar{}, false, nil
}
