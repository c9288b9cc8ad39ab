package eval

import (
	"math"

	"rowexpr/internal/arena"
	rerr "rowexpr/internal/errors"
	"rowexpr/internal/types"
)

// approxEqual mirrors arena's compile-time '~' tolerance so a folded
// constant and a runtime-evaluated comparison agree.
func approxEqual(a, b float64) bool {
	const tol = 1e-6
	diff := math.Abs(a - b)
	if diff == 0 {
		return true
	}
	return diff <= tol*math.Max(math.Abs(a), math.Abs(b))
}

// binaryNumeric evaluates a binary operator over Long or Double
// operands (the caller has already promoted both sides to a common
// kind), looping every (row, elem) cell of the result shape.
func binaryNumeric(op arena.Op, kind types.Kind, nRows, nelem int, left, right *arena.Node) (arena.Vector, error) {
	n := nRows * nelem
	out := arena.NewComputedVector()
	isCompare := isComparisonOp(op)
	if isCompare {
		out.B = make([]bool, n)
	} else if kind == types.KindLong {
		out.L = make([]int64, n)
	} else {
		out.D = make([]float64, n)
	}
	out.Undef = make([]byte, n)

	for row := 0; row < nRows; row++ {
		for e := 0; e < nelem; e++ {
			idx := row*nelem + e
			if kind == types.KindLong {
				lv, lu := longAt(left, row, e)
				rv, ru := longAt(right, row, e)
				if lu || ru {
					out.Undef[idx] = 1
					continue
				}
				if isCompare {
					b, err := compareLong(op, lv, rv)
					if err != nil {
						return arena.Vector{}, err
					}
					out.B[idx] = b
					continue
				}
				v, err := arithLong(op, lv, rv)
				if err != nil {
					return arena.Vector{}, err
				}
				out.L[idx] = v
			} else {
				lv, lu := doubleAt(left, row, e)
				rv, ru := doubleAt(right, row, e)
				if lu || ru {
					out.Undef[idx] = 1
					continue
				}
				if isCompare {
					b, err := compareDouble(op, lv, rv)
					if err != nil {
						return arena.Vector{}, err
					}
					out.B[idx] = b
					continue
				}
				v, err := arithDouble(op, lv, rv)
				if err != nil {
					return arena.Vector{}, err
				}
				out.D[idx] = v
			}
		}
	}
	return out, nil
}

func isComparisonOp(op arena.Op) bool {
	switch op {
	case arena.OpEq, arena.OpNe, arena.OpLt, arena.OpLe, arena.OpGt, arena.OpGe, arena.OpApprox:
		return true
	}
	return false
}

func arithLong(op arena.Op, a, b int64) (int64, error) {
	switch op {
	case arena.OpAdd:
		return a + b, nil
	case arena.OpSub:
		return a - b, nil
	case arena.OpMul:
		return a * b, nil
	case arena.OpDiv:
		if b == 0 {
			return 0, rerr.New(rerr.DomainError, "division by zero", 0, 0, 0)
		}
		return a / b, nil
	case arena.OpMod:
		if b == 0 {
			return 0, rerr.New(rerr.DomainError, "division by zero", 0, 0, 0)
		}
		return a % b, nil
	}
	return 0, rerr.Newf(rerr.TypeMismatch, 0, 0, 0, "unsupported Long operator %d", op)
}

func arithDouble(op arena.Op, a, b float64) (float64, error) {
	switch op {
	case arena.OpAdd:
		return a + b, nil
	case arena.OpSub:
		return a - b, nil
	case arena.OpMul:
		return a * b, nil
	case arena.OpDiv:
		if b == 0 {
			return 0, rerr.New(rerr.DomainError, "division by zero", 0, 0, 0)
		}
		return a / b, nil
	case arena.OpMod:
		if b == 0 {
			return 0, rerr.New(rerr.DomainError, "division by zero", 0, 0, 0)
		}
		return a - b*math.Trunc(a/b), nil
	case arena.OpPow:
		return math.Pow(a, b), nil
	}
	return 0, rerr.Newf(rerr.TypeMismatch, 0, 0, 0, "unsupported Double operator %d", op)
}

func compareLong(op arena.Op, a, b int64) (bool, error) {
	switch op {
	case arena.OpEq, arena.OpApprox:
		return a == b, nil
	case arena.OpNe:
		return a != b, nil
	case arena.OpLt:
		return a < b, nil
	case arena.OpLe:
		return a <= b, nil
	case arena.OpGt:
		return a > b, nil
	case arena.OpGe:
		return a >= b, nil
	}
	return false, rerr.Newf(rerr.TypeMismatch, 0, 0, 0, "unsupported Long comparison %d", op)
}

func compareDouble(op arena.Op, a, b float64) (bool, error) {
	switch op {
	case arena.OpEq:
		return a == b, nil
	case arena.OpNe:
		return a != b, nil
	case arena.OpLt:
		return a < b, nil
	case arena.OpLe:
		return a <= b, nil
	case arena.OpGt:
		return a > b, nil
	case arena.OpGe:
		return a >= b, nil
	case arena.OpApprox:
		return approxEqual(a, b), nil
	}
	return false, rerr.Newf(rerr.TypeMismatch, 0, 0, 0, "unsupported Double comparison %d", op)
}

// binaryBool evaluates AND/OR/==/!= over Bool operands. OR gets the
// true-dominance exception: a defined true on either side outweighs an
// undef on the other, since the overall predicate is already decided.
func binaryBool(op arena.Op, nRows, nelem int, left, right *arena.Node) (arena.Vector, error) {
	n := nRows * nelem
	out := arena.NewComputedVector()
	out.B = make([]bool, n)
	out.Undef = make([]byte, n)
	for row := 0; row < nRows; row++ {
		for e := 0; e < nelem; e++ {
			idx := row*nelem + e
			lv, lu := boolAt(left, row, e)
			rv, ru := boolAt(right, row, e)
			switch op {
			case arena.OpOr:
				if (!lu && lv) || (!ru && rv) {
					out.B[idx] = true
					continue
				}
				if lu || ru {
					out.Undef[idx] = 1
					continue
				}
				out.B[idx] = lv || rv
			case arena.OpAnd:
				if lu || ru {
					out.Undef[idx] = 1
					continue
				}
				out.B[idx] = lv && rv
			case arena.OpEq:
				if lu || ru {
					out.Undef[idx] = 1
					continue
				}
				out.B[idx] = lv == rv
			case arena.OpNe:
				if lu || ru {
					out.Undef[idx] = 1
					continue
				}
				out.B[idx] = lv != rv
			default:
				return arena.Vector{}, rerr.Newf(rerr.TypeMismatch, 0, 0, 0, "unsupported Bool operator %d", op)
			}
		}
	}
	return out, nil
}

// binaryString evaluates concatenation and lexical comparisons over
// String operands.
func binaryString(op arena.Op, nRows, nelem int, left, right *arena.Node) (arena.Vector, error) {
	n := nRows * nelem
	out := arena.NewComputedVector()
	isCompare := isComparisonOp(op) && op != arena.OpApprox
	if op == arena.OpConcat || op == arena.OpAdd {
		out.S = make([]string, n)
	} else if isCompare {
		out.B = make([]bool, n)
	} else {
		return arena.Vector{}, rerr.Newf(rerr.TypeMismatch, 0, 0, 0, "unsupported String operator %d", op)
	}
	out.Undef = make([]byte, n)
	for row := 0; row < nRows; row++ {
		for e := 0; e < nelem; e++ {
			idx := row*nelem + e
			lv, lu := stringAt(left, row, e)
			rv, ru := stringAt(right, row, e)
			if lu || ru {
				out.Undef[idx] = 1
				continue
			}
			switch op {
			case arena.OpConcat, arena.OpAdd:
				out.S[idx] = lv + rv
			case arena.OpEq:
				out.B[idx] = lv == rv
			case arena.OpNe:
				out.B[idx] = lv != rv
			case arena.OpLt:
				out.B[idx] = lv < rv
			case arena.OpLe:
				out.B[idx] = lv <= rv
			case arena.OpGt:
				out.B[idx] = lv > rv
			case arena.OpGe:
				out.B[idx] = lv >= rv
			}
		}
	}
	return out, nil
}

// binaryBitStr evaluates the bit-string operators by delegating each
// cell to the same Kleene-logic helpers the constant folder uses
// (internal/arena/bitstring.go), so a folded literal and a
// runtime-evaluated column agree bit for bit.
func binaryBitStr(op arena.Op, nRows, nelem int, left, right *arena.Node) (arena.Vector, error) {
	n := nRows * nelem
	out := arena.NewComputedVector()
	isCompare := isComparisonOp(op) && op != arena.OpApprox
	if isCompare {
		out.B = make([]bool, n)
	} else {
		out.S = make([]string, n)
	}
	for row := 0; row < nRows; row++ {
		for e := 0; e < nelem; e++ {
			idx := row*nelem + e
			lv, _ := stringAt(left, row, e)
			rv, _ := stringAt(right, row, e)
			switch op {
			case arena.OpBitAnd:
				out.S[idx] = arena.BitAnd(lv, rv)
			case arena.OpBitOr:
				out.S[idx] = arena.BitOr(lv, rv)
			case arena.OpConcat, arena.OpAdd:
				out.S[idx] = arena.BitConcat(lv, rv)
			case arena.OpEq:
				out.B[idx] = arena.BitEqual(lv, rv)
			case arena.OpNe:
				out.B[idx] = !arena.BitEqual(lv, rv)
			case arena.OpLt:
				out.B[idx] = arena.BitToInt(lv) < arena.BitToInt(rv)
			case arena.OpLe:
				out.B[idx] = arena.BitToInt(lv) <= arena.BitToInt(rv)
			case arena.OpGt:
				out.B[idx] = arena.BitToInt(lv) > arena.BitToInt(rv)
			case arena.OpGe:
				out.B[idx] = arena.BitToInt(lv) >= arena.BitToInt(rv)
			default:
				return arena.Vector{}, rerr.Newf(rerr.TypeMismatch, 0, 0, 0, "unsupported BitStr operator %d", op)
			}
		}
	}
	return out, nil
}

// unaryNumeric evaluates OpNeg and the two casts over a Long/Double
// operand.
func unaryNumeric(op arena.Op, resultKind types.Kind, childKind types.Kind, nRows, nelem int, child *arena.Node) (arena.Vector, error) {
	n := nRows * nelem
	out := arena.NewComputedVector()
	out.Undef = make([]byte, n)
	if resultKind == types.KindLong {
		out.L = make([]int64, n)
	} else {
		out.D = make([]float64, n)
	}
	for row := 0; row < nRows; row++ {
		for e := 0; e < nelem; e++ {
			idx := row*nelem + e
			switch childKind {
			case types.KindLong:
				v, u := longAt(child, row, e)
				if u {
					out.Undef[idx] = 1
					continue
				}
				if resultKind == types.KindLong {
					out.L[idx] = -v
				} else {
					out.D[idx] = float64(v)
				}
			case types.KindDouble:
				v, u := doubleAt(child, row, e)
				if u {
					out.Undef[idx] = 1
					continue
				}
				if resultKind == types.KindDouble {
					if op == arena.OpNeg {
						out.D[idx] = -v
					} else {
						out.D[idx] = v
					}
				} else {
					out.L[idx] = int64(v)
				}
			case types.KindBool:
				v, u := boolAt(child, row, e)
				if u {
					out.Undef[idx] = 1
					continue
				}
				b := 0.0
				if v {
					b = 1.0
				}
				if resultKind == types.KindLong {
					out.L[idx] = int64(b)
				} else {
					out.D[idx] = b
				}
			}
		}
	}
	return out, nil
}

func unaryBool(nRows, nelem int, child *arena.Node) (arena.Vector, error) {
	n := nRows * nelem
	out := arena.NewComputedVector()
	out.B = make([]bool, n)
	out.Undef = make([]byte, n)
	for row := 0; row < nRows; row++ {
		for e := 0; e < nelem; e++ {
			idx := row*nelem + e
			v, u := boolAt(child, row, e)
			if u {
				out.Undef[idx] = 1
				continue
			}
			out.B[idx] = !v
		}
	}
	return out, nil
}

func unaryBitNot(nRows, nelem int, child *arena.Node) (arena.Vector, error) {
	n := nRows * nelem
	out := arena.NewComputedVector()
	out.S = make([]string, n)
	for row := 0; row < nRows; row++ {
		for e := 0; e < nelem; e++ {
			idx := row*nelem + e
			v, _ := stringAt(child, row, e)
			out.S[idx] = arena.BitNot(v)
		}
	}
	return out, nil
}
