package eval

import (
	"math"

	"rowexpr/internal/arena"
	rerr "rowexpr/internal/errors"
	"rowexpr/internal/region"
	"rowexpr/internal/types"
)

// computeFunction evaluates a built-in function call node. Each branch
// mirrors the corresponding constant-fold case in
// internal/arena/fold.go so a literal-argument call and a
// column-argument call of the same function agree.
func (w *walker) computeFunction(idx int32) error {
	n := w.a.At(idx)
	nelem := n.Shape.Nelem
	child := func(i int) *arena.Node { return w.a.At(n.Children[i]) }

	switch n.Op {
	case arena.FuncRandom:
		return w.computeRandom(n)
	case arena.FuncRow:
		return w.computeRow(n)
	case arena.FuncSum:
		return w.computeSum(n, child(0))
	case arena.FuncIsNull:
		return w.computeIsNull(n, child(0))
	case arena.FuncDefnull:
		return w.computeDefnull(n, child(0), child(1))
	case arena.FuncAbs:
		return w.computeAbs(n, child(0))
	case arena.FuncSin, arena.FuncCos, arena.FuncTan, arena.FuncArcsin, arena.FuncArccos,
		arena.FuncArctan, arena.FuncExp, arena.FuncLog, arena.FuncLog10, arena.FuncSqrt:
		return w.computeMath1(n, child(0), nelem)
	case arena.FuncArctan2:
		return w.computeArctan2(n, child(0), child(1), nelem)
	case arena.FuncNear:
		return w.computeNear(n, child(0), child(1), child(2))
	case arena.FuncCircle:
		return w.computeCircle(n, child(0), child(1), child(2), child(3), child(4))
	case arena.FuncBox:
		return w.computeBox(n, child(0), child(1), child(2), child(3), child(4), child(5), child(6))
	case arena.FuncEllipse:
		return w.computeEllipse(n, child(0), child(1), child(2), child(3), child(4), child(5), child(6))
	}
	return rerr.Newf(rerr.UnknownFunction, 0, 0, 0, "no evaluator for function opcode %d", n.Op)
}

func (w *walker) computeRandom(n *arena.Node) error {
	if w.rng == nil {
		return rerr.New(rerr.Allocation, "RANDOM() requires a RandomSource", 0, 0, 0)
	}
	out := arena.NewComputedVector()
	out.D = make([]float64, w.nRows)
	for row := 0; row < w.nRows; row++ {
		out.D[row] = w.rng.Float64()
	}
	n.Vec = out
	return nil
}

func (w *walker) computeRow(n *arena.Node) error {
	out := arena.NewComputedVector()
	out.L = make([]int64, w.nRows)
	for row := 0; row < w.nRows; row++ {
		out.L[row] = w.firstRow + w.rowOffset + int64(row)
	}
	n.Vec = out
	return nil
}

// computeSum reduces a per-row vector to a per-row scalar, skipping
// undef elements; a row whose every element is undef sums to undef.
func (w *walker) computeSum(n *arena.Node, arg *arena.Node) error {
	out := arena.NewComputedVector()
	out.Undef = make([]byte, w.nRows)
	nelem := arg.Shape.Nelem
	switch arg.Type {
	case types.KindLong:
		out.L = make([]int64, w.nRows)
		for row := 0; row < w.nRows; row++ {
			var sum int64
			defined := false
			for e := 0; e < nelem; e++ {
				v, u := longAt(arg, row, e)
				if u {
					continue
				}
				sum += v
				defined = true
			}
			if !defined {
				out.Undef[row] = 1
			}
			out.L[row] = sum
		}
	case types.KindDouble, types.KindBool:
		out.D = make([]float64, w.nRows)
		for row := 0; row < w.nRows; row++ {
			var sum float64
			defined := false
			for e := 0; e < nelem; e++ {
				var v float64
				var u bool
				if arg.Type == types.KindBool {
					var b bool
					b, u = boolAt(arg, row, e)
					if b {
						v = 1
					}
				} else {
					v, u = doubleAt(arg, row, e)
				}
				if u {
					continue
				}
				sum += v
				defined = true
			}
			if !defined {
				out.Undef[row] = 1
			}
			out.D[row] = sum
		}
	default:
		return rerr.New(rerr.TypeMismatch, "SUM does not accept string or bit-string arguments", 0, 0, 0)
	}
	n.Vec = out
	return nil
}

// computeIsNull tests definedness. A BitStr cell that is entirely 'x'
// reads as null; a String cell reads as null when it equals the
// column's row-0 value, the per-column null-sentinel convention strings
// use in place of an undef mask — row 0 is compared to itself and so is
// always null, matching a column whose first row holds the sentinel.
func (w *walker) computeIsNull(n *arena.Node, arg *arena.Node) error {
	nelem := arg.Shape.Nelem
	out := arena.NewComputedVector()
	out.B = make([]bool, w.nRows*nelem)

	var stringSentinel string
	if arg.Type == types.KindString && !arg.IsConst() && len(arg.Vec.S) > 0 {
		stringSentinel = arg.Vec.S[0]
	}

	for row := 0; row < w.nRows; row++ {
		for e := 0; e < nelem; e++ {
			idx := row*nelem + e
			var undef bool
			switch arg.Type {
			case types.KindLong:
				_, undef = longAt(arg, row, e)
			case types.KindDouble:
				_, undef = doubleAt(arg, row, e)
			case types.KindBool:
				_, undef = boolAt(arg, row, e)
			case types.KindString:
				if !arg.IsConst() {
					v, _ := stringAt(arg, row, e)
					undef = v == stringSentinel
				}
			case types.KindBitStr:
				s, _ := stringAt(arg, row, e)
				undef = allUnknownBits(s)
			}
			out.B[idx] = undef
		}
	}
	n.Vec = out
	return nil
}

func allUnknownBits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] != 'x' && s[i] != 'X' {
			return false
		}
	}
	return true
}

// computeDefnull picks a's value where defined, else b's.
func (w *walker) computeDefnull(n *arena.Node, a, b *arena.Node) error {
	nelem := n.Shape.Nelem
	out := arena.NewComputedVector()
	out.Undef = make([]byte, w.nRows*nelem)
	switch n.Type {
	case types.KindLong:
		out.L = make([]int64, w.nRows*nelem)
		for row := 0; row < w.nRows; row++ {
			for e := 0; e < nelem; e++ {
				idx := row*nelem + e
				av, au := longAt(a, row, e)
				bv, bu := longAt(b, row, e)
				switch {
				case !au:
					out.L[idx] = av
				case !bu:
					out.L[idx] = bv
				default:
					out.Undef[idx] = 1
				}
			}
		}
	case types.KindDouble:
		out.D = make([]float64, w.nRows*nelem)
		for row := 0; row < w.nRows; row++ {
			for e := 0; e < nelem; e++ {
				idx := row*nelem + e
				av, au := doubleAt(a, row, e)
				bv, bu := doubleAt(b, row, e)
				switch {
				case !au:
					out.D[idx] = av
				case !bu:
					out.D[idx] = bv
				default:
					out.Undef[idx] = 1
				}
			}
		}
	case types.KindBool:
		out.B = make([]bool, w.nRows*nelem)
		for row := 0; row < w.nRows; row++ {
			for e := 0; e < nelem; e++ {
				idx := row*nelem + e
				av, au := boolAt(a, row, e)
				bv, bu := boolAt(b, row, e)
				switch {
				case !au:
					out.B[idx] = av
				case !bu:
					out.B[idx] = bv
				default:
					out.Undef[idx] = 1
				}
			}
		}
	default:
		out.S = make([]string, w.nRows*nelem)
		for row := 0; row < w.nRows; row++ {
			for e := 0; e < nelem; e++ {
				idx := row*nelem + e
				av, au := stringAt(a, row, e)
				bv, bu := stringAt(b, row, e)
				switch {
				case !au:
					out.S[idx] = av
				case !bu:
					out.S[idx] = bv
				default:
					out.Undef[idx] = 1
				}
			}
		}
	}
	n.Vec = out
	return nil
}

func (w *walker) computeAbs(n *arena.Node, arg *arena.Node) error {
	nelem := n.Shape.Nelem
	out := arena.NewComputedVector()
	out.Undef = make([]byte, w.nRows*nelem)
	switch arg.Type {
	case types.KindLong:
		out.L = make([]int64, w.nRows*nelem)
		for row := 0; row < w.nRows; row++ {
			for e := 0; e < nelem; e++ {
				idx := row*nelem + e
				v, u := longAt(arg, row, e)
				if u {
					out.Undef[idx] = 1
					continue
				}
				if v < 0 {
					v = -v
				}
				out.L[idx] = v
			}
		}
	case types.KindDouble:
		out.D = make([]float64, w.nRows*nelem)
		for row := 0; row < w.nRows; row++ {
			for e := 0; e < nelem; e++ {
				idx := row*nelem + e
				v, u := doubleAt(arg, row, e)
				if u {
					out.Undef[idx] = 1
					continue
				}
				out.D[idx] = math.Abs(v)
			}
		}
	default:
		return rerr.New(rerr.TypeMismatch, "ABS requires a numeric argument", 0, 0, 0)
	}
	n.Vec = out
	return nil
}

// computeMath1 evaluates the single-argument Double math functions
// (SIN, COS, TAN, ARCSIN, ARCCOS, ARCTAN, EXP, LOG, LOG10, SQRT). The
// parser has already coerced the argument to Double.
func (w *walker) computeMath1(n *arena.Node, arg *arena.Node, nelem int) error {
	out := arena.NewComputedVector()
	out.D = make([]float64, w.nRows*nelem)
	out.Undef = make([]byte, w.nRows*nelem)
	fn, domain := math1Kernel(n.Op)
	for row := 0; row < w.nRows; row++ {
		for e := 0; e < nelem; e++ {
			idx := row*nelem + e
			v, u := doubleAt(arg, row, e)
			if u {
				out.Undef[idx] = 1
				continue
			}
			if domain != nil && !domain(v) {
				return rerr.Newf(rerr.DomainError, 0, 0, 0, "argument %g outside the domain of this function", v)
			}
			out.D[idx] = fn(v)
		}
	}
	n.Vec = out
	return nil
}

func math1Kernel(op arena.Op) (func(float64) float64, func(float64) bool) {
	switch op {
	case arena.FuncSin:
		return math.Sin, nil
	case arena.FuncCos:
		return math.Cos, nil
	case arena.FuncTan:
		return math.Tan, nil
	case arena.FuncArcsin:
		return math.Asin, func(v float64) bool { return v >= -1 && v <= 1 }
	case arena.FuncArccos:
		return math.Acos, func(v float64) bool { return v >= -1 && v <= 1 }
	case arena.FuncArctan:
		return math.Atan, nil
	case arena.FuncExp:
		return math.Exp, nil
	case arena.FuncLog:
		return math.Log, func(v float64) bool { return v > 0 }
	case arena.FuncLog10:
		return math.Log10, func(v float64) bool { return v > 0 }
	case arena.FuncSqrt:
		return math.Sqrt, func(v float64) bool { return v >= 0 }
	}
	return func(float64) float64 { return math.NaN() }, nil
}

func (w *walker) computeArctan2(n *arena.Node, y, x *arena.Node, nelem int) error {
	out := arena.NewComputedVector()
	out.D = make([]float64, w.nRows*nelem)
	out.Undef = make([]byte, w.nRows*nelem)
	for row := 0; row < w.nRows; row++ {
		for e := 0; e < nelem; e++ {
			idx := row*nelem + e
			yv, yu := doubleAt(y, row, e)
			xv, xu := doubleAt(x, row, e)
			if yu || xu {
				out.Undef[idx] = 1
				continue
			}
			out.D[idx] = math.Atan2(yv, xv)
		}
	}
	n.Vec = out
	return nil
}

func (w *walker) computeNear(n *arena.Node, x, y, tol *arena.Node) error {
	out := arena.NewComputedVector()
	out.B = make([]bool, w.nRows)
	for row := 0; row < w.nRows; row++ {
		xv, _ := doubleAt(x, row, 0)
		yv, _ := doubleAt(y, row, 0)
		tv, _ := doubleAt(tol, row, 0)
		out.B[row] = region.Near(xv, yv, tv)
	}
	n.Vec = out
	return nil
}

func (w *walker) computeCircle(n *arena.Node, xc, yc, r, x, y *arena.Node) error {
	nelem := n.Shape.Nelem
	out := arena.NewComputedVector()
	out.B = make([]bool, w.nRows*nelem)
	for row := 0; row < w.nRows; row++ {
		xcv, _ := doubleAt(xc, row, 0)
		ycv, _ := doubleAt(yc, row, 0)
		rv, _ := doubleAt(r, row, 0)
		for e := 0; e < nelem; e++ {
			xv, _ := doubleAt(x, row, e)
			yv, _ := doubleAt(y, row, e)
			out.B[row*nelem+e] = region.InCircle(xcv, ycv, rv, xv, yv)
		}
	}
	n.Vec = out
	return nil
}

func (w *walker) computeBox(n *arena.Node, xc, yc, width, height, rot, x, y *arena.Node) error {
	nelem := n.Shape.Nelem
	out := arena.NewComputedVector()
	out.B = make([]bool, w.nRows*nelem)
	for row := 0; row < w.nRows; row++ {
		xcv, _ := doubleAt(xc, row, 0)
		ycv, _ := doubleAt(yc, row, 0)
		wv, _ := doubleAt(width, row, 0)
		hv, _ := doubleAt(height, row, 0)
		rv, _ := doubleAt(rot, row, 0)
		for e := 0; e < nelem; e++ {
			xv, _ := doubleAt(x, row, e)
			yv, _ := doubleAt(y, row, e)
			out.B[row*nelem+e] = region.InBox(xcv, ycv, wv, hv, rv, xv, yv)
		}
	}
	n.Vec = out
	return nil
}

func (w *walker) computeEllipse(n *arena.Node, xc, yc, a, b, rot, x, y *arena.Node) error {
	nelem := n.Shape.Nelem
	out := arena.NewComputedVector()
	out.B = make([]bool, w.nRows*nelem)
	for row := 0; row < w.nRows; row++ {
		xcv, _ := doubleAt(xc, row, 0)
		ycv, _ := doubleAt(yc, row, 0)
		av, _ := doubleAt(a, row, 0)
		bv, _ := doubleAt(b, row, 0)
		rv, _ := doubleAt(rot, row, 0)
		for e := 0; e < nelem; e++ {
			xv, _ := doubleAt(x, row, e)
			yv, _ := doubleAt(y, row, e)
			out.B[row*nelem+e] = region.InEllipse(xcv, ycv, av, bv, rv, xv, yv)
		}
	}
	n.Vec = out
	return nil
}
