package eval

import (
	"rowexpr/internal/arena"
	rerr "rowexpr/internal/errors"
	"rowexpr/internal/types"
)

// eval computes idx's Vec in post-order, recursing into children first,
// then frees each child's buffer once this node has consumed it — the
// single-ownership discipline of interior nodes. Column leaves and
// constants are never freed here since their Vector/Scalar is owned by
// Bind or by the compiled tree itself.
func (w *walker) eval(idx int32) error {
	n := w.a.At(idx)
	if n.IsConst() || n.IsColumn() {
		return nil
	}
	for i := 0; i < n.NChildren; i++ {
		if err := w.eval(n.Children[i]); err != nil {
			return err
		}
	}
	if err := w.compute(idx); err != nil {
		w.message("%v", err)
		return err
	}
	for i := 0; i < n.NChildren; i++ {
		w.a.At(n.Children[i]).Vec.Free()
	}
	return nil
}

func (w *walker) compute(idx int32) error {
	n := w.a.At(idx)
	if n.Op == arena.OpDeref {
		return w.computeDeref(idx)
	}
	if n.IsFunction() {
		return w.computeFunction(idx)
	}
	nelem := n.Shape.Nelem
	switch n.NChildren {
	case 1:
		child := w.a.At(n.Children[0])
		var v arena.Vector
		var err error
		switch n.Op {
		case arena.OpNeg, arena.OpCastLong, arena.OpCastDouble:
			v, err = unaryNumeric(n.Op, n.Type, child.Type, w.nRows, nelem, child)
		case arena.OpNot:
			v, err = unaryBool(w.nRows, nelem, child)
		case arena.OpBitNot:
			v, err = unaryBitNot(w.nRows, nelem, child)
		default:
			return rerr.Newf(rerr.TypeMismatch, 0, 0, 0, "unsupported unary operator %d", n.Op)
		}
		if err != nil {
			return err
		}
		n.Vec = v
		return nil
	case 2:
		left := w.a.At(n.Children[0])
		right := w.a.At(n.Children[1])
		operandKind := left.Type
		var v arena.Vector
		var err error
		switch operandKind {
		case types.KindLong, types.KindDouble:
			v, err = binaryNumeric(n.Op, operandKind, w.nRows, nelem, left, right)
		case types.KindBool:
			v, err = binaryBool(n.Op, w.nRows, nelem, left, right)
		case types.KindString:
			v, err = binaryString(n.Op, w.nRows, nelem, left, right)
		case types.KindBitStr:
			v, err = binaryBitStr(n.Op, w.nRows, nelem, left, right)
		}
		if err != nil {
			return err
		}
		n.Vec = v
		return nil
	default:
		return rerr.Newf(rerr.TypeMismatch, 0, 0, 0, "operator node with unexpected arity %d", n.NChildren)
	}
}
