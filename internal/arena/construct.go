package arena

import (
	"fmt"

	rerr "rowexpr/internal/errors"
	"rowexpr/internal/types"
)

// NewConst allocates a constant node. Constants never have children and
// their Op is always ConstOp.
func (a *Arena) NewConst(kind types.Kind, scalar Scalar) int32 {
	return a.add(Node{
		Op:     ConstOp,
		Type:   kind,
		Shape:  types.ScalarShape(),
		Scalar: scalar,
	})
}

// NewColumn allocates a node referencing column colIdx (1-based), typed
// and shaped from the host's column metadata.
func (a *Arena) NewColumn(colIdx int, kind types.Kind, shape types.Shape) int32 {
	return a.add(Node{
		Op:    Op(-colIdx),
		Type:  kind,
		Shape: shape,
	})
}

// TestDims reports whether a binary operator may combine nodes a and b:
// one of them is a scalar, or both share an identical type and shape.
func TestDims(a, b *Node) bool {
	if a.Shape.IsScalar() || b.Shape.IsScalar() {
		return true
	}
	return a.Type == b.Type && a.Shape.Equal(b.Shape)
}

// Promote inserts a cast node on whichever of a/b has the lower rank in
// the Bool < Long < Double lattice, returning the (possibly unchanged)
// index of each operand after promotion and their shared Kind.
func (a *Arena) Promote(ai, bi int32) (int32, int32, types.Kind, error) {
	an, bn := a.At(ai), a.At(bi)
	if !types.Numeric(an.Type) || !types.Numeric(bn.Type) {
		return 0, 0, 0, rerr.New(rerr.TypeMismatch, "operand is not numeric", 0, 0, 0)
	}
	common := types.Promote(an.Type, bn.Type)
	if an.Type != common {
		ai = a.NewUnary(0, castOpFor(common), ai)
	}
	if bn.Type != common {
		bi = a.NewUnary(0, castOpFor(common), bi)
	}
	return ai, bi, common, nil
}

func castOpFor(k types.Kind) Op {
	if k == types.KindDouble {
		return OpCastDouble
	}
	return OpCastLong
}

// NewUnary builds op(child), folding casts/negate/logical-not/bitwise-
// not in place when child is a constant, per the engine's
// constant-folding contract: a cast that is a no-op on its operand kind
// returns the child unchanged, and any other foldable unary op mutates
// the constant child and returns it rather than allocating a new node.
// returnKind, when nonzero, forces the result kind (used for casts);
// zero means "inherit the child's kind".
func (a *Arena) NewUnary(returnKind types.Kind, op Op, child int32) int32 {
	cn := a.At(child)

	if op == OpCastLong && cn.Type == types.KindLong {
		return child
	}
	if op == OpCastDouble && cn.Type == types.KindDouble {
		return child
	}

	if cn.IsConst() {
		if folded, ok := foldUnary(op, cn.Type, cn.Scalar); ok {
			cn.Op = ConstOp
			cn.Scalar = folded.Scalar
			cn.Type = folded.Type
			cn.Shape = types.ScalarShape()
			return child
		}
	}

	kind := cn.Type
	if returnKind != 0 || op == OpCastLong || op == OpCastDouble {
		if op == OpCastLong {
			kind = types.KindLong
		} else if op == OpCastDouble {
			kind = types.KindDouble
		} else {
			kind = returnKind
		}
	}
	if op == OpNot {
		kind = types.KindBool
	}
	return a.add(Node{
		Op:        op,
		Children:  [7]int32{child},
		NChildren: 1,
		Type:      kind,
		Shape:     cn.Shape,
	})
}

// NewBinOp builds a op b. For non-string/non-bit operands it enforces
// TestDims; the result shape is the non-scalar operand's shape (or
// scalar, if both are scalar). When both operands are constants the
// binary op kernel is applied immediately and collapses into a single
// constant node. A nonzero returnKind overrides the result kind;
// comparison operators (including '~') always yield Bool.
func (a *Arena) NewBinOp(returnKind types.Kind, ai int32, op Op, bi int32) (int32, error) {
	an, bn := a.At(ai), a.At(bi)

	if an.Type != types.KindString && an.Type != types.KindBitStr &&
		bn.Type != types.KindString && bn.Type != types.KindBitStr {
		if !TestDims(an, bn) {
			return 0, rerr.New(rerr.ShapeMismatch, "operand shapes are incompatible", 0, 0, 0)
		}
	}

	resultShape := an.Shape
	if an.Shape.IsScalar() {
		resultShape = bn.Shape
	}

	kind := an.Type
	if returnKind != 0 {
		kind = returnKind
	}
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpApprox:
		kind = types.KindBool
	}

	if an.IsConst() && bn.IsConst() {
		folded, ok, err := foldBinary(op, an.Type, an.Scalar, bn.Scalar)
		if err != nil {
			return 0, err
		}
		if ok {
			return a.add(Node{
				Op:     ConstOp,
				Type:   folded.Type,
				Shape:  types.ScalarShape(),
				Scalar: folded.Scalar,
			}), nil
		}
	}

	return a.add(Node{
		Op:        op,
		Children:  [7]int32{ai, bi},
		NChildren: 2,
		Type:      kind,
		Shape:     resultShape,
	}), nil
}

// NewFunc builds a function-call node of fixed arity. inheritType selects
// the first child's Kind as the result type (ABS, DEFNULL, SUM) rather
// than returnKind; shapeArg selects which child's Shape the result
// carries (-1 forces a scalar result, as for NEAR/RANDOM/reductions).
func (a *Arena) NewFunc(returnKind types.Kind, inheritType bool, shapeArg int, funcOp Op, children ...int32) (int32, error) {
	if len(children) > 7 {
		return 0, rerr.New(rerr.WrongArity, "too many arguments", 0, 0, 0)
	}
	if len(children) == 0 && funcOp != FuncRandom && funcOp != FuncRow {
		return 0, rerr.New(rerr.WrongArity, "function requires at least one argument", 0, 0, 0)
	}
	var n Node
	n.Op = funcOp
	n.NChildren = len(children)
	for i, c := range children {
		n.Children[i] = c
	}

	n.Type = returnKind
	if inheritType {
		n.Type = a.At(children[0]).Type
	}
	n.Shape = types.ScalarShape()
	if shapeArg >= 0 && shapeArg < len(children) {
		n.Shape = a.At(children[shapeArg]).Shape
	}

	// NELEM folds to its compile-time constant length regardless of
	// whether its argument is itself constant.
	if funcOp == FuncNelem {
		arg := a.At(children[0])
		return a.NewConst(types.KindLong, Scalar{L: int64(arg.Shape.Nelem)}), nil
	}

	allConst := true
	for _, c := range children {
		if !a.At(c).IsConst() {
			allConst = false
			break
		}
	}
	if allConst && funcOp != FuncRandom && funcOp != FuncRow {
		if folded, ok, err := foldFunc(funcOp, n.Type, children, a); err != nil {
			return 0, err
		} else if ok {
			return a.NewConst(n.Type, folded), nil
		}
	}

	return a.add(n), nil
}

// NewDeref builds a dereference node over a vector-valued variable.
// Every index is a LONG scalar, constant or computed per row. Either
// the number of indices equals the variable's naxis (full
// scalarization), or exactly one index is supplied and the result
// drops the first axis.
func (a *Arena) NewDeref(variable int32, dims []int32) (int32, error) {
	vn := a.At(variable)
	if vn.Shape.Nelem <= 1 {
		return 0, rerr.New(rerr.TypeMismatch, "cannot dereference a scalar expression", 0, 0, 0)
	}
	for _, d := range dims {
		dn := a.At(d)
		if dn.Type != types.KindLong || dn.Shape.Nelem != 1 {
			return 0, rerr.New(rerr.TypeMismatch, "dereference index must be a scalar integer", 0, 0, 0)
		}
	}

	var n Node
	n.Op = OpDeref
	n.Type = vn.Type
	n.Children[0] = variable
	n.NChildren = 1 + len(dims)
	for i, d := range dims {
		n.Children[1+i] = d
	}

	switch {
	case len(dims) == vn.Shape.Naxis:
		n.Shape = types.ScalarShape()
	case len(dims) == 1:
		naxes := make([]int, 0, vn.Shape.Naxis-1)
		for i := 1; i < vn.Shape.Naxis; i++ {
			naxes = append(naxes, vn.Shape.Naxes[i])
		}
		n.Shape = types.ShapeFromAxes(naxes)
	default:
		return 0, rerr.New(rerr.ParseSyntax, fmt.Sprintf("dereference supplies %d indices for a %d-axis value", len(dims), vn.Shape.Naxis), 0, 0, 0)
	}

	return a.add(n), nil
}
