package arena

import (
	"testing"

	"rowexpr/internal/types"
)

func TestNewConstIsScalarConst(t *testing.T) {
	a := New()
	idx := a.NewConst(types.KindLong, Scalar{L: 42})
	n := a.At(idx)
	if !n.IsConst() {
		t.Fatal("constant node should report IsConst() true")
	}
	if n.Op != ConstOp {
		t.Fatalf("Op = %d, want ConstOp", n.Op)
	}
	if n.Scalar.L != 42 {
		t.Fatalf("Scalar.L = %d, want 42", n.Scalar.L)
	}
	if !n.Shape.IsScalar() {
		t.Fatal("constant shape must be scalar")
	}
}

func TestNewColumnIndexRoundTrip(t *testing.T) {
	a := New()
	idx := a.NewColumn(3, types.KindDouble, types.ScalarShape())
	n := a.At(idx)
	if !n.IsColumn() {
		t.Fatal("column node should report IsColumn() true")
	}
	if n.ColumnIndex() != 3 {
		t.Fatalf("ColumnIndex() = %d, want 3", n.ColumnIndex())
	}
}

func TestTestDims(t *testing.T) {
	a := New()
	scalar := a.At(a.NewConst(types.KindLong, Scalar{L: 1}))
	vecA := a.At(a.NewColumn(1, types.KindLong, types.ShapeFromAxes([]int{4})))
	vecB := a.At(a.NewColumn(2, types.KindLong, types.ShapeFromAxes([]int{4})))
	vecC := a.At(a.NewColumn(3, types.KindLong, types.ShapeFromAxes([]int{5})))

	if !TestDims(scalar, vecA) {
		t.Error("scalar vs vector should always pass TestDims")
	}
	if !TestDims(vecA, vecB) {
		t.Error("two vectors of identical shape should pass TestDims")
	}
	if TestDims(vecA, vecC) {
		t.Error("two vectors of differing shape should fail TestDims")
	}
}

func TestNewUnaryFoldsCastOnConstant(t *testing.T) {
	a := New()
	c := a.NewConst(types.KindLong, Scalar{L: 5})
	out := a.NewUnary(types.KindDouble, OpCastDouble, c)
	n := a.At(out)
	if !n.IsConst() {
		t.Fatal("casting a constant should fold in place and stay a constant")
	}
	if n.Type != types.KindDouble || n.Scalar.D != 5.0 {
		t.Fatalf("folded cast = %+v, want Double 5.0", n)
	}
	if out != c {
		t.Fatal("folding a unary cast on a constant should mutate and return the same node index")
	}
}

func TestNewUnaryCastNoOpReturnsChildUnchanged(t *testing.T) {
	a := New()
	c := a.NewConst(types.KindDouble, Scalar{D: 3.25})
	out := a.NewUnary(types.KindDouble, OpCastDouble, c)
	if out != c {
		t.Fatal("a DOUBLE-on-DOUBLE cast must be a no-op returning the same index")
	}
}

func TestNewUnaryNegateFoldsOnConstant(t *testing.T) {
	a := New()
	c := a.NewConst(types.KindLong, Scalar{L: 7})
	out := a.NewUnary(0, OpNeg, c)
	n := a.At(out)
	if n.Scalar.L != -7 {
		t.Fatalf("folded negate = %d, want -7", n.Scalar.L)
	}
}

func TestNewBinOpFoldsConstants(t *testing.T) {
	a := New()
	x := a.NewConst(types.KindLong, Scalar{L: 3})
	y := a.NewConst(types.KindLong, Scalar{L: 4})
	mul, err := a.NewBinOp(types.KindLong, y, OpMul, x)
	if err != nil {
		t.Fatal(err)
	}
	seven := a.NewConst(types.KindLong, Scalar{L: 3})
	sum, err := a.NewBinOp(types.KindLong, seven, OpAdd, mul)
	if err != nil {
		t.Fatal(err)
	}
	n := a.At(sum)
	if !n.IsConst() {
		t.Fatal("a subtree with only constant leaves must fold to a single constant node")
	}
	if n.Scalar.L != 15 {
		t.Fatalf("folded result = %d, want 15 (3 + 4*3)", n.Scalar.L)
	}
}

func TestNewBinOpRejectsMismatchedShapes(t *testing.T) {
	a := New()
	v4 := a.NewColumn(1, types.KindLong, types.ShapeFromAxes([]int{4}))
	v5 := a.NewColumn(2, types.KindLong, types.ShapeFromAxes([]int{5}))
	if _, err := a.NewBinOp(0, v4, OpAdd, v5); err == nil {
		t.Fatal("expected a shape-mismatch error combining a 4-vector with a 5-vector")
	}
}

func TestPromoteInsertsCast(t *testing.T) {
	a := New()
	l := a.NewConst(types.KindLong, Scalar{L: 2})
	d := a.NewConst(types.KindDouble, Scalar{D: 2.5})
	li, di, common, err := a.Promote(l, d)
	if err != nil {
		t.Fatal(err)
	}
	if common != types.KindDouble {
		t.Fatalf("common kind = %s, want Double", common)
	}
	// Both constants fold immediately, so li should now be a Double
	// constant equal to 2.0.
	if a.At(li).Type != types.KindDouble || a.At(li).Scalar.D != 2.0 {
		t.Fatalf("promoted long constant = %+v, want Double 2.0", a.At(li))
	}
	if di != d {
		t.Fatal("the already-Double operand should be returned unchanged")
	}
}

func TestNewDerefFullScalarization(t *testing.T) {
	a := New()
	v := a.NewColumn(1, types.KindLong, types.ShapeFromAxes([]int{4}))
	idx := a.NewConst(types.KindLong, Scalar{L: 2})
	out, err := a.NewDeref(v, []int32{idx})
	if err != nil {
		t.Fatal(err)
	}
	n := a.At(out)
	if !n.Shape.IsScalar() {
		t.Fatal("dereferencing a 1-axis value with one index must yield a scalar")
	}
}

func TestNewDerefRejectsScalarVariable(t *testing.T) {
	a := New()
	scalar := a.NewConst(types.KindLong, Scalar{L: 1})
	idx := a.NewConst(types.KindLong, Scalar{L: 1})
	if _, err := a.NewDeref(scalar, []int32{idx}); err == nil {
		t.Fatal("expected an error dereferencing a scalar expression")
	}
}

func TestArenaClone(t *testing.T) {
	a := New()
	v := a.NewColumn(1, types.KindLong, types.ScalarShape())
	clone := a.Clone()
	clone.At(v).Vec = NewComputedVector()
	clone.At(v).Vec.L = []int64{99}

	if len(a.At(v).Vec.L) != 0 {
		t.Fatal("mutating a clone's node Vec must not affect the original arena")
	}
}
