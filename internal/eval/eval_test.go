package eval

import (
	"context"
	"reflect"
	"testing"

	"github.com/kr/pretty"

	"rowexpr/internal/host"
	"rowexpr/internal/types"
)

// wantSlice fails the test with a field-by-field pretty diff when got
// and want disagree; used for the wider result vectors where a plain
// %v dump buries the first differing row.
func wantSlice[T any](t *testing.T, label string, got, want []T) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("%s mismatch:\n got:  %# v\n want: %# v", label, pretty.Formatter(got), pretty.Formatter(want))
	}
}

// run parses source against cols, binds it to a single in-memory batch
// of nRows rows built from columns, and returns the evaluated result.
func run(t *testing.T, source string, cols []host.ColInfo, nRows int, firstRow int64, columns []host.ColumnBuffer) Result {
	t.Helper()
	catalog := host.NewInMemoryCatalog(cols)
	expr, err := Compile(source, catalog)
	if err != nil {
		t.Fatalf("Compile(%q) failed: %v", source, err)
	}
	batch := host.NewInMemoryBatch(firstRow, nRows, columns)
	if err := expr.Bind(batch); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	res, err := expr.Evaluate(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Evaluate(%q) failed: %v", source, err)
	}
	return res
}

// 3 + 4 * 2 over any batch (nRows=1) yields a Long scalar 11.
func TestConstantArithmetic(t *testing.T) {
	res := run(t, "3 + 4 * 2", nil, 1, 1, nil)
	if res.Type != types.KindLong {
		t.Fatalf("type = %s, want Long", res.Type)
	}
	if len(res.L) != 1 || res.L[0] != 11 {
		t.Fatalf("result = %v, want [11]", res.L)
	}
}

// X > 2 && Y < 5 over X=[1,2,3,4], Y=[10,4,3,0]: [F,F,T,F].
func TestBooleanColumnExpression(t *testing.T) {
	cols := []host.ColInfo{
		host.ColInfoFor("X", types.KindLong, 1),
		host.ColInfoFor("Y", types.KindLong, 1),
	}
	columns := []host.ColumnBuffer{
		host.LongColumn([]int64{1, 2, 3, 4}),
		host.LongColumn([]int64{10, 4, 3, 0}),
	}
	res := run(t, "X > 2 && Y < 5", cols, 4, 0, columns)
	wantSlice(t, "X > 2 && Y < 5", res.B, []bool{false, false, true, false})
}

// DEFNULL(X, -1) with X=[5, NULL, 7]: [5, -1, 7], all defined.
func TestDefnullSubstitutesDefault(t *testing.T) {
	cols := []host.ColInfo{host.ColInfoFor("X", types.KindLong, 1)}
	columns := []host.ColumnBuffer{
		host.LongColumn([]int64{5, -999, 7}).WithSentinel(int64(-999)),
	}
	res := run(t, "DEFNULL(X, -1)", cols, 3, 0, columns)
	want := []int64{5, -1, 7}
	for i, w := range want {
		if res.L[i] != w {
			t.Errorf("row %d = %d, want %d", i, res.L[i], w)
		}
		if res.Undef[i] != 0 {
			t.Errorf("row %d should be defined after DEFNULL", i)
		}
	}
}

// ISNULL(S) with S=["", "hi", ""]: [T, F, T]. Strings carry no
// bind-time undef mask; ISNULL tests each row against the column's
// row-0 value.
func TestIsNullStringSentinel(t *testing.T) {
	cols := []host.ColInfo{host.ColInfoFor("S", types.KindString, 1)}
	columns := []host.ColumnBuffer{
		host.StringColumn([]string{"", "hi", ""}),
	}
	res := run(t, "ISNULL(S)", cols, 3, 0, columns)
	want := []bool{true, false, true}
	for i, w := range want {
		if res.B[i] != w {
			t.Errorf("row %d = %v, want %v", i, res.B[i], w)
		}
	}
}

// CIRCLE(0,0,1,X,Y) with X=[0,1,0.5], Y=[0,0,0.5]: all true; with
// X=[2], Y=[0]: false.
func TestCirclePredicate(t *testing.T) {
	cols := []host.ColInfo{
		host.ColInfoFor("X", types.KindDouble, 1),
		host.ColInfoFor("Y", types.KindDouble, 1),
	}
	res := run(t, "CIRCLE(0.0, 0.0, 1.0, X, Y)", cols, 3, 0, []host.ColumnBuffer{
		host.DoubleColumn([]float64{0.0, 1.0, 0.5}),
		host.DoubleColumn([]float64{0.0, 0.0, 0.5}),
	})
	for i, v := range []bool{true, true, true} {
		if res.B[i] != v {
			t.Errorf("row %d = %v, want %v", i, res.B[i], v)
		}
	}

	res2 := run(t, "CIRCLE(0.0, 0.0, 1.0, X, Y)", cols, 1, 0, []host.ColumnBuffer{
		host.DoubleColumn([]float64{2.0}),
		host.DoubleColumn([]float64{0.0}),
	})
	if res2.B[0] != false {
		t.Errorf("outside-circle point should be false, got %v", res2.B[0])
	}
}

// Bit-string constants fold at parse time; exercised end to end here
// through Compile+Bind+Evaluate.
func TestBitStringConstants(t *testing.T) {
	res := run(t, "b'1100' & b'1010'", nil, 1, 1, nil)
	if len(res.S) != 1 || res.S[0] != "1000" {
		t.Fatalf("result = %v, want [\"1000\"]", res.S)
	}
	res2 := run(t, "b'11x0' | b'0100'", nil, 1, 1, nil)
	if len(res2.S) != 1 || res2.S[0] != "11x0" {
		t.Fatalf("result = %v, want [\"11x0\"]", res2.S)
	}
}

// V[2] on a 4-element column with row 0 = [10,20,30,40] is 20; V[5]
// raises IndexOutOfRange.
func TestDereference(t *testing.T) {
	cols := []host.ColInfo{host.ColInfoFor("V", types.KindLong, 4)}
	columns := []host.ColumnBuffer{
		host.LongColumn([]int64{10, 20, 30, 40}),
	}
	res := run(t, "V[2]", cols, 1, 0, columns)
	if len(res.L) != 1 || res.L[0] != 20 {
		t.Fatalf("V[2] = %v, want [20]", res.L)
	}

	catalog := host.NewInMemoryCatalog(cols)
	expr, err := Compile("V[5]", catalog)
	if err != nil {
		t.Fatalf("Compile(V[5]) failed: %v", err)
	}
	batch := host.NewInMemoryBatch(0, 1, columns)
	if err := expr.Bind(batch); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if _, err := expr.Evaluate(context.Background(), nil, nil); err == nil {
		t.Fatal("expected IndexOutOfRange evaluating V[5] against a 4-element column")
	}
}

// SUM(V) with V per-row [1,2,3] and one undef element yields a
// per-row result with Undef=1 only when every element is undef; a row
// with some-but-not-all undef sums its defined elements (see the
// DEFNULL-style definedness note in DESIGN.md).
func TestSumSkipsUndefElements(t *testing.T) {
	cols := []host.ColInfo{host.ColInfoFor("V", types.KindLong, 3)}
	// Row 0: [1,2,3] all defined. Row 1: [1,-999,3] sentinel -999 at
	// middle element. Row 2: all sentinel (fully undef row).
	columns := []host.ColumnBuffer{
		host.LongColumn([]int64{
			1, 2, 3,
			1, -999, 3,
			-999, -999, -999,
		}).WithSentinel(int64(-999)),
	}
	res := run(t, "SUM(V)", cols, 3, 0, columns)
	if res.L[0] != 6 || res.Undef[0] != 0 {
		t.Errorf("row 0 SUM = %d undef=%d, want 6 defined", res.L[0], res.Undef[0])
	}
	if res.L[1] != 4 || res.Undef[1] != 0 {
		t.Errorf("row 1 SUM = %d undef=%d, want 4 defined (skipping the undef element)", res.L[1], res.Undef[1])
	}
	if res.Undef[2] == 0 {
		t.Errorf("row 2 should be entirely undef since every element is undef")
	}
}

// Invariant: ResultShape.Type is independent of the batch (checked here
// via two different batches against the same compiled expression).
func TestInvariantResultTypeStableAcrossBatches(t *testing.T) {
	cols := []host.ColInfo{host.ColInfoFor("X", types.KindLong, 1)}
	catalog := host.NewInMemoryCatalog(cols)
	expr, err := Compile("X + 1", catalog)
	if err != nil {
		t.Fatal(err)
	}
	for _, data := range [][]int64{{1, 2, 3}, {10, 20}} {
		if err := expr.Bind(host.NewInMemoryBatch(0, len(data), []host.ColumnBuffer{host.LongColumn(data)})); err != nil {
			t.Fatal(err)
		}
		res, err := expr.Evaluate(context.Background(), nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		if res.Type != types.KindLong {
			t.Fatalf("type = %s, want Long regardless of batch", res.Type)
		}
	}
}

// Invariant: Evaluate(E).data.len == nRows * resultNelem.
func TestInvariantResultLength(t *testing.T) {
	cols := []host.ColInfo{host.ColInfoFor("V", types.KindLong, 3)}
	res := run(t, "V", cols, 2, 0, []host.ColumnBuffer{
		host.LongColumn([]int64{1, 2, 3, 4, 5, 6}),
	})
	if len(res.L) != res.NRows*res.Shape.Nelem {
		t.Fatalf("len(data)=%d, want nRows(%d)*nelem(%d)=%d", len(res.L), res.NRows, res.Shape.Nelem, res.NRows*res.Shape.Nelem)
	}
}

// Invariant: re-binding and re-evaluating the same batch is idempotent.
func TestInvariantIdempotence(t *testing.T) {
	cols := []host.ColInfo{host.ColInfoFor("X", types.KindDouble, 1)}
	catalog := host.NewInMemoryCatalog(cols)
	expr, err := Compile("SQRT(X) + 1", catalog)
	if err != nil {
		t.Fatal(err)
	}
	batch := host.NewInMemoryBatch(0, 3, []host.ColumnBuffer{
		host.DoubleColumn([]float64{4, 9, 16}),
	})
	if err := expr.Bind(batch); err != nil {
		t.Fatal(err)
	}
	res1, err := expr.Evaluate(context.Background(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := expr.Bind(batch); err != nil {
		t.Fatal(err)
	}
	res2, err := expr.Evaluate(context.Background(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := range res1.D {
		if res1.D[i] != res2.D[i] {
			t.Fatalf("row %d: %v != %v across identical Bind/Evaluate cycles", i, res1.D[i], res2.D[i])
		}
	}
}

// Invariant: scalar op vector broadcasts the scalar across every
// element.
func TestInvariantBroadcasting(t *testing.T) {
	cols := []host.ColInfo{host.ColInfoFor("V", types.KindLong, 1)}
	res := run(t, "10 * V", cols, 3, 0, []host.ColumnBuffer{
		host.LongColumn([]int64{1, 2, 3}),
	})
	want := []int64{10, 20, 30}
	for i, w := range want {
		if res.L[i] != w {
			t.Errorf("row %d = %d, want %d", i, res.L[i], w)
		}
	}
}

// '**' over a Long column runs in the Double kernel: both operands are
// promoted at parse time, and the result is always Double.
func TestPowerOverLongColumn(t *testing.T) {
	cols := []host.ColInfo{host.ColInfoFor("X", types.KindLong, 1)}
	res := run(t, "X ** 2", cols, 3, 0, []host.ColumnBuffer{
		host.LongColumn([]int64{1, 2, 3}),
	})
	if res.Type != types.KindDouble {
		t.Fatalf("type = %s, want Double", res.Type)
	}
	want := []float64{1, 4, 9}
	for i, w := range want {
		if res.D[i] != w {
			t.Errorf("row %d = %g, want %g", i, res.D[i], w)
		}
	}
}

// Invariant: null monotonicity for '+' — undef_out = undef_a OR undef_b.
func TestInvariantNullMonotonicityAdd(t *testing.T) {
	cols := []host.ColInfo{
		host.ColInfoFor("A", types.KindLong, 1),
		host.ColInfoFor("B", types.KindLong, 1),
	}
	res := run(t, "A + B", cols, 3, 0, []host.ColumnBuffer{
		host.LongColumn([]int64{1, -999, 3}).WithSentinel(int64(-999)),
		host.LongColumn([]int64{10, 20, -999}).WithSentinel(int64(-999)),
	})
	wantUndef := []byte{0, 1, 1}
	for i, w := range wantUndef {
		if res.Undef[i] != w {
			t.Errorf("row %d undef=%d, want %d", i, res.Undef[i], w)
		}
	}
	if res.L[0] != 11 {
		t.Errorf("row 0 = %d, want 11", res.L[0])
	}
}

// Invariant: OR dominance — a defined-true on either side always yields
// a defined-true result, regardless of the other side's undef state.
func TestInvariantOrDominance(t *testing.T) {
	cols := []host.ColInfo{
		host.ColInfoFor("A", types.KindBool, 1),
		host.ColInfoFor("B", types.KindBool, 1),
	}
	// A is sentinel-undef (true == sentinel) on every row; B is defined
	// true on row 0 only.
	res := run(t, "A || B", cols, 3, 0, []host.ColumnBuffer{
		host.BoolColumn([]bool{true, true, true}).WithSentinel(true),
		host.BoolColumn([]bool{true, false, false}),
	})
	if res.Undef[0] != 0 || res.B[0] != true {
		t.Errorf("row 0: B is defined-true, so OR must be defined-true regardless of A; got B=%v undef=%v", res.B[0], res.Undef[0])
	}
	if res.Undef[1] == 0 {
		t.Errorf("row 1: both sides false-or-undef with A undef, should be undef")
	}
}

// Invariant: DEFNULL(a,b) is defined iff a is defined or b is defined.
func TestInvariantDefnullDefinedness(t *testing.T) {
	cols := []host.ColInfo{
		host.ColInfoFor("A", types.KindLong, 1),
		host.ColInfoFor("B", types.KindLong, 1),
	}
	res := run(t, "DEFNULL(A, B)", cols, 3, 0, []host.ColumnBuffer{
		host.LongColumn([]int64{-999, -999, 5}).WithSentinel(int64(-999)),
		host.LongColumn([]int64{7, -999, -999}).WithSentinel(int64(-999)),
	})
	// row0: a undef, b defined(7) -> defined, value 7
	// row1: both undef -> undef
	// row2: a defined(5), b undef -> defined, value 5
	if res.Undef[0] != 0 || res.L[0] != 7 {
		t.Errorf("row 0 = %d undef=%d, want 7 defined", res.L[0], res.Undef[0])
	}
	if res.Undef[1] == 0 {
		t.Errorf("row 1 should be undef: both operands undef")
	}
	if res.Undef[2] != 0 || res.L[2] != 5 {
		t.Errorf("row 2 = %d undef=%d, want 5 defined", res.L[2], res.Undef[2])
	}
}

// Invariant (geometry): CIRCLE(0,0,1,x,y) == (x*x + y*y <= 1).
func TestInvariantCircleMatchesAlgebraicDefinition(t *testing.T) {
	cols := []host.ColInfo{
		host.ColInfoFor("X", types.KindDouble, 1),
		host.ColInfoFor("Y", types.KindDouble, 1),
	}
	xs := []float64{0, 0.3, 0.9999, 1.0001, -2, 3.2}
	ys := []float64{0, 0.3, 0, 0, 0, -3.2}
	res := run(t, "CIRCLE(0.0, 0.0, 1.0, X, Y)", cols, len(xs), 0, []host.ColumnBuffer{
		host.DoubleColumn(xs), host.DoubleColumn(ys),
	})
	for i := range xs {
		want := xs[i]*xs[i]+ys[i]*ys[i] <= 1.0
		if res.B[i] != want {
			t.Errorf("row %d: CIRCLE=%v, want %v (x=%g y=%g)", i, res.B[i], want, xs[i], ys[i])
		}
	}
}

func TestDivisionByZeroIsDomainError(t *testing.T) {
	cols := []host.ColInfo{host.ColInfoFor("X", types.KindLong, 1)}
	catalog := host.NewInMemoryCatalog(cols)
	expr, err := Compile("X / 0", catalog)
	if err != nil {
		t.Fatal(err)
	}
	if err := expr.Bind(host.NewInMemoryBatch(0, 1, []host.ColumnBuffer{host.LongColumn([]int64{5})})); err != nil {
		t.Fatal(err)
	}
	if _, err := expr.Evaluate(context.Background(), nil, nil); err == nil {
		t.Fatal("expected a domain error dividing by a constant zero")
	}
}

func TestStickyErrorAfterEvalFailure(t *testing.T) {
	cols := []host.ColInfo{host.ColInfoFor("X", types.KindLong, 1)}
	catalog := host.NewInMemoryCatalog(cols)
	expr, err := Compile("X / 0", catalog)
	if err != nil {
		t.Fatal(err)
	}
	if err := expr.Bind(host.NewInMemoryBatch(0, 1, []host.ColumnBuffer{host.LongColumn([]int64{5})})); err != nil {
		t.Fatal(err)
	}
	_, err1 := expr.Evaluate(context.Background(), nil, nil)
	if err1 == nil {
		t.Fatal("expected an error")
	}
	_, err2 := expr.Evaluate(context.Background(), nil, nil)
	if err2 != err1 {
		t.Fatalf("a second Evaluate after a sticky error should return the same error, got %v vs %v", err2, err1)
	}
}

func TestRowRef(t *testing.T) {
	cols := []host.ColInfo{host.ColInfoFor("X", types.KindLong, 1)}
	catalog := host.NewInMemoryCatalog(cols)
	expr, err := Compile("#ROW", catalog)
	if err != nil {
		t.Fatal(err)
	}
	if err := expr.Bind(host.NewInMemoryBatch(100, 3, []host.ColumnBuffer{host.LongColumn([]int64{1, 2, 3})})); err != nil {
		t.Fatal(err)
	}
	res, err := expr.Evaluate(context.Background(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{100, 101, 102}
	for i, w := range want {
		if res.L[i] != w {
			t.Errorf("row %d = %d, want %d", i, res.L[i], w)
		}
	}
}

func TestResultShapeIndependentOfBinding(t *testing.T) {
	cols := []host.ColInfo{host.ColInfoFor("V", types.KindLong, 4)}
	expr, err := Compile("V + 1", host.NewInMemoryCatalog(cols))
	if err != nil {
		t.Fatal(err)
	}
	kind, shape := expr.ResultShape()
	if kind != types.KindLong || shape.Nelem != 4 {
		t.Fatalf("ResultShape() = %s/%+v before any Bind, want Long nelem=4", kind, shape)
	}
}

func TestDiscardMakesEvaluateFail(t *testing.T) {
	cols := []host.ColInfo{host.ColInfoFor("X", types.KindLong, 1)}
	expr, err := Compile("X + 1", host.NewInMemoryCatalog(cols))
	if err != nil {
		t.Fatal(err)
	}
	expr.Discard()
	if err := expr.Bind(host.NewInMemoryBatch(0, 1, []host.ColumnBuffer{host.LongColumn([]int64{1})})); err == nil {
		t.Fatal("Bind after Discard should fail")
	}
	if _, err := expr.Evaluate(context.Background(), nil, nil); err == nil {
		t.Fatal("Evaluate after Discard should fail")
	}
}

type constRNG struct{ v float64 }

func (r constRNG) Float64() float64 { return r.v }

func TestRandom(t *testing.T) {
	cols := []host.ColInfo{host.ColInfoFor("X", types.KindLong, 1)}
	catalog := host.NewInMemoryCatalog(cols)
	expr, err := Compile("RANDOM()", catalog)
	if err != nil {
		t.Fatal(err)
	}
	if err := expr.Bind(host.NewInMemoryBatch(0, 2, []host.ColumnBuffer{host.LongColumn([]int64{1, 2})})); err != nil {
		t.Fatal(err)
	}
	res, err := expr.Evaluate(context.Background(), nil, constRNG{0.5})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range res.D {
		if v != 0.5 {
			t.Errorf("row %d = %v, want 0.5 from the injected RandomSource", i, v)
		}
	}
}

// Invariant: evaluating several batches in parallel via Arena.Clone()
// yields the same per-batch results as evaluating each serially — no
// goroutine's bound columns or interior buffers alias another's.
func TestEvaluateParallelMatchesSerial(t *testing.T) {
	cols := []host.ColInfo{host.ColInfoFor("X", types.KindLong, 1)}
	catalog := host.NewInMemoryCatalog(cols)
	batchData := [][]int64{
		{1, 2, 3},
		{10, 20},
		{100, 200, 300, 400},
		{-5, 5},
	}
	batches := make([]host.RowBatch, len(batchData))
	for i, data := range batchData {
		batches[i] = host.NewInMemoryBatch(int64(i*1000), len(data), []host.ColumnBuffer{host.LongColumn(data)})
	}

	parallelExpr, err := Compile("X * X + 1", catalog)
	if err != nil {
		t.Fatal(err)
	}
	parallelResults, err := parallelExpr.EvaluateParallel(context.Background(), batches, 2, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	for i, data := range batchData {
		serialExpr, err := Compile("X * X + 1", catalog)
		if err != nil {
			t.Fatal(err)
		}
		if err := serialExpr.Bind(batches[i]); err != nil {
			t.Fatal(err)
		}
		serialRes, err := serialExpr.Evaluate(context.Background(), nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(parallelResults[i].L) != len(data) {
			t.Fatalf("batch %d: parallel result has %d rows, want %d", i, len(parallelResults[i].L), len(data))
		}
		for row, v := range data {
			want := v*v + 1
			if parallelResults[i].L[row] != want {
				t.Errorf("batch %d row %d: parallel = %d, want %d", i, row, parallelResults[i].L[row], want)
			}
			if parallelResults[i].L[row] != serialRes.L[row] {
				t.Errorf("batch %d row %d: parallel (%d) and serial (%d) evaluation disagree", i, row, parallelResults[i].L[row], serialRes.L[row])
			}
		}
	}
}
