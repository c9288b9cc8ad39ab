// Package eval binds a compiled expression to a live row batch and
// walks its arena tree to produce a vectorized result, propagating
// nulls elementwise and freeing each interior node's buffer as soon
// as its parent has consumed it (the engine's single-ownership
// discipline).
package eval

import (
	"context"
	"fmt"

	"rowexpr/internal/arena"
	rerr "rowexpr/internal/errors"
	"rowexpr/internal/host"
	"rowexpr/internal/parser"
	"rowexpr/internal/types"
)

// CompiledExpr is a parsed, optionally bound row expression. Once Bind
// or Evaluate has returned a non-nil error that error becomes sticky:
// every subsequent call returns it immediately without doing further
// work. The one exception is a cancelled or expired ctx, which Evaluate
// reports without storing.
type CompiledExpr struct {
	Arena  *arena.Arena
	Root   int32
	Source string

	err       error
	bound     bool
	nRows     int
	firstRow  int64
	rowOffset int64
}

// Compile parses source against catalog into a fresh, unbound
// CompiledExpr.
func Compile(source string, catalog host.ColumnCatalog) (*CompiledExpr, error) {
	a, root, err := parser.Parse(source, catalog)
	if err != nil {
		return nil, err
	}
	return &CompiledExpr{Arena: a, Root: root, Source: source}, nil
}

// ResultShape reports the root node's static type and shape. Both are
// fixed at parse time and independent of any batch later bound.
func (c *CompiledExpr) ResultShape() (types.Kind, types.Shape) {
	root := c.Arena.At(c.Root)
	return root.Type, root.Shape
}

// Discard releases the compiled tree. Every subsequent Bind or Evaluate
// call fails immediately; the expression cannot be revived.
func (c *CompiledExpr) Discard() {
	c.Arena = nil
	c.bound = false
	c.err = rerr.New(rerr.Allocation, "expression has been discarded", 0, 0, 0)
}

// Result is the flattened, row-major output of Evaluate.
type Result struct {
	Type  types.Kind
	Shape types.Shape
	NRows int
	B     []bool
	L     []int64
	D     []float64
	S     []string
	Undef []byte
}

// Bind rebinds every column leaf in the arena to batch's live buffers,
// reconstructing each leaf's undef mask from the column's null
// sentinel. Bind may be called repeatedly on the same CompiledExpr to
// stream successive batches through one compiled tree.
func (c *CompiledExpr) Bind(batch host.RowBatch) error {
	if c.err != nil {
		return c.err
	}
	nRows := batch.NRows()
	for i := range c.Arena.Nodes {
		n := &c.Arena.Nodes[i]
		if !n.IsColumn() {
			continue
		}
		buf, ok := batch.Column(n.ColumnIndex())
		if !ok {
			c.err = rerr.Newf(rerr.IndexOutOfRange, 0, 0, 0, "column #%d is not present in this batch", n.ColumnIndex())
			return c.err
		}
		vec, err := bindColumn(n.Type, n.Shape, nRows, buf)
		if err != nil {
			c.err = err
			return err
		}
		n.Vec = vec
	}
	c.bound = true
	c.nRows = nRows
	c.firstRow = batch.FirstRow()
	c.rowOffset = batch.RowOffset()
	return nil
}

// bindColumn materializes one column's flat Vector. For Bool/Long/Double
// it also builds an Undef mask derived from buf.Sentinel (a nil or zero
// sentinel means "never null"); String and BitStr never carry an undef mask so
// none is built for them here.
func bindColumn(kind types.Kind, shape types.Shape, nRows int, buf host.ColumnBuffer) (arena.Vector, error) {
	n := nRows * shape.Nelem
	v := arena.Vector{}
	switch kind {
	case types.KindBool:
		if len(buf.Bools) < n {
			return v, rerr.Newf(rerr.ShapeMismatch, 0, 0, 0, "column buffer too short: want %d bools, got %d", n, len(buf.Bools))
		}
		v.B = buf.Bools[:n]
		if sentinel, ok := buf.Sentinel.(bool); ok && sentinel {
			v.Undef = make([]byte, n)
			for i, b := range v.B {
				if b == sentinel {
					v.Undef[i] = 1
				}
			}
		}
	case types.KindLong:
		if len(buf.Longs) < n {
			return v, rerr.Newf(rerr.ShapeMismatch, 0, 0, 0, "column buffer too short: want %d longs, got %d", n, len(buf.Longs))
		}
		v.L = buf.Longs[:n]
		if sentinel, ok := buf.Sentinel.(int64); ok && sentinel != 0 {
			v.Undef = make([]byte, n)
			for i, x := range v.L {
				if x == sentinel {
					v.Undef[i] = 1
				}
			}
		}
	case types.KindDouble:
		if len(buf.Doubles) < n {
			return v, rerr.Newf(rerr.ShapeMismatch, 0, 0, 0, "column buffer too short: want %d doubles, got %d", n, len(buf.Doubles))
		}
		v.D = buf.Doubles[:n]
		if sentinel, ok := buf.Sentinel.(float64); ok && sentinel != 0 {
			v.Undef = make([]byte, n)
			for i, x := range v.D {
				if x == sentinel {
					v.Undef[i] = 1
				}
			}
		}
	case types.KindString, types.KindBitStr:
		// String and BitStr never carry a separate undef mask: a String's
		// null is the empty string itself, and a BitStr's is an all-'x'
		// cell; ISNULL tests the value directly rather than a bind-time
		// mask.
		if len(buf.Strings) < n {
			return v, rerr.Newf(rerr.ShapeMismatch, 0, 0, 0, "column buffer too short: want %d strings, got %d", n, len(buf.Strings))
		}
		v.S = buf.Strings[:n]
	}
	return v, nil
}

// Evaluate walks the bound arena and returns the root node's value.
// sink receives any diagnostic messages functions choose to emit; rng
// feeds RANDOM(). Both may be nil.
func (c *CompiledExpr) Evaluate(ctx context.Context, sink host.MessageSink, rng host.RandomSource) (Result, error) {
	if c.err != nil {
		return Result{}, c.err
	}
	if !c.bound {
		c.err = rerr.New(rerr.Allocation, "Evaluate called before Bind", 0, 0, 0)
		return Result{}, c.err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	w := &walker{a: c.Arena, nRows: c.nRows, firstRow: c.firstRow, rowOffset: c.rowOffset, sink: sink, rng: rng}
	if err := w.eval(c.Root); err != nil {
		c.err = err
		return Result{}, err
	}
	root := c.Arena.At(c.Root)
	res := Result{
		Type:  root.Type,
		Shape: root.Shape,
		NRows: c.nRows,
		B:     root.Vec.B,
		L:     root.Vec.L,
		D:     root.Vec.D,
		S:     root.Vec.S,
		Undef: root.Vec.Undef,
	}
	if root.IsConst() {
		// A whole expression can constant-fold to a single node, in
		// which case eval never builds a Vec for it. Broadcast the
		// scalar across every row here so callers always see a flat,
		// row-major result of length NRows*Shape.Nelem.
		res.broadcastConst(root, c.nRows)
	}
	return res, nil
}

// broadcastConst fills r's data array by repeating n's scalar payload
// nRows times (nelem is always 1 for a folded scalar constant).
func (r *Result) broadcastConst(n *arena.Node, nRows int) {
	switch n.Type {
	case types.KindBool:
		r.B = make([]bool, nRows)
		for i := range r.B {
			r.B[i] = n.Scalar.B
		}
	case types.KindLong:
		r.L = make([]int64, nRows)
		for i := range r.L {
			r.L[i] = n.Scalar.L
		}
	case types.KindDouble:
		r.D = make([]float64, nRows)
		for i := range r.D {
			r.D[i] = n.Scalar.D
		}
	case types.KindString, types.KindBitStr:
		r.S = make([]string, nRows)
		for i := range r.S {
			r.S[i] = n.Scalar.S
		}
	}
}

// walker carries the per-Evaluate context threaded through the
// recursive tree walk.
type walker struct {
	a         *arena.Arena
	nRows     int
	firstRow  int64
	rowOffset int64
	sink      host.MessageSink
	rng       host.RandomSource
}

func (w *walker) message(format string, args ...interface{}) {
	if w.sink != nil {
		w.sink.Message(fmt.Sprintf(format, args...))
	}
}
