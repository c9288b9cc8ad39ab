// Package host defines the narrow interfaces the row expression engine
// consumes from its embedder: column metadata lookup, live per-batch
// column buffers, a diagnostics sink, and a uniform random source. The
// engine never reads a FITS file itself — these interfaces are the
// entire surface a host must implement to drive it.
package host

import "rowexpr/internal/types"

// ColInfo describes one column's static type and shape.
type ColInfo struct {
	Name  string
	Type  types.Kind
	Shape types.Shape
}

// ColumnCatalog resolves a column name (or validates a 1-based #N
// reference) to its index and static metadata.
type ColumnCatalog interface {
	// Lookup resolves a column by name. ok is false if no such column
	// exists.
	Lookup(name string) (idx int, info ColInfo, ok bool)
	// ByIndex resolves a 1-based column index from a #N reference.
	ByIndex(idx int) (info ColInfo, ok bool)
}

// ColumnBuffer is one column's live data for the current batch: a flat,
// row-major array of nRows*Nelem elements of the column's native Go
// type, plus the sentinel value stored in logical element 0 of the
// column's on-disk representation. A row is undef iff its value equals
// the sentinel and the sentinel itself is non-zero/non-empty.
type ColumnBuffer struct {
	Bools    []bool
	Longs    []int64
	Doubles  []float64
	Strings  []string    // also used for unpacked bit-strings, one row per entry
	Sentinel interface{} // bool | int64 | float64 | string, matching the column's Kind; nil means "no sentinel, never null"
}

// RowBatch supplies the live column buffers and row-numbering context
// for one batch.
type RowBatch interface {
	FirstRow() int64
	RowOffset() int64
	NRows() int
	// Column returns the live buffer for column idx (1-based). ok is
	// false if idx is out of range for this batch.
	Column(idx int) (ColumnBuffer, bool)
}

// MessageSink receives one-line diagnostics from the engine.
type MessageSink interface {
	Message(line string)
}

// RandomSource produces a uniform double in [0, 1) for RANDOM().
type RandomSource interface {
	Float64() float64
}
