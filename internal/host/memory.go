package host

import (
	"strings"

	"rowexpr/internal/types"
)

// InMemoryCatalog is a dependency-free ColumnCatalog backed by a slice of
// ColInfo, used by every unit test in this repo and by small standalone
// tools. Column indices are 1-based, matching the #N reference syntax.
// Name resolution is case-insensitive, like everything else in the
// expression surface.
type InMemoryCatalog struct {
	cols   []ColInfo
	byName map[string]int
}

// NewInMemoryCatalog builds a catalog from an ordered column list.
func NewInMemoryCatalog(cols []ColInfo) *InMemoryCatalog {
	byName := make(map[string]int, len(cols))
	for i, c := range cols {
		byName[strings.ToUpper(c.Name)] = i + 1
	}
	return &InMemoryCatalog{cols: cols, byName: byName}
}

func (c *InMemoryCatalog) Lookup(name string) (int, ColInfo, bool) {
	idx, ok := c.byName[strings.ToUpper(name)]
	if !ok {
		return 0, ColInfo{}, false
	}
	return idx, c.cols[idx-1], true
}

func (c *InMemoryCatalog) ByIndex(idx int) (ColInfo, bool) {
	if idx < 1 || idx > len(c.cols) {
		return ColInfo{}, false
	}
	return c.cols[idx-1], true
}

// InMemoryBatch is a dependency-free RowBatch over a fixed set of
// pre-built ColumnBuffers, used by tests.
type InMemoryBatch struct {
	firstRow  int64
	rowOffset int64
	nRows     int
	columns   []ColumnBuffer
}

// NewInMemoryBatch builds a batch. columns is 0-indexed internally but
// addressed 1-based via Column, matching #N semantics.
func NewInMemoryBatch(firstRow int64, nRows int, columns []ColumnBuffer) *InMemoryBatch {
	return &InMemoryBatch{firstRow: firstRow, nRows: nRows, columns: columns}
}

func (b *InMemoryBatch) FirstRow() int64  { return b.firstRow }
func (b *InMemoryBatch) RowOffset() int64 { return b.rowOffset }
func (b *InMemoryBatch) NRows() int       { return b.nRows }

func (b *InMemoryBatch) Column(idx int) (ColumnBuffer, bool) {
	if idx < 1 || idx > len(b.columns) {
		return ColumnBuffer{}, false
	}
	return b.columns[idx-1], true
}

// BoolColumn builds a ColumnBuffer of kind Bool with no sentinel (never
// null) unless sentinel is explicitly supplied via WithSentinel.
func BoolColumn(data []bool) ColumnBuffer { return ColumnBuffer{Bools: data} }

// LongColumn builds a ColumnBuffer of kind Long.
func LongColumn(data []int64) ColumnBuffer { return ColumnBuffer{Longs: data} }

// DoubleColumn builds a ColumnBuffer of kind Double.
func DoubleColumn(data []float64) ColumnBuffer { return ColumnBuffer{Doubles: data} }

// StringColumn builds a ColumnBuffer of kind String.
func StringColumn(data []string) ColumnBuffer { return ColumnBuffer{Strings: data} }

// BitColumn builds a ColumnBuffer of kind BitStr: one already-unpacked
// '0'/'1'/'x' string per row.
func BitColumn(data []string) ColumnBuffer { return ColumnBuffer{Strings: data} }

// UnpackBitColumn expands a bit-packed column — each row stored
// MSB-first in ceil(nbits/8) bytes — into the per-row '0'/'1' strings
// the engine evaluates bit expressions over.
func UnpackBitColumn(packed []byte, nbits, nRows int) ColumnBuffer {
	stride := (nbits + 7) / 8
	rows := make([]string, nRows)
	for r := 0; r < nRows; r++ {
		buf := make([]byte, nbits)
		base := r * stride
		for i := 0; i < nbits; i++ {
			buf[i] = '0'
			if base+i/8 < len(packed) && packed[base+i/8]&(1<<uint(7-i%8)) != 0 {
				buf[i] = '1'
			}
		}
		rows[r] = string(buf)
	}
	return ColumnBuffer{Strings: rows}
}

// WithSentinel attaches a null-sentinel value to a column buffer.
func (cb ColumnBuffer) WithSentinel(sentinel interface{}) ColumnBuffer {
	cb.Sentinel = sentinel
	return cb
}

// ColInfoFor is a small helper for building catalogs in tests.
func ColInfoFor(name string, kind types.Kind, nelem int) ColInfo {
	sh := types.ScalarShape()
	if nelem != 1 {
		sh = types.ShapeFromAxes([]int{nelem})
	}
	return ColInfo{Name: name, Type: kind, Shape: sh}
}
