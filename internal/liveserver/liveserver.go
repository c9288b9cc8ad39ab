// Package liveserver is a small websocket front end for watching batch
// evaluation happen: a client opens one connection, submits an
// expression plus a self-contained column catalog and its row batches
// as a single JSON message, and receives one JSON result frame per
// batch as Evaluate runs through them.
package liveserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"rowexpr/internal/eval"
	"rowexpr/internal/host"
	"rowexpr/internal/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ColumnSpec describes one catalog column over the wire.
type ColumnSpec struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Nelem int    `json:"nelem"`
}

// ColumnData carries one column's values for one batch, plus an
// optional null sentinel matching host.ColumnBuffer's convention.
type ColumnData struct {
	Bools    []bool      `json:"bools,omitempty"`
	Longs    []int64     `json:"longs,omitempty"`
	Doubles  []float64   `json:"doubles,omitempty"`
	Strings  []string    `json:"strings,omitempty"`
	Sentinel interface{} `json:"sentinel,omitempty"`
}

// BatchSpec is one RowBatch over the wire.
type BatchSpec struct {
	FirstRow int64        `json:"firstRow"`
	NRows    int          `json:"nRows"`
	Columns  []ColumnData `json:"columns"`
}

// Request is the single JSON message a client sends right after the
// websocket upgrade: the expression text, the catalog it resolves
// against, and every batch to stream through it in order.
type Request struct {
	Expr    string       `json:"expr"`
	Columns []ColumnSpec `json:"columns"`
	Batches []BatchSpec  `json:"batches"`
}

// ResultFrame is one JSON message the server writes back per batch.
type ResultFrame struct {
	FirstRow int64     `json:"firstRow"`
	NRows    int       `json:"nRows"`
	Type     string    `json:"type"`
	Bools    []bool    `json:"bools,omitempty"`
	Longs    []int64   `json:"longs,omitempty"`
	Doubles  []float64 `json:"doubles,omitempty"`
	Strings  []string  `json:"strings,omitempty"`
	Undef    []byte    `json:"undef,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// ServeHTTP upgrades r to a websocket, reads the single evaluation
// Request, and streams one ResultFrame per batch back to the client.
// It implements http.Handler so a caller can mount it directly on a
// ServeMux.
type Handler struct{}

func (Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var req Request
	if err := conn.ReadJSON(&req); err != nil {
		conn.WriteJSON(ResultFrame{Error: fmt.Sprintf("liveserver: reading request: %v", err)})
		return
	}

	catalog, err := buildCatalog(req.Columns)
	if err != nil {
		conn.WriteJSON(ResultFrame{Error: err.Error()})
		return
	}

	compiled, err := eval.Compile(req.Expr, catalog)
	if err != nil {
		conn.WriteJSON(ResultFrame{Error: err.Error()})
		return
	}

	for _, bs := range req.Batches {
		batch := buildBatch(bs)
		if err := compiled.Bind(batch); err != nil {
			conn.WriteJSON(ResultFrame{FirstRow: bs.FirstRow, Error: err.Error()})
			return
		}
		res, err := compiled.Evaluate(r.Context(), nil, host.DefaultRandomSource())
		if err != nil {
			conn.WriteJSON(ResultFrame{FirstRow: bs.FirstRow, Error: err.Error()})
			return
		}
		frame := ResultFrame{
			FirstRow: bs.FirstRow,
			NRows:    res.NRows,
			Type:     res.Type.String(),
			Bools:    res.B,
			Longs:    res.L,
			Doubles:  res.D,
			Strings:  res.S,
			Undef:    res.Undef,
		}
		if err := conn.WriteJSON(frame); err != nil {
			return
		}
	}
}

func buildCatalog(specs []ColumnSpec) (*host.InMemoryCatalog, error) {
	cols := make([]host.ColInfo, len(specs))
	for i, s := range specs {
		k, err := parseKind(s.Kind)
		if err != nil {
			return nil, fmt.Errorf("liveserver: column %q: %w", s.Name, err)
		}
		cols[i] = host.ColInfoFor(s.Name, k, s.Nelem)
	}
	return host.NewInMemoryCatalog(cols), nil
}

func buildBatch(bs BatchSpec) *host.InMemoryBatch {
	cols := make([]host.ColumnBuffer, len(bs.Columns))
	for i, c := range bs.Columns {
		var cb host.ColumnBuffer
		switch {
		case c.Bools != nil:
			cb = host.BoolColumn(c.Bools)
		case c.Longs != nil:
			cb = host.LongColumn(c.Longs)
		case c.Doubles != nil:
			cb = host.DoubleColumn(c.Doubles)
		default:
			cb = host.StringColumn(c.Strings)
		}
		if c.Sentinel != nil {
			cb = cb.WithSentinel(SentinelFor(c.Sentinel, cb))
		}
		cols[i] = cb
	}
	return host.NewInMemoryBatch(bs.FirstRow, bs.NRows, cols)
}

// SentinelFor converts a JSON-decoded sentinel to the Go type the
// engine's bind step expects for the column's kind: encoding/json
// delivers every number as float64, but a Long column's sentinel must
// be an int64 to ever match its values.
func SentinelFor(raw interface{}, cb host.ColumnBuffer) interface{} {
	if f, ok := raw.(float64); ok && cb.Longs != nil {
		return int64(f)
	}
	return raw
}

func parseKind(s string) (types.Kind, error) {
	switch strings.ToLower(s) {
	case "bool":
		return types.KindBool, nil
	case "long":
		return types.KindLong, nil
	case "double":
		return types.KindDouble, nil
	case "string":
		return types.KindString, nil
	case "bitstr":
		return types.KindBitStr, nil
	default:
		return 0, fmt.Errorf("unknown column kind %q", s)
	}
}
