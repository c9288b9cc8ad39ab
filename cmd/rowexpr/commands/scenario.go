// Package commands implements the rowexpr CLI's subcommands: parse,
// eval, bench, serve, and query. Each is a plain (args []string) error
// function dispatched by hand from cmd/rowexpr/main.go.
package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"rowexpr/internal/host"
	"rowexpr/internal/liveserver"
	"rowexpr/internal/types"
)

// scenario is the on-disk JSON shape shared by parse/eval/bench: a
// catalog plus the batches to run an expression over. It reuses
// liveserver's wire types so one file format works for both the CLI and
// a liveserver.Request body.
type scenario struct {
	Expr    string                  `json:"expr"`
	Columns []liveserver.ColumnSpec `json:"columns"`
	Batches []liveserver.BatchSpec  `json:"batches"`
}

func loadScenario(path string) (*scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	var s scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario file: %w", err)
	}
	return &s, nil
}

func (s *scenario) catalog() (*host.InMemoryCatalog, error) {
	cols := make([]host.ColInfo, len(s.Columns))
	for i, c := range s.Columns {
		k, err := parseKind(c.Kind)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		cols[i] = host.ColInfoFor(c.Name, k, c.Nelem)
	}
	return host.NewInMemoryCatalog(cols), nil
}

func parseKind(s string) (types.Kind, error) {
	switch s {
	case "bool", "Bool":
		return types.KindBool, nil
	case "long", "Long":
		return types.KindLong, nil
	case "double", "Double":
		return types.KindDouble, nil
	case "string", "String":
		return types.KindString, nil
	case "bitstr", "BitStr":
		return types.KindBitStr, nil
	default:
		return 0, fmt.Errorf("unknown kind %q (want bool, long, double, string, or bitstr)", s)
	}
}

func batchFromSpec(bs liveserver.BatchSpec) *host.InMemoryBatch {
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
			cb = cb.WithSentinel(liveserver.SentinelFor(c.Sentinel, cb))
		}
		cols[i] = cb
	}
	return host.NewInMemoryBatch(bs.FirstRow, bs.NRows, cols)
}
