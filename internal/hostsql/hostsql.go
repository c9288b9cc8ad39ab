// Package hostsql implements host.ColumnCatalog and host.RowBatch over
// database/sql, the reference adapter for wiring the engine to a real
// tabular data source instead of the in-memory fixtures in
// rowexpr/internal/host. It selects the registered driver from the DSN's
// URL scheme, so several database engines sit behind one call surface.
package hostsql

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"net/url"
	"strings"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"rowexpr/internal/host"
	"rowexpr/internal/types"
)

// Open selects a database/sql driver by dsn's URL scheme and opens a
// connection. Supported schemes: sqlite, mysql, postgres (or
// postgresql), sqlserver.
func Open(dsn string) (*sql.DB, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("hostsql: invalid DSN %q: %w", dsn, err)
	}

	var driverName, driverDSN string
	switch strings.ToLower(u.Scheme) {
	case "sqlite":
		driverName = "sqlite"
		driverDSN = strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite://"), "sqlite:")
	case "mysql":
		driverName = "mysql"
		driverDSN = strings.TrimPrefix(dsn, "mysql://")
	case "postgres", "postgresql":
		driverName = "postgres"
		driverDSN = dsn
	case "sqlserver":
		driverName = "sqlserver"
		driverDSN = dsn
	default:
		return nil, fmt.Errorf("hostsql: unsupported DSN scheme %q (want sqlite, mysql, postgres, or sqlserver)", u.Scheme)
	}

	db, err := sql.Open(driverName, driverDSN)
	if err != nil {
		return nil, fmt.Errorf("hostsql: opening %s: %w", driverName, err)
	}
	return db, nil
}

// Catalog is a host.ColumnCatalog backed by one query's *sql.ColumnType
// metadata.
type Catalog struct {
	cols   []host.ColInfo
	byName map[string]int
}

func (c *Catalog) Lookup(name string) (int, host.ColInfo, bool) {
	idx, ok := c.byName[strings.ToUpper(name)]
	if !ok {
		return 0, host.ColInfo{}, false
	}
	return idx, c.cols[idx-1], true
}

func (c *Catalog) ByIndex(idx int) (host.ColInfo, bool) {
	if idx < 1 || idx > len(c.cols) {
		return host.ColInfo{}, false
	}
	return c.cols[idx-1], true
}

// Batch is a host.RowBatch holding one query's full result set,
// materialized into the engine's flat column-buffer representation.
// Every row-expression column in a SQL result set is scalar (Nelem==1);
// hostsql is a relational adapter, not a FITS vector-column reader, so
// array-valued columns are out of its scope (host.InMemoryCatalog
// covers the array case for tests).
type Batch struct {
	firstRow int64
	nRows    int
	columns  []host.ColumnBuffer
}

func (b *Batch) FirstRow() int64  { return b.firstRow }
func (b *Batch) RowOffset() int64 { return 0 }
func (b *Batch) NRows() int       { return b.nRows }

func (b *Batch) Column(idx int) (host.ColumnBuffer, bool) {
	if idx < 1 || idx > len(b.columns) {
		return host.ColumnBuffer{}, false
	}
	return b.columns[idx-1], true
}

// Query runs query against db and returns both the inferred catalog and
// the fully materialized batch, numbering rows from firstRow (typically
// 1). The whole result set becomes one Batch; callers that need to
// stream a very large table should page at the SQL level (LIMIT/OFFSET
// or a driver cursor) and call Query once per page.
func Query(ctx context.Context, db *sql.DB, query string, firstRow int64, args ...interface{}) (*Catalog, *Batch, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("hostsql: query failed: %w", err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, fmt.Errorf("hostsql: reading column types: %w", err)
	}

	kinds := make([]types.Kind, len(colTypes))
	cols := make([]host.ColInfo, len(colTypes))
	byName := make(map[string]int, len(colTypes))
	for i, ct := range colTypes {
		k := kindOf(ct)
		kinds[i] = k
		cols[i] = host.ColInfo{Name: ct.Name(), Type: k, Shape: types.ScalarShape()}
		byName[strings.ToUpper(ct.Name())] = i + 1
	}

	scanned, err := scanAll(rows, kinds)
	if err != nil {
		return nil, nil, err
	}

	return &Catalog{cols: cols, byName: byName},
		&Batch{firstRow: firstRow, nRows: scanned.nRows, columns: buildColumns(kinds, scanned)},
		nil
}

// kindOf maps a driver-reported SQL type to the engine's five Kinds.
// DatabaseTypeName is used rather than ScanType, since several drivers
// (go-sql-driver/mysql in particular) report a generic interface{}
// ScanType for nullable columns and only DatabaseTypeName is reliable
// across all four wired drivers.
func kindOf(ct *sql.ColumnType) types.Kind {
	switch strings.ToUpper(ct.DatabaseTypeName()) {
	case "BOOL", "BOOLEAN":
		return types.KindBool
	case "TINYINT", "SMALLINT", "INT", "INT2", "INT4", "INT8", "INTEGER",
		"BIGINT", "MEDIUMINT", "SERIAL", "BIGSERIAL":
		return types.KindLong
	case "FLOAT", "FLOAT4", "FLOAT8", "DOUBLE", "DOUBLE PRECISION", "REAL",
		"DECIMAL", "NUMERIC", "MONEY":
		return types.KindDouble
	default:
		return types.KindString
	}
}

// rawColumns holds one sql.Rows scan's worth of per-column raw Go
// values, indexed [col][row], before null substitution.
type rawColumns struct {
	nRows   int
	bools   [][]sql.NullBool
	longs   [][]sql.NullInt64
	doubles [][]sql.NullFloat64
	strings [][]sql.NullString
}

func scanAll(rows *sql.Rows, kinds []types.Kind) (*rawColumns, error) {
	n := len(kinds)
	raw := &rawColumns{
		bools:   make([][]sql.NullBool, n),
		longs:   make([][]sql.NullInt64, n),
		doubles: make([][]sql.NullFloat64, n),
		strings: make([][]sql.NullString, n),
	}

	for rows.Next() {
		dest := make([]interface{}, n)
		row := make([]interface{}, n)
		for i, k := range kinds {
			switch k {
			case types.KindBool:
				row[i] = new(sql.NullBool)
			case types.KindLong:
				row[i] = new(sql.NullInt64)
			case types.KindDouble:
				row[i] = new(sql.NullFloat64)
			default:
				row[i] = new(sql.NullString)
			}
			dest[i] = row[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("hostsql: scanning row %d: %w", raw.nRows, err)
		}
		for i, k := range kinds {
			switch k {
			case types.KindBool:
				raw.bools[i] = append(raw.bools[i], *row[i].(*sql.NullBool))
			case types.KindLong:
				raw.longs[i] = append(raw.longs[i], *row[i].(*sql.NullInt64))
			case types.KindDouble:
				raw.doubles[i] = append(raw.doubles[i], *row[i].(*sql.NullFloat64))
			default:
				raw.strings[i] = append(raw.strings[i], *row[i].(*sql.NullString))
			}
		}
		raw.nRows++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hostsql: iterating rows: %w", err)
	}
	return raw, nil
}

// buildColumns converts raw per-row SQL null wrappers into the engine's
// ColumnBuffer/Sentinel convention. Long and Double pick a magic
// sentinel value guaranteed absent from that column's non-null data;
// String substitutes the empty string, the engine's native "no value"
// convention (see arena.Vector's doc comment). Bool has no spare value
// to dedicate as a sentinel in a two-valued type, so a SQL NULL bool is
// recorded as false with no Sentinel set, so a NULL and a false value
// are indistinguishable in a Bool column.
func buildColumns(kinds []types.Kind, raw *rawColumns) []host.ColumnBuffer {
	cols := make([]host.ColumnBuffer, len(kinds))
	for i, k := range kinds {
		switch k {
		case types.KindBool:
			vals := make([]bool, len(raw.bools[i]))
			for r, nb := range raw.bools[i] {
				vals[r] = nb.Valid && nb.Bool
			}
			cols[i] = host.BoolColumn(vals)
		case types.KindLong:
			vals := make([]int64, len(raw.longs[i]))
			hasNull := false
			for r, nl := range raw.longs[i] {
				if nl.Valid {
					vals[r] = nl.Int64
				} else {
					hasNull = true
				}
			}
			cb := host.LongColumn(vals)
			if hasNull {
				sentinel := longSentinel(raw.longs[i])
				for r, nl := range raw.longs[i] {
					if !nl.Valid {
						vals[r] = sentinel
					}
				}
				cb = cb.WithSentinel(sentinel)
			}
			cols[i] = cb
		case types.KindDouble:
			vals := make([]float64, len(raw.doubles[i]))
			hasNull := false
			for r, nd := range raw.doubles[i] {
				if nd.Valid {
					vals[r] = nd.Float64
				} else {
					hasNull = true
				}
			}
			cb := host.DoubleColumn(vals)
			if hasNull {
				sentinel := doubleSentinel(raw.doubles[i])
				for r, nd := range raw.doubles[i] {
					if !nd.Valid {
						vals[r] = sentinel
					}
				}
				cb = cb.WithSentinel(sentinel)
			}
			cols[i] = cb
		default:
			vals := make([]string, len(raw.strings[i]))
			for r, ns := range raw.strings[i] {
				if ns.Valid {
					vals[r] = ns.String
				}
			}
			cols[i] = host.StringColumn(vals)
		}
	}
	return cols
}

// longSentinel picks math.MinInt64, or the closest value above it that
// isn't present among col's valid values, in the vanishingly unlikely
// case a real column actually stores it.
func longSentinel(col []sql.NullInt64) int64 {
	present := make(map[int64]bool, len(col))
	for _, v := range col {
		if v.Valid {
			present[v.Int64] = true
		}
	}
	for s := int64(math.MinInt64); ; s++ {
		if !present[s] {
			return s
		}
	}
}

// doubleSentinel picks a large-magnitude negative magic value unlikely
// to occur in real data, falling back to successive neighbors on
// collision.
func doubleSentinel(col []sql.NullFloat64) float64 {
	present := make(map[float64]bool, len(col))
	for _, v := range col {
		if v.Valid {
			present[v.Float64] = true
		}
	}
	s := -1.0e307
	for present[s] {
		s = math.Nextafter(s, math.Inf(1))
	}
	return s
}
