package commands

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"rowexpr/internal/engineid"
	"rowexpr/internal/host"
	"rowexpr/internal/hostsql"
)

// QueryCommand runs a SQL query against a database/sql DSN (see
// hostsql.Open for the supported schemes), compiles an expression
// against the query's inferred column catalog, and prints one JSON
// result line for the resulting single batch. It exercises the
// database-backed host adapter end to end, and uses engineid.Compile
// rather than eval.Compile so re-running the same expr against the
// same DSN's schema within one process reuses the cached tree.
func QueryCommand(args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	dsn := fs.String("dsn", "", "database/sql DSN, e.g. sqlite://rows.db")
	query := fs.String("sql", "", "SQL query to run")
	fs.Parse(args)
	rest := fs.Args()
	if *dsn == "" || *query == "" || len(rest) < 1 {
		return fmt.Errorf("usage: rowexpr query -dsn <dsn> -sql <query> <expr>")
	}
	expr := rest[0]

	db, err := hostsql.Open(*dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	catalog, batch, err := hostsql.Query(ctx, db, *query, 1)
	if err != nil {
		return err
	}

	compiled, err := engineid.Compile(expr, catalog)
	if err != nil {
		return err
	}
	if err := compiled.Bind(batch); err != nil {
		return fmt.Errorf("binding query result: %w", err)
	}
	res, err := compiled.Evaluate(ctx, nil, host.DefaultRandomSource())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(resultJSON{
		FirstRow: batch.FirstRow(),
		NRows:    res.NRows,
		Type:     res.Type.String(),
		Bools:    res.B,
		Longs:    res.L,
		Doubles:  res.D,
		Strings:  res.S,
		Undef:    res.Undef,
	})
}
