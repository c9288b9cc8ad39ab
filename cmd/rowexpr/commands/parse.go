package commands

import (
	"flag"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	rerr "rowexpr/internal/errors"
	"rowexpr/internal/parser"
)

// ParseCommand checks an expression against a scenario's catalog without
// evaluating it, printing the resulting node count on success or a
// caret-annotated syntax error on failure.
func ParseCommand(args []string) error {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	fs.Parse(args)
	rest := fs.Args()
	if len(rest) < 1 {
		return fmt.Errorf("usage: rowexpr parse <scenario.json> [expr]")
	}

	s, err := loadScenario(rest[0])
	if err != nil {
		return err
	}
	expr := s.Expr
	if len(rest) >= 2 {
		expr = rest[1]
	}

	catalog, err := s.catalog()
	if err != nil {
		return err
	}

	a, root, err := parser.Parse(expr, catalog)
	if err != nil {
		fmt.Fprintln(os.Stderr, formatParseError(err))
		os.Exit(1)
	}

	fmt.Printf("ok: %d arena node(s), root #%d\n", len(a.Nodes), root)
	return nil
}

// formatParseError renders a parse error, wrapping it in ANSI red only
// when stdout is an actual terminal; escape codes are suppressed when
// output is redirected to a file or pipe.
func formatParseError(err error) string {
	msg := err.Error()
	if rowErr, ok := err.(*rerr.RowExprError); ok {
		msg = rowErr.Error()
	}
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return "\x1b[31m" + msg + "\x1b[0m"
	}
	return msg
}
