package commands

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"rowexpr/internal/eval"
	"rowexpr/internal/host"
)

// BenchCommand compiles a scenario's expression once and re-evaluates
// its first batch repeatedly, reporting total time and throughput. It
// exists to exercise the compile-once, rebind-per-batch path directly
// from the CLI rather than through a test harness.
func BenchCommand(args []string) error {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	iters := fs.Int("iters", 1000, "number of evaluation iterations")
	fs.Parse(args)
	rest := fs.Args()
	if len(rest) < 1 {
		return fmt.Errorf("usage: rowexpr bench [-iters N] <scenario.json>")
	}

	s, err := loadScenario(rest[0])
	if err != nil {
		return err
	}
	if len(s.Batches) == 0 {
		return fmt.Errorf("scenario has no batches to benchmark against")
	}
	catalog, err := s.catalog()
	if err != nil {
		return err
	}

	compiled, err := eval.Compile(s.Expr, catalog)
	if err != nil {
		return err
	}
	batch := batchFromSpec(s.Batches[0])

	ctx := context.Background()
	start := time.Now()
	var totalRows int64
	for i := 0; i < *iters; i++ {
		if err := compiled.Bind(batch); err != nil {
			return fmt.Errorf("iteration %d: %w", i, err)
		}
		res, err := compiled.Evaluate(ctx, nil, host.DefaultRandomSource())
		if err != nil {
			return fmt.Errorf("iteration %d: %w", i, err)
		}
		totalRows += int64(res.NRows)
	}
	elapsed := time.Since(start)

	fmt.Printf("%s iterations, %s total rows, %s elapsed\n",
		humanize.Comma(int64(*iters)), humanize.Comma(totalRows), elapsed)
	if elapsed > 0 {
		perSec := float64(*iters) / elapsed.Seconds()
		fmt.Printf("%s evaluations/sec\n", humanize.Commaf(perSec))
	}
	return nil
}
