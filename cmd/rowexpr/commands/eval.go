package commands

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"rowexpr/internal/config"
	"rowexpr/internal/engineid"
	"rowexpr/internal/host"
	"rowexpr/internal/hostlog"
)

// resultJSON is the CLI's printed shape for an eval.Result; it mirrors
// liveserver.ResultFrame so "rowexpr eval" output and a liveserver frame
// read the same way.
type resultJSON struct {
	FirstRow int64     `json:"firstRow"`
	NRows    int       `json:"nRows"`
	Type     string    `json:"type"`
	Bools    []bool    `json:"bools,omitempty"`
	Longs    []int64   `json:"longs,omitempty"`
	Doubles  []float64 `json:"doubles,omitempty"`
	Strings  []string  `json:"strings,omitempty"`
	Undef    []byte    `json:"undef,omitempty"`
}

// EvalCommand compiles a scenario's expression once and evaluates it
// across every batch in the scenario file, printing one JSON result line
// per batch.
func EvalCommand(args []string) error {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	quiet := fs.Bool("quiet", false, "suppress the diagnostic log")
	parallel := fs.Bool("parallel", false, "evaluate all batches concurrently via EvaluateParallel")
	fs.Parse(args)
	rest := fs.Args()
	if len(rest) < 1 {
		return fmt.Errorf("usage: rowexpr eval [-quiet] [-parallel] <scenario.json>")
	}

	s, err := loadScenario(rest[0])
	if err != nil {
		return err
	}
	catalog, err := s.catalog()
	if err != nil {
		return err
	}

	compiled, err := engineid.Compile(s.Expr, catalog)
	if err != nil {
		return err
	}

	var logger *hostlog.Sink
	var sink host.MessageSink
	if !*quiet {
		logger = hostlog.New(os.Stderr, time.Now())
		sink = logger
	}

	enc := json.NewEncoder(os.Stdout)

	if *parallel {
		return evalParallel(compiled, s, sink, enc)
	}

	for _, bs := range s.Batches {
		batch := batchFromSpec(bs)
		started := time.Now()
		if err := compiled.Bind(batch); err != nil {
			return fmt.Errorf("binding batch at row %d: %w", bs.FirstRow, err)
		}
		res, err := compiled.Evaluate(context.Background(), sink, host.DefaultRandomSource())
		if err != nil {
			return fmt.Errorf("evaluating batch at row %d: %w", bs.FirstRow, err)
		}
		if logger != nil {
			logger.BatchSummary(res.NRows, len(res.Undef), time.Since(started))
		}
		enc.Encode(resultJSON{
			FirstRow: bs.FirstRow,
			NRows:    res.NRows,
			Type:     res.Type.String(),
			Bools:    res.B,
			Longs:    res.L,
			Doubles:  res.D,
			Strings:  res.S,
			Undef:    res.Undef,
		})
	}
	return nil
}

// evalParallel fans compiled out across every batch in s at once via
// EvaluateParallel, one Arena.Clone() per batch capped at
// config.Default().Workers concurrent goroutines, then prints results
// in the original batch order. Exercises the worker-pool clone
// strategy end to end from the CLI.
func evalParallel(compiled *engineid.CompiledExpr, s *scenario, sink host.MessageSink, enc *json.Encoder) error {
	batches := make([]host.RowBatch, len(s.Batches))
	for i, bs := range s.Batches {
		batches[i] = batchFromSpec(bs)
	}

	cfg := config.Default()
	results, err := compiled.EvaluateParallel(context.Background(), batches, cfg.Workers, sink, host.DefaultRandomSource())
	if err != nil {
		return fmt.Errorf("parallel evaluation: %w", err)
	}

	for i, res := range results {
		enc.Encode(resultJSON{
			FirstRow: s.Batches[i].FirstRow,
			NRows:    res.NRows,
			Type:     res.Type.String(),
			Bools:    res.B,
			Longs:    res.L,
			Doubles:  res.D,
			Strings:  res.S,
			Undef:    res.Undef,
		})
	}
	return nil
}
