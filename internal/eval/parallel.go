package eval

import (
	"context"

	"golang.org/x/sync/errgroup"

	"rowexpr/internal/host"
)

// EvaluateParallel evaluates the same compiled expression over several
// row batches concurrently. Each worker gets its own Arena.Clone() of
// the tree (a cheap slice copy) so no goroutine's bound column buffers
// or interior-node results ever alias another's; c itself is left
// unbound and untouched. workers <= 0 means "one goroutine per batch".
// sink and rng, if non-nil, are shared across workers and must be
// concurrency-safe.
func (c *CompiledExpr) EvaluateParallel(ctx context.Context, batches []host.RowBatch, workers int, sink host.MessageSink, rng host.RandomSource) ([]Result, error) {
	if c.err != nil {
		return nil, c.err
	}
	results := make([]Result, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			clone := &CompiledExpr{Arena: c.Arena.Clone(), Root: c.Root, Source: c.Source}
			if err := clone.Bind(batch); err != nil {
				return err
			}
			res, err := clone.Evaluate(gctx, sink, rng)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
