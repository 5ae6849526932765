package fetch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ExecuteAll runs every request concurrently, at most limit at a time (no
// bound when limit is not positive), and returns their outcomes in order.
// A failing request does not affect the others.
func ExecuteAll(ctx context.Context, limit int, reqs ...*Request) []Outcome {
	outcomes := make([]Outcome, len(reqs))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, req := range reqs {
		g.Go(func() error {
			outcomes[i] = req.Execute(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// ExecuteAllOrFail is like ExecuteAll but stops at the first failure: the
// executions still running are cancelled, those not yet started are skipped
// and reported as cancelled, and the failure is returned.
func ExecuteAllOrFail(ctx context.Context, limit int, reqs ...*Request) ([]Outcome, error) {
	outcomes := make([]Outcome, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, req := range reqs {
		g.Go(func() error {
			if gctx.Err() != nil {
				outcomes[i] = Outcome{Cancelled: true}
				return nil
			}
			outcomes[i] = req.Execute(gctx)
			return outcomes[i].Err
		})
	}
	return outcomes, g.Wait()
}
