// Package pool runs independent units of work on a bounded set of goroutines
// and collects their results at a single join point.
package pool

import (
	"context"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/curate-cli/internal/resilience"
)

// Config sizes the pool and sets the retry policy for transient unit failures.
type Config struct {
	Workers int
	Retry   resilience.RetryConfig
}

// Pool is a bounded worker pool. The zero value is not usable; call New.
type Pool struct {
	workers int
	retry   resilience.RetryConfig
}

// New creates a Pool. Workers <= 0 defaults to runtime.NumCPU().
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{workers: workers, retry: cfg.Retry}
}

// Workers returns the concurrency limit.
func (p *Pool) Workers() int {
	return p.workers
}

// Map runs fn once per item with at most p.Workers() units in flight and
// blocks until every unit has finished. Results are indexed like items.
// The first permanent error cancels the remaining units and is returned.
// Panics are recovered and retried as transient failures.
func Map[T, R any](ctx context.Context, p *Pool, stage string, items []T, fn func(ctx context.Context, i int, item T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			retry := p.retry
			retry.OnRetry = resilience.RetryLogger(stage, i)
			res, err := resilience.DoVal(gctx, retry, func(ctx context.Context) (res R, err error) {
				defer func() {
					if perr := resilience.Recovered(recover()); perr != nil {
						err = perr
					}
				}()
				return fn(ctx, i, item)
			})
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		zap.L().Debug("pool: stage aborted",
			zap.String("stage", stage),
			zap.String("error_type", resilience.Classify(err)),
			zap.Error(err),
		)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
