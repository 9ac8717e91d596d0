// Package workpool runs independent work items concurrently and returns the
// results in input order.
package workpool

import (
	"context"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Processor maps one item to one result.
type Processor[T, R any] func(ctx context.Context, index int, item T) (R, error)

// Option allows customization of pool behavior.
type Option func(*config)

type config struct {
	workers   int
	threshold int
	logger    *slog.Logger
}

// WithWorkers sets the number of concurrent workers.
func WithWorkers(workers int) Option {
	return func(c *config) {
		if workers > 0 {
			c.workers = workers
		}
	}
}

// WithThreshold sets the minimum batch size processed concurrently; smaller
// batches run inline on the calling goroutine.
func WithThreshold(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.threshold = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Pool is a reusable, stateless parallel map.
type Pool struct {
	workers   int
	threshold int
	logger    *slog.Logger
}

// New creates a pool. Workers default to GOMAXPROCS.
func New(options ...Option) *Pool {
	c := config{
		workers:   runtime.GOMAXPROCS(0),
		threshold: 16,
		logger:    slog.Default(),
	}
	for _, opt := range options {
		opt(&c)
	}

	return &Pool{
		workers:   c.workers,
		threshold: c.threshold,
		logger:    c.logger.With("component", "workpool"),
	}
}

// Workers returns the configured concurrency.
func (p *Pool) Workers() int { return p.workers }

// Map applies fn to every item. out[i] always corresponds to items[i]. The
// first error cancels the remaining work and is returned.
func Map[T, R any](ctx context.Context, p *Pool, items []T, fn Processor[T, R]) ([]R, error) {
	out := make([]R, len(items))
	if len(items) == 0 {
		return out, nil
	}

	if p == nil || p.workers <= 1 || len(items) < p.threshold {
		for i, item := range items {
			r, err := fn(ctx, i, item)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	}

	p.logger.Debug("Starting parallel map",
		"worker_count", p.workers,
		"item_count", len(items),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := fn(gctx, i, item)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		p.logger.Error("Parallel map failed", "error", err)
		return nil, err
	}
	return out, nil
}
