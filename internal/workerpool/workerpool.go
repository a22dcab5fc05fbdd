// Package workerpool offloads CPU-bound work off the calling goroutine onto
// a bounded pool: a fixed number of concurrent slots with no shared memory
// assumed between caller and worker (inputs and outputs cross the
// boundary as plain values). It generalizes a fixed-worker-count,
// bounded-concurrency pattern to arbitrary jobs instead of one batch
// consumer.
package workerpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Pool bounds concurrent execution of Submit'd jobs to Size slots via a
// semaphore channel, without the queue/batch machinery a dedicated batch
// consumer needs.
type Pool struct {
	size int
	sem  chan struct{}
}

// New constructs a pool with the given number of concurrent slots. A
// non-positive size falls back to 1 (never fully serial-blocks).
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{size: size, sem: make(chan struct{}, size)}
}

// Submit runs fn on the pool, blocking the caller until a slot is free and
// fn completes. Callers that want fire-and-forget offload should launch
// Submit itself in a goroutine.
func (p *Pool) Submit(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.sem }()
	return fn(ctx)
}

// Map runs fn over every item concurrently (bounded by the pool size) and
// returns the first error encountered, if any, cancelling the rest via the
// shared errgroup context.
func Map[T any](ctx context.Context, p *Pool, items []T, fn func(ctx context.Context, item T) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, item := range items {
		item := item
		g.Go(func() error {
			return p.Submit(gctx, func(ctx context.Context) error {
				return fn(ctx, item)
			})
		})
	}
	return g.Wait()
}
