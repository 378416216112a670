package concurrent

import (
	"context"
)

// WorkerPool bounds how many tasks run at once.
type WorkerPool struct {
	maxWorkers int
	sem        chan struct{}
}

// NewWorkerPool creates a pool with the specified max workers.
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &WorkerPool{
		maxWorkers: maxWorkers,
		sem:        make(chan struct{}, maxWorkers),
	}
}

// MaxWorkers reports the pool's concurrency limit.
func (wp *WorkerPool) MaxWorkers() int { return wp.maxWorkers }

// Do runs fn once a worker slot is free, or returns early if ctx ends first.
func (wp *WorkerPool) Do(ctx context.Context, fn func() error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case wp.sem <- struct{}{}:
		defer func() { <-wp.sem }()
		return fn()
	}
}

// Go runs fn on its own goroutine under the pool's limit. Errors are passed
// to onErr when it is non-nil.
func (wp *WorkerPool) Go(ctx context.Context, fn func() error, onErr func(error)) {
	go func() {
		if err := wp.Do(ctx, fn); err != nil && onErr != nil {
			onErr(err)
		}
	}()
}
