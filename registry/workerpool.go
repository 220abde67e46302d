package registry

import (
	"github.com/alitto/pond/v2"
)

// WorkerPoolConfig bounds a WorkerPool's concurrency.
type WorkerPoolConfig struct {
	// MaxWorkers caps how many goroutines the pool runs submitted work on
	// at once. Zero defaults to DefaultMaxWorkers.
	MaxWorkers int
}

// DefaultMaxWorkers is used when a WorkerPoolConfig leaves MaxWorkers unset.
const DefaultMaxWorkers = 10

// WorkerPool is a bounded-concurrency executor behaviors inject to run
// CPU-bound or blocking work off their own mailbox goroutine, so a slow
// handler doesn't stall delivery to the rest of that actor's mailbox.
type WorkerPool struct {
	pool pond.Pool
}

// NewWorkerPool constructs a WorkerPool with the given bound.
func NewWorkerPool(cfg WorkerPoolConfig) *WorkerPool {
	max := cfg.MaxWorkers
	if max <= 0 {
		max = DefaultMaxWorkers
	}
	return &WorkerPool{pool: pond.NewPool(max)}
}

// Submit runs f on the pool and returns a pond.Task a caller can wait on.
func (w *WorkerPool) Submit(f func()) pond.Task {
	return w.pool.Submit(f)
}

// Go runs f on the pool without waiting, returning an error if the pool has
// already been stopped.
func (w *WorkerPool) Go(f func()) error {
	return w.pool.Go(f)
}

// Close implements Resource: it stops accepting new work and waits for
// everything already submitted to finish.
func (w *WorkerPool) Close() error {
	w.pool.StopAndWait()
	return nil
}
