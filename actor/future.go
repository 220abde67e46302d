package actor

import (
	"context"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Future represents the result of an asynchronous actor operation: message
// acceptance for Send, or the handler's reply for SendAndReceive. It allows
// consumers to block for the result (Await), transform it (ThenApply), or
// register a callback for when it settles (OnComplete).
type Future[T any] interface {
	// Await blocks until the result is available or ctx is cancelled.
	Await(ctx context.Context) fn.Result[T]

	// ThenApply returns a new Future that resolves to f applied to this
	// Future's successful result, or propagates the original error.
	ThenApply(ctx context.Context, f func(T) T) Future[T]

	// OnComplete invokes cb, in its own goroutine, once the Future
	// settles or ctx is cancelled.
	OnComplete(ctx context.Context, cb func(fn.Result[T]))
}

// Promise is the write side of a Future. The kernel completes a Promise
// exactly once; later Complete calls are no-ops and return false.
type Promise[T any] interface {
	// Future returns the read side associated with this Promise.
	Future() Future[T]

	// Complete sets the result. Returns true iff this call was the first
	// to complete the promise.
	Complete(result fn.Result[T]) bool
}

// promise is the sole implementation of both Future and Promise, backed by a
// close-once channel. The real runtime this package generalizes stores this
// implementation in a sibling module; here it lives alongside the kernel it
// serves.
type promise[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	result    fn.Result[T]
	completed bool
}

// NewPromise creates an unresolved Promise/Future pair.
func NewPromise[T any]() Promise[T] {
	return &promise[T]{done: make(chan struct{})}
}

func (p *promise[T]) Future() Future[T] { return p }

func (p *promise[T]) Complete(result fn.Result[T]) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.completed {
		return false
	}

	p.completed = true
	p.result = result
	close(p.done)

	return true
}

func (p *promise[T]) Await(ctx context.Context) fn.Result[T] {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.result

	case <-ctx.Done():
		return fn.Err[T](ctx.Err())
	}
}

func (p *promise[T]) ThenApply(ctx context.Context, f func(T) T) Future[T] {
	chained := NewPromise[T]()

	go func() {
		result := p.Await(ctx)
		result.WhenOk(func(v T) {
			chained.Complete(fn.Ok(f(v)))
		})
		result.WhenErr(func(err error) {
			chained.Complete(fn.Err[T](err))
		})
	}()

	return chained.Future()
}

func (p *promise[T]) OnComplete(ctx context.Context, cb func(fn.Result[T])) {
	go cb(p.Await(ctx))
}

// completedFuture returns a Future that is already resolved with result. It
// is used by endpoints that can fail synchronously (e.g. a send to an
// already-destroyed actor) without the overhead of a channel round trip.
func completedFuture[T any](result fn.Result[T]) Future[T] {
	p := NewPromise[T]()
	p.Complete(result)
	return p.Future()
}
