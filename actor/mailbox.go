package actor

import (
	"context"
	"iter"
)

// envelope wraps a message with its associated promise and caller context.
// A nil promise signals a tell (fire-and-forget) delivery; a non-nil promise
// signals an ask awaiting a single reply. callerCtx lets the kernel honor
// the caller's deadline in addition to the actor's own lifecycle context.
type envelope[M Message, R any] struct {
	message   M
	promise   Promise[R]
	callerCtx context.Context
}

// Mailbox defines the interface for an actor's message queue. Swapping this
// out (priority queues, bounded backpressure queues, ...) does not require
// any change to the kernel that drains it.
//
// Thread safety: Send/TrySend may be called concurrently by any number of
// goroutines. Receive must only be driven by the actor's own processing
// goroutine. Close is idempotent and safe to call concurrently with
// Send/TrySend. Drain must only run after Close, from the processing
// goroutine.
type Mailbox[M Message, R any] interface {
	// Send blocks until env is accepted, ctx is cancelled, or the
	// actor's own context is cancelled. Returns whether it was accepted.
	Send(ctx context.Context, env envelope[M, R]) bool

	// TrySend attempts a non-blocking enqueue.
	TrySend(env envelope[M, R]) bool

	// Receive yields queued envelopes in FIFO order, blocking while the
	// mailbox is empty, until ctx is cancelled or the mailbox closes.
	Receive(ctx context.Context) iter.Seq[envelope[M, R]]

	// Close prevents further sends from being accepted.
	Close()

	// IsClosed reports whether Close has been called.
	IsClosed() bool

	// Drain yields any envelopes left in the mailbox after Close.
	Drain() iter.Seq[envelope[M, R]]
}
