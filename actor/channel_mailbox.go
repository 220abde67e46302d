package actor

import (
	"context"
	"iter"
	"sync"

	"go.uber.org/atomic"
)

// ChannelMailbox is the default Mailbox implementation: a single buffered
// Go channel guarded by a mutex so that Close can never race a concurrent
// Send into a send-on-closed-channel panic.
//
// The trick is the lock's polarity: every Send/TrySend takes the mailbox's
// RLock and every Close takes its Lock. Go's sync.RWMutex guarantees a
// writer cannot proceed while any reader holds the lock, so as long as a
// sender is inside its RLock section the channel is provably still open;
// Close can only run, and therefore close(ch), once every in-flight sender
// has released its RLock.
type ChannelMailbox[M Message, R any] struct {
	queue    chan envelope[M, R]
	sealed   atomic.Bool
	gate     sync.RWMutex
	sealOnce sync.Once
	lifeCtx  context.Context
}

// NewChannelMailbox builds a mailbox bound to lifeCtx (the owning actor's
// context); once lifeCtx is done, Send and TrySend stop accepting new
// envelopes. Receive stops when the ctx passed to it ends (the kernel passes
// this same lifeCtx). A non-positive capacity is rounded up to 1
// so the mailbox is always buffered.
func NewChannelMailbox[M Message, R any](
	lifeCtx context.Context, capacity int,
) *ChannelMailbox[M, R] {
	if capacity <= 0 {
		capacity = 1
	}

	return &ChannelMailbox[M, R]{
		queue:   make(chan envelope[M, R], capacity),
		lifeCtx: lifeCtx,
	}
}

// Send blocks until env is accepted, the caller's ctx ends, or the
// mailbox's owning actor ends, whichever comes first.
func (m *ChannelMailbox[M, R]) Send(ctx context.Context, env envelope[M, R]) bool {
	// Cheap pre-check: bail before touching the lock if either context is
	// already done. The select below still covers the race where one ends
	// while we're waiting on it.
	if ctx.Err() != nil || m.lifeCtx.Err() != nil {
		return false
	}

	m.gate.RLock()
	defer m.gate.RUnlock()

	if m.sealed.Load() {
		return false
	}

	select {
	case m.queue <- env:
		log.TraceS(ctx, "Mailbox send succeeded",
			"msg_type", env.message.MessageType(),
			"queue_len", len(m.queue))
		return true

	case <-ctx.Done():
		log.TraceS(ctx, "Mailbox send failed, caller context cancelled",
			"msg_type", env.message.MessageType())
		return false

	case <-m.lifeCtx.Done():
		log.TraceS(ctx, "Mailbox send failed, actor context cancelled",
			"msg_type", env.message.MessageType())
		return false
	}
}

// TrySend is Send's non-blocking sibling: it reports false immediately
// rather than waiting when the mailbox is sealed, full, or its actor has
// already ended.
func (m *ChannelMailbox[M, R]) TrySend(env envelope[M, R]) bool {
	if m.lifeCtx.Err() != nil {
		return false
	}

	m.gate.RLock()
	defer m.gate.RUnlock()

	if m.sealed.Load() {
		return false
	}

	select {
	case m.queue <- env:
		return true
	default:
		return false
	}
}

// Receive yields envelopes as they arrive, stopping when ctx ends or the
// mailbox is closed and empty. ctx is checked ahead of the select on every
// iteration so shutdown is deterministic rather than racing a channel that
// happens to be ready at the same instant ctx ends.
func (m *ChannelMailbox[M, R]) Receive(ctx context.Context) iter.Seq[envelope[M, R]] {
	return func(yield func(envelope[M, R]) bool) {
		for {
			if ctx.Err() != nil {
				return
			}

			select {
			case env, open := <-m.queue:
				if !open {
					return
				}
				if !yield(env) {
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}
}

// Close seals the mailbox against further sends and closes the underlying
// channel. Safe to call more than once; only the first call has any
// effect. Taking the write lock here is what forces Close to wait out any
// Send currently mid-flight before the channel is actually closed.
func (m *ChannelMailbox[M, R]) Close() {
	m.sealOnce.Do(func() {
		m.gate.Lock()
		defer m.gate.Unlock()

		log.DebugS(m.lifeCtx, "Mailbox closing",
			"remaining_messages", len(m.queue))

		m.sealed.Store(true)
		close(m.queue)
	})
}

// IsClosed reports whether Close has run, via a lock-free atomic read.
func (m *ChannelMailbox[M, R]) IsClosed() bool {
	return m.sealed.Load()
}

// Drain yields whatever envelopes were still buffered at Close time. It is
// a no-op if called before Close, and never blocks: once the channel is
// closed a receive on it always returns immediately, either with a
// buffered envelope or the zero value with ok=false.
func (m *ChannelMailbox[M, R]) Drain() iter.Seq[envelope[M, R]] {
	return func(yield func(envelope[M, R]) bool) {
		if !m.IsClosed() {
			return
		}

		for {
			select {
			case env, open := <-m.queue:
				if !open {
					return
				}
				if !yield(env) {
					return
				}
			default:
				return
			}
		}
	}
}
