package actor

import (
	"context"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// inMemoryEndpoint backs an ActorRef whose target runs as a goroutine in
// this process.
type inMemoryEndpoint struct {
	kernel *kernel
}

func (e *inMemoryEndpoint) mode() Mode { return ModeInMemory }

func (e *inMemoryEndpoint) deliver(ctx, callerCtx context.Context, d Delivery, wantReply bool) Future[any] {
	switch e.kernel.currentState() {
	case stateDestroying, stateDestroyed:
		return completedFuture[any](fn.Err[any](ErrStaleReference))
	}

	var p Promise[any]
	if wantReply {
		p = NewPromise[any]()
	}

	env := envelope[Delivery, any]{message: d, promise: p, callerCtx: callerCtx}
	if !e.kernel.mailbox.Send(ctx, env) {
		return completedFuture[any](fn.Err[any](ErrDeliveryFailure))
	}

	if !wantReply {
		return completedFuture[any](fn.Ok[any](nil))
	}
	return p.Future()
}

func (e *inMemoryEndpoint) send(ctx, callerCtx context.Context, d Delivery) Future[any] {
	return e.deliver(ctx, callerCtx, d, false)
}

func (e *inMemoryEndpoint) ask(ctx, callerCtx context.Context, d Delivery) Future[any] {
	return e.deliver(ctx, callerCtx, d, true)
}

func (e *inMemoryEndpoint) broadcast(ctx context.Context, d Delivery) Future[any] {
	return e.send(ctx, ctx, d)
}

// broadcastAsk on a plain (non-router) ref degenerates to a single-element
// result slice, matching the documented contract for non-router refs.
func (e *inMemoryEndpoint) broadcastAsk(ctx context.Context, d Delivery) Future[[]any] {
	result := e.ask(ctx, ctx, d).Await(ctx)

	out := NewPromise[[]any]()
	val, err := result.Unpack()
	if err != nil {
		out.Complete(fn.Err[[]any](err))
	} else {
		out.Complete(fn.Ok([]any{val}))
	}
	return out.Future()
}

// metrics asks the behavior's own "metrics" handler, if any. A map reply is
// returned as is; any other reply is wrapped in a single-entry map keyed by
// this actor's id.
func (e *inMemoryEndpoint) metrics(ctx context.Context) Future[map[string]any] {
	d := Delivery{ID: newDeliveryID(), Topic: "metrics", Kind: KindAsk}
	result := e.ask(ctx, ctx, d).Await(ctx)

	out := NewPromise[map[string]any]()
	val, err := result.Unpack()
	if err != nil {
		out.Complete(fn.Err[map[string]any](err))
		return out.Future()
	}

	if m, ok := val.(map[string]any); ok {
		out.Complete(fn.Ok(m))
		return out.Future()
	}

	out.Complete(fn.Ok(map[string]any{e.kernel.id: val}))
	return out.Future()
}

func (e *inMemoryEndpoint) destroy(ctx context.Context) Future[any] {
	return e.kernel.beginDestroy(ctx)
}

func (e *inMemoryEndpoint) done() <-chan struct{} { return e.kernel.done() }

func (e *inMemoryEndpoint) plannedTeardown() bool { return e.kernel.plannedTeardown() }
