package actor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"go.uber.org/atomic"
)

// lifecycleState is the actor state machine described in the core design:
// Constructed -> Initializing -> Ready -> Destroying -> Destroyed.
type lifecycleState uint8

const (
	stateConstructed lifecycleState = iota
	stateInitializing
	stateReady
	stateDestroying
	stateDestroyed
)

func (s lifecycleState) String() string {
	switch s {
	case stateConstructed:
		return "constructed"
	case stateInitializing:
		return "initializing"
	case stateReady:
		return "ready"
	case stateDestroying:
		return "destroying"
	case stateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// kernel owns one in-memory actor's mailbox, behavior, and position in the
// supervision tree. Every placement mode eventually bottoms out at a kernel:
// forked and remote actors run one inside their own process, reached through
// a transport rather than a direct function call.
type kernel struct {
	id     string
	system *ActorSystem
	parent *kernel

	def      BehaviorDefinition
	handlers map[string]HandlerFunc
	mailbox  Mailbox[Delivery, any]
	log      *Log

	ctx    context.Context
	cancel context.CancelFunc

	selfRef *refImpl
	planned atomic.Bool

	mu             sync.Mutex
	state          lifecycleState
	children       []supervised
	destroyPromise Promise[any]
}

// supervised is anything a kernel's post-order teardown can wait on: a plain
// in-memory kernel, a forked/remote child's local stand-in, or a router
// fronting a cluster of replicas.
type supervised interface {
	beginDestroy(ctx context.Context) Future[any]
}

// done closes once this actor reaches Destroyed, whether through an
// intentional Destroy call or because its own context ended first (e.g. an
// ancestor's teardown, or the system shutting down).
func (k *kernel) done() <-chan struct{} { return k.ctx.Done() }

// plannedTeardown reports whether beginDestroy was ever called on this
// kernel. A replica whose context ends without this ever being set has
// crashed rather than been deliberately torn down.
func (k *kernel) plannedTeardown() bool { return k.planned.Load() }

// createChild builds a new actor under k according to cfg, dispatching to the
// placement mode the caller asked for.
func (k *kernel) createChild(ctx context.Context, bf BehaviorFactory, opts ...ChildOption) (ActorRef, error) {
	cfg := newChildConfig(k.system, opts...)
	id := k.system.nextID(k.id)

	if cfg.clusterSize > 0 {
		return k.system.createRouter(ctx, k, id, bf, cfg)
	}

	switch cfg.mode {
	case ModeInMemory:
		return k.system.spawnInMemory(ctx, k, id, bf, cfg)
	case ModeForked:
		return k.system.spawnForked(ctx, k, id, bf, cfg)
	case ModeRemote:
		return k.system.spawnRemote(ctx, k, id, bf, cfg)
	default:
		err := fmt.Errorf("%w: unknown placement mode %q",
			ErrInvalidConfiguration, cfg.mode)
		return newStaleRef(id, err), err
	}
}

func (k *kernel) addChild(child supervised) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.children = append(k.children, child)
}

func (k *kernel) removeChild(child supervised) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for i, c := range k.children {
		if c == child {
			k.children = append(k.children[:i], k.children[i+1:]...)
			return
		}
	}
}

// run drains the mailbox until it closes (on Destroy), then fails any
// envelopes left behind so pending asks never hang.
func (k *kernel) run() {
	for env := range k.mailbox.Receive(k.ctx) {
		k.handle(env)
	}

	for env := range k.mailbox.Drain() {
		k.failEnvelope(env, ErrDeliveryFailure)
	}
}

func (k *kernel) failEnvelope(env envelope[Delivery, any], err error) {
	if env.promise != nil {
		env.promise.Complete(fn.Err[any](err))
	}
}

func (k *kernel) handle(env envelope[Delivery, any]) {
	handler, ok := k.handlers[env.message.Topic]
	if !ok {
		err := fmt.Errorf("%w: no handler for topic %q",
			ErrHandlerFailure, env.message.Topic)
		k.log.Warn("dropping delivery with no handler", "topic", env.message.Topic)
		k.failEnvelope(env, err)
		return
	}

	result, err := k.invokeHandler(env, handler)
	if env.promise == nil {
		return
	}
	if err != nil {
		env.promise.Complete(fn.Err[any](err))
		return
	}
	env.promise.Complete(fn.Ok(result))
}

func (k *kernel) invokeHandler(env envelope[Delivery, any], handler HandlerFunc) (result any, err error) {
	start := time.Now()
	defer func() {
		observeProcessing(k.id, env.message.Topic, start)
		if r := recover(); r != nil {
			handlerPanics.WithLabelValues(Subsystem, k.id).Inc()
			err = fmt.Errorf("%w: panic in handler for topic %q: %v",
				ErrHandlerFailure, env.message.Topic, r)
		}
	}()

	ctx, done := mergeContexts(k.ctx, env.callerCtx)
	defer done()

	out, herr := handler(ctx, k.selfRef, env.message.Payload)
	if herr != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandlerFailure, herr)
	}
	return out, nil
}

// beginDestroy transitions k (idempotently) into Destroying and kicks off the
// post-order teardown in the background, returning a Future that resolves
// once the whole subtree, then k itself, has reached Destroyed.
func (k *kernel) beginDestroy(ctx context.Context) Future[any] {
	k.mu.Lock()
	switch k.state {
	case stateDestroying, stateDestroyed:
		p := k.destroyPromise
		k.mu.Unlock()
		if p != nil {
			return p.Future()
		}
		return completedFuture[any](fn.Ok[any](nil))
	}

	k.state = stateDestroying
	k.destroyPromise = NewPromise[any]()
	children := append([]supervised(nil), k.children...)
	k.mu.Unlock()

	k.planned.Store(true)

	go k.runDestroy(ctx, children)

	return k.destroyPromise.Future()
}

// runDestroy implements the depth-first post-order guarantee: every
// descendant reaches Destroyed before k's own Destroy hook runs.
func (k *kernel) runDestroy(ctx context.Context, children []supervised) {
	for _, child := range children {
		child.beginDestroy(ctx).Await(ctx)
	}

	k.mailbox.Close()
	k.cancel()

	if destroyer, ok := k.def.(Destroyer); ok {
		if err := destroyer.Destroy(ctx); err != nil {
			k.log.Error("destroy hook failed", "err", err)
		}
	}

	k.mu.Lock()
	k.state = stateDestroyed
	parent := k.parent
	k.mu.Unlock()

	if parent != nil {
		parent.removeChild(k)
	}

	k.system.onActorDestroyed(k.id)
	actorsDestroyed.WithLabelValues(Subsystem, k.id).Inc()
	actorsAlive.WithLabelValues(Subsystem, k.id).Dec()
	k.destroyPromise.Complete(fn.Ok[any](nil))
}

func (k *kernel) currentState() lifecycleState {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}
