package actor

import (
	"context"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Mode names where an actor physically runs.
type Mode string

const (
	// ModeInMemory actors run as a goroutine in the same process as
	// their parent.
	ModeInMemory Mode = "in-memory"

	// ModeForked actors run in a child OS process on the same host.
	ModeForked Mode = "forked"

	// ModeRemote actors run on a peer ActorSystem reachable over the
	// network, which must be in listen mode.
	ModeRemote Mode = "remote"

	// ModeRouter identifies a synthetic router actor fronting a cluster
	// of replicas. GetMode on a router ref reports the replica mode
	// instead, per the external contract in §4.6.
	ModeRouter Mode = "router"
)

// CrashPolicy controls what a router does when a replica dies.
type CrashPolicy string

const (
	// OnCrashNone leaves a dead replica's slot empty.
	OnCrashNone CrashPolicy = "none"

	// OnCrashRespawn starts a replacement replica with the same
	// behavior and placement once the old one dies.
	OnCrashRespawn CrashPolicy = "respawn"
)

// ActorRef is the location-transparent handle applications hold onto. A ref
// never owns its target; the parent actor (or the system, for the root) does.
// All methods are non-blocking to the caller: they return a Future that
// settles once the described event (mailbox acceptance, reply, full subtree
// teardown, ...) has occurred.
type ActorRef interface {
	// Send enqueues a fire-and-forget delivery. The returned Future
	// resolves once the delivery has been accepted into the target's
	// mailbox (or failed with ErrStaleReference / ErrDeliveryFailure).
	Send(ctx context.Context, topic string, payload any) Future[any]

	// SendAndReceive enqueues a delivery and awaits the handler's reply.
	// A handler error surfaces as ErrHandlerFailure wrapping the cause.
	SendAndReceive(ctx context.Context, topic string, payload any) Future[any]

	// Broadcast delivers to every replica of a router ref, resolving once
	// all have accepted. For non-router refs it behaves like Send.
	Broadcast(ctx context.Context, topic string, payload any) Future[any]

	// BroadcastAndReceive delivers to every replica of a router ref and
	// resolves with their replies in replica-index order. For non-router
	// refs it resolves with a one-element slice.
	BroadcastAndReceive(ctx context.Context, topic string, payload any) Future[[]any]

	// Metrics gathers per-replica metrics for a router ref (see §4.6). For
	// a non-router ref it returns the map its "metrics" handler replies
	// with, or a single-entry map keyed by the actor id when the reply is
	// not a map.
	Metrics(ctx context.Context) Future[map[string]any]

	// CreateChild spawns a new actor under this one and returns its ref
	// once construction (and, for clustered children, initial replica
	// placement) has completed.
	CreateChild(ctx context.Context, def BehaviorFactory, opts ...ChildOption) (ActorRef, error)

	// Destroy requests teardown of the subtree rooted at this actor. The
	// returned Future resolves once every descendant, then this actor's
	// own Destroy hook, has run.
	Destroy(ctx context.Context) Future[any]

	// GetParent returns a weak reference to this actor's parent, or nil
	// for the root actor.
	GetParent() ActorRef

	// GetID returns the actor's process-unique identifier.
	GetID() string

	// GetMode returns where this actor runs. For a router ref, this is
	// the placement mode of its replicas.
	GetMode() Mode

	// GetLog returns this actor's log handle.
	GetLog() *Log
}

// childConfig collects placement/cluster options for CreateChild.
type childConfig struct {
	mode         Mode
	host         string
	clusterSize  int
	balancerName string
	onCrash      CrashPolicy
	mailboxSize  int
}

// ChildOption configures a CreateChild call.
type ChildOption func(*childConfig)

// WithMode selects where the new child runs. Defaults to ModeInMemory.
func WithMode(m Mode) ChildOption {
	return func(c *childConfig) { c.mode = m }
}

// WithHost sets the remote host to place the child on. Only meaningful with
// WithMode(ModeRemote).
func WithHost(host string) ChildOption {
	return func(c *childConfig) { c.host = host }
}

// WithClusterSize requests N replicas behind a router actor instead of a
// single plain child. N must be >= 1; a value of 1 still creates a router,
// degenerating its broadcast family to a single delivery.
func WithClusterSize(n int) ChildOption {
	return func(c *childConfig) { c.clusterSize = n }
}

// WithBalancer names the balancer plugin the router should use. Defaults to
// "roundrobin". Built-ins are "roundrobin" and "random"; any other name must
// have been registered with the owning ActorSystem.
func WithBalancer(name string) ChildOption {
	return func(c *childConfig) { c.balancerName = name }
}

// WithOnCrash sets the router's crash policy. Defaults to OnCrashNone.
func WithOnCrash(p CrashPolicy) ChildOption {
	return func(c *childConfig) { c.onCrash = p }
}

// WithMailboxSize overrides the default mailbox capacity for the new child.
func WithMailboxSize(n int) ChildOption {
	return func(c *childConfig) { c.mailboxSize = n }
}

func newChildConfig(sys *ActorSystem, opts ...ChildOption) childConfig {
	cfg := childConfig{
		mode:         ModeInMemory,
		balancerName: "roundrobin",
		onCrash:      OnCrashNone,
		mailboxSize:  sys.config.MailboxCapacity,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// endpoint is the internal routing strategy backing an ActorRef. Exactly one
// concrete implementation exists per placement mode: inMemoryEndpoint wraps
// a *kernel directly; forkedEndpoint and remoteEndpoint cross a process or
// network boundary; routerEndpoint forwards through a balancer to replica
// refs that are themselves backed by one of the other three.
type endpoint interface {
	mode() Mode
	send(ctx context.Context, callerCtx context.Context, d Delivery) Future[any]
	ask(ctx context.Context, callerCtx context.Context, d Delivery) Future[any]
	broadcast(ctx context.Context, d Delivery) Future[any]
	broadcastAsk(ctx context.Context, d Delivery) Future[[]any]
	metrics(ctx context.Context) Future[map[string]any]
	destroy(ctx context.Context) Future[any]

	// done closes once the target has terminated, whether by an
	// intentional Destroy or an unplanned crash.
	done() <-chan struct{}

	// plannedTeardown reports, once done has closed, whether the
	// termination was requested through Destroy (true) or happened on
	// its own (false, a crash). Undefined before done closes.
	plannedTeardown() bool
}

// refImpl is the concrete ActorRef implementation shared by every placement
// mode; it differs only in which endpoint it forwards through.
type refImpl struct {
	id     string
	parent *refImpl
	ep     endpoint
	lg     *Log
}

func (r *refImpl) Send(ctx context.Context, topic string, payload any) Future[any] {
	d := Delivery{ID: newDeliveryID(), Topic: topic, Payload: payload, Kind: KindTell}
	return r.ep.send(ctx, ctx, d)
}

func (r *refImpl) SendAndReceive(ctx context.Context, topic string, payload any) Future[any] {
	d := Delivery{ID: newDeliveryID(), Topic: topic, Payload: payload, Kind: KindAsk}
	return r.ep.ask(ctx, ctx, d)
}

func (r *refImpl) Broadcast(ctx context.Context, topic string, payload any) Future[any] {
	d := Delivery{ID: newDeliveryID(), Topic: topic, Payload: payload, Kind: KindTell}
	return r.ep.broadcast(ctx, d)
}

func (r *refImpl) BroadcastAndReceive(ctx context.Context, topic string, payload any) Future[[]any] {
	d := Delivery{ID: newDeliveryID(), Topic: topic, Payload: payload, Kind: KindAsk}
	return r.ep.broadcastAsk(ctx, d)
}

func (r *refImpl) Metrics(ctx context.Context) Future[map[string]any] {
	return r.ep.metrics(ctx)
}

func (r *refImpl) CreateChild(ctx context.Context, def BehaviorFactory, opts ...ChildOption) (ActorRef, error) {
	k, ok := r.ep.(*inMemoryEndpoint)
	if !ok {
		// Only in-memory actors host children directly in this
		// process; forked/remote/router refs delegate creation to
		// whatever hosts them (see their respective endpoints).
		return createRemoteChild(ctx, r, def, opts...)
	}
	return k.kernel.createChild(ctx, def, opts...)
}

func (r *refImpl) Destroy(ctx context.Context) Future[any] {
	return r.ep.destroy(ctx)
}

func (r *refImpl) GetParent() ActorRef {
	if r.parent == nil {
		return nil
	}
	return r.parent
}

func (r *refImpl) GetID() string { return r.id }

func (r *refImpl) GetMode() Mode { return r.ep.mode() }

func (r *refImpl) GetLog() *Log { return r.lg }

// staleRef is returned in place of a live ref whenever construction fails
// (injection failure, init failure, unknown balancer, ...). Every message,
// metrics and CreateChild call on it fails fast with the construction error
// (ErrStaleReference when there is none), and Destroy succeeds as a no-op,
// so callers never have to nil-check.
type staleRef struct {
	id  string
	err error
}

func (s *staleRef) failure() error {
	if s.err != nil {
		return s.err
	}
	return ErrStaleReference
}

func (s *staleRef) Send(context.Context, string, any) Future[any] {
	return completedFuture[any](fn.Err[any](s.failure()))
}
func (s *staleRef) SendAndReceive(context.Context, string, any) Future[any] {
	return completedFuture[any](fn.Err[any](s.failure()))
}
func (s *staleRef) Broadcast(context.Context, string, any) Future[any] {
	return completedFuture[any](fn.Err[any](s.failure()))
}
func (s *staleRef) BroadcastAndReceive(context.Context, string, any) Future[[]any] {
	return completedFuture[[]any](fn.Err[[]any](s.failure()))
}
func (s *staleRef) Metrics(context.Context) Future[map[string]any] {
	return completedFuture[map[string]any](fn.Err[map[string]any](s.failure()))
}
func (s *staleRef) CreateChild(context.Context, BehaviorFactory, ...ChildOption) (ActorRef, error) {
	return nil, s.failure()
}
func (s *staleRef) Destroy(context.Context) Future[any] {
	return completedFuture[any](fn.Ok[any](nil))
}
func (s *staleRef) GetParent() ActorRef { return nil }
func (s *staleRef) GetID() string       { return s.id }
func (s *staleRef) GetMode() Mode       { return ModeInMemory }
func (s *staleRef) GetLog() *Log        { return newDisabledLog(s.id) }

// newStaleRef returns an ActorRef whose message, metrics and CreateChild
// calls fail with err (or ErrStaleReference if err is nil).
func newStaleRef(id string, err error) ActorRef {
	return &staleRef{id: id, err: err}
}
