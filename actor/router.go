package actor

import (
	"context"
	"fmt"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// routerReplica tracks one live slot behind a router: its ref, the raw
// endpoint backing that ref (for crash monitoring), and whether the slot is
// currently occupied.
type routerReplica struct {
	ref   ActorRef
	ep    endpoint
	alive bool
}

// routerEndpoint is the endpoint backing a clustered ActorRef: it owns N
// replicas, asks a BalancerPlugin which one should handle each delivery, and
// optionally respawns a replica that crashes.
type routerEndpoint struct {
	system *ActorSystem
	id     string
	parent *kernel
	bf     BehaviorFactory

	replicaMode    Mode
	replicaHost    string
	replicaMailbox int
	onCrash        CrashPolicy
	balancer       BalancerPlugin

	ref *refImpl

	mu        sync.Mutex
	replicas  []*routerReplica
	destroyed bool

	// notifyMu serializes ClusterChanged calls on the balancer.
	notifyMu sync.Mutex
}

func (sys *ActorSystem) createRouter(ctx context.Context, parent *kernel, id string, bf BehaviorFactory, cfg childConfig) (ActorRef, error) {
	bal, err := sys.balancer(cfg.balancerName)
	if err != nil {
		return newStaleRef(id, err), err
	}

	n := cfg.clusterSize
	if n < 1 {
		n = 1
	}

	r := &routerEndpoint{
		system:         sys,
		id:             id,
		parent:         parent,
		bf:             bf,
		replicaMode:    cfg.mode,
		replicaHost:    cfg.host,
		replicaMailbox: cfg.mailboxSize,
		onCrash:        cfg.onCrash,
		balancer:       bal,
		replicas:       make([]*routerReplica, n),
	}

	for i := 0; i < n; i++ {
		if err := r.spawnReplica(ctx, i); err != nil {
			r.teardownReplicas(ctx)
			return newStaleRef(id, err), err
		}
	}
	r.notifyBalancer()

	ref := &refImpl{id: id, ep: r, lg: sys.loggers.HandleFor(id)}
	if parent != nil {
		ref.parent = parent.selfRef
	}
	r.ref = ref

	if parent != nil {
		parent.addChild(r)
	}

	if !sys.config.Test {
		for i := range r.replicas {
			go r.monitor(i)
		}
	}

	return ref, nil
}

// spawnReplica creates (or re-creates, after a crash) the replica at index.
func (r *routerEndpoint) spawnReplica(ctx context.Context, index int) error {
	childID := fmt.Sprintf("%s/replica%d", r.id, index)
	r.mu.Lock()
	respawn := r.replicas[index] != nil
	r.mu.Unlock()
	if respawn {
		// A replacement gets a fresh id so the crashed replica's id is
		// never routable again.
		childID = r.system.nextID(childID)
	}
	cfg := childConfig{
		mode:        r.replicaMode,
		host:        r.replicaHost,
		mailboxSize: r.replicaMailbox,
	}

	var (
		ref ActorRef
		err error
	)
	switch r.replicaMode {
	case ModeForked:
		ref, err = r.system.spawnForked(ctx, r.parent, childID, r.bf, cfg)
	case ModeRemote:
		ref, err = r.system.spawnRemote(ctx, r.parent, childID, r.bf, cfg)
	default:
		ref, err = r.system.spawnInMemory(ctx, r.parent, childID, r.bf, cfg)
	}
	if err != nil {
		return err
	}

	impl, ok := ref.(*refImpl)
	if !ok {
		return fmt.Errorf("%w: replica produced an unexpected ref type",
			ErrInvalidConfiguration)
	}

	r.mu.Lock()
	r.replicas[index] = &routerReplica{ref: ref, ep: impl.ep, alive: true}
	r.mu.Unlock()

	return nil
}

// monitor watches replica index for an unplanned termination and, if the
// router's crash policy calls for it, respawns it and refreshes the
// balancer's view of the cluster.
func (r *routerEndpoint) monitor(index int) {
	r.mu.Lock()
	rep := r.replicas[index]
	r.mu.Unlock()
	if rep == nil {
		return
	}

	<-rep.ep.done()

	r.mu.Lock()
	if r.destroyed || rep.ep.plannedTeardown() {
		r.mu.Unlock()
		return
	}
	r.replicas[index].alive = false
	r.mu.Unlock()
	r.notifyBalancer()

	if r.onCrash != OnCrashRespawn {
		return
	}

	ctx := r.system.rootCtx
	if err := r.spawnReplica(ctx, index); err != nil {
		log.ErrorS(ctx, "router failed to respawn crashed replica",
			"router", r.id, "replica", index, "err", err)
		return
	}
	r.notifyBalancer()

	go r.monitor(index)
}

func (r *routerEndpoint) liveReplicaIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.replicas))
	for _, rep := range r.replicas {
		if rep != nil && rep.alive {
			ids = append(ids, rep.ref.GetID())
		}
	}
	return ids
}

func (r *routerEndpoint) notifyBalancer() {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	r.balancer.ClusterChanged(r.liveReplicaIDs())
}

func (r *routerEndpoint) replicaByID(id string) (*routerReplica, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rep := range r.replicas {
		if rep != nil && rep.alive && rep.ref.GetID() == id {
			return rep, true
		}
	}
	return nil, false
}

func (r *routerEndpoint) liveReplicas() []*routerReplica {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*routerReplica, 0, len(r.replicas))
	for _, rep := range r.replicas {
		if rep != nil && rep.alive {
			out = append(out, rep)
		}
	}
	return out
}

func (r *routerEndpoint) mode() Mode { return r.replicaMode }

func (r *routerEndpoint) pick(topic string, payload any) (*routerReplica, error) {
	id, ok := r.balancer.Forward(topic, payload)
	if !ok {
		return nil, ErrNoRoutableChild
	}
	rep, ok := r.replicaByID(id)
	if !ok {
		return nil, ErrNoRoutableChild
	}
	return rep, nil
}

func (r *routerEndpoint) send(ctx, callerCtx context.Context, d Delivery) Future[any] {
	rep, err := r.pick(d.Topic, d.Payload)
	if err != nil {
		return completedFuture[any](fn.Err[any](err))
	}
	return rep.ep.send(ctx, callerCtx, d)
}

func (r *routerEndpoint) ask(ctx, callerCtx context.Context, d Delivery) Future[any] {
	rep, err := r.pick(d.Topic, d.Payload)
	if err != nil {
		return completedFuture[any](fn.Err[any](err))
	}
	return rep.ep.ask(ctx, callerCtx, d)
}

func (r *routerEndpoint) broadcast(ctx context.Context, d Delivery) Future[any] {
	replicas := r.liveReplicas()

	var wg sync.WaitGroup
	for _, rep := range replicas {
		wg.Add(1)
		go func(rep *routerReplica) {
			defer wg.Done()
			rep.ep.send(ctx, ctx, d).Await(ctx)
		}(rep)
	}
	wg.Wait()

	return completedFuture[any](fn.Ok[any](nil))
}

func (r *routerEndpoint) broadcastAsk(ctx context.Context, d Delivery) Future[[]any] {
	replicas := r.liveReplicas()

	results := make([]any, len(replicas))
	errs := make([]error, len(replicas))

	var wg sync.WaitGroup
	for i, rep := range replicas {
		wg.Add(1)
		go func(i int, rep *routerReplica) {
			defer wg.Done()
			val, err := rep.ep.ask(ctx, ctx, d).Await(ctx).Unpack()
			results[i] = val
			errs[i] = err
		}(i, rep)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return completedFuture[[]any](fn.Err[[]any](err))
		}
	}
	return completedFuture[[]any](fn.Ok(results))
}

// metrics gathers each live replica's own metrics under its id, plus a
// "summary" entry summing every numeric field across replicas.
func (r *routerEndpoint) metrics(ctx context.Context) Future[map[string]any] {
	replicas := r.liveReplicas()

	perReplica := make([]map[string]any, len(replicas))
	var wg sync.WaitGroup
	for i, rep := range replicas {
		wg.Add(1)
		go func(i int, rep *routerReplica) {
			defer wg.Done()
			m, err := rep.ep.metrics(ctx).Await(ctx).Unpack()
			if err != nil {
				// A replica whose behavior never registered a "metrics"
				// handler still counts towards clusterSize+1 entries; it
				// just contributes an empty record.
				m = map[string]any{}
			}
			perReplica[i] = m
		}(i, rep)
	}
	wg.Wait()

	out := make(map[string]any, len(replicas)+1)
	summary := make(map[string]float64)
	for i, rep := range replicas {
		m := perReplica[i]
		out[rep.ref.GetID()] = m
		for k, v := range m {
			if n, ok := toFloat64(v); ok {
				summary[k] += n
			}
		}
	}
	summarized := make(map[string]any, len(summary))
	for k, v := range summary {
		summarized[k] = v
	}
	out["summary"] = summarized

	return completedFuture[map[string]any](fn.Ok(out))
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func (r *routerEndpoint) teardownReplicas(ctx context.Context) {
	for _, rep := range r.liveReplicas() {
		rep.ref.Destroy(ctx).Await(ctx)
	}
}

func (r *routerEndpoint) destroy(ctx context.Context) Future[any] {
	return r.beginDestroy(ctx)
}

// beginDestroy satisfies the supervised interface so a router can sit inside
// its parent kernel's children list like any other actor.
func (r *routerEndpoint) beginDestroy(ctx context.Context) Future[any] {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return completedFuture[any](fn.Ok[any](nil))
	}
	r.destroyed = true
	r.mu.Unlock()

	r.teardownReplicas(ctx)

	if r.parent != nil {
		r.parent.removeChild(r)
	}

	return completedFuture[any](fn.Ok[any](nil))
}

func (r *routerEndpoint) done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (r *routerEndpoint) plannedTeardown() bool { return true }
