package actor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// shardBalancer routes deterministically by payload modulo the replica
// count, letting a test assert that a custom BalancerPlugin's own forwarding
// logic -- not just the built-ins -- drives delivery.
type shardBalancer struct {
	mu       sync.Mutex
	replicas []string
}

func (b *shardBalancer) ClusterChanged(replicas []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replicas = append([]string(nil), replicas...)
}

func (b *shardBalancer) Forward(topic string, payload any) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.replicas) == 0 {
		return "", false
	}
	shard := payload.(int) % len(b.replicas)
	return b.replicas[shard], true
}

// firstReplicaBalancer always forwards to whatever the first live replica
// is, and counts how many times the live set changed under it.
type firstReplicaBalancer struct {
	mu       sync.Mutex
	replicas []string
	changes  int
}

func (b *firstReplicaBalancer) ClusterChanged(replicas []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replicas = append([]string(nil), replicas...)
	b.changes++
}

func (b *firstReplicaBalancer) Forward(string, any) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.replicas) == 0 {
		return "", false
	}
	return b.replicas[0], true
}

func recordingReplicaFactory(received *recorder) BehaviorFactory {
	return simpleFactory(func() *funcBehavior {
		return &funcBehavior{
			handlers: map[string]HandlerFunc{
				"mark": func(ctx context.Context, self ActorRef, payload any) (any, error) {
					received.add(self.GetID())
					return nil, nil
				},
				"getReceived": func(ctx context.Context, self ActorRef, payload any) (any, error) {
					return self.GetID(), nil
				},
			},
		}
	})
}

// TestRouterCustomBalancerShardsDeterministically exercises a user-supplied
// BalancerPlugin end to end: six deliveries over three shards all succeed
// through the custom balancer, and BroadcastAndReceive gets a reply from
// three distinct replicas.
func TestRouterCustomBalancerShardsDeterministically(t *testing.T) {
	t.Parallel()

	bal := &shardBalancer{}
	sys, err := NewActorSystem(SystemConfig{
		Balancers: map[string]BalancerPlugin{"shard": bal},
	})
	require.NoError(t, err)
	defer sys.Shutdown(context.Background())

	received := newRecorder()
	router, err := sys.Root().CreateChild(context.Background(),
		recordingReplicaFactory(received),
		WithClusterSize(3), WithBalancer("shard"),
	)
	require.NoError(t, err)

	for shard := 0; shard < 6; shard++ {
		_, err := router.SendAndReceive(context.Background(), "mark", shard).Await(context.Background()).Unpack()
		require.NoError(t, err)
	}
	require.Len(t, received.snapshot(), 6)

	replies, err := router.BroadcastAndReceive(context.Background(), "getReceived", nil).Await(context.Background()).Unpack()
	require.NoError(t, err)
	require.Len(t, replies, 3)

	seen := map[string]bool{}
	for _, r := range replies {
		seen[r.(string)] = true
	}
	require.Len(t, seen, 3)
}

// TestRouterEmptyClusterForwardFails asserts that both an empty replica set
// and an unknown replica id surface the same ErrNoRoutableChild.
func TestRouterEmptyClusterForwardFails(t *testing.T) {
	t.Parallel()

	emptyBal := &shardBalancer{} // emptied by hand after placement below
	sys, err := NewActorSystem(SystemConfig{
		Balancers: map[string]BalancerPlugin{"always-empty": emptyBal},
	})
	require.NoError(t, err)
	defer sys.Shutdown(context.Background())

	router, err := sys.Root().CreateChild(context.Background(),
		simpleFactory(func() *funcBehavior {
			return &funcBehavior{handlers: map[string]HandlerFunc{}}
		}),
		WithClusterSize(1), WithBalancer("always-empty"),
	)
	require.NoError(t, err)

	// Force the balancer back into an empty state despite the router's
	// initial placement having notified it of one live replica.
	emptyBal.mu.Lock()
	emptyBal.replicas = nil
	emptyBal.mu.Unlock()

	_, err = router.SendAndReceive(context.Background(), "anything", nil).Await(context.Background()).Unpack()
	require.ErrorIs(t, err, ErrNoRoutableChild)

	// A balancer that names a replica id the router doesn't recognize
	// produces the identical error.
	unknownBal := &fixedIDBalancer{id: "no-such-replica"}
	sys2, err := NewActorSystem(SystemConfig{
		Balancers: map[string]BalancerPlugin{"unknown": unknownBal},
	})
	require.NoError(t, err)
	defer sys2.Shutdown(context.Background())

	router2, err := sys2.Root().CreateChild(context.Background(),
		simpleFactory(func() *funcBehavior {
			return &funcBehavior{handlers: map[string]HandlerFunc{}}
		}),
		WithClusterSize(1), WithBalancer("unknown"),
	)
	require.NoError(t, err)

	_, err = router2.SendAndReceive(context.Background(), "anything", nil).Await(context.Background()).Unpack()
	require.ErrorIs(t, err, ErrNoRoutableChild)
}

type fixedIDBalancer struct{ id string }

func (b *fixedIDBalancer) ClusterChanged([]string)            {}
func (b *fixedIDBalancer) Forward(string, any) (string, bool) { return b.id, true }

// TestRouterMetricsSummary asserts Metrics() returns one entry per live
// replica plus a field-wise-summed "summary" entry.
func TestRouterMetricsSummary(t *testing.T) {
	t.Parallel()

	sys, err := NewActorSystem(SystemConfig{})
	require.NoError(t, err)
	defer sys.Shutdown(context.Background())

	router, err := sys.Root().CreateChild(context.Background(),
		simpleFactory(func() *funcBehavior {
			return &funcBehavior{
				handlers: map[string]HandlerFunc{
					"metrics": func(ctx context.Context, self ActorRef, payload any) (any, error) {
						return map[string]any{"handled": 1}, nil
					},
				},
			}
		}),
		WithClusterSize(3),
	)
	require.NoError(t, err)

	m, err := router.Metrics(context.Background()).Await(context.Background()).Unpack()
	require.NoError(t, err)

	require.Len(t, m, 4) // 3 replicas + summary
	summary, ok := m["summary"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, float64(3), summary["handled"])
}

// TestRouterMetricsSummaryMixedHandlers asserts that a replica whose behavior
// never registered a "metrics" handler still contributes an entry (an empty
// record) rather than being dropped from the result, so Metrics() always
// returns clusterSize+1 entries regardless of which replicas opted in.
func TestRouterMetricsSummaryMixedHandlers(t *testing.T) {
	t.Parallel()

	sys, err := NewActorSystem(SystemConfig{})
	require.NoError(t, err)
	defer sys.Shutdown(context.Background())

	var nextIndex int32
	router, err := sys.Root().CreateChild(context.Background(),
		simpleFactory(func() *funcBehavior {
			idx := atomic.AddInt32(&nextIndex, 1) - 1
			if idx%2 == 0 {
				// Only even-indexed replicas expose metrics.
				return &funcBehavior{
					handlers: map[string]HandlerFunc{
						"metrics": func(ctx context.Context, self ActorRef, payload any) (any, error) {
							return map[string]any{"handled": 1}, nil
						},
					},
				}
			}
			return &funcBehavior{handlers: map[string]HandlerFunc{}}
		}),
		WithClusterSize(3),
	)
	require.NoError(t, err)

	m, err := router.Metrics(context.Background()).Await(context.Background()).Unpack()
	require.NoError(t, err)

	require.Len(t, m, 4) // 3 replicas + summary, even though one has no handler
	summary, ok := m["summary"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, float64(2), summary["handled"])
}

// TestRouterCrashRespawn simulates an in-memory replica crashing (its
// context ending without a deliberate Destroy) and asserts the router
// notices, respawns a replacement, and the balancer observes each step.
func TestRouterCrashRespawn(t *testing.T) {
	t.Parallel()

	bal := &firstReplicaBalancer{}
	sys, err := NewActorSystem(SystemConfig{
		Balancers: map[string]BalancerPlugin{"first": bal},
		Test:      true, // disable the automatic monitor goroutines
	})
	require.NoError(t, err)
	defer sys.Shutdown(context.Background())

	routerRef, err := sys.Root().CreateChild(context.Background(),
		simpleFactory(func() *funcBehavior {
			return &funcBehavior{handlers: map[string]HandlerFunc{
				"ping": func(ctx context.Context, self ActorRef, payload any) (any, error) {
					return "pong", nil
				},
			}}
		}),
		WithClusterSize(3), WithBalancer("first"), WithOnCrash(OnCrashRespawn),
	)
	require.NoError(t, err)
	require.Equal(t, 1, bal.changes)

	rEp := routerRef.(*refImpl).ep.(*routerEndpoint)

	rEp.mu.Lock()
	original := rEp.replicas[0]
	rEp.mu.Unlock()

	memEp, ok := original.ep.(*inMemoryEndpoint)
	require.True(t, ok)

	monitorDone := make(chan struct{})
	go func() {
		rEp.monitor(0)
		close(monitorDone)
	}()

	// Simulate an unplanned crash: cancel the kernel's context directly,
	// without going through beginDestroy, so plannedTeardown() stays
	// false -- exactly what a real transport disconnect looks like.
	memEp.kernel.cancel()

	select {
	case <-monitorDone:
	case <-time.After(5 * time.Second):
		t.Fatal("router did not observe the crash and respawn in time")
	}

	require.Equal(t, 3, bal.changes) // initial + crash detected + respawned

	rEp.mu.Lock()
	respawned := rEp.replicas[0]
	rEp.mu.Unlock()

	require.True(t, respawned.alive)
	newMemEp, ok := respawned.ep.(*inMemoryEndpoint)
	require.True(t, ok)
	require.NotSame(t, memEp.kernel, newMemEp.kernel)

	_, err = respawned.ref.SendAndReceive(context.Background(), "ping", nil).Await(context.Background()).Unpack()
	require.NoError(t, err)
}
