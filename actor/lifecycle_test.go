package actor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeCloser is a minimal registry.Resource stand-in, local to this package's
// tests to avoid an import cycle back through the registry package.
type fakeCloser struct {
	rec *recorder
	tag string
}

func (f *fakeCloser) Close() error {
	f.rec.add(f.tag)
	return nil
}

// fakeRegistry is a trivial single-entry actor.ResourceRegistry.
type fakeRegistry struct {
	name string
	val  any
}

func (f *fakeRegistry) Resolve(name string) (any, error) {
	if name != f.name {
		return nil, ErrUnknownResource
	}
	return f.val, nil
}

// TestDestructionOrder asserts the post-order guarantee: every descendant of
// an actor reaches Destroyed, in depth-first order, before that actor's own
// Destroy hook runs, and a resource torn down afterwards observes all of it.
func TestDestructionOrder(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	resource := &fakeCloser{rec: rec, tag: "resource"}
	resources := &fakeRegistry{name: "MyResource", val: resource}

	sys, err := NewActorSystem(SystemConfig{
		Resources: resources,
		Root: BehaviorFactory{
			Inject: []string{"MyResource"},
			New: func(res ...any) BehaviorDefinition {
				require.Len(t, res, 1)
				require.Same(t, resource, res[0])
				return &funcBehavior{
					handlers:  map[string]HandlerFunc{},
					destroyFn: func(context.Context) error { rec.add("root"); return nil },
				}
			},
		},
	})
	require.NoError(t, err)

	root := sys.Root()

	child, err := root.CreateChild(context.Background(), simpleFactory(func() *funcBehavior {
		return &funcBehavior{
			handlers: map[string]HandlerFunc{},
			initFn: func(ctx context.Context, self ActorRef) error {
				_, err := self.CreateChild(ctx, simpleFactory(func() *funcBehavior {
					return &funcBehavior{
						handlers:  map[string]HandlerFunc{},
						destroyFn: func(context.Context) error { rec.add("grandchild"); return nil },
					}
				}))
				return err
			},
			destroyFn: func(context.Context) error { rec.add("child"); return nil },
		}
	}))
	require.NoError(t, err)
	require.NotEmpty(t, child.GetID())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sys.Shutdown(ctx))

	// The registry's own teardown is a separate, explicit call a host
	// application makes after Shutdown returns; reverse-order multi-resource
	// teardown is covered in registry_test.go.
	require.NoError(t, resource.Close())

	require.Equal(t, []string{"grandchild", "child", "root", "resource"}, rec.snapshot())
}

// TestMailboxIsStrictlySerial sends a burst of concurrent asks to one actor
// and checks that every delivery was handled and that its handler only ever
// observed one delivery in flight at a time.
func TestMailboxIsStrictlySerial(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	var inFlight int32
	var maxObserved int32

	sys, err := NewActorSystem(SystemConfig{
		Root: simpleFactory(func() *funcBehavior {
			return &funcBehavior{
				handlers: map[string]HandlerFunc{
					"tag": func(ctx context.Context, self ActorRef, payload any) (any, error) {
						n := atomic.AddInt32(&inFlight, 1)
						for {
							old := atomic.LoadInt32(&maxObserved)
							if n <= old || atomic.CompareAndSwapInt32(&maxObserved, old, n) {
								break
							}
						}
						rec.add(payload.(string))
						atomic.AddInt32(&inFlight, -1)
						return nil, nil
					},
				},
			}
		}),
	})
	require.NoError(t, err)
	defer sys.Shutdown(context.Background())

	root := sys.Root()

	const n = 50
	futures := make([]Future[any], n)
	for i := 0; i < n; i++ {
		futures[i] = root.SendAndReceive(context.Background(), "tag", string(rune('a'+i%26)))
	}
	for _, f := range futures {
		_, err := f.Await(context.Background()).Unpack()
		require.NoError(t, err)
	}

	require.Len(t, rec.snapshot(), n)
	require.Equal(t, int32(1), atomic.LoadInt32(&maxObserved))
}

// TestStaleReferenceAfterDestroy asserts that a SendAndReceive against a ref
// whose target has already reached Destroyed fails with ErrStaleReference.
func TestStaleReferenceAfterDestroy(t *testing.T) {
	t.Parallel()

	sys, err := NewActorSystem(SystemConfig{})
	require.NoError(t, err)
	defer sys.Shutdown(context.Background())

	root := sys.Root()

	child, err := root.CreateChild(context.Background(), simpleFactory(func() *funcBehavior {
		return &funcBehavior{handlers: map[string]HandlerFunc{
			"echo": func(ctx context.Context, self ActorRef, payload any) (any, error) {
				return payload, nil
			},
		}}
	}))
	require.NoError(t, err)

	_, err = child.Destroy(context.Background()).Await(context.Background()).Unpack()
	require.NoError(t, err)

	_, err = child.SendAndReceive(context.Background(), "echo", "hi").Await(context.Background()).Unpack()
	require.ErrorIs(t, err, ErrStaleReference)
}
