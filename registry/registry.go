// Package registry implements the ResourceRegistry contract the actor
// package's ActorSystem uses for dependency injection: named singletons,
// resolved by BehaviorFactory.Inject, torn down in the reverse of their
// registration order.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/skeinforge/actorkit/actor"
)

// Resource is the optional teardown capability a registered value may
// implement. Values that don't implement it (plain config structs, for
// instance) are simply left alone by DestroyAll.
type Resource interface {
	Close() error
}

// Registry is a concrete actor.ResourceRegistry: a name-keyed singleton
// store with ordered teardown.
type Registry struct {
	mu    sync.Mutex
	order []string
	items map[string]any
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{items: make(map[string]any)}
}

// Register adds resource under name. Registering the same name twice fails
// with actor.ErrDuplicateResource.
func (r *Registry) Register(name string, resource any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[name]; exists {
		return fmt.Errorf("%w: %q", actor.ErrDuplicateResource, name)
	}

	r.items[name] = resource
	r.order = append(r.order, name)

	return nil
}

// Resolve implements actor.ResourceRegistry.
func (r *Registry) Resolve(name string) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.items[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", actor.ErrUnknownResource, name)
	}
	return v, nil
}

// DestroyAll closes every registered Resource, in the reverse of the order
// they were registered in, collecting (rather than stopping at) the first
// failure.
func (r *Registry) DestroyAll() error {
	r.mu.Lock()
	order := append([]string(nil), r.order...)
	items := make(map[string]any, len(r.items))
	for k, v := range r.items {
		items[k] = v
	}
	r.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		closer, ok := items[name].(Resource)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("destroying resource %q: %w", name, err))
		}
	}

	return errors.Join(errs...)
}
