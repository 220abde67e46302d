package actor

import (
	"context"
	"fmt"
	"sync"
)

// HandlerFunc processes a single delivery addressed to one topic. The
// returned value becomes the reply for an ask; it is ignored for a tell.
// A non-nil error surfaces to the caller as ErrHandlerFailure wrapping the
// original cause.
type HandlerFunc func(ctx context.Context, self ActorRef, payload any) (any, error)

// BehaviorDefinition is the capability set the kernel requires of a
// constructed behavior instance: a topic dispatch table built once up front.
// Everything else (Initialize, Destroy, Inject) is optional and detected via
// the Initializer, Destroyer, and dependency declarations on the factory.
type BehaviorDefinition interface {
	// Handlers returns the topic -> handler table for this behavior. It
	// is called once, immediately after construction.
	Handlers() map[string]HandlerFunc
}

// Initializer is an optional capability. When a behavior implements it, the
// kernel invokes Initialize after construction and before the actor
// transitions from Initializing to Ready. A returned error fails actor
// construction: the actor moves straight to Destroyed, its Destroy hook
// never runs, and the error propagates to the creator as ErrInitFailure.
type Initializer interface {
	Initialize(ctx context.Context, self ActorRef) error
}

// Destroyer is an optional capability invoked exactly once, after every
// descendant has reached Destroyed and before the actor itself is marked
// Destroyed. Errors are logged and swallowed so destruction order is never
// disrupted by a misbehaving hook.
type Destroyer interface {
	Destroy(ctx context.Context) error
}

// BehaviorFactory constructs a BehaviorDefinition for a new actor. Inject
// names resources that must be resolved from the enclosing ActorSystem's
// ResourceRegistry before construction; New receives the resolved instances
// as positional arguments in the same order. An empty Inject list means New
// is called with no arguments.
type BehaviorFactory struct {
	// Inject lists resource names resolved from the system's
	// ResourceRegistry prior to construction.
	Inject []string

	// New builds the behavior given the resolved resources.
	New func(resources ...any) BehaviorDefinition

	// Name identifies this factory in the process-wide behavior registry
	// (see RegisterBehavior). It is required for WithMode(ModeForked) or
	// WithMode(ModeRemote): the factory's closures cannot themselves
	// cross a process boundary, so the worker process reconstructs the
	// behavior by looking this name up independently.
	Name string
}

// behaviorBuilders lets a forked or remote worker process reconstruct a
// BehaviorFactory it was only given the name of. Register every factory a
// cross-process placement might need from an init() in the package that
// defines it.
var (
	behaviorMu       sync.RWMutex
	behaviorBuilders = map[string]func() BehaviorFactory{}
)

// RegisterBehavior makes a BehaviorFactory resolvable by name for use with
// WithMode(ModeForked) or WithMode(ModeRemote).
func RegisterBehavior(name string, build func() BehaviorFactory) {
	behaviorMu.Lock()
	defer behaviorMu.Unlock()
	behaviorBuilders[name] = build
}

func lookupBehavior(name string) (func() BehaviorFactory, error) {
	behaviorMu.RLock()
	build, ok := behaviorBuilders[name]
	behaviorMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no behavior registered under name %q",
			ErrInvalidConfiguration, name)
	}
	return build, nil
}

// Simple wraps an already-constructed behavior with no resource
// dependencies, for the common case where a factory function is overkill.
func Simple(def BehaviorDefinition) BehaviorFactory {
	return BehaviorFactory{
		New: func(...any) BehaviorDefinition { return def },
	}
}

// Empty is the default root behavior used when a system is constructed
// without an explicit root: it declares no handlers and no lifecycle hooks.
func Empty() BehaviorFactory {
	return Simple(emptyBehavior{})
}

type emptyBehavior struct{}

func (emptyBehavior) Handlers() map[string]HandlerFunc { return nil }
