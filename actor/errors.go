package actor

import "errors"

// Error kinds surfaced across the actor kernel's public API. Each wraps the
// caller-supplied context (actor id, topic, resource name, ...) via fmt.Errorf
// with %w so callers can still errors.Is against these sentinels.
var (
	// ErrInvalidConfiguration is returned at system or logger construction
	// time when a supplied implementation fails its capability check.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUnknownResource is returned by ResourceRegistry.Resolve when no
	// instance has been registered under the requested name.
	ErrUnknownResource = errors.New("unknown resource")

	// ErrDuplicateResource is returned by ResourceRegistry.Register when
	// the name is already taken.
	ErrDuplicateResource = errors.New("duplicate resource")

	// ErrInjectionFailure is returned when a behavior factory declares a
	// resource dependency that cannot be resolved.
	ErrInjectionFailure = errors.New("injection failure")

	// ErrInitFailure is returned to the creator of an actor whose
	// Initialize hook returned an error.
	ErrInitFailure = errors.New("init failure")

	// ErrStaleReference is returned by sends to an actor that has already
	// reached the Destroyed state.
	ErrStaleReference = errors.New("stale reference")

	// ErrDeliveryFailure is returned when a message was accepted into a
	// mailbox but could not be processed (actor destroyed mid-flight,
	// replica crash, transport loss).
	ErrDeliveryFailure = errors.New("delivery failure")

	// ErrNoRoutableChild is returned by a router when its balancer could
	// not select a live replica for a delivery.
	ErrNoRoutableChild = errors.New("no routable child")

	// ErrHandlerFailure wraps an error or panic raised by a user-supplied
	// topic handler during SendAndReceive.
	ErrHandlerFailure = errors.New("handler failure")
)
