package actor

import (
	"context"
	"fmt"
)

// createRemoteChild handles CreateChild for every endpoint kind that does
// not host its target directly in this process. A router's children belong
// to its replicas, not to the router itself, so that case is rejected with
// a configuration error rather than silently picking a replica.
func createRemoteChild(ctx context.Context, r *refImpl, bf BehaviorFactory, opts ...ChildOption) (ActorRef, error) {
	switch ep := r.ep.(type) {
	case *forkedEndpoint:
		return ep.createChild(ctx, r, bf, opts...)

	case *remoteEndpoint:
		return ep.createChild(ctx, r, bf, opts...)

	case *routerEndpoint:
		err := fmt.Errorf("%w: cannot create a child directly under a router; "+
			"create it under one of the router's replicas instead",
			ErrInvalidConfiguration)
		return nil, err

	default:
		err := fmt.Errorf("%w: unsupported endpoint for CreateChild",
			ErrInvalidConfiguration)
		return nil, err
	}
}
