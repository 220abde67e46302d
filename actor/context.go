package actor

import "context"

// mergeContexts derives a context that ends as soon as either parent (the
// actor's own lifecycle context) or caller (the context the requester passed
// to Send/SendAndReceive) ends, whichever comes first. The returned cancel
// func must be called once the merged context is no longer needed, or the
// AfterFunc registration on caller leaks until caller itself ends.
func mergeContexts(parent, caller context.Context) (context.Context, context.CancelFunc) {
	if caller == nil {
		return parent, func() {}
	}

	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(caller, cancel)

	return ctx, func() {
		stop()
		cancel()
	}
}
