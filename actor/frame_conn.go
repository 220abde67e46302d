package actor

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// frameConn correlates outbound requests with their eventual reply by
// DeliveryID, independent of whatever byte pipe actually carries the
// frames (a subprocess's stdio, or a grpc stream). It is the shared half of
// both the forked and remote transports.
type frameConn struct {
	send func(wireFrame) error

	mu      sync.Mutex
	pending map[string]chan wireFrame

	closeOnce sync.Once
	closed    chan struct{}
}

func newFrameConn(send func(wireFrame) error) *frameConn {
	return &frameConn{
		send:    send,
		pending: make(map[string]chan wireFrame),
		closed:  make(chan struct{}),
	}
}

// readLoop must run in its own goroutine for the lifetime of the
// connection; recv should block until a frame arrives or the underlying
// transport ends, at which point it returns a non-nil error.
func (c *frameConn) readLoop(recv func() (wireFrame, error)) {
	for {
		f, err := recv()
		if err != nil {
			c.closeWith(fmt.Errorf("%w: %v", ErrDeliveryFailure, err))
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[f.DeliveryID]
		if ok {
			delete(c.pending, f.DeliveryID)
		}
		c.mu.Unlock()

		if ok {
			ch <- f
		}
	}
}

func (c *frameConn) closeWith(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		pending := c.pending
		c.pending = nil
		c.mu.Unlock()

		for id, ch := range pending {
			ch <- wireFrame{DeliveryID: id, Err: err.Error()}
		}

		close(c.closed)
	})
}

// done closes once the connection has ended (process exited, stream closed).
func (c *frameConn) done() <-chan struct{} { return c.closed }

// request sends f and blocks for the correspondingly DeliveryID'd reply.
func (c *frameConn) request(ctx context.Context, f wireFrame) (wireFrame, error) {
	ch := make(chan wireFrame, 1)

	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return wireFrame{}, ErrDeliveryFailure
	}
	c.pending[f.DeliveryID] = ch
	c.mu.Unlock()

	if err := c.send(f); err != nil {
		c.mu.Lock()
		delete(c.pending, f.DeliveryID)
		c.mu.Unlock()
		return wireFrame{}, fmt.Errorf("%w: %v", ErrDeliveryFailure, err)
	}

	select {
	case reply := <-ch:
		if reply.Err != "" {
			// The worker reports errors as text; restore the kernel's own
			// error kinds so callers can errors.Is against them.
			for _, kind := range []error{ErrHandlerFailure, ErrStaleReference} {
				if strings.HasPrefix(reply.Err, kind.Error()) {
					return reply, fmt.Errorf("%w%s", kind,
						strings.TrimPrefix(reply.Err, kind.Error()))
				}
			}
			return reply, fmt.Errorf("%w: %s", ErrDeliveryFailure, reply.Err)
		}
		return reply, nil

	case <-ctx.Done():
		return wireFrame{}, ctx.Err()

	case <-c.closed:
		return wireFrame{}, ErrDeliveryFailure
	}
}
