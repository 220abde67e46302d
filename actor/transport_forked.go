package actor

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
	"go.uber.org/atomic"
)

// Environment variables a binary built on this package uses to re-exec
// itself as a forked child host. The host application's main() must check
// IsChildHost and call RunChildHost before doing anything else when it is
// set; see cmd/actorkitd for the reference wiring.
const (
	envChildHost     = "ACTORKIT_CHILD_HOST"
	envChildBehavior = "ACTORKIT_CHILD_BEHAVIOR"
	envChildLogger   = "ACTORKIT_CHILD_LOGGER"
)

// IsChildHost reports whether this process was launched to host a forked
// actor rather than to run as a normal entry point.
func IsChildHost() bool {
	return os.Getenv(envChildHost) != ""
}

// RunChildHost is the forked worker's main loop: it reconstructs the
// behavior named by ACTORKIT_CHILD_BEHAVIOR, runs it as the root of a
// private ActorSystem, and services frames arriving on stdin until the
// parent disconnects or sends a shutdown frame.
func RunChildHost(ctx context.Context) error {
	behaviorName := os.Getenv(envChildBehavior)
	build, err := lookupBehavior(behaviorName)
	if err != nil {
		return err
	}

	sys, err := NewActorSystem(SystemConfig{
		Root:   build(),
		Logger: LoggerRef{Name: os.Getenv(envChildLogger)},
		Test:   true,
	})
	if err != nil {
		return fmt.Errorf("%w: constructing child host system: %v",
			ErrInvalidConfiguration, err)
	}
	defer sys.Shutdown(ctx)

	refs := newRefTable(sys.Root())

	dec := gob.NewDecoder(os.Stdin)
	enc := gob.NewEncoder(os.Stdout)
	var writeMu sync.Mutex
	write := func(f wireFrame) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = enc.Encode(f)
	}

	for {
		var f wireFrame
		if err := dec.Decode(&f); err != nil {
			return nil
		}
		if f.Kind == frameKindShutdown {
			return nil
		}
		handleFrame(ctx, refs, f, write)
	}
}

// forkedConn owns the subprocess and the stdio pipe carrying frames to and
// from it.
type forkedConn struct {
	*frameConn
	cmd *exec.Cmd
}

func dialForked(ctx context.Context, bf BehaviorFactory, loggerRef LoggerRef) (*forkedConn, error) {
	if bf.Name == "" {
		return nil, fmt.Errorf("%w: forked placement requires BehaviorFactory.Name "+
			"to be registered via RegisterBehavior so the worker process can "+
			"reconstruct it", ErrInvalidConfiguration)
	}

	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("%w: locating this binary to re-exec: %v",
			ErrInvalidConfiguration, err)
	}

	cmd := exec.CommandContext(ctx, exe, os.Args[1:]...)
	cmd.Env = append(os.Environ(),
		envChildHost+"=1",
		envChildBehavior+"="+bf.Name,
		envChildLogger+"="+loggerRef.Name,
	)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: starting forked worker: %v",
			ErrInvalidConfiguration, err)
	}

	enc := gob.NewEncoder(stdin)
	dec := gob.NewDecoder(stdout)

	fc := &forkedConn{cmd: cmd}
	fc.frameConn = newFrameConn(func(f wireFrame) error {
		return enc.Encode(f)
	})

	go fc.readLoop(func() (wireFrame, error) {
		var f wireFrame
		err := dec.Decode(&f)
		return f, err
	})
	go func() {
		_ = cmd.Wait()
		fc.closeWith(fmt.Errorf("%w: forked worker exited", ErrDeliveryFailure))
	}()

	return fc, nil
}

// beginDestroy satisfies supervised: tearing down the top-level forked
// actor shuts down the whole subprocess.
func (c *forkedConn) beginDestroy(ctx context.Context) Future[any] {
	_ = c.send(wireFrame{Kind: frameKindShutdown})
	select {
	case <-c.done():
	case <-ctx.Done():
		_ = c.cmd.Process.Kill()
	}
	return completedFuture[any](fn.Ok[any](nil))
}

// forkedEndpoint addresses one actor (the forked root, or one of its
// grandchildren) hosted inside a forkedConn's subprocess.
type forkedEndpoint struct {
	sys      *ActorSystem
	conn     *forkedConn
	targetID string
	planned  atomic.Bool
}

func (e *forkedEndpoint) mode() Mode { return ModeForked }

func (e *forkedEndpoint) send(_, _ context.Context, d Delivery) Future[any] {
	err := e.conn.send(wireFrame{
		Kind: frameKindTell, DeliveryID: d.ID, TargetID: e.targetID,
		Topic: d.Topic, Payload: d.Payload,
	})
	if err != nil {
		return completedFuture[any](fn.Err[any](fmt.Errorf("%w: %v", ErrDeliveryFailure, err)))
	}
	return completedFuture[any](fn.Ok[any](nil))
}

func (e *forkedEndpoint) ask(ctx, _ context.Context, d Delivery) Future[any] {
	p := NewPromise[any]()
	go func() {
		reply, err := e.conn.request(ctx, wireFrame{
			Kind: frameKindDeliver, DeliveryID: d.ID, TargetID: e.targetID,
			Topic: d.Topic, Payload: d.Payload,
		})
		if err != nil {
			p.Complete(fn.Err[any](err))
			return
		}
		p.Complete(fn.Ok(reply.Payload))
	}()
	return p.Future()
}

func (e *forkedEndpoint) broadcast(ctx context.Context, d Delivery) Future[any] {
	return e.send(ctx, ctx, d)
}

func (e *forkedEndpoint) broadcastAsk(ctx context.Context, d Delivery) Future[[]any] {
	val, err := e.ask(ctx, ctx, d).Await(ctx).Unpack()
	p := NewPromise[[]any]()
	if err != nil {
		p.Complete(fn.Err[[]any](err))
	} else {
		p.Complete(fn.Ok([]any{val}))
	}
	return p.Future()
}

func (e *forkedEndpoint) metrics(ctx context.Context) Future[map[string]any] {
	val, err := e.ask(ctx, ctx, Delivery{ID: newDeliveryID(), Topic: "metrics"}).Await(ctx).Unpack()
	p := NewPromise[map[string]any]()
	switch {
	case err != nil:
		p.Complete(fn.Err[map[string]any](err))
	default:
		if m, ok := val.(map[string]any); ok {
			p.Complete(fn.Ok(m))
		} else {
			p.Complete(fn.Ok(map[string]any{e.targetID: val}))
		}
	}
	return p.Future()
}

func (e *forkedEndpoint) destroy(ctx context.Context) Future[any] {
	e.planned.Store(true)

	if e.targetID == rootTargetID {
		return e.conn.beginDestroy(ctx)
	}

	_, _ = e.conn.request(ctx, wireFrame{
		Kind: frameKindDestroy, DeliveryID: newDeliveryID(), TargetID: e.targetID,
	})
	return completedFuture[any](fn.Ok[any](nil))
}

func (e *forkedEndpoint) done() <-chan struct{} { return e.conn.done() }

func (e *forkedEndpoint) plannedTeardown() bool { return e.planned.Load() }

// createChild asks the worker process to build a grandchild under
// e.targetID and wraps the reply in a ref addressed through the same conn.
func (e *forkedEndpoint) createChild(ctx context.Context, self *refImpl, bf BehaviorFactory, _ ...ChildOption) (ActorRef, error) {
	if bf.Name == "" {
		err := fmt.Errorf("%w: a child of a forked actor requires a registered "+
			"BehaviorFactory.Name", ErrInvalidConfiguration)
		return newStaleRef("", err), err
	}

	reply, err := e.conn.request(ctx, wireFrame{
		Kind: frameKindCreateChild, DeliveryID: newDeliveryID(),
		TargetID: e.targetID, BehaviorName: bf.Name,
	})
	if err != nil {
		return newStaleRef("", err), err
	}

	childEp := &forkedEndpoint{sys: e.sys, conn: e.conn, targetID: reply.ChildID}
	childRef := &refImpl{
		id:     self.id + "/" + reply.ChildID,
		parent: self,
		ep:     childEp,
		lg:     e.sys.loggers.HandleFor(reply.ChildID),
	}
	return childRef, nil
}

func (sys *ActorSystem) spawnForked(ctx context.Context, parent *kernel, id string, bf BehaviorFactory, _ childConfig) (ActorRef, error) {
	conn, err := dialForked(ctx, bf, sys.loggers.Ref())
	if err != nil {
		return newStaleRef(id, err), err
	}

	ref := &refImpl{
		id: id,
		ep: &forkedEndpoint{sys: sys, conn: conn, targetID: rootTargetID},
		lg: sys.loggers.HandleFor(id),
	}
	if parent != nil {
		ref.parent = parent.selfRef
		parent.addChild(conn)
	}

	return ref, nil
}
