package actor

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"
	"go.uber.org/atomic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
)

// gobCodec carries a wireFrame over grpc without a protoc-generated message
// type: grpc treats the payload as an opaque blob and this codec is simply
// the gob encoding of whatever value it is handed, the same representation
// the forked transport pipes over stdio.
type gobCodec struct{}

func (gobCodec) Name() string { return "gob" }

func (gobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func init() {
	encoding.RegisterCodec(gobCodec{})
}

// remoteServiceDesc is a hand-written grpc.ServiceDesc for a single
// bidirectional-streaming method. It plays the role a protoc-generated
// *_grpc.pb.go file would normally fill; this package has no .proto source,
// so the descriptor and its dispatch are authored directly against
// google.golang.org/grpc's public API.
var remoteServiceDesc = grpc.ServiceDesc{
	ServiceName: "actorkit.RemoteTransport",
	HandlerType: (*remoteTransportServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Exchange",
			Handler:       remoteExchangeHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "actorkit/remote_transport.proto",
}

type remoteTransportServer interface {
	Exchange(grpc.ServerStream) error
}

func remoteExchangeHandler(srv any, stream grpc.ServerStream) error {
	return srv.(remoteTransportServer).Exchange(stream)
}

// remoteServer is the grpc.ServiceDesc's handler: one ActorSystem fronting
// requests from any number of peer processes over the Exchange stream.
type remoteServer struct {
	sys  *ActorSystem
	refs *refTable
}

// ListenRemote registers the remote transport service on srv against sys's
// root actor and every actor later created under it. Call srv.Serve(lis)
// separately; this only wires the service descriptor.
func ListenRemote(sys *ActorSystem, srv *grpc.Server) {
	srv.RegisterService(&remoteServiceDesc, &remoteServer{
		sys:  sys,
		refs: newRefTable(sys.Root()),
	})
}

func (s *remoteServer) Exchange(stream grpc.ServerStream) error {
	ctx := stream.Context()

	for {
		var f wireFrame
		if err := stream.RecvMsg(&f); err != nil {
			return nil
		}
		if f.Kind == frameKindShutdown {
			return nil
		}
		handleFrame(ctx, s.refs, f, func(reply wireFrame) {
			_ = stream.SendMsg(&reply)
		})
	}
}

// remoteConn owns the grpc client connection and Exchange stream to one peer
// ActorSystem.
type remoteConn struct {
	*frameConn
	cc     *grpc.ClientConn
	stream grpc.ClientStream
}

// dialRemote opens a grpc connection to host and establishes the Exchange
// stream new remote children ride on.
func dialRemote(ctx context.Context, host string) (*remoteConn, error) {
	cc, err := grpc.NewClient(host,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(gobCodec{}.Name())),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing remote host %q: %v",
			ErrInvalidConfiguration, host, err)
	}

	stream, err := cc.NewStream(ctx, &remoteServiceDesc.Streams[0],
		"/"+remoteServiceDesc.ServiceName+"/Exchange")
	if err != nil {
		_ = cc.Close()
		return nil, fmt.Errorf("%w: opening remote stream to %q: %v",
			ErrInvalidConfiguration, host, err)
	}

	rc := &remoteConn{cc: cc, stream: stream}
	rc.frameConn = newFrameConn(func(f wireFrame) error {
		return stream.SendMsg(&f)
	})

	go rc.readLoop(func() (wireFrame, error) {
		var f wireFrame
		err := stream.RecvMsg(&f)
		return f, err
	})

	return rc, nil
}

func (c *remoteConn) beginDestroy(ctx context.Context) Future[any] {
	_ = c.send(wireFrame{Kind: frameKindShutdown})
	_ = c.stream.CloseSend()
	_ = c.cc.Close()
	c.closeWith(ErrStaleReference)
	return completedFuture[any](fn.Ok[any](nil))
}

// remoteEndpoint addresses one actor (the remote root, or a grandchild
// created since) hosted on the peer behind a remoteConn.
type remoteEndpoint struct {
	sys      *ActorSystem
	conn     *remoteConn
	targetID string
	planned  atomic.Bool
}

func (e *remoteEndpoint) mode() Mode { return ModeRemote }

func (e *remoteEndpoint) send(_, _ context.Context, d Delivery) Future[any] {
	err := e.conn.send(wireFrame{
		Kind: frameKindTell, DeliveryID: d.ID, TargetID: e.targetID,
		Topic: d.Topic, Payload: d.Payload,
	})
	if err != nil {
		return completedFuture[any](fn.Err[any](fmt.Errorf("%w: %v", ErrDeliveryFailure, err)))
	}
	return completedFuture[any](fn.Ok[any](nil))
}

func (e *remoteEndpoint) ask(ctx, _ context.Context, d Delivery) Future[any] {
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

func (e *remoteEndpoint) broadcast(ctx context.Context, d Delivery) Future[any] {
	return e.send(ctx, ctx, d)
}

func (e *remoteEndpoint) broadcastAsk(ctx context.Context, d Delivery) Future[[]any] {
	val, err := e.ask(ctx, ctx, d).Await(ctx).Unpack()
	p := NewPromise[[]any]()
	if err != nil {
		p.Complete(fn.Err[[]any](err))
	} else {
		p.Complete(fn.Ok([]any{val}))
	}
	return p.Future()
}

func (e *remoteEndpoint) metrics(ctx context.Context) Future[map[string]any] {
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

func (e *remoteEndpoint) destroy(ctx context.Context) Future[any] {
	e.planned.Store(true)

	if e.targetID == rootTargetID {
		return e.conn.beginDestroy(ctx)
	}

	_, _ = e.conn.request(ctx, wireFrame{
		Kind: frameKindDestroy, DeliveryID: newDeliveryID(), TargetID: e.targetID,
	})
	return completedFuture[any](fn.Ok[any](nil))
}

func (e *remoteEndpoint) done() <-chan struct{} { return e.conn.done() }

func (e *remoteEndpoint) plannedTeardown() bool { return e.planned.Load() }

func (e *remoteEndpoint) createChild(ctx context.Context, self *refImpl, bf BehaviorFactory, _ ...ChildOption) (ActorRef, error) {
	if bf.Name == "" {
		err := fmt.Errorf("%w: a child of a remote actor requires a registered "+
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

	childEp := &remoteEndpoint{sys: e.sys, conn: e.conn, targetID: reply.ChildID}
	childRef := &refImpl{
		id:     self.id + "/" + reply.ChildID,
		parent: self,
		ep:     childEp,
		lg:     e.sys.loggers.HandleFor(reply.ChildID),
	}
	return childRef, nil
}

func (sys *ActorSystem) spawnRemote(ctx context.Context, parent *kernel, id string, _ BehaviorFactory, cfg childConfig) (ActorRef, error) {
	if cfg.host == "" {
		err := fmt.Errorf("%w: remote placement requires WithHost", ErrInvalidConfiguration)
		return newStaleRef(id, err), err
	}

	conn, err := dialRemote(ctx, cfg.host)
	if err != nil {
		return newStaleRef(id, err), err
	}

	ref := &refImpl{
		id: id,
		ep: &remoteEndpoint{sys: sys, conn: conn, targetID: rootTargetID},
		lg: sys.loggers.HandleFor(id),
	}
	if parent != nil {
		ref.parent = parent.selfRef
		parent.addChild(conn)
	}

	return ref, nil
}
