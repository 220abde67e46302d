package actor

import (
	"context"
	"sync"
)

// refTable maps the ids a forked/remote worker is hosting (its root plus
// any grandchildren created since) back to their local ActorRef.
type refTable struct {
	mu   sync.Mutex
	refs map[string]ActorRef
}

func newRefTable(root ActorRef) *refTable {
	return &refTable{refs: map[string]ActorRef{rootTargetID: root}}
}

func (t *refTable) get(id string) (ActorRef, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ref, ok := t.refs[id]
	return ref, ok
}

func (t *refTable) put(id string, ref ActorRef) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refs[id] = ref
}

// handleFrame implements the worker side of the wire protocol shared by the
// forked (stdio) and remote (grpc) transports: a request frame comes in,
// zero or one reply frames go out through write.
func handleFrame(ctx context.Context, refs *refTable, f wireFrame, write func(wireFrame)) {
	switch f.Kind {
	case frameKindTell:
		if ref, ok := refs.get(f.TargetID); ok {
			ref.Send(ctx, f.Topic, f.Payload)
		}

	case frameKindDeliver:
		ref, ok := refs.get(f.TargetID)
		if !ok {
			write(wireFrame{Kind: frameKindReply, DeliveryID: f.DeliveryID,
				Err: ErrStaleReference.Error()})
			return
		}

		go func() {
			val, err := ref.SendAndReceive(ctx, f.Topic, f.Payload).Await(ctx).Unpack()
			reply := wireFrame{Kind: frameKindReply, DeliveryID: f.DeliveryID}
			if err != nil {
				reply.Err = err.Error()
			} else {
				reply.Payload = val
			}
			write(reply)
		}()

	case frameKindCreateChild:
		parentRef, ok := refs.get(f.TargetID)
		if !ok {
			write(wireFrame{Kind: frameKindCreated, DeliveryID: f.DeliveryID,
				Err: ErrStaleReference.Error()})
			return
		}

		build, err := lookupBehavior(f.BehaviorName)
		if err != nil {
			write(wireFrame{Kind: frameKindCreated, DeliveryID: f.DeliveryID, Err: err.Error()})
			return
		}

		child, err := parentRef.CreateChild(ctx, build())
		if err != nil {
			write(wireFrame{Kind: frameKindCreated, DeliveryID: f.DeliveryID, Err: err.Error()})
			return
		}

		refs.put(child.GetID(), child)
		write(wireFrame{Kind: frameKindCreated, DeliveryID: f.DeliveryID, ChildID: child.GetID()})

	case frameKindDestroy:
		if ref, ok := refs.get(f.TargetID); ok {
			ref.Destroy(ctx).Await(ctx)
		}
		write(wireFrame{Kind: frameKindDestroyed, DeliveryID: f.DeliveryID})
	}
}
