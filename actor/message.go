package actor

import "github.com/google/uuid"

// BaseMessage is embedded by message types to satisfy Message's unexported
// marker method. Delivery embeds it directly, so application code rarely
// needs to reference this type.
type BaseMessage struct{}

func (BaseMessage) messageMarker() {}

// Message is a sealed interface for values that travel through an actor's
// mailbox. It exists primarily so internal plumbing (the dead-letter path,
// wire framing) has a single marker type to hold onto; application code
// interacts with topics and opaque payloads, not with Message directly.
type Message interface {
	messageMarker()

	// MessageType returns a stable type tag used for routing and logging.
	MessageType() string
}

// DeliveryKind distinguishes the wire/handling treatment of a Delivery.
type DeliveryKind uint8

const (
	// KindTell is a fire-and-forget delivery: the caller is not waiting
	// for a reply, only for mailbox acceptance.
	KindTell DeliveryKind = iota

	// KindAsk carries a reply expectation: the caller awaits the return
	// value (or error) of the topic handler.
	KindAsk

	// KindLifecycle is reserved for internal framing between a parent
	// and a forked/remote child (handshake, disconnect notification).
	KindLifecycle
)

// Delivery is the concrete message envelope routed through the kernel: a
// topic name paired with an opaque payload. Behaviors dispatch on Topic via
// the handler table built at construction (see BehaviorDefinition), rather
// than on the Go type of Payload. This keeps the wire representation for
// forked/remote actors uniform regardless of what any particular behavior
// chooses to carry as payload.
type Delivery struct {
	BaseMessage

	// ID uniquely identifies this delivery, primarily for correlating
	// replies across a forked/remote transport.
	ID string

	// Topic names the handler that should process this delivery.
	Topic string

	// Payload is the opaque argument passed to the handler.
	Payload any

	// Kind records whether this was a tell, ask, or lifecycle delivery.
	Kind DeliveryKind
}

// MessageType implements Message by returning the delivery's topic.
func (d Delivery) MessageType() string { return d.Topic }

// newDeliveryID generates a unique identifier for a new Delivery.
func newDeliveryID() string { return uuid.NewString() }
