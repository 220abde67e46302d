package actor

// wireFrame is the single message shape carried across both the forked
// (stdin/pipe) and remote (grpc stream) transports. Payload crosses via
// gob, so any application type used as a Delivery payload across either
// boundary must be registered with gob.Register in an init() -- the same
// constraint gob itself imposes on any interface-typed field.
type wireFrame struct {
	Kind       string
	DeliveryID string
	TargetID   string
	Topic      string
	Payload    any
	Err        string

	BehaviorName string
	ChildID      string
	LoggerName   string
}

const (
	frameKindInit        = "init"
	frameKindTell        = "tell"
	frameKindDeliver     = "deliver"
	frameKindReply       = "reply"
	frameKindCreateChild = "create-child"
	frameKindCreated     = "created"
	frameKindDestroy     = "destroy"
	frameKindDestroyed   = "destroyed"
	frameKindShutdown    = "shutdown"
)

// rootTargetID addresses the actor a forked/remote worker was spawned to
// host, as opposed to one of the grandchildren it has since created.
const rootTargetID = "root"
