package actor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// ResourceRegistry resolves named singleton resources for injection into
// behavior factories (see BehaviorFactory.Inject). The registry subpackage
// provides the concrete implementation; this interface is all the kernel
// itself needs, so that package can stay free of an import cycle back here.
type ResourceRegistry interface {
	Resolve(name string) (any, error)
}

// SystemConfig configures a new ActorSystem.
type SystemConfig struct {
	// Root builds the behavior for the system's root actor. The zero
	// value (Root.New == nil) uses Empty().
	Root BehaviorFactory

	// Resources is consulted whenever a behavior factory declares an
	// Inject dependency. May be nil if no actor in the system injects
	// anything.
	Resources ResourceRegistry

	// Logger names the LoggerImpl every actor's Log handle delegates to.
	// The zero value is the disabled sink.
	Logger LoggerRef

	// LoggerConfig gates per-actor log levels by category.
	LoggerConfig LoggerConfig

	// Balancers registers additional named BalancerPlugin implementations
	// beyond the built-in "roundrobin" and "random".
	Balancers map[string]BalancerPlugin

	// MailboxCapacity is the default buffered mailbox size for a child
	// that does not override it with WithMailboxSize. Defaults to 64.
	MailboxCapacity int

	// Test disables the crash-detection (and respawn) background
	// goroutines every router otherwise starts, so unit tests can drive
	// crash handling deterministically instead of racing a goroutine.
	Test bool
}

// ActorSystem owns the root of a supervision tree, the registry used for
// dependency injection, and the logger/balancer configuration every actor in
// the tree inherits.
type ActorSystem struct {
	config SystemConfig

	loggers   *LoggerFactory
	resources ResourceRegistry
	balancers map[string]BalancerPlugin

	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu   sync.Mutex
	root *kernel
	seq  uint64
}

// NewActorSystem constructs a system and its root actor. A failure to
// construct the root (bad logger config, failed injection, failed
// Initialize) tears down any partial state and returns the error.
func NewActorSystem(config SystemConfig) (*ActorSystem, error) {
	if config.MailboxCapacity <= 0 {
		config.MailboxCapacity = 64
	}

	loggers, err := NewLoggerFactory(config.Logger, config.LoggerConfig)
	if err != nil {
		return nil, err
	}

	balancers := map[string]BalancerPlugin{
		"roundrobin": newRoundRobinBalancer(),
		"random":     newRandomBalancer(),
	}
	for name, b := range config.Balancers {
		balancers[name] = b
	}

	sys := &ActorSystem{
		config:    config,
		loggers:   loggers,
		resources: config.Resources,
		balancers: balancers,
	}
	sys.rootCtx, sys.rootCancel = context.WithCancel(context.Background())

	rootDef := config.Root
	if rootDef.New == nil {
		rootDef = Empty()
	}

	if _, err := sys.spawnInMemory(sys.rootCtx, nil, "root", rootDef, newChildConfig(sys)); err != nil {
		sys.rootCancel()
		return nil, err
	}

	log.InfoS(sys.rootCtx, "actor system started")

	return sys, nil
}

// Root returns the system's root actor ref.
func (sys *ActorSystem) Root() ActorRef {
	sys.mu.Lock()
	defer sys.mu.Unlock()

	if sys.root == nil {
		return newStaleRef("root", ErrStaleReference)
	}
	return sys.root.selfRef
}

// Shutdown tears down the entire supervision tree rooted at the system's
// root actor and blocks until every actor has reached Destroyed or ctx is
// cancelled.
func (sys *ActorSystem) Shutdown(ctx context.Context) error {
	sys.mu.Lock()
	root := sys.root
	sys.mu.Unlock()

	if root == nil {
		return nil
	}

	_, err := root.beginDestroy(ctx).Await(ctx).Unpack()
	sys.rootCancel()

	return err
}

func (sys *ActorSystem) nextID(parentID string) string {
	n := atomic.AddUint64(&sys.seq, 1)
	return fmt.Sprintf("%s/a%d", parentID, n)
}

func (sys *ActorSystem) setRoot(k *kernel) {
	sys.mu.Lock()
	sys.root = k
	sys.mu.Unlock()
}

func (sys *ActorSystem) onActorDestroyed(id string) {
	log.DebugS(sys.rootCtx, "actor destroyed", "id", id)
}

func (sys *ActorSystem) balancer(name string) (BalancerPlugin, error) {
	b, ok := sys.balancers[name]
	if !ok {
		return nil, fmt.Errorf("%w: no balancer registered under name %q",
			ErrInvalidConfiguration, name)
	}
	return b, nil
}

func (sys *ActorSystem) resolveResources(names []string) ([]any, error) {
	if len(names) == 0 {
		return nil, nil
	}
	if sys.resources == nil {
		return nil, fmt.Errorf("%w: actor injects %v but no ResourceRegistry "+
			"was configured", ErrInjectionFailure, names)
	}

	out := make([]any, len(names))
	for i, name := range names {
		v, err := sys.resources.Resolve(name)
		if err != nil {
			return nil, fmt.Errorf("%w: resolving %q: %v",
				ErrInjectionFailure, name, err)
		}
		out[i] = v
	}
	return out, nil
}

// spawnInMemory builds and starts a new in-memory actor as a child of
// parent, or as the system root when parent is nil.
func (sys *ActorSystem) spawnInMemory(ctx context.Context, parent *kernel, id string, bf BehaviorFactory, cfg childConfig) (ActorRef, error) {
	resources, err := sys.resolveResources(bf.Inject)
	if err != nil {
		return newStaleRef(id, err), err
	}
	if bf.New == nil {
		err := fmt.Errorf("%w: behavior factory has no New constructor",
			ErrInvalidConfiguration)
		return newStaleRef(id, err), err
	}

	def := bf.New(resources...)

	actorCtx, cancel := context.WithCancel(sys.rootCtx)
	k := &kernel{
		id:       id,
		system:   sys,
		parent:   parent,
		def:      def,
		handlers: def.Handlers(),
		mailbox:  NewChannelMailbox[Delivery, any](actorCtx, cfg.mailboxSize),
		log:      sys.loggers.HandleFor(id),
		ctx:      actorCtx,
		cancel:   cancel,
		state:    stateConstructed,
	}

	ref := &refImpl{id: id, ep: &inMemoryEndpoint{kernel: k}, lg: k.log}
	if parent != nil {
		ref.parent = parent.selfRef
	}
	k.selfRef = ref

	k.state = stateInitializing
	if init, ok := def.(Initializer); ok {
		if err := init.Initialize(actorCtx, ref); err != nil {
			k.state = stateDestroyed
			cancel()
			wrapped := fmt.Errorf("%w: %v", ErrInitFailure, err)
			return newStaleRef(id, wrapped), wrapped
		}
	}
	k.state = stateReady

	if parent != nil {
		parent.addChild(k)
	} else {
		sys.setRoot(k)
	}

	actorsStarted.WithLabelValues(Subsystem, id).Inc()
	actorsAlive.WithLabelValues(Subsystem, id).Inc()

	go k.run()

	return ref, nil
}
