package actor

import (
	"context"
	"encoding/gob"
	"sync"
)

func init() {
	// Application payload types crossing a forked/remote boundary in
	// this package's own tests; see wire.go's doc comment on wireFrame.
	gob.Register("")
	gob.Register(0)
	gob.Register([]string{})
	gob.Register(map[string]any{})
}

// recorder captures an ordered sequence of string tags from concurrent
// goroutines, used to assert the post-order destruction guarantee.
type recorder struct {
	mu   sync.Mutex
	tags []string
}

func newRecorder() *recorder { return &recorder{} }

func (r *recorder) add(tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags = append(r.tags, tag)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tags...)
}

// funcBehavior is a BehaviorDefinition built from plain funcs, letting each
// test wire up exactly the handlers/hooks it needs without a bespoke type.
type funcBehavior struct {
	handlers  map[string]HandlerFunc
	initFn    func(ctx context.Context, self ActorRef) error
	destroyFn func(ctx context.Context) error
}

func (b *funcBehavior) Handlers() map[string]HandlerFunc { return b.handlers }

func (b *funcBehavior) Initialize(ctx context.Context, self ActorRef) error {
	if b.initFn == nil {
		return nil
	}
	return b.initFn(ctx, self)
}

func (b *funcBehavior) Destroy(ctx context.Context) error {
	if b.destroyFn == nil {
		return nil
	}
	return b.destroyFn(ctx)
}

// simpleFactory wraps a constructor as a BehaviorFactory with no injected
// resources and no cross-process name.
func simpleFactory(build func() *funcBehavior) BehaviorFactory {
	return BehaviorFactory{
		New: func(...any) BehaviorDefinition { return build() },
	}
}

// captureLoggerImpl is a LoggerImpl that records every call's args per
// level, letting a test assert exactly what a behavior logged.
type captureLoggerImpl struct {
	mu    sync.Mutex
	error []string
	warn  []string
	info  []string
	debug []string
}

func newCaptureLoggerImpl() *captureLoggerImpl { return &captureLoggerImpl{} }

func (c *captureLoggerImpl) Error(actorName string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.error = append(c.error, fmtArgs(args))
}

func (c *captureLoggerImpl) Warn(actorName string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warn = append(c.warn, fmtArgs(args))
}

func (c *captureLoggerImpl) Info(actorName string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info = append(c.info, fmtArgs(args))
}

func (c *captureLoggerImpl) Debug(actorName string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debug = append(c.debug, fmtArgs(args))
}

func (c *captureLoggerImpl) infoRecords() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.info...)
}

func fmtArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	if s, ok := args[0].(string); ok {
		return s
	}
	return ""
}

var _ LoggerImpl = (*captureLoggerImpl)(nil)
