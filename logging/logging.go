// Package logging is actorkit's reference actor.LoggerImpl: a btclog-backed
// sink that can fan out to both the console and a rotating log file, the
// same dual-stream setup the teacher's daemon wires up at startup.
package logging

import (
	"fmt"
	"os"

	"github.com/btcsuite/btclog/v2"
	"github.com/skeinforge/actorkit/actor"
	"github.com/skeinforge/actorkit/internal/buildinfo"
)

// DefaultRegisteredName is the name this package's default implementation
// registers itself under via actor.RegisterLoggerImpl, so that a forked or
// remote worker process can reconstruct it from a LoggerRef.Name alone.
const DefaultRegisteredName = "actorkit/logging.Default"

func init() {
	actor.RegisterLoggerImpl(DefaultRegisteredName, func() actor.LoggerImpl {
		return newDefault()
	})
}

// btclogImpl adapts a btclog.Logger to actor.LoggerImpl, tagging every
// record with the emitting actor's name the way the teacher's subsystem
// loggers tag records with a subsystem code.
type btclogImpl struct {
	log btclog.Logger
}

// New wraps an already-configured btclog.Logger (for example one obtained
// from a HandlerSet's SubSystem) as an actor.LoggerImpl.
func New(log btclog.Logger) actor.LoggerImpl {
	return btclogImpl{log: log}
}

func (b btclogImpl) Error(actorName string, args ...any) {
	b.log.Errorf("[%s] %s", actorName, fmt.Sprint(args...))
}

func (b btclogImpl) Warn(actorName string, args ...any) {
	b.log.Warnf("[%s] %s", actorName, fmt.Sprint(args...))
}

func (b btclogImpl) Info(actorName string, args ...any) {
	b.log.Infof("[%s] %s", actorName, fmt.Sprint(args...))
}

func (b btclogImpl) Debug(actorName string, args ...any) {
	b.log.Debugf("[%s] %s", actorName, fmt.Sprint(args...))
}

// newDefault builds the console-only logger used when a LoggerRef is
// resolved by name alone (the common case for forked/remote workers, which
// have no access to the parent process's configured handler set).
func newDefault() actor.LoggerImpl {
	handler := btclog.NewDefaultHandler(os.Stdout)
	return New(btclog.NewSLogger(handler).WithPrefix(actor.Subsystem))
}

// NewRotating builds an actor.LoggerImpl that fans out to both stdout and a
// rotating log file under cfg.LogDir, in the style of the teacher's
// HandlerSet/RotatingLogWriter pairing.
func NewRotating(cfg *buildinfo.LogRotatorConfig) (actor.LoggerImpl, func() error, error) {
	writer := buildinfo.NewRotatingLogWriter()
	if err := writer.InitLogRotator(cfg); err != nil {
		return nil, nil, fmt.Errorf("initializing log rotator: %w", err)
	}

	console := btclog.NewDefaultHandler(os.Stdout)
	file := btclog.NewDefaultHandler(writer)
	set := buildinfo.NewHandlerSet(console, file)

	impl := New(btclog.NewSLogger(set).WithPrefix(actor.Subsystem))
	return impl, writer.Close, nil
}
