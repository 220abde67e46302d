package actor

import (
	"fmt"
	"sync"
)

// Level gates which log calls a per-actor Log handle actually emits.
type Level int

const (
	LevelSilent Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
)

// ParseLevel converts a level name (case-sensitive, matching the spec's
// enumeration) into a Level. An unrecognized name yields LevelSilent and a
// non-nil error.
func ParseLevel(name string) (Level, error) {
	switch name {
	case "Silent":
		return LevelSilent, nil
	case "Error":
		return LevelError, nil
	case "Warn":
		return LevelWarn, nil
	case "Info":
		return LevelInfo, nil
	case "Debug":
		return LevelDebug, nil
	default:
		return LevelSilent, fmt.Errorf("%w: unknown log level %q",
			ErrInvalidConfiguration, name)
	}
}

// LoggerImpl is the capability set a pluggable logger implementation must
// satisfy. The concrete implementation (writing to stderr, a file, an
// OTel exporter, ...) is deliberately left to application code; this package
// only ships one reference implementation (see the sibling logging package).
type LoggerImpl interface {
	Error(actorName string, args ...any)
	Warn(actorName string, args ...any)
	Info(actorName string, args ...any)
	Debug(actorName string, args ...any)
}

// loggerImplBuilder constructs a LoggerImpl on demand. Implementations are
// registered by name (a module path, or any string the host application
// chooses) so that a forked/remote child process can reconstruct the same
// logger without the implementation object itself crossing the process
// boundary -- only its name does.
var (
	loggerImplMu sync.RWMutex
	loggerImpls  = map[string]func() LoggerImpl{}
)

// RegisterLoggerImpl makes a LoggerImpl constructor resolvable by name. Call
// this from an init() in the package that defines a concrete logger so that
// forked/remote workers loaded from the same binary can resolve it too.
func RegisterLoggerImpl(name string, build func() LoggerImpl) {
	loggerImplMu.Lock()
	defer loggerImplMu.Unlock()
	loggerImpls[name] = build
}

func resolveLoggerImpl(name string) (LoggerImpl, error) {
	loggerImplMu.RLock()
	build, ok := loggerImpls[name]
	loggerImplMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no logger implementation registered "+
			"under name %q", ErrInvalidConfiguration, name)
	}
	return build(), nil
}

// LoggerRef names a logger implementation by one of two forms: a directly
// supplied instance (valid only within this process) or a registered name
// (a module path, by convention) that any process -- including a
// forked/remote child -- can resolve independently. Exactly one of Impl or
// Name should be set.
type LoggerRef struct {
	Impl LoggerImpl
	Name string
}

// resolve returns the LoggerImpl this ref describes, validating its
// capability set. Because LoggerImpl is a Go interface, a value that
// compiles against it already has every required method; the failure mode
// this guards against is an unresolvable Name or a nil Impl.
func (r LoggerRef) resolve() (LoggerImpl, error) {
	if r.Impl != nil {
		return r.Impl, nil
	}
	if r.Name != "" {
		return resolveLoggerImpl(r.Name)
	}
	return nil, fmt.Errorf("%w: logger reference has neither an "+
		"implementation nor a registered name", ErrInvalidConfiguration)
}

// LoggerConfig gates emission by actor name. Categories maps an actor's name
// to the minimum level it should log at; "default" is consulted when no
// entry matches the actor's own name.
type LoggerConfig struct {
	Categories map[string]Level
}

func (c LoggerConfig) levelFor(actorName string) Level {
	if lvl, ok := c.Categories[actorName]; ok {
		return lvl
	}
	if lvl, ok := c.Categories["default"]; ok {
		return lvl
	}
	return LevelInfo
}

// LoggerFactory produces per-actor Log handles that delegate to a single
// shared LoggerImpl, gated by LoggerConfig. It is constructed once per
// ActorSystem and, for forked/remote actors, reconstructed identically in
// the worker process from the same LoggerRef.
type LoggerFactory struct {
	ref    LoggerRef
	impl   LoggerImpl
	config LoggerConfig
}

// NewLoggerFactory resolves ref and validates it before returning a usable
// factory. A nil ref.Impl with an empty ref.Name defaults to the disabled
// sink (useful for the system's "test" mode).
func NewLoggerFactory(ref LoggerRef, config LoggerConfig) (*LoggerFactory, error) {
	if ref.Impl == nil && ref.Name == "" {
		return &LoggerFactory{impl: noopLoggerImpl{}, config: config}, nil
	}

	impl, err := ref.resolve()
	if err != nil {
		return nil, err
	}

	return &LoggerFactory{ref: ref, impl: impl, config: config}, nil
}

// HandleFor returns a per-actor Log handle gated by the factory's category
// configuration.
func (f *LoggerFactory) HandleFor(actorName string) *Log {
	return &Log{
		actorName: actorName,
		impl:      f.impl,
		level:     f.config.levelFor(actorName),
	}
}

// Implementation returns the underlying LoggerImpl. Tests use this to
// inspect captured log records without going through the Log wrapper.
func (f *LoggerFactory) Implementation() LoggerImpl {
	return f.impl
}

// Ref returns the reference this factory was constructed from, for
// transmitting to a forked/remote worker.
func (f *LoggerFactory) Ref() LoggerRef {
	return f.ref
}

type noopLoggerImpl struct{}

func (noopLoggerImpl) Error(string, ...any) {}
func (noopLoggerImpl) Warn(string, ...any)  {}
func (noopLoggerImpl) Info(string, ...any)  {}
func (noopLoggerImpl) Debug(string, ...any) {}

// Log is a thin per-actor wrapper around a LoggerFactory's shared
// implementation, applying the category-derived level gate before every
// call.
type Log struct {
	actorName string
	impl      LoggerImpl
	level     Level
}

func newDisabledLog(actorName string) *Log {
	return &Log{actorName: actorName, impl: noopLoggerImpl{}, level: LevelSilent}
}

func (l *Log) Error(args ...any) {
	if l.level >= LevelError {
		l.impl.Error(l.actorName, args...)
	}
}

func (l *Log) Warn(args ...any) {
	if l.level >= LevelWarn {
		l.impl.Warn(l.actorName, args...)
	}
}

func (l *Log) Info(args ...any) {
	if l.level >= LevelInfo {
		l.impl.Info(l.actorName, args...)
	}
}

func (l *Log) Debug(args ...any) {
	if l.level >= LevelDebug {
		l.impl.Debug(l.actorName, args...)
	}
}
