package buildinfo

import (
	"context"
	"log/slog"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
)

// enabledChecker and recordHandler capture just the two methods every
// slog-shaped handler shares. HandlerSet fans out over btclogv2.Handler and
// reducedSet fans out over the plain slog.Handler that WithAttrs/WithGroup
// must return; both satisfy these structurally, so the dispatch loop below
// is written once instead of twice.
type enabledChecker interface {
	Enabled(ctx context.Context, level slog.Level) bool
}

type recordHandler interface {
	Handle(ctx context.Context, record slog.Record) error
}

func allEnabled[H enabledChecker](ctx context.Context, level slog.Level, handlers []H) bool {
	for _, h := range handlers {
		if !h.Enabled(ctx, level) {
			return false
		}
	}
	return true
}

func dispatchAll[H recordHandler](ctx context.Context, record slog.Record, handlers []H) error {
	for _, h := range handlers {
		if err := h.Handle(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// HandlerSet fans a single log record out to every handler it holds, so one
// logger can write to the console and a rotating file (or any other
// combination of sinks) at once. A record is only considered enabled if
// every handler in the set agrees.
type HandlerSet struct {
	handlers []btclogv2.Handler
	curLevel btclog.Level
}

// NewHandlerSet builds a HandlerSet over handlers, all pinned to
// btclog.LevelInfo until SetLevel says otherwise.
func NewHandlerSet(handlers ...btclogv2.Handler) *HandlerSet {
	h := &HandlerSet{handlers: handlers}
	h.SetLevel(btclog.LevelInfo)
	return h
}

func (h *HandlerSet) Enabled(ctx context.Context, level slog.Level) bool {
	return allEnabled(ctx, level, h.handlers)
}

func (h *HandlerSet) Handle(ctx context.Context, record slog.Record) error {
	return dispatchAll(ctx, record, h.handlers)
}

// WithAttrs and WithGroup must return a plain slog.Handler rather than a
// btclogv2.Handler, so their fanned-out result is a reducedSet rather than
// another HandlerSet.
func (h *HandlerSet) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		out[i] = handler.WithAttrs(attrs)
	}
	return &reducedSet{handlers: out}
}

func (h *HandlerSet) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		out[i] = handler.WithGroup(name)
	}
	return &reducedSet{handlers: out}
}

// SubSystem tags every underlying handler with the given subsystem code.
func (h *HandlerSet) SubSystem(tag string) btclogv2.Handler {
	out := make([]btclogv2.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		out[i] = handler.SubSystem(tag)
	}
	return &HandlerSet{handlers: out, curLevel: h.curLevel}
}

func (h *HandlerSet) SetLevel(level btclog.Level) {
	for _, handler := range h.handlers {
		handler.SetLevel(level)
	}
	h.curLevel = level
}

func (h *HandlerSet) Level() btclog.Level {
	return h.curLevel
}

func (h *HandlerSet) WithPrefix(prefix string) btclogv2.Handler {
	out := make([]btclogv2.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		out[i] = handler.WithPrefix(prefix)
	}
	return &HandlerSet{handlers: out, curLevel: h.curLevel}
}

var _ btclogv2.Handler = (*HandlerSet)(nil)

// reducedSet is the plain-slog.Handler counterpart HandlerSet falls back to
// once WithAttrs/WithGroup strips it down to the bare slog surface.
type reducedSet struct {
	handlers []slog.Handler
}

func (r *reducedSet) Enabled(ctx context.Context, level slog.Level) bool {
	return allEnabled(ctx, level, r.handlers)
}

func (r *reducedSet) Handle(ctx context.Context, record slog.Record) error {
	return dispatchAll(ctx, record, r.handlers)
}

func (r *reducedSet) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(r.handlers))
	for i, handler := range r.handlers {
		out[i] = handler.WithAttrs(attrs)
	}
	return &reducedSet{handlers: out}
}

func (r *reducedSet) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(r.handlers))
	for i, handler := range r.handlers {
		out[i] = handler.WithGroup(name)
	}
	return &reducedSet{handlers: out}
}

var _ slog.Handler = (*reducedSet)(nil)
