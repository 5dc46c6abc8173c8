package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// teeHandler writes each record to the durable sink and, while it is still
// attached, to the console sink. Handlers derived through WithAttrs or
// WithGroup share the attachment state, so one failed console write
// silences the console for every logger in the process.
type teeHandler struct {
	durable  slog.Handler
	console  slog.Handler
	detached *atomic.Bool
}

func newTeeHandler(durable, console slog.Handler) slog.Handler {
	switch {
	case durable == nil && console == nil:
		return slog.DiscardHandler
	case console == nil:
		return durable
	}
	return &teeHandler{durable: durable, console: console, detached: new(atomic.Bool)}
}

func (h *teeHandler) consoleAttached() bool {
	return !h.detached.Load()
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.durable != nil && h.durable.Enabled(ctx, level) {
		return true
	}
	return h.consoleAttached() && h.console.Enabled(ctx, level)
}

func (h *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var err error
	if h.durable != nil && h.durable.Enabled(ctx, record.Level) {
		err = h.durable.Handle(ctx, record.Clone())
	}
	if h.consoleAttached() && h.console.Enabled(ctx, record.Level) {
		if cerr := h.console.Handle(ctx, record); cerr != nil {
			h.detached.Store(true)
		}
	}
	return err
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &teeHandler{console: h.console.WithAttrs(attrs), detached: h.detached}
	if h.durable != nil {
		next.durable = h.durable.WithAttrs(attrs)
	}
	return next
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	next := &teeHandler{console: h.console.WithGroup(name), detached: h.detached}
	if h.durable != nil {
		next.durable = h.durable.WithGroup(name)
	}
	return next
}
