package logging

import (
	"context"
	"log/slog"
)

// sessionHandler adds the session ID at Handle time instead of through
// WithAttrs, so rewrapping a logger replaces the ID rather than repeating it.
type sessionHandler struct {
	next slog.Handler
	id   slog.Attr
}

// WithSessionID returns a logger stamping every record with the session ID.
func WithSessionID(logger *slog.Logger, sessionID string) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	return slog.New(stampSession(logger.Handler(), sessionID))
}

func stampSession(next slog.Handler, sessionID string) slog.Handler {
	if next == nil {
		return NoopHandler{}
	}
	if inner, ok := next.(*sessionHandler); ok {
		next = inner.next
	}
	return &sessionHandler{next: next, id: slog.String(FieldSessionID, sessionID)}
}

func (h *sessionHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *sessionHandler) Handle(ctx context.Context, record slog.Record) error {
	record.AddAttrs(h.id)
	return h.next.Handle(ctx, record)
}

func (h *sessionHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sessionHandler{next: h.next.WithAttrs(attrs), id: h.id}
}

func (h *sessionHandler) WithGroup(name string) slog.Handler {
	return &sessionHandler{next: h.next.WithGroup(name), id: h.id}
}
