package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldSection is the standardized structured logging key for section names.
	FieldSection = "section"
	// FieldClipID is the standardized structured logging key for clip identifiers.
	FieldClipID = "clip_id"
	// FieldResourceID is the standardized structured logging key for resource identifiers.
	FieldResourceID = "resource_id"
	// FieldFrame is the standardized structured logging key for 1-based frame numbers.
	FieldFrame = "frame"
	// FieldFeature is the standardized structured logging key for undo feature tags.
	FieldFeature = "feature"
	// FieldEventType classifies a log line for filtering (e.g. "decode_failed").
	FieldEventType = "event_type"
	// FieldErrorHint carries the suggested next step for warnings and errors.
	FieldErrorHint = "error_hint"
	// FieldDecisionType names the decision a log line records.
	FieldDecisionType = "decision_type"
	// FieldSessionID identifies the editing session that produced a record.
	FieldSessionID = "session_id"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

type contextKey int

const (
	sectionKey contextKey = iota
	clipKey
)

// WithSection tags ctx with the section being edited.
func WithSection(ctx context.Context, name string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, sectionKey, name)
}

// WithClip tags ctx with the clip being edited.
func WithClip(ctx context.Context, id int) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, clipKey, id)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if name, ok := ctx.Value(sectionKey).(string); ok && name != "" {
		fields = append(fields, slog.String(FieldSection, name))
	}
	if id, ok := ctx.Value(clipKey).(int); ok {
		fields = append(fields, slog.Int(FieldClipID, id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
