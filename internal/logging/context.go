package logging

import (
	"context"
	"log/slog"

	"shikiwatch/internal/services"
)

// Structured field keys shared by every component.
const (
	FieldComponent = "component"
	// FieldEventType classifies a log line for filtering (e.g. scrobble_rejected).
	FieldEventType = "event_type"
	// FieldErrorHint carries the suggested next step for an operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	FieldUserID = "user_id"
	// FieldRateID is the list entry (user rate) identifier.
	FieldRateID = "rate_id"
	// FieldItemID is the anime or manga identifier.
	FieldItemID    = "item_id"
	FieldSessionID = "session_id"
	// FieldSource names the player or surface that reported the episode.
	FieldSource = "source"
)

// ContextFields turns the scrobble scope carried by ctx into log attributes.
func ContextFields(ctx context.Context) []slog.Attr {
	scope, ok := services.ScopeFromContext(ctx)
	if !ok {
		return nil
	}
	var fields []slog.Attr
	if scope.UserID != 0 {
		fields = append(fields, slog.Int64(FieldUserID, scope.UserID))
	}
	if scope.SessionID != "" {
		fields = append(fields, slog.String(FieldSessionID, scope.SessionID))
	}
	if scope.Source != "" {
		fields = append(fields, slog.String(FieldSource, scope.Source))
	}
	return fields
}

// WithContext returns logger tagged with the scope carried by ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if fields := ContextFields(ctx); len(fields) > 0 {
		return logger.With(Args(fields...)...)
	}
	return logger
}
