// Package logging assembles structured slog loggers and formatting helpers used
// across shikiwatch.
//
// It owns the console and JSON handlers, the rotating file sink, and the
// context helpers that tag log lines with the scrobble scope. A no-op
// logger is provided for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits the same field shape (component, event_type, error_hint, impact).
package logging
