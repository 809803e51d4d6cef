// Package api defines wire-format types and converters for the local HTTP API.
// It translates scrobble results, list cache info and history rows into
// transport-friendly DTOs that the CLI and browser extensions can render
// without coupling to internal types.
//
// # Key Types
//
// DaemonStatus: running state, monitoring state, live playback, the most
// recent scrobble and list cache summary.
//
// ScrobbleRequest/ScrobbleResult: manual scrobble input and its outcome.
//
// Suggestion, HistoryEntry, HistoryResponse: read-only views.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript consumers. Internal enums are
// exposed as lowercase strings. Timestamps use RFC3339 with milliseconds.
package api
