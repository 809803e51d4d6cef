// Package history journals every scrobble outcome in a local SQLite database.
//
// The journal is append-only. Recent returns the newest rows first, and Stats
// aggregates the outcome counts shown by `shikiwatch history`.
package history
