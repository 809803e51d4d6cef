// Package notifications pushes scrobble milestones to ntfy.
//
// The topic comes from config.toml; with no topic configured NewService
// returns a no-op implementation so callers never need to check. Progress
// and completion messages can be switched off independently.
package notifications
