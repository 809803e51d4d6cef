// Package daemon coordinates the long-running shikiwatch process.
//
// It wires the player monitor, scrobble coordinator, list cache, synonym
// cache and history journal into a single lifecycle with flock-based locking
// to prevent multiple instances, and exposes the local HTTP API used by the
// CLI and browser extensions.
//
// Keep orchestration logic here: matching, parsing and remote calls live in
// their own packages while the daemon focuses on startup, shutdown and the
// operations the API surfaces.
package daemon
