// Package main hosts the shikiwatch CLI entrypoint and command graph.
//
// The Cobra command tree runs the scrobbling daemon in the foreground, talks
// to a running daemon over its local HTTP API, and falls back to in-process
// work against the on-disk list cache when no daemon answers. Title parsing,
// matching and list inspection commands are useful for debugging why a file
// did or did not scrobble.
package main
