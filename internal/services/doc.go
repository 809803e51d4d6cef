// Package services defines shared utilities consumed by the scrobble pipeline
// and the remote Shikimori integration.
//
// Key responsibilities:
//   - Scope helpers that stamp user, session and source identifiers for
//     logging and tracing.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (transient vs permanent) with errors.Is.
//
// Use these helpers when wiring new components so error handling and
// observability stay uniform across the daemon and the CLI.
package services
