// Package scrobble turns watched-episode events into Shikimori progress
// updates.
//
// The Coordinator resolves a parsed candidate against the cached watch-list,
// applies the progression rule (only the next episode or a replay of the
// current one is sent), calls the remote update and merges the result back
// into the list cache. Watched events run on a bounded worker pool; every
// outcome is reported through Callbacks, journalled and, for successful
// updates, pushed to notifications.
package scrobble
