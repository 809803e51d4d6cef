// Package synonyms keeps the alternate-name set of every tracked item.
//
// Detail records are fetched lazily from the remote API, persisted through
// the list cache and refreshed on an interval for items that are still
// airing. The matcher reads normalized names through Names.
package synonyms
