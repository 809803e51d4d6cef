// Package watchlist defines the domain types shared by the scrobble pipeline:
// tracked list entries grouped by status, per-item detail records, partial
// field updates, and the parsed episode candidate produced from player titles.
//
// JSON tags follow the Shikimori API payloads so list and detail responses can
// be cached verbatim.
package watchlist
