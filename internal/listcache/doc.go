// Package listcache stores the user's watch-list mirror and the per-item
// detail records on disk.
//
// # Storage
//
// Each user has one JSON document per list kind in the cache directory
// (default: ~/.cache/shikiwatch):
//
//	anime_list_{uid}.json     grouped tracked entries
//	manga_list_{uid}.json
//	anime_details_{uid}.json  alternate-name detail records
//
// Writes go to a temp file in the same directory followed by a rename, so a
// crash mid-write leaves the previous document in place. Load-modify-write
// cycles are serialized per user inside the process and guarded by an
// advisory file lock against a concurrent CLI invocation.
//
// A document whose user_id does not match the caller, or which fails to parse,
// is treated as absent so the caller falls back to a remote refresh.
package listcache
