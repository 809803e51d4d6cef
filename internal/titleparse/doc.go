// Package titleparse extracts a series name and episode number from a player
// window title or a video filename.
//
// Rules are tried in order and the first match wins; the order encodes
// specificity, with release-group and SxxEyy forms ahead of the generic
// "name number" form. Season stripping from the extracted name is
// best-effort: "Show.Name.S1.06" yields ("Show Name S1", 6).
package titleparse
