package titleparse

import (
	"path"
	"strings"
)

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".mkv": {}, ".avi": {}, ".mov": {}, ".wmv": {}, ".flv": {}, ".webm": {},
	".m4v": {}, ".3gp": {}, ".ogv": {}, ".ts": {}, ".m2ts": {}, ".vob": {},
}

// IsVideoFile reports whether name ends in a known video extension.
func IsVideoFile(name string) bool {
	_, ok := videoExtensions[strings.ToLower(path.Ext(baseName(name)))]
	return ok
}

// Stem returns the final path element of raw with a known video extension
// removed. Both slash styles are treated as separators so Windows paths work
// everywhere. Unknown extensions are kept because dots are common in titles.
func Stem(raw string) string {
	base := baseName(strings.TrimSpace(raw))
	if IsVideoFile(base) {
		base = base[:len(base)-len(path.Ext(base))]
	}
	return base
}

func baseName(raw string) string {
	if idx := strings.LastIndexAny(raw, `/\`); idx >= 0 {
		return raw[idx+1:]
	}
	return raw
}
