package player

import (
	"regexp"
	"strings"

	"shikiwatch/internal/titleparse"
)

var playerSuffix = regexp.MustCompile(`(?i)\s+[-–—]\s+(potplayer|mpv|vlc media player|vlc|mpc-hc|mpc-be|media player classic|mplayer|smplayer|celluloid)\s*$`)

// exeKey normalizes an executable name for allow-list comparison.
func exeKey(exe string) string {
	exe = strings.ToLower(strings.TrimSpace(exe))
	if idx := strings.LastIndexAny(exe, `/\`); idx >= 0 {
		exe = exe[idx+1:]
	}
	return strings.TrimSuffix(exe, ".exe")
}

// TrimPlayerSuffix removes a trailing " - <player name>" from a window title.
func TrimPlayerSuffix(title string) string {
	return strings.TrimSpace(playerSuffix.ReplaceAllString(strings.TrimSpace(title), ""))
}

// currentFile returns the title to parse and, when it came from the command
// line, the file path. The window title wins over the command line.
func currentFile(w Window) (title, path string) {
	if t := TrimPlayerSuffix(w.Title); t != "" && !isBarePlayerName(t, w.Exe) {
		return t, ""
	}
	for i := len(w.Cmdline) - 1; i >= 1; i-- {
		arg := strings.TrimSpace(w.Cmdline[i])
		if arg == "" || strings.HasPrefix(arg, "-") && !titleparse.IsVideoFile(arg) {
			continue
		}
		if titleparse.IsVideoFile(arg) {
			return titleparse.Stem(arg), arg
		}
	}
	return "", ""
}

// isBarePlayerName reports an idle player whose title is just its own name.
func isBarePlayerName(title, exe string) bool {
	t := strings.ToLower(title)
	key := exeKey(exe)
	switch {
	case t == key:
		return true
	case strings.HasPrefix(key, "potplayer") && strings.HasPrefix(t, "potplayer"):
		return true
	case t == "vlc media player":
		return true
	}
	return false
}
