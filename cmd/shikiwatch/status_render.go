package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"shikiwatch/internal/api"
)

type health int

const (
	healthInfo health = iota
	healthOK
	healthWarn
	healthFail
)

var healthStyle = map[health]struct{ tag, color string }{
	healthInfo: {"INFO", "\x1b[34m"},
	healthOK:   {"OK", "\x1b[32m"},
	healthWarn: {"WARN", "\x1b[33m"},
	healthFail: {"ERROR", "\x1b[31m"},
}

const ansiReset = "\x1b[0m"

// statusReport accumulates the sectioned, optionally coloured output of
// `shikiwatch status`.
type statusReport struct {
	colorize bool
	now      time.Time
	lines    []string
}

func (r *statusReport) paint(color, s string) string {
	if !r.colorize {
		return s
	}
	return color + s + ansiReset
}

func (r *statusReport) section(title string) {
	if len(r.lines) > 0 {
		r.lines = append(r.lines, "")
	}
	head := "== " + strings.TrimSpace(title) + " =="
	blue := healthStyle[healthInfo].color
	r.lines = append(r.lines, r.paint(blue, head), r.paint(blue, strings.Repeat("-", len(head))))
}

func (r *statusReport) line(label string, h health, message string) {
	style := healthStyle[h]
	text := fmt.Sprintf("  %-16s [%s]", label+":", style.tag)
	if message != "" {
		text += " " + message
	}
	r.lines = append(r.lines, r.paint(style.color, text))
}

func (r *statusReport) ago(value string) (string, bool) {
	t, ok := parseAPITime(value)
	if !ok {
		return "", false
	}
	return humanize.RelTime(t, r.now, "ago", "from now"), true
}

func (r *statusReport) String() string { return strings.Join(r.lines, "\n") + "\n" }

func renderStatus(status api.DaemonStatus, colorize bool, now time.Time) string {
	r := &statusReport{colorize: colorize, now: now}

	r.section("shikiwatch")
	if status.Running {
		detail := fmt.Sprintf("Running (pid %d", status.PID)
		if since, ok := r.ago(status.StartedAt); ok {
			detail += ", up since " + since
		}
		r.line("Daemon", healthOK, detail+")")
	} else {
		r.line("Daemon", healthWarn, "Not running (run `shikiwatch start`)")
	}
	r.line("User", healthInfo, fmt.Sprintf("%d", status.UserID))
	if status.Running {
		if status.Monitoring {
			r.line("Monitoring", healthOK, "Active")
		} else {
			r.line("Monitoring", healthWarn, "Disabled")
		}
	}

	r.section("Playback")
	if np := status.NowPlaying; np != nil {
		detail := fmt.Sprintf("%s episode %d", np.Candidate.Series, np.Candidate.Episode)
		if np.InList {
			r.line("Now playing", healthOK, detail+" → "+np.MatchedName)
		} else {
			r.line("Now playing", healthWarn, detail+" (not in list)")
		}
	} else {
		r.line("Now playing", healthInfo, "Nothing detected")
	}
	for _, s := range status.Sessions {
		elapsed := (time.Duration(s.ElapsedSecs) * time.Second).String()
		r.line("Session", healthInfo, fmt.Sprintf("%s (%s, %s)", s.Title, s.Player, elapsed))
	}
	if last := status.LastScrobble; last != nil {
		h := healthOK
		switch {
		case last.Kind == "failed":
			h = healthFail
		case !last.Success:
			h = healthWarn
		}
		detail := last.Message
		if at, ok := r.ago(last.At); ok {
			detail += " (" + at + ")"
		}
		r.line("Last scrobble", h, detail)
	}

	r.section("Cache")
	r.cacheLine(status.Cache)
	r.line("Synonyms", healthInfo, humanize.Comma(int64(status.SynonymCount))+" titles")
	if status.HistoryPath != "" {
		r.line("History", healthInfo, status.HistoryPath)
	}
	return r.String()
}

func (r *statusReport) cacheLine(info api.CacheInfo) {
	if !info.Exists {
		r.line("Anime list", healthWarn, "Not cached (run `shikiwatch refresh`)")
		return
	}
	detail := fmt.Sprintf("%d entries, %s", info.Total, humanize.Bytes(uint64(max(info.SizeBytes, 0))))
	if updated, ok := parseAPITime(info.UpdatedAt); ok {
		detail += ", updated " + humanize.Time(updated)
	}
	h := healthOK
	if info.AgeHours >= 24 {
		h = healthWarn
	}
	r.line("Anime list", h, detail)
}

// shouldColorize reports whether w is an interactive terminal.
func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
