package watchlist

import (
	"fmt"
	"strings"
)

// Status is the user's list status for an entry.
type Status string

const (
	StatusPlanned    Status = "planned"
	StatusWatching   Status = "watching"
	StatusRewatching Status = "rewatching"
	StatusCompleted  Status = "completed"
	StatusOnHold     Status = "on_hold"
	StatusDropped    Status = "dropped"
)

// Statuses lists every status in display order.
var Statuses = []Status{
	StatusWatching,
	StatusRewatching,
	StatusPlanned,
	StatusOnHold,
	StatusCompleted,
	StatusDropped,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus accepts the API spelling plus a few CLI-friendly aliases.
func ParseStatus(raw string) (Status, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	switch normalized {
	case "onhold", "hold", "paused":
		return StatusOnHold, nil
	case "plan", "plan_to_watch", "ptw":
		return StatusPlanned, nil
	}
	status := Status(normalized)
	if !status.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return status, nil
}

// Kind distinguishes anime lists from manga lists.
type Kind string

const (
	KindAnime Kind = "anime"
	KindManga Kind = "manga"
)

// ParseKind defaults to anime for an empty value.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "anime", "animes":
		return KindAnime, nil
	case "manga", "mangas":
		return KindManga, nil
	default:
		return "", fmt.Errorf("unknown list kind %q", raw)
	}
}

// AiringReleased is the detail status of a finished title; such details never change.
const AiringReleased = "released"
