package scrobble

import "shikiwatch/internal/watchlist"

// Plan applies the progression rule to entry for a watched episode. Only the
// next episode or a replay of the current one is accepted. Reaching a known
// total completes the entry, and completing a rewatch bumps the rewatch count.
// A planned entry that is not completed moves to watching.
func Plan(entry watchlist.TrackedEntry, episode int) (watchlist.Fields, bool) {
	current := entry.Progress()
	if episode != current+1 && episode != current {
		return watchlist.Fields{}, false
	}
	if episode <= 0 {
		return watchlist.Fields{}, false
	}
	fields := watchlist.Fields{}.WithProgress(episode)
	if total := entry.Total(); total > 0 && episode >= total {
		fields = fields.WithStatus(watchlist.StatusCompleted)
		if entry.Status == watchlist.StatusRewatching {
			fields = fields.WithRewatches(entry.Rewatches + 1)
		}
	} else if entry.Status == watchlist.StatusPlanned {
		fields = fields.WithStatus(watchlist.StatusWatching)
	}
	return fields, true
}
