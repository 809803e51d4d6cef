package watchlist

// EpisodeCandidate is a series name and episode number parsed from a player
// title, not yet matched to a tracked entry.
type EpisodeCandidate struct {
	SeriesNameRaw        string `json:"series_name"`
	SeriesNameNormalized string `json:"normalized"`
	Episode              int    `json:"episode"`
	Season               int    `json:"season,omitempty"`
	Source               string `json:"source,omitempty"`
}

// HasSeason reports whether the title carried an explicit season number.
func (c EpisodeCandidate) HasSeason() bool { return c.Season > 0 }
