package watchlist

import (
	"strings"
	"time"
)

// DetailedInfo is the per-item detail record fetched lazily for its alternate names.
type DetailedInfo struct {
	ItemID        int64      `json:"id"`
	Name          string     `json:"name"`
	Russian       string     `json:"russian,omitempty"`
	English       []string   `json:"english,omitempty"`
	Japanese      []string   `json:"japanese,omitempty"`
	Synonyms      []string   `json:"synonyms,omitempty"`
	Status        string     `json:"status,omitempty"`
	Episodes      int        `json:"episodes,omitempty"`
	EpisodesAired int        `json:"episodes_aired,omitempty"`
	NextEpisodeAt *time.Time `json:"next_episode_at,omitempty"`
	FetchedAt     time.Time  `json:"fetched_at,omitzero"`
}

// Final reports whether the item has finished airing.
func (d DetailedInfo) Final() bool {
	return strings.EqualFold(strings.TrimSpace(d.Status), AiringReleased)
}

// AltNames returns every non-empty alternate name, without duplicates, in
// synonym, English, Japanese, Russian order.
func (d DetailedInfo) AltNames() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, group := range [][]string{d.Synonyms, d.English, d.Japanese, {d.Russian}} {
		for _, name := range group {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}
