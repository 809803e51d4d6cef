package watchlist

import (
	"strconv"
	"strings"
	"time"
)

// Item is the catalogue record embedded in a list entry.
type Item struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Russian       string `json:"russian,omitempty"`
	URL           string `json:"url,omitempty"`
	Kind          string `json:"kind,omitempty"`
	Status        string `json:"status,omitempty"`
	Episodes      int    `json:"episodes"`
	EpisodesAired int    `json:"episodes_aired,omitempty"`
	Chapters      int    `json:"chapters,omitempty"`
	Volumes       int    `json:"volumes,omitempty"`
	AiredOn       string `json:"aired_on,omitempty"`
}

// Year returns the premiere year, or 0 when unknown.
func (i Item) Year() int {
	if len(i.AiredOn) < 4 {
		return 0
	}
	year, err := strconv.Atoi(i.AiredOn[:4])
	if err != nil {
		return 0
	}
	return year
}

// LocalizedNames returns the non-empty alternate names carried by the list payload.
func (i Item) LocalizedNames() []string {
	if strings.TrimSpace(i.Russian) == "" {
		return nil
	}
	return []string{i.Russian}
}

// TrackedEntry is one user rate: the user's progress on a single item.
type TrackedEntry struct {
	RateID    int64     `json:"id"`
	Score     int       `json:"score"`
	Status    Status    `json:"status"`
	Episodes  int       `json:"episodes"`
	Chapters  int       `json:"chapters,omitempty"`
	Rewatches int       `json:"rewatches"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
	Anime     *Item     `json:"anime,omitempty"`
	Manga     *Item     `json:"manga,omitempty"`
}

// Kind reports which catalogue the entry belongs to.
func (e TrackedEntry) Kind() Kind {
	if e.Manga != nil && e.Anime == nil {
		return KindManga
	}
	return KindAnime
}

// Item returns the embedded catalogue record, or a zero Item when absent.
func (e TrackedEntry) Item() Item {
	switch {
	case e.Anime != nil:
		return *e.Anime
	case e.Manga != nil:
		return *e.Manga
	default:
		return Item{}
	}
}

// ItemID returns the catalogue ID of the tracked item.
func (e TrackedEntry) ItemID() int64 { return e.Item().ID }

// Name returns the item's primary name.
func (e TrackedEntry) Name() string { return e.Item().Name }

// Progress returns watched episodes for anime and read chapters for manga.
func (e TrackedEntry) Progress() int {
	if e.Kind() == KindManga {
		return e.Chapters
	}
	return e.Episodes
}

// Total returns the item's episode or chapter count. Zero means unknown.
func (e TrackedEntry) Total() int {
	item := e.Item()
	if e.Kind() == KindManga {
		return item.Chapters
	}
	return item.Episodes
}

// Apply writes the set fields of f onto the entry.
func (e *TrackedEntry) Apply(f Fields) {
	if f.Progress != nil {
		if e.Kind() == KindManga {
			e.Chapters = *f.Progress
		} else {
			e.Episodes = *f.Progress
		}
	}
	if f.Score != nil {
		e.Score = *f.Score
	}
	if f.Status != nil {
		e.Status = *f.Status
	}
	if f.Rewatches != nil {
		e.Rewatches = *f.Rewatches
	}
}

// Fields is a partial update of a tracked entry. Nil fields are left unchanged.
type Fields struct {
	Progress  *int    `json:"progress,omitempty"`
	Score     *int    `json:"score,omitempty"`
	Status    *Status `json:"status,omitempty"`
	Rewatches *int    `json:"rewatches,omitempty"`
}

func (f Fields) WithProgress(n int) Fields  { f.Progress = &n; return f }
func (f Fields) WithScore(n int) Fields     { f.Score = &n; return f }
func (f Fields) WithStatus(s Status) Fields { f.Status = &s; return f }
func (f Fields) WithRewatches(n int) Fields { f.Rewatches = &n; return f }
func (f Fields) Empty() bool {
	return f.Progress == nil && f.Score == nil && f.Status == nil && f.Rewatches == nil
}
func (f Fields) StatusOr(fallback Status) Status { return derefOr(f.Status, fallback) }

func derefOr[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}
