// Package matcher resolves a parsed series name against the user's tracked entries.
package matcher

import (
	"log/slog"
	"sort"

	"shikiwatch/internal/logging"
	"shikiwatch/internal/textutil"
	"shikiwatch/internal/watchlist"
)

const (
	DefaultThreshold           = 0.8
	DefaultSuggestionThreshold = 0.3
	DefaultSuggestionLimit     = 5
)

// NameSource supplies extra normalized names for an item, e.g. synonyms.
type NameSource interface {
	Names(itemID int64) []string
}

// Match is a scored tracked entry.
type Match struct {
	Entry       watchlist.TrackedEntry `json:"entry"`
	Score       float64                `json:"score"`
	MatchedName string                 `json:"matched_name"`
}

// Matcher scores entries by their best-matching name.
type Matcher struct {
	names            NameSource
	threshold        float64
	suggestThreshold float64
	logger           *slog.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithThreshold sets the minimum score FindBestMatch accepts.
func WithThreshold(v float64) Option {
	return func(m *Matcher) {
		if v > 0 && v <= 1 {
			m.threshold = v
		}
	}
}

// WithSuggestionThreshold sets the score Suggest must exceed.
func WithSuggestionThreshold(v float64) Option {
	return func(m *Matcher) {
		if v >= 0 && v < 1 {
			m.suggestThreshold = v
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) { m.logger = logging.NewComponentLogger(logger, "matcher") }
}

// New creates a Matcher. names may be nil.
func New(names NameSource, opts ...Option) *Matcher {
	m := &Matcher{
		names:            names,
		threshold:        DefaultThreshold,
		suggestThreshold: DefaultSuggestionThreshold,
		logger:           logging.NewComponentLogger(nil, "matcher"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Threshold returns the acceptance threshold.
func (m *Matcher) Threshold() float64 { return m.threshold }

// NamesFor returns the entry's normalized names: primary and localized names
// first, then any extra names from the name source. Duplicates and empty
// names are dropped.
func (m *Matcher) NamesFor(entry watchlist.TrackedEntry) []string {
	item := entry.Item()
	seen := make(map[string]struct{})
	var out []string
	add := func(normalized string) {
		if normalized == "" {
			return
		}
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	add(textutil.Normalize(item.Name))
	for _, name := range item.LocalizedNames() {
		add(textutil.Normalize(name))
	}
	if m.names != nil && item.ID > 0 {
		for _, name := range m.names.Names(item.ID) {
			add(name)
		}
	}
	return out
}

func (m *Matcher) score(query string, entry watchlist.TrackedEntry) (float64, string) {
	best, bestName := 0.0, ""
	for _, name := range m.NamesFor(entry) {
		if s := textutil.Score(query, name); s > best {
			best, bestName = s, name
		}
	}
	return best, bestName
}

// FindBestMatch returns the highest-scoring entry for the candidate. Entries
// with a known total below the candidate episode are skipped, ties keep the
// earlier entry, and the winner must reach the threshold.
func (m *Matcher) FindBestMatch(candidate watchlist.EpisodeCandidate, entries []watchlist.TrackedEntry) (Match, bool) {
	query := candidate.SeriesNameNormalized
	if query == "" {
		query = textutil.Normalize(candidate.SeriesNameRaw)
	}
	if query == "" {
		return Match{}, false
	}

	var best Match
	found := false
	for _, entry := range entries {
		if total := entry.Total(); total > 0 && candidate.Episode > total {
			continue
		}
		score, name := m.score(query, entry)
		if !found || score > best.Score {
			best = Match{Entry: entry, Score: score, MatchedName: name}
			found = true
		}
	}
	if !found || best.Score < m.threshold {
		m.logger.Debug("no match above threshold",
			logging.String("query", query),
			logging.Float64("best_score", best.Score),
			logging.Float64("threshold", m.threshold),
		)
		return Match{}, false
	}
	m.logger.Debug("matched series",
		logging.String("query", query),
		logging.String("name", best.Entry.Name()),
		logging.Int64(logging.FieldRateID, best.Entry.RateID),
		logging.Float64("score", best.Score),
	)
	return best, true
}

// Suggest returns up to limit entries scoring above the suggestion threshold,
// best first. A non-positive limit means DefaultSuggestionLimit.
func (m *Matcher) Suggest(name string, entries []watchlist.TrackedEntry, limit int) []Match {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	query := textutil.Normalize(name)
	if query == "" {
		return nil
	}
	var matches []Match
	for _, entry := range entries {
		score, matched := m.score(query, entry)
		if score > m.suggestThreshold {
			matches = append(matches, Match{Entry: entry, Score: score, MatchedName: matched})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
