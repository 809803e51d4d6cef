package titleparse

import (
	"regexp"
	"strconv"
	"strings"

	"shikiwatch/internal/textutil"
	"shikiwatch/internal/watchlist"
)

type rule struct {
	name    string
	pattern *regexp.Regexp
	// submatch indexes; season is 0 when the rule has no season group
	nameIdx, seasonIdx, episodeIdx int
}

var rules = []rule{
	{"group_season_episode", regexp.MustCompile(`(?i)^\[.*?\]\s*(.+?)\s*-\s*S(\d+)E(\d+)`), 1, 2, 3},
	{"group_dash_episode", regexp.MustCompile(`(?i)^\[.*?\]\s*(.+?)\s*-\s*(\d+)(?:\s*\[.*?\])?$`), 1, 0, 2},
	{"dash_episode", regexp.MustCompile(`(?i)^(.+?)\s*-\s*(\d+)(?:\s*\[.*?\])?$`), 1, 0, 2},
	{"space_episode", regexp.MustCompile(`(?i)^(.+?)\s+(\d+)(?:\s*\[.*?\])?$`), 1, 0, 2},
	{"season_episode", regexp.MustCompile(`(?i)^(.+?)\s*S(\d+)E(\d+)`), 1, 2, 3},
	{"group_trailing_number", regexp.MustCompile(`(?i)^\[.*?\]\s*(.+?)\s*(\d+)$`), 1, 0, 2},
}

var (
	leadingGroupTag  = regexp.MustCompile(`^\[.*?\]\s*`)
	bracketTag       = regexp.MustCompile(`\s*\[.*?\]\s*`)
	parenTag         = regexp.MustCompile(`\s*\(.*?\)\s*`)
	trailingSxxEyy   = regexp.MustCompile(`(?i)\s*-\s*S\d+E\d+.*$`)
	doubleDash       = regexp.MustCompile(`\s*--\s*`)
	trailingDash     = regexp.MustCompile(`\s*-\s*$`)
	leadingDash      = regexp.MustCompile(`^\s*-\s*`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
	separatorReplace = strings.NewReplacer("_", " ", ".", " ")
)

// Parse extracts an episode candidate from a window title, filename, or path.
// It returns false when no rule yields a name and an integer episode.
func Parse(raw string) (watchlist.EpisodeCandidate, bool) {
	title := separatorReplace.Replace(Stem(raw))
	title = strings.TrimSpace(title)
	if title == "" {
		return watchlist.EpisodeCandidate{}, false
	}

	for _, r := range rules {
		m := r.pattern.FindStringSubmatch(title)
		if m == nil {
			continue
		}
		episode, err := strconv.Atoi(m[r.episodeIdx])
		if err != nil {
			continue
		}
		season := 0
		if r.seasonIdx > 0 {
			if season, err = strconv.Atoi(m[r.seasonIdx]); err != nil {
				continue
			}
		}
		name := CleanName(m[r.nameIdx])
		if name == "" {
			continue
		}
		return watchlist.EpisodeCandidate{
			SeriesNameRaw:        name,
			SeriesNameNormalized: textutil.Normalize(name),
			Episode:              episode,
			Season:               season,
			Source:               r.name,
		}, true
	}
	return watchlist.EpisodeCandidate{}, false
}

// CleanName tidies an extracted series name: release-group and quality tags,
// separators, trailing SxxEyy fragments and stray dashes are removed.
func CleanName(name string) string {
	name = strings.TrimSpace(name)
	name = leadingGroupTag.ReplaceAllString(name, "")
	name = separatorReplace.Replace(name)
	name = bracketTag.ReplaceAllString(name, " ")
	name = parenTag.ReplaceAllString(name, " ")
	name = trailingSxxEyy.ReplaceAllString(name, "")
	name = doubleDash.ReplaceAllString(name, " ")
	name = trailingDash.ReplaceAllString(name, "")
	name = leadingDash.ReplaceAllString(name, "")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(name, " "))
}
