package api

import (
	"time"

	"shikiwatch/internal/history"
	"shikiwatch/internal/listcache"
	"shikiwatch/internal/matcher"
	"shikiwatch/internal/scrobble"
	"shikiwatch/internal/watchlist"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// FromCandidate converts a parsed candidate.
func FromCandidate(c watchlist.EpisodeCandidate) Candidate {
	return Candidate{
		Series:     c.SeriesNameRaw,
		Normalized: c.SeriesNameNormalized,
		Episode:    c.Episode,
		Season:     c.Season,
	}
}

// FromSession converts a playback session, computing elapsed time at now.
func FromSession(s watchlist.PlaybackSession, now time.Time) Session {
	elapsed := int64(0)
	if !s.FirstSeenAt.IsZero() {
		elapsed = int64(now.Sub(s.FirstSeenAt) / time.Second)
	}
	return Session{
		ID:          s.SessionID,
		PID:         s.ProcessID,
		Player:      s.PlayerName,
		Title:       s.ObservedTitle,
		FilePath:    s.FilePath,
		FirstSeenAt: formatTime(s.FirstSeenAt),
		ElapsedSecs: elapsed,
	}
}

// FromSessions converts sessions in order.
func FromSessions(sessions []watchlist.PlaybackSession, now time.Time) []Session {
	out := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, FromSession(s, now))
	}
	return out
}

// FromNowPlaying converts the coordinator's current episode.
func FromNowPlaying(np scrobble.NowPlaying) *NowPlaying {
	return &NowPlaying{
		Candidate:   FromCandidate(np.Candidate),
		SessionID:   np.SessionID,
		InList:      np.InList,
		MatchedName: np.MatchedName,
		Since:       formatTime(np.Since),
	}
}

// FromResult converts a scrobble result.
func FromResult(r scrobble.Result) ScrobbleResult {
	out := ScrobbleResult{
		Kind:           string(r.Kind),
		Success:        r.Success,
		Message:        r.Message,
		Candidate:      FromCandidate(r.Candidate),
		Similarity:     r.Similarity,
		PreviousStatus: string(r.PrevStatus),
		NewStatus:      string(r.NewStatus),
		SessionID:      r.SessionID,
		At:             formatTime(r.At),
	}
	if r.Entry.RateID != 0 {
		out.RateID = r.Entry.RateID
		out.ItemID = r.Entry.ItemID()
		out.Name = r.Entry.Name()
		out.Progress = r.Entry.Progress()
		out.Total = r.Entry.Total()
	}
	return out
}

// FromCacheInfo converts list cache metadata.
func FromCacheInfo(info listcache.Info) CacheInfo {
	out := CacheInfo{
		Exists:    info.Exists,
		Path:      info.Path,
		Kind:      string(info.Kind),
		SizeBytes: info.SizeBytes,
		Total:     info.Total,
	}
	if !info.Exists {
		return out
	}
	out.UpdatedAt = formatTime(info.Timestamp)
	out.AgeHours = info.AgeHours()
	if len(info.StatusCounts) > 0 {
		out.StatusCounts = make(map[string]int, len(info.StatusCounts))
		for status, n := range info.StatusCounts {
			out.StatusCounts[string(status)] = n
		}
	}
	return out
}

// FromMatches converts matcher suggestions.
func FromMatches(matches []matcher.Match) []Suggestion {
	out := make([]Suggestion, 0, len(matches))
	for _, m := range matches {
		out = append(out, Suggestion{
			RateID:      m.Entry.RateID,
			ItemID:      m.Entry.ItemID(),
			Name:        m.Entry.Name(),
			Status:      string(m.Entry.Status),
			Progress:    m.Entry.Progress(),
			Total:       m.Entry.Total(),
			Score:       m.Score,
			MatchedName: m.MatchedName,
		})
	}
	return out
}

// FromRecords converts journal rows.
func FromRecords(records []history.Record) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(records))
	for _, r := range records {
		out = append(out, HistoryEntry{
			ID:            r.ID,
			RecordedAt:    formatTime(r.RecordedAt),
			RateID:        r.RateID,
			ItemName:      r.ItemName,
			ObservedTitle: r.ObservedTitle,
			Episode:       r.Episode,
			Outcome:       string(r.Outcome),
			NewStatus:     r.NewStatus,
			Message:       r.Message,
			CorrelationID: r.CorrelationID,
		})
	}
	return out
}

// FromHistory builds a history response from rows and stats.
func FromHistory(records []history.Record, stats history.Stats) HistoryResponse {
	counts := make(map[string]int, len(stats.ByOutcome))
	for outcome, n := range stats.ByOutcome {
		counts[string(outcome)] = n
	}
	return HistoryResponse{
		Entries: FromRecords(records),
		Total:   stats.Total,
		Counts:  counts,
		Last:    formatTime(stats.Last),
	}
}
