package scrobble

import (
	"fmt"
	"time"

	"shikiwatch/internal/history"
	"shikiwatch/internal/watchlist"
)

// ResultKind classifies a scrobble attempt.
type ResultKind string

const (
	ResultUpdated   ResultKind = "updated"
	ResultCompleted ResultKind = "completed"
	ResultRejected  ResultKind = "rejected"
	ResultNoMatch   ResultKind = "no_match"
	ResultFailed    ResultKind = "failed"
)

// Result is the reconciled outcome of one scrobble attempt.
type Result struct {
	Kind       ResultKind                 `json:"kind"`
	Success    bool                       `json:"success"`
	Candidate  watchlist.EpisodeCandidate `json:"candidate"`
	Entry      watchlist.TrackedEntry     `json:"entry,omitzero"`
	Similarity float64                    `json:"similarity,omitempty"`
	PrevStatus watchlist.Status           `json:"previous_status,omitempty"`
	NewStatus  watchlist.Status           `json:"new_status,omitempty"`
	Message    string                     `json:"message"`
	SessionID  string                     `json:"session_id,omitempty"`
	At         time.Time                  `json:"at"`
}

// Callbacks receive pipeline events. Nil members are skipped. Callbacks run
// on the poll goroutine or a scrobble worker and must not block for long.
type Callbacks struct {
	OnEpisodeDetected func(candidate watchlist.EpisodeCandidate)
	OnEpisodeWatched  func(candidate watchlist.EpisodeCandidate, elapsed time.Duration)
	OnPlayerClosed    func()
	OnScrobbleResult  func(result Result)
}

func displayName(entry watchlist.TrackedEntry, candidate watchlist.EpisodeCandidate) string {
	if name := entry.Name(); name != "" {
		return name
	}
	return candidate.SeriesNameRaw
}

func updatedMessage(name string, episode int, completed bool) string {
	msg := fmt.Sprintf("Updated %s to episode %d", name, episode)
	if completed {
		msg += " (Completed)"
	}
	return msg
}

func rejectedMessage(episode int, name string) string {
	return fmt.Sprintf("Episode %d is not next for %s", episode, name)
}

func noMatchMessage(name string) string {
	return fmt.Sprintf("No match found for %s", name)
}

func failedMessage(name string) string {
	return fmt.Sprintf("Failed to update %s", name)
}

func (r Result) historyRecord(userID int64) history.Record {
	rec := history.Record{
		RecordedAt:    r.At,
		UserID:        userID,
		ObservedTitle: r.Candidate.SeriesNameRaw,
		Episode:       r.Candidate.Episode,
		Outcome:       history.Outcome(r.Kind),
		NewStatus:     string(r.NewStatus),
		Message:       r.Message,
		CorrelationID: r.SessionID,
	}
	if r.Entry.RateID != 0 {
		rec.RateID = r.Entry.RateID
		rec.ItemID = r.Entry.ItemID()
		rec.ItemName = r.Entry.Name()
	}
	return rec
}
