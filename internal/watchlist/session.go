package watchlist

import "time"

// PlaybackSession is one player process showing one file. A title change ends
// the session and starts a new one.
type PlaybackSession struct {
	SessionID     string    `json:"session_id"`
	ProcessID     int       `json:"pid"`
	PlayerName    string    `json:"player"`
	ObservedTitle string    `json:"title"`
	FilePath      string    `json:"file_path,omitempty"`
	FirstSeenAt   time.Time `json:"first_seen_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// Elapsed returns how long the session has been observed.
func (s PlaybackSession) Elapsed() time.Duration {
	return s.LastUpdatedAt.Sub(s.FirstSeenAt)
}
