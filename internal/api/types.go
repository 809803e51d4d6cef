package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Candidate is a parsed series name and episode.
type Candidate struct {
	Series     string `json:"series"`
	Normalized string `json:"normalized"`
	Episode    int    `json:"episode"`
	Season     int    `json:"season,omitempty"`
}

// Session describes a live playback session.
type Session struct {
	ID          string `json:"id"`
	PID         int    `json:"pid"`
	Player      string `json:"player"`
	Title       string `json:"title"`
	FilePath    string `json:"filePath,omitempty"`
	FirstSeenAt string `json:"firstSeenAt"`
	ElapsedSecs int64  `json:"elapsedSeconds"`
}

// NowPlaying is the most recently detected episode.
type NowPlaying struct {
	Candidate   Candidate `json:"candidate"`
	SessionID   string    `json:"sessionId,omitempty"`
	InList      bool      `json:"inList"`
	MatchedName string    `json:"matchedName,omitempty"`
	Since       string    `json:"since,omitempty"`
}

// ScrobbleResult is the outcome of one scrobble attempt.
type ScrobbleResult struct {
	Kind           string    `json:"kind"`
	Success        bool      `json:"success"`
	Message        string    `json:"message"`
	Candidate      Candidate `json:"candidate"`
	RateID         int64     `json:"rateId,omitempty"`
	ItemID         int64     `json:"itemId,omitempty"`
	Name           string    `json:"name,omitempty"`
	Progress       int       `json:"progress"`
	Total          int       `json:"total"`
	Similarity     float64   `json:"similarity,omitempty"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	NewStatus      string    `json:"newStatus,omitempty"`
	SessionID      string    `json:"sessionId,omitempty"`
	At             string    `json:"at,omitempty"`
}

// CacheInfo summarises one list cache document.
type CacheInfo struct {
	Exists       bool           `json:"exists"`
	Path         string         `json:"path"`
	Kind         string         `json:"kind"`
	UpdatedAt    string         `json:"updatedAt,omitempty"`
	AgeHours     float64        `json:"ageHours"`
	SizeBytes    int64          `json:"sizeBytes"`
	Total        int            `json:"total"`
	StatusCounts map[string]int `json:"statusCounts,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool            `json:"running"`
	PID          int             `json:"pid"`
	UserID       int64           `json:"userId"`
	StartedAt    string          `json:"startedAt,omitempty"`
	Monitoring   bool            `json:"monitoring"`
	Sessions     []Session       `json:"sessions"`
	NowPlaying   *NowPlaying     `json:"nowPlaying,omitempty"`
	LastScrobble *ScrobbleResult `json:"lastScrobble,omitempty"`
	Cache        CacheInfo       `json:"cache"`
	SynonymCount int             `json:"synonymCount"`
	LockFilePath string          `json:"lockFilePath"`
	HistoryPath  string          `json:"historyPath,omitempty"`
}

// ScrobbleRequest asks the daemon to scrobble a title. Name, when set,
// replaces the series name parsed from Title.
type ScrobbleRequest struct {
	Title   string `json:"title"`
	Episode int    `json:"episode"`
	Name    string `json:"name,omitempty"`
}

// CancelResponse reports how many pending watched events were suppressed.
type CancelResponse struct {
	Cancelled int `json:"cancelled"`
}

// RefreshResponse reports the size of a refreshed list.
type RefreshResponse struct {
	Entries int `json:"entries"`
}

// InvalidateResponse reports the synonym cache size after invalidation.
type InvalidateResponse struct {
	Synonyms int `json:"synonyms"`
}

// NotificationTestResponse reports the outcome of a test notification.
type NotificationTestResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// Suggestion is a near-miss match for a name.
type Suggestion struct {
	RateID      int64   `json:"rateId"`
	ItemID      int64   `json:"itemId"`
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	Progress    int     `json:"progress"`
	Total       int     `json:"total"`
	Score       float64 `json:"score"`
	MatchedName string  `json:"matchedName"`
}

// SuggestResponse wraps suggestions.
type SuggestResponse struct {
	Query       string       `json:"query"`
	Suggestions []Suggestion `json:"suggestions"`
}

// HistoryEntry is one journal row.
type HistoryEntry struct {
	ID            int64  `json:"id"`
	RecordedAt    string `json:"recordedAt"`
	RateID        int64  `json:"rateId,omitempty"`
	ItemName      string `json:"itemName,omitempty"`
	ObservedTitle string `json:"observedTitle,omitempty"`
	Episode       int    `json:"episode"`
	Outcome       string `json:"outcome"`
	NewStatus     string `json:"newStatus,omitempty"`
	Message       string `json:"message,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// HistoryResponse wraps recent journal rows and aggregate counts.
type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
	Total   int            `json:"total"`
	Counts  map[string]int `json:"counts"`
	Last    string         `json:"last,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
