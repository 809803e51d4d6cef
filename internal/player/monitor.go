package player

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"shikiwatch/internal/logging"
	"shikiwatch/internal/titleparse"
	"shikiwatch/internal/watchlist"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultMinWatch     = 60 * time.Second
	defaultStopTimeout  = 10 * time.Second
)

// EventKind identifies a monitor event.
type EventKind string

const (
	EventDetected     EventKind = "detected"
	EventWatched      EventKind = "watched"
	EventFileChanged  EventKind = "file_changed"
	EventClosed       EventKind = "closed"
	EventPlayerClosed EventKind = "player_closed"
)

// Event is delivered to the Handler from the poll goroutine.
type Event struct {
	Kind      EventKind
	Session   watchlist.PlaybackSession
	Candidate watchlist.EpisodeCandidate
	Elapsed   time.Duration
}

// Handler receives monitor events. It must return quickly.
type Handler func(Event)

type tracked struct {
	session   watchlist.PlaybackSession
	candidate watchlist.EpisodeCandidate
	parsed    bool
	watched   bool
	cancelled bool
}

// Monitor polls a WindowSource and tracks playback sessions.
type Monitor struct {
	source      WindowSource
	handler     Handler
	logger      *slog.Logger
	allowed     map[string]struct{}
	interval    time.Duration
	minWatch    time.Duration
	stopTimeout time.Duration

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	sessions map[int]*tracked
	// files with a watched event already raised, keyed by observed title
	watchedFiles map[string]struct{}
	sourceFailed bool

	wg sync.WaitGroup
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithPlayers sets the executable allow-list. Matching ignores case, the
// directory and a trailing .exe.
func WithPlayers(players []string) Option {
	return func(m *Monitor) {
		m.allowed = make(map[string]struct{}, len(players))
		for _, p := range players {
			if key := exeKey(p); key != "" {
				m.allowed[key] = struct{}{}
			}
		}
	}
}

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithMinWatch sets how long a file must play before it counts as watched.
func WithMinWatch(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.minWatch = d
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) { m.logger = logging.NewComponentLogger(logger, "player") }
}

// WithStopTimeout bounds how long Stop waits for the poll goroutine.
func WithStopTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.stopTimeout = d
		}
	}
}

// New creates a Monitor. handler may be nil.
func New(source WindowSource, handler Handler, opts ...Option) *Monitor {
	m := &Monitor{
		source:       source,
		handler:      handler,
		logger:       logging.NewComponentLogger(nil, "player"),
		allowed:      map[string]struct{}{},
		interval:     DefaultPollInterval,
		minWatch:     DefaultMinWatch,
		stopTimeout:  defaultStopTimeout,
		sessions:     make(map[int]*tracked),
		watchedFiles: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the poll loop. The first poll runs immediately.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil || m.source == nil {
		return errors.New("player monitor unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("player monitor already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go m.loop(runCtx)
	m.logger.Info("player monitor started",
		logging.String(logging.FieldEventType, "player_monitor_started"),
		logging.Duration("interval", m.interval),
		logging.Duration("min_watch", m.minWatch),
		logging.Int("players", len(m.allowed)),
	)
	return nil
}

// Stop cancels the poll loop and waits for it, up to the stop timeout.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(m.stopTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		logging.WarnWithContext(m.logger, "player monitor did not stop in time", "player_monitor_stop_timeout",
			logging.Duration("timeout", m.stopTimeout),
			logging.String(logging.FieldErrorHint, "a window source call is hanging"),
			logging.String(logging.FieldImpact, "shutdown continued without waiting"),
		)
	}
}

// Running reports whether the poll loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Sessions returns a snapshot of the live sessions ordered by PID.
func (m *Monitor) Sessions() []watchlist.PlaybackSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]watchlist.PlaybackSession, 0, len(m.sessions))
	for _, t := range m.sessions {
		out = append(out, t.session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProcessID < out[j].ProcessID })
	return out
}

// CancelScrobble suppresses the pending watched event of every live session
// that has not fired yet. It returns how many sessions were affected.
func (m *Monitor) CancelScrobble() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.sessions {
		if t.parsed && !t.watched && !t.cancelled {
			t.cancelled = true
			n++
			m.logger.Info("pending scrobble cancelled",
				logging.String(logging.FieldEventType, "scrobble_cancelled"),
				logging.String(logging.FieldSessionID, t.session.SessionID),
				logging.String("title", t.session.ObservedTitle),
			)
		}
	}
	return n
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	m.Poll(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Poll(ctx)
		}
	}
}

// Poll runs a single detection pass and dispatches the resulting events.
func (m *Monitor) Poll(ctx context.Context) {
	windows, err := m.source.ListCandidateWindows(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.mu.Lock()
		first := !m.sourceFailed
		m.sourceFailed = true
		m.mu.Unlock()
		if first {
			logging.WarnWithContext(m.logger, "player detection failed; will retry", "player_detect_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that the player is running and the session bus is reachable"),
				logging.String(logging.FieldImpact, "playback is not tracked until detection recovers"),
			)
		}
		return
	}

	events := m.observe(windows, time.Now())
	if m.handler == nil {
		return
	}
	for _, ev := range events {
		m.handler(ev)
	}
}

// observe updates session state from one detection pass and returns the
// events to raise, in order.
func (m *Monitor) observe(windows []Window, now time.Time) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sourceFailed = false

	var events []Event
	hadSessions := len(m.sessions) > 0
	seen := make(map[int]struct{}, len(windows))

	for _, w := range windows {
		if _, ok := m.allowed[exeKey(w.Exe)]; !ok {
			continue
		}
		title, path := currentFile(w)
		if title == "" {
			continue
		}
		seen[w.PID] = struct{}{}

		t := m.sessions[w.PID]
		if t != nil && t.session.ObservedTitle != title {
			events = append(events, m.endLocked(t, EventFileChanged, now))
			delete(m.sessions, w.PID)
			t = nil
		}
		if t == nil {
			t = m.beginLocked(w, title, path, now)
			m.sessions[w.PID] = t
			if t.parsed {
				events = append(events, Event{Kind: EventDetected, Session: t.session, Candidate: t.candidate})
			}
		}
		t.session.LastUpdatedAt = now

		if !t.parsed || t.watched || t.cancelled {
			continue
		}
		if _, done := m.watchedFiles[title]; done {
			t.watched = true
			continue
		}
		if elapsed := now.Sub(t.session.FirstSeenAt); elapsed >= m.minWatch {
			t.watched = true
			m.watchedFiles[title] = struct{}{}
			m.logger.Info("episode watched",
				logging.String(logging.FieldEventType, "episode_watched"),
				logging.String(logging.FieldSessionID, t.session.SessionID),
				logging.String("series", t.candidate.SeriesNameRaw),
				logging.Int("episode", t.candidate.Episode),
				logging.Duration("elapsed", elapsed),
			)
			events = append(events, Event{Kind: EventWatched, Session: t.session, Candidate: t.candidate, Elapsed: elapsed})
		}
	}

	for pid, t := range m.sessions {
		if _, ok := seen[pid]; ok {
			continue
		}
		events = append(events, m.endLocked(t, EventClosed, now))
		delete(m.sessions, pid)
	}
	if hadSessions && len(m.sessions) == 0 {
		m.logger.Info("all players closed", logging.String(logging.FieldEventType, "player_closed"))
		events = append(events, Event{Kind: EventPlayerClosed})
	}
	return events
}

func (m *Monitor) beginLocked(w Window, title, path string, now time.Time) *tracked {
	t := &tracked{session: watchlist.PlaybackSession{
		SessionID:     uuid.NewString(),
		ProcessID:     w.PID,
		PlayerName:    w.Exe,
		ObservedTitle: title,
		FilePath:      path,
		FirstSeenAt:   now,
		LastUpdatedAt: now,
	}}
	t.candidate, t.parsed = titleparse.Parse(title)
	attrs := []logging.Attr{
		logging.String(logging.FieldSessionID, t.session.SessionID),
		logging.Int("pid", w.PID),
		logging.String("player", w.Exe),
		logging.String("title", title),
	}
	if t.parsed {
		m.logger.Info("episode detected", logging.Args(append(attrs,
			logging.String(logging.FieldEventType, "episode_detected"),
			logging.String("series", t.candidate.SeriesNameRaw),
			logging.Int("episode", t.candidate.Episode),
		)...)...)
	} else {
		m.logger.Debug("playing title did not parse", logging.Args(attrs...)...)
	}
	return t
}

// endLocked closes a session and clears its file's watched marker when no
// other live session shows the same title.
func (m *Monitor) endLocked(t *tracked, kind EventKind, now time.Time) Event {
	title := t.session.ObservedTitle
	shared := false
	for _, other := range m.sessions {
		if other != t && other.session.ObservedTitle == title {
			shared = true
			break
		}
	}
	if !shared {
		delete(m.watchedFiles, title)
	}
	m.logger.Debug("playback session ended",
		logging.String(logging.FieldSessionID, t.session.SessionID),
		logging.String("reason", string(kind)),
		logging.Duration("elapsed", now.Sub(t.session.FirstSeenAt)),
	)
	return Event{Kind: kind, Session: t.session, Candidate: t.candidate}
}
