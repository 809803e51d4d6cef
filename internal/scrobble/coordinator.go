package scrobble

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"shikiwatch/internal/history"
	"shikiwatch/internal/logging"
	"shikiwatch/internal/matcher"
	"shikiwatch/internal/notifications"
	"shikiwatch/internal/player"
	"shikiwatch/internal/services"
	"shikiwatch/internal/textutil"
	"shikiwatch/internal/watchlist"
)

const (
	DefaultWorkers = 4
	defaultMaxAge  = 24 * time.Hour
)

// Remote is the subset of the Shikimori client used by the coordinator.
type Remote interface {
	UpdateProgress(ctx context.Context, kind watchlist.Kind, rateID int64, fields watchlist.Fields) error
	FetchDocument(ctx context.Context, userID int64, kind watchlist.Kind) (*watchlist.CacheDocument, error)
}

// ListStore is the durable list mirror.
type ListStore interface {
	Load(userID int64, kind watchlist.Kind) (*watchlist.CacheDocument, bool)
	ReplaceAll(doc *watchlist.CacheDocument) error
	MergeUpdate(userID int64, kind watchlist.Kind, rateID int64, fields watchlist.Fields) (watchlist.TrackedEntry, bool, error)
	IsFresh(userID int64, kind watchlist.Kind, maxAge time.Duration) bool
}

// EntryMatcher resolves a candidate against tracked entries.
type EntryMatcher interface {
	FindBestMatch(candidate watchlist.EpisodeCandidate, entries []watchlist.TrackedEntry) (matcher.Match, bool)
}

// Journal records scrobble outcomes.
type Journal interface {
	Record(ctx context.Context, rec history.Record) (history.Record, error)
}

// Warmer prefetches synonyms for freshly loaded entries.
type Warmer interface {
	EnsureWarm(ctx context.Context, userID int64, entries []watchlist.TrackedEntry)
}

// NowPlaying describes the most recently detected episode.
type NowPlaying struct {
	Candidate   watchlist.EpisodeCandidate `json:"candidate"`
	SessionID   string                     `json:"session_id,omitempty"`
	InList      bool                       `json:"in_list"`
	MatchedName string                     `json:"matched_name,omitempty"`
	Since       time.Time                  `json:"since"`
}

// Coordinator drives the scrobble pipeline for one user's anime list.
type Coordinator struct {
	userID    int64
	remote    Remote
	store     ListStore
	matcher   EntryMatcher
	journal   Journal
	notifier  notifications.Service
	warmer    Warmer
	callbacks Callbacks
	logger    *slog.Logger
	workers   int
	maxAge    time.Duration
	now       func() time.Time

	submitMu sync.RWMutex
	closed   bool
	pool     *pool.Pool

	rateMu    sync.Mutex
	rateLocks map[int64]*sync.Mutex

	stateMu    sync.RWMutex
	nowPlaying *NowPlaying
	last       *Result
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithJournal records every Result.
func WithJournal(j Journal) Option { return func(c *Coordinator) { c.journal = j } }

// WithNotifier publishes successful updates.
func WithNotifier(n notifications.Service) Option {
	return func(c *Coordinator) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithWarmer prefetches synonyms after a list refresh.
func WithWarmer(w Warmer) Option { return func(c *Coordinator) { c.warmer = w } }

// WithCallbacks installs the event callbacks.
func WithCallbacks(cb Callbacks) Option { return func(c *Coordinator) { c.callbacks = cb } }

// WithWorkers bounds concurrent scrobbles.
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithMaxAge sets how old the cached list may be before a scrobble refreshes it.
func WithMaxAge(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.maxAge = d
		}
	}
}

// WithLogger sets the coordinator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the result timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// New constructs a Coordinator.
func New(userID int64, remote Remote, store ListStore, m EntryMatcher, opts ...Option) (*Coordinator, error) {
	if userID <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "scrobble", "init", "user id is required", nil)
	}
	if remote == nil || store == nil || m == nil {
		return nil, services.Wrap(services.ErrConfiguration, "scrobble", "init", "remote, store and matcher are required", nil)
	}
	c := &Coordinator{
		userID:    userID,
		remote:    remote,
		store:     store,
		matcher:   m,
		notifier:  notifications.NewService(nil),
		logger:    logging.NewNop(),
		workers:   DefaultWorkers,
		maxAge:    defaultMaxAge,
		now:       time.Now,
		rateLocks: make(map[int64]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.pool = pool.New().WithMaxGoroutines(c.workers)
	return c, nil
}

// UserID returns the user whose list is scrobbled.
func (c *Coordinator) UserID() int64 { return c.userID }

// HandleEvent routes a player monitor event. It never blocks on the network.
func (c *Coordinator) HandleEvent(ev player.Event) {
	switch ev.Kind {
	case player.EventDetected:
		c.detected(ev)
	case player.EventWatched:
		if cb := c.callbacks.OnEpisodeWatched; cb != nil {
			cb(ev.Candidate, ev.Elapsed)
		}
		c.Submit(context.Background(), ev.Candidate, ev.Session.SessionID)
	case player.EventPlayerClosed:
		c.stateMu.Lock()
		c.nowPlaying = nil
		c.stateMu.Unlock()
		if cb := c.callbacks.OnPlayerClosed; cb != nil {
			cb()
		}
	}
}

func (c *Coordinator) detected(ev player.Event) {
	np := &NowPlaying{Candidate: ev.Candidate, SessionID: ev.Session.SessionID, Since: ev.Session.FirstSeenAt}
	if doc, ok := c.store.Load(c.userID, watchlist.KindAnime); ok {
		if match, found := c.matcher.FindBestMatch(ev.Candidate, doc.Entries()); found {
			np.InList = true
			np.MatchedName = match.Entry.Name()
		}
	}
	c.stateMu.Lock()
	c.nowPlaying = np
	c.stateMu.Unlock()
	if cb := c.callbacks.OnEpisodeDetected; cb != nil {
		cb(ev.Candidate)
	}
}

// NowPlaying returns the most recently detected episode, if a player is open.
func (c *Coordinator) NowPlaying() (NowPlaying, bool) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	if c.nowPlaying == nil {
		return NowPlaying{}, false
	}
	return *c.nowPlaying, true
}

// LastResult returns the most recent scrobble outcome.
func (c *Coordinator) LastResult() (Result, bool) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	if c.last == nil {
		return Result{}, false
	}
	return *c.last, true
}

// Submit queues a scrobble on the worker pool. It reports false after Close.
func (c *Coordinator) Submit(ctx context.Context, candidate watchlist.EpisodeCandidate, sessionID string) bool {
	c.submitMu.RLock()
	defer c.submitMu.RUnlock()
	if c.closed {
		c.logger.Warn("scrobble dropped after shutdown",
			logging.String(logging.FieldEventType, "scrobble_dropped"),
			logging.String("series", candidate.SeriesNameRaw),
			logging.Int("episode", candidate.Episode),
		)
		return false
	}
	// A started remote update runs to completion even if ctx is cancelled.
	ctx = context.WithoutCancel(ctx)
	c.pool.Go(func() {
		c.Scrobble(ctx, candidate, sessionID)
	})
	return true
}

// Close stops accepting work and waits for in-flight scrobbles.
func (c *Coordinator) Close() {
	c.submitMu.Lock()
	if c.closed {
		c.submitMu.Unlock()
		return
	}
	c.closed = true
	c.submitMu.Unlock()
	c.pool.Wait()
}

// ScrobbleName scrobbles a manually supplied series name and episode.
func (c *Coordinator) ScrobbleName(ctx context.Context, name string, episode int) Result {
	candidate := watchlist.EpisodeCandidate{
		SeriesNameRaw:        name,
		SeriesNameNormalized: textutil.Normalize(name),
		Episode:              episode,
		Source:               "manual",
	}
	return c.Scrobble(ctx, candidate, "")
}

// Scrobble runs one attempt synchronously and reports its Result.
func (c *Coordinator) Scrobble(ctx context.Context, candidate watchlist.EpisodeCandidate, sessionID string) Result {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	ctx = services.WithScope(ctx, services.Scope{UserID: c.userID, SessionID: sessionID, Source: candidate.Source})
	logger := logging.WithContext(ctx, c.logger)

	result := c.scrobble(ctx, logger, candidate)
	result.SessionID = sessionID
	result.At = c.now()

	c.stateMu.Lock()
	last := result
	c.last = &last
	c.stateMu.Unlock()

	c.report(context.WithoutCancel(ctx), logger, result)
	return result
}

func (c *Coordinator) scrobble(ctx context.Context, logger *slog.Logger, candidate watchlist.EpisodeCandidate) Result {
	base := Result{Candidate: candidate}

	entries, err := c.Entries(ctx)
	if err != nil {
		logging.WarnWithContext(logger, "watch-list unavailable", "scrobble_list_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check network access and the Shikimori token"),
			logging.String(logging.FieldImpact, "episode was not scrobbled"),
		)
		base.Kind = ResultFailed
		base.Message = failedMessage(candidate.SeriesNameRaw)
		return base
	}

	match, ok := c.matcher.FindBestMatch(candidate, entries)
	if !ok {
		base.Kind = ResultNoMatch
		base.Message = noMatchMessage(candidate.SeriesNameRaw)
		return base
	}

	unlock := c.lockRate(match.Entry.RateID)
	defer unlock()

	entry := c.latest(match.Entry)
	base.Entry = entry
	base.Similarity = match.Score
	base.PrevStatus = entry.Status
	name := displayName(entry, candidate)

	fields, accepted := Plan(entry, candidate.Episode)
	if !accepted {
		base.Kind = ResultRejected
		base.NewStatus = entry.Status
		base.Message = rejectedMessage(candidate.Episode, name)
		return base
	}

	// Once the write is decided it runs to completion together with the merge.
	ctx = context.WithoutCancel(ctx)
	if err := c.remote.UpdateProgress(ctx, watchlist.KindAnime, entry.RateID, fields); err != nil {
		logging.ErrorWithContext(logger, "remote progress update failed", "scrobble_update_failed",
			logging.Error(err),
			logging.Int64(logging.FieldRateID, entry.RateID),
			logging.Int64(logging.FieldItemID, entry.ItemID()),
			logging.String(logging.FieldErrorHint, "retry with 'shikiwatch scrobble' once Shikimori is reachable"),
		)
		base.Kind = ResultFailed
		base.Message = failedMessage(name)
		return base
	}

	base.Entry = c.merge(ctx, logger, entry, fields)
	base.Success = true
	base.NewStatus = base.Entry.Status
	completed := fields.Status != nil && *fields.Status == watchlist.StatusCompleted
	if completed {
		base.Kind = ResultCompleted
	} else {
		base.Kind = ResultUpdated
	}
	base.Message = updatedMessage(name, candidate.Episode, completed)
	return base
}

// latest rereads entry from the store so serialized scrobbles see prior merges.
func (c *Coordinator) latest(entry watchlist.TrackedEntry) watchlist.TrackedEntry {
	doc, ok := c.store.Load(c.userID, watchlist.KindAnime)
	if !ok {
		return entry
	}
	status, idx, found := doc.Find(entry.RateID)
	if !found {
		return entry
	}
	return doc.Groups[status][idx]
}

func (c *Coordinator) merge(ctx context.Context, logger *slog.Logger, entry watchlist.TrackedEntry, fields watchlist.Fields) watchlist.TrackedEntry {
	merged, ok, err := c.store.MergeUpdate(c.userID, watchlist.KindAnime, entry.RateID, fields)
	if err == nil && ok {
		return merged
	}
	attrs := []logging.Attr{
		logging.Int64(logging.FieldRateID, entry.RateID),
		logging.String(logging.FieldImpact, "local list is reloaded from Shikimori"),
	}
	if err != nil {
		attrs = append(attrs, logging.Error(err))
	}
	logging.WarnWithContext(logger, "cache merge missed; refreshing list", "cache_merge_fallback", attrs...)

	if doc, refreshErr := c.Refresh(ctx); refreshErr == nil {
		if status, idx, found := doc.Find(entry.RateID); found {
			return doc.Groups[status][idx]
		}
	}
	entry.Apply(fields)
	return entry
}

// Entries returns the cached anime list, refreshing it when missing or stale.
// A stale list is still returned when the refresh fails.
func (c *Coordinator) Entries(ctx context.Context) ([]watchlist.TrackedEntry, error) {
	doc, ok := c.store.Load(c.userID, watchlist.KindAnime)
	if ok && c.store.IsFresh(c.userID, watchlist.KindAnime, c.maxAge) {
		return doc.Entries(), nil
	}
	fresh, err := c.Refresh(ctx)
	if err == nil {
		return fresh.Entries(), nil
	}
	if ok {
		logging.WarnWithContext(c.logger, "using stale watch-list", "cache_stale",
			logging.Error(err),
			logging.String(logging.FieldImpact, "recent remote changes may be missing"),
		)
		return doc.Entries(), nil
	}
	return nil, err
}

// Refresh replaces the cached anime list with the remote one.
func (c *Coordinator) Refresh(ctx context.Context) (*watchlist.CacheDocument, error) {
	doc, err := c.remote.FetchDocument(ctx, c.userID, watchlist.KindAnime)
	if err != nil {
		return nil, err
	}
	if err := c.store.ReplaceAll(doc); err != nil {
		return nil, err
	}
	c.logger.Info("watch-list refreshed",
		logging.String(logging.FieldEventType, "list_refreshed"),
		logging.Int64(logging.FieldUserID, c.userID),
		logging.Int("entries", doc.Count()),
	)
	if c.warmer != nil {
		c.warmer.EnsureWarm(ctx, c.userID, doc.Entries())
	}
	return doc, nil
}

func (c *Coordinator) lockRate(rateID int64) func() {
	c.rateMu.Lock()
	mu, ok := c.rateLocks[rateID]
	if !ok {
		mu = &sync.Mutex{}
		c.rateLocks[rateID] = mu
	}
	c.rateMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

func (c *Coordinator) report(ctx context.Context, logger *slog.Logger, result Result) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "scrobble_"+string(result.Kind)),
		logging.String("series", result.Candidate.SeriesNameRaw),
		logging.Int("episode", result.Candidate.Episode),
		logging.String("message", result.Message),
	}
	if result.Entry.RateID != 0 {
		attrs = append(attrs, logging.Int64(logging.FieldRateID, result.Entry.RateID))
	}
	switch result.Kind {
	case ResultUpdated, ResultCompleted:
		logger.Info("scrobble applied", logging.Args(attrs...)...)
	case ResultFailed:
		logger.Warn("scrobble failed", logging.Args(attrs...)...)
	default:
		logger.Info("scrobble skipped", logging.Args(attrs...)...)
	}

	if c.journal != nil {
		if _, err := c.journal.Record(ctx, result.historyRecord(c.userID)); err != nil {
			logger.Warn("history record failed", logging.Error(err))
		}
	}
	if err := c.notify(ctx, result); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("notification failed", logging.Error(err))
	}
	if cb := c.callbacks.OnScrobbleResult; cb != nil {
		cb(result)
	}
}

func (c *Coordinator) notify(ctx context.Context, result Result) error {
	item := result.Entry.Item()
	switch result.Kind {
	case ResultCompleted:
		payload := notifications.Payload{
			"name":  item.Name,
			"score": result.Entry.Score,
			"url":   item.URL,
		}
		if result.PrevStatus == watchlist.StatusRewatching {
			payload["rewatches"] = result.Entry.Rewatches
			return c.notifier.Publish(ctx, notifications.EventRewatchCompleted, payload)
		}
		return c.notifier.Publish(ctx, notifications.EventCompleted, payload)
	case ResultUpdated:
		return c.notifier.Publish(ctx, notifications.EventProgress, notifications.Payload{
			"name":    item.Name,
			"episode": result.Candidate.Episode,
			"total":   result.Entry.Total(),
			"url":     item.URL,
		})
	default:
		return nil
	}
}
