package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"shikiwatch/internal/api"
	"shikiwatch/internal/config"
	"shikiwatch/internal/history"
	"shikiwatch/internal/listcache"
	"shikiwatch/internal/logging"
	"shikiwatch/internal/matcher"
	"shikiwatch/internal/notifications"
	"shikiwatch/internal/player"
	"shikiwatch/internal/scrobble"
	"shikiwatch/internal/services"
	"shikiwatch/internal/synonyms"
	"shikiwatch/internal/textutil"
	"shikiwatch/internal/titleparse"
	"shikiwatch/internal/watchlist"
)

// Components are the long-lived services the daemon owns. History and
// Notifier may be nil.
type Components struct {
	Monitor     *player.Monitor
	Coordinator *scrobble.Coordinator
	Lists       *listcache.Store
	Synonyms    *synonyms.Cache
	Matcher     *matcher.Matcher
	History     *history.Store
	Notifier    notifications.Service
}

// Daemon owns the single-instance lock and the component lifecycle.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	c      Components
	userID int64

	lockPath string
	pidPath  string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	api       *apiServer
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, c Components, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || c.Monitor == nil || c.Coordinator == nil || c.Lists == nil || c.Synonyms == nil || c.Matcher == nil {
		return nil, errors.New("daemon requires config, monitor, coordinator, list cache, synonyms and matcher")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if c.Notifier == nil {
		c.Notifier = notifications.NewService(nil)
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		c:        c,
		userID:   c.Coordinator.UserID(),
		lockPath: lockPath,
		pidPath:  cfg.PIDPath(),
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches monitoring, the synonym refresh
// loop and the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another shikiwatch daemon instance is already running")
	}
	if err := writePIDFile(d.pidPath); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("write pid file: %w", err)
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	if doc, ok := d.c.Lists.Load(d.userID, watchlist.KindAnime); ok {
		d.c.Synonyms.EnsureWarm(d.ctx, d.userID, doc.Entries())
	}
	interval := d.cfg.Cache.DetailRefreshInterval()
	if interval <= 0 {
		interval = synonyms.DefaultRefreshInterval
	}
	d.wg.Go(func() {
		d.c.Synonyms.RefreshPeriodically(d.ctx, d.userID, interval)
	})

	if d.cfg.Monitoring.Enabled {
		if err := d.c.Monitor.Start(d.ctx); err != nil {
			d.abortStart()
			return fmt.Errorf("start player monitor: %w", err)
		}
	}

	if d.cfg.API.Enabled {
		d.api = newAPIServer(d.cfg.API.Bind, d.cfg.API.Token, d, d.logger)
		if err := d.api.start(d.ctx); err != nil {
			d.c.Monitor.Stop()
			d.api = nil
			d.abortStart()
			return err
		}
	}

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("shikiwatch daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.Int64(logging.FieldUserID, d.userID),
		logging.Bool("monitoring", d.cfg.Monitoring.Enabled),
		logging.Bool("api", d.cfg.API.Enabled),
	)
	return nil
}

func (d *Daemon) abortStart() {
	d.cancel()
	d.wg.Wait()
	d.ctx, d.cancel = nil, nil
	_ = os.Remove(d.pidPath)
	_ = d.lock.Unlock()
}

// Stop halts monitoring and the API and releases the daemon lock. Scrobbles
// already submitted keep running until Close.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.c.Monitor.Stop()
	if d.api != nil {
		d.api.stop()
		d.api = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	d.c.Synonyms.Stop()

	if err := os.Remove(d.pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		d.logger.Warn("failed to remove pid file", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("shikiwatch daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon, waits for in-flight scrobbles and closes the journal.
func (d *Daemon) Close() error {
	d.Stop()
	d.c.Coordinator.Close()
	if d.c.History != nil {
		return d.c.History.Close()
	}
	return nil
}

// APIAddr returns the bound API address, or "" when the API is not serving.
func (d *Daemon) APIAddr() string { return d.api.addr() }

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool { return d.running.Load() }

// Status returns the current daemon status.
func (d *Daemon) Status(_ context.Context) api.DaemonStatus {
	now := time.Now()
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		UserID:       d.userID,
		Monitoring:   d.c.Monitor.Running(),
		Sessions:     api.FromSessions(d.c.Monitor.Sessions(), now),
		Cache:        api.FromCacheInfo(d.c.Lists.Info(d.userID, watchlist.KindAnime)),
		SynonymCount: d.c.Synonyms.Len(),
		LockFilePath: d.lockPath,
	}
	if status.Running {
		status.StartedAt = d.startedAt.UTC().Format(time.RFC3339)
	}
	if np, ok := d.c.Coordinator.NowPlaying(); ok {
		status.NowPlaying = api.FromNowPlaying(np)
	}
	if last, ok := d.c.Coordinator.LastResult(); ok {
		r := api.FromResult(last)
		status.LastScrobble = &r
	}
	if d.c.History != nil {
		status.HistoryPath = d.c.History.Path()
	}
	return status
}

// Scrobble runs a manual scrobble through the coordinator. Name, when given,
// overrides the series parsed from the title.
func (d *Daemon) Scrobble(ctx context.Context, req api.ScrobbleRequest) (scrobble.Result, error) {
	title := strings.TrimSpace(req.Title)
	name := strings.TrimSpace(req.Name)
	if title == "" && name == "" {
		return scrobble.Result{}, services.Wrap(services.ErrValidation, "daemon", "scrobble", "title is required", nil)
	}
	if req.Episode <= 0 {
		return scrobble.Result{}, services.Wrap(services.ErrValidation, "daemon", "scrobble", "episode must be positive", nil)
	}
	if name == "" {
		if parsed, ok := titleparse.Parse(title); ok {
			name = parsed.SeriesNameRaw
		} else {
			name = titleparse.CleanName(titleparse.Stem(title))
		}
	}
	if textutil.Normalize(name) == "" {
		return scrobble.Result{}, services.Wrap(services.ErrValidation, "daemon", "scrobble", "no series name in title", nil)
	}
	return d.c.Coordinator.ScrobbleName(ctx, name, req.Episode), nil
}

// CancelScrobble suppresses pending watched events for the live sessions.
func (d *Daemon) CancelScrobble() int { return d.c.Monitor.CancelScrobble() }

// Refresh reloads the anime list from Shikimori.
func (d *Daemon) Refresh(ctx context.Context) (int, error) {
	doc, err := d.c.Coordinator.Refresh(ctx)
	if err != nil {
		return 0, err
	}
	return doc.Count(), nil
}

// InvalidateSynonyms drops and refetches every cached synonym set.
func (d *Daemon) InvalidateSynonyms(ctx context.Context) (int, error) {
	entries, err := d.c.Coordinator.Entries(ctx)
	if err != nil {
		return 0, err
	}
	if err := d.c.Synonyms.ForceInvalidate(ctx, d.userID, entries); err != nil {
		return 0, err
	}
	return d.c.Synonyms.Len(), nil
}

// Suggest returns near-miss matches for a name.
func (d *Daemon) Suggest(ctx context.Context, query string, limit int) ([]matcher.Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, services.Wrap(services.ErrValidation, "daemon", "suggest", "query is required", nil)
	}
	entries, err := d.c.Coordinator.Entries(ctx)
	if err != nil {
		return nil, err
	}
	return d.c.Matcher.Suggest(query, entries, limit), nil
}

// History returns recent journal rows and totals.
func (d *Daemon) History(ctx context.Context, limit int) (api.HistoryResponse, error) {
	if d.c.History == nil {
		return api.HistoryResponse{}, services.Wrap(services.ErrConfiguration, "daemon", "history", "history journal is disabled", nil)
	}
	records, err := d.c.History.Recent(ctx, limit)
	if err != nil {
		return api.HistoryResponse{}, err
	}
	stats, err := d.c.History.Stats(ctx)
	if err != nil {
		return api.HistoryResponse{}, err
	}
	return api.FromHistory(records, stats), nil
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.c.Notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
