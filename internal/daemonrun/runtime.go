package daemonrun

import (
	"errors"
	"log/slog"
	"net/http"

	"shikiwatch/internal/config"
	"shikiwatch/internal/history"
	"shikiwatch/internal/listcache"
	"shikiwatch/internal/logging"
	"shikiwatch/internal/matcher"
	"shikiwatch/internal/notifications"
	"shikiwatch/internal/ratelimit"
	"shikiwatch/internal/scrobble"
	"shikiwatch/internal/shikimori"
	"shikiwatch/internal/synonyms"
	"shikiwatch/internal/watchlist"
)

// Runtime bundles the services shared by the daemon and the one-shot CLI
// commands. History is nil when the journal is disabled.
type Runtime struct {
	Config      *config.Config
	Logger      *slog.Logger
	Client      *shikimori.Client
	Lists       *listcache.Store
	Synonyms    *synonyms.Cache
	Matcher     *matcher.Matcher
	History     *history.Store
	Notifier    notifications.Service
	Coordinator *scrobble.Coordinator
}

// BuildOptions tune Build.
type BuildOptions struct {
	// ConfigPath receives refreshed OAuth tokens. Empty disables persistence.
	ConfigPath string
	// HTTPClient overrides the Shikimori transport.
	HTTPClient *http.Client
	Callbacks  scrobble.Callbacks
}

// Build wires the remote client, caches, matcher, journal and coordinator
// from configuration.
func Build(cfg *config.Config, logger *slog.Logger, opts BuildOptions) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.RequireCredentials(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	client, err := NewClient(cfg, logger, opts)
	if err != nil {
		return nil, err
	}

	lists := listcache.New(cfg.Cache.Dir, logger)
	syn := synonyms.New(client, lists, watchlist.KindAnime, logger)
	m := matcher.New(syn,
		matcher.WithThreshold(cfg.Monitoring.SimilarityThreshold),
		matcher.WithSuggestionThreshold(cfg.Monitoring.SuggestionThreshold),
		matcher.WithLogger(logger),
	)

	rt := &Runtime{
		Config:   cfg,
		Logger:   logger,
		Client:   client,
		Lists:    lists,
		Synonyms: syn,
		Matcher:  m,
		Notifier: notifications.NewService(cfg),
	}

	if cfg.History.Enabled {
		journal, err := history.Open(cfg.History.Path)
		if err != nil {
			logging.WarnWithContext(logger, "history journal unavailable", "history_open_failed",
				logging.Error(err),
				logging.String("path", cfg.History.Path),
				logging.String(logging.FieldErrorHint, "delete the journal file or set history.enabled = false"),
				logging.String(logging.FieldImpact, "scrobbles are not journalled"),
			)
		} else {
			rt.History = journal
		}
	}

	coordOpts := []scrobble.Option{
		scrobble.WithNotifier(rt.Notifier),
		scrobble.WithWarmer(syn),
		scrobble.WithCallbacks(opts.Callbacks),
		scrobble.WithWorkers(cfg.Monitoring.ScrobbleWorkers),
		scrobble.WithMaxAge(cfg.Cache.MaxAge()),
		scrobble.WithLogger(logging.NewComponentLogger(logger, "scrobble")),
	}
	if rt.History != nil {
		coordOpts = append(coordOpts, scrobble.WithJournal(rt.History))
	}
	coord, err := scrobble.New(cfg.Shikimori.UserID, client, lists, m, coordOpts...)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Coordinator = coord
	return rt, nil
}

// NewClient builds the Shikimori client alone, for commands that only talk to
// the remote API.
func NewClient(cfg *config.Config, logger *slog.Logger, opts BuildOptions) (*shikimori.Client, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Shikimori.Timeout()}
	}
	clientOpts := []shikimori.Option{
		shikimori.WithHTTPClient(httpClient),
		shikimori.WithLimiter(ratelimit.New(cfg.Shikimori.RequestDelay())),
		shikimori.WithUserAgent(cfg.Shikimori.UserAgent),
		shikimori.WithLogger(logger),
	}
	if opts.ConfigPath != "" {
		path := opts.ConfigPath
		clientOpts = append(clientOpts, shikimori.WithTokenSink(func(access, refresh string) error {
			return config.SaveTokens(path, access, refresh)
		}))
	}
	return shikimori.New(cfg.Shikimori.BaseURL, cfg.Shikimori.OAuthURL, shikimori.Credentials{
		AccessToken:  cfg.Shikimori.AccessToken,
		RefreshToken: cfg.Shikimori.RefreshToken,
		ClientID:     cfg.Shikimori.ClientID,
		ClientSecret: cfg.Shikimori.ClientSecret,
	}, clientOpts...)
}

// UserID is the configured Shikimori user.
func (r *Runtime) UserID() int64 { return r.Config.Shikimori.UserID }

// Close waits for in-flight scrobbles and closes the journal.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	if r.Coordinator != nil {
		r.Coordinator.Close()
	}
	r.Synonyms.Wait()
	if r.History != nil {
		return r.History.Close()
	}
	return nil
}
