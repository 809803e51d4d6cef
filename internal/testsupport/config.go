package testsupport

import (
	"path/filepath"
	"testing"

	"shikiwatch/internal/config"
)

// TestUserID is the Shikimori user every generated config scrobbles for.
const TestUserID int64 = 4242

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Shikimori.UserID = TestUserID
	cfgVal.Shikimori.AccessToken = "test-token"
	cfgVal.Shikimori.RequestDelayMS = 0
	cfgVal.Cache.Dir = filepath.Join(base, "cache")
	cfgVal.History.Path = filepath.Join(base, "cache", "history.db")
	cfgVal.Logging.Dir = filepath.Join(base, "logs")
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithShikimori points the config at a fake Shikimori server.
func WithShikimori(fake *FakeShikimori) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Shikimori.BaseURL = fake.BaseURL()
		b.cfg.Shikimori.OAuthURL = fake.OAuthURL()
	}
}

// WithAPIToken requires a bearer token on the local API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.Token = token
	}
}

// WithMonitoring toggles the player monitor.
func WithMonitoring(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Monitoring.Enabled = enabled
	}
}

// WithAPI toggles the local HTTP API.
func WithAPI(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.Enabled = enabled
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Cache.Dir)
}
