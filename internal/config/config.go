package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Shikimori contains remote API and credential settings.
type Shikimori struct {
	BaseURL        string `toml:"base_url"`
	OAuthURL       string `toml:"oauth_url"`
	AccessToken    string `toml:"access_token"`
	RefreshToken   string `toml:"refresh_token"`
	ClientID       string `toml:"client_id"`
	ClientSecret   string `toml:"client_secret"`
	UserID         int64  `toml:"user_id"`
	UserAgent      string `toml:"user_agent"`
	RequestDelayMS int    `toml:"request_delay_ms"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Monitoring contains player detection and matching settings.
type Monitoring struct {
	Enabled             bool     `toml:"enabled"`
	SupportedPlayers    []string `toml:"supported_players"`
	CheckInterval       int      `toml:"check_interval"`
	MinWatchTime        int      `toml:"min_watch_time"`
	SimilarityThreshold float64  `toml:"similarity_threshold"`
	SuggestionThreshold float64  `toml:"suggestion_threshold"`
	ScrobbleWorkers     int      `toml:"scrobble_workers"`
	MPRIS               bool     `toml:"mpris"`
}

// Cache contains list and detail cache settings.
type Cache struct {
	Dir                string `toml:"dir"`
	MaxAgeHours        int    `toml:"max_age_hours"`
	DetailRefreshHours int    `toml:"detail_refresh_hours"`
}

// History contains configuration for the scrobble journal.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// API contains configuration for the local HTTP API.
type API struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
	Token   string `toml:"token"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Progress       bool   `toml:"progress"`
	Completed      bool   `toml:"completed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	Dir           string `toml:"dir"`
	MaxSizeMB     int    `toml:"max_size_mb"`
	MaxBackups    int    `toml:"max_backups"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for shikiwatch.
//
// Configuration sections by subsystem:
//   - Shikimori: remote API endpoint, OAuth tokens, request pacing
//   - Monitoring: player allow-list, poll cadence, matching thresholds
//   - Cache: list/detail cache location and refresh cadence
//   - History: sqlite scrobble journal
//   - API: local HTTP API bind address and token
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, rotation and retention
type Config struct {
	Shikimori     Shikimori     `toml:"shikimori"`
	Monitoring    Monitoring    `toml:"monitoring"`
	Cache         Cache         `toml:"cache"`
	History       History       `toml:"history"`
	API           API           `toml:"api"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(filepath.Join(xdg.ConfigHome, "shikiwatch", "config.toml"))
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", false, err
		}
		path = defaultPath
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %q is a directory", expanded)
	}
	return expanded, true, nil
}

// EnsureDirectories creates the cache and log directories used by the daemon.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Cache.Dir, c.Logging.Dir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RequireCredentials reports whether the remote API can be called on behalf of a user.
func (c *Config) RequireCredentials() error {
	if c.Shikimori.UserID <= 0 {
		return fmt.Errorf("shikimori.user_id is required. Edit %s (create with 'shikiwatch config init')", c.displayPath())
	}
	if strings.TrimSpace(c.Shikimori.AccessToken) == "" {
		return fmt.Errorf("shikimori.access_token is required. Set SHIKIMORI_ACCESS_TOKEN env var or edit %s", c.displayPath())
	}
	return nil
}

func (c *Config) displayPath() string {
	path, err := DefaultConfigPath()
	if err != nil {
		return "~/.config/shikiwatch/config.toml"
	}
	return path
}

// LockPath is the daemon single-instance lock file.
func (c *Config) LockPath() string { return filepath.Join(c.Cache.Dir, "shikiwatch.lock") }

// PIDPath is the daemon PID file.
func (c *Config) PIDPath() string { return filepath.Join(c.Cache.Dir, "shikiwatch.pid") }

// RequestDelay is the minimum spacing between remote API calls.
func (s Shikimori) RequestDelay() time.Duration {
	return time.Duration(s.RequestDelayMS) * time.Millisecond
}

// Timeout is the per-request HTTP timeout.
func (s Shikimori) Timeout() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// PollInterval is the player poll cadence.
func (m Monitoring) PollInterval() time.Duration {
	return time.Duration(m.CheckInterval) * time.Second
}

// MinWatch is the elapsed time after which a file counts as watched.
func (m Monitoring) MinWatch() time.Duration {
	return time.Duration(m.MinWatchTime) * time.Second
}

// MaxAge is the list cache freshness window.
func (c Cache) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeHours) * time.Hour
}

// DetailRefreshInterval is the cadence of the non-released detail refresh.
func (c Cache) DetailRefreshInterval() time.Duration {
	return time.Duration(c.DetailRefreshHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
