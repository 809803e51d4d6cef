package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeShikimori()
	c.normalizeMonitoring()
	if err := c.normalizeCache(); err != nil {
		return err
	}
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	c.normalizeAPI()
	return c.normalizeLogging()
}

func (c *Config) normalizeShikimori() {
	envFallback(&c.Shikimori.AccessToken, "SHIKIMORI_ACCESS_TOKEN")
	envFallback(&c.Shikimori.RefreshToken, "SHIKIMORI_REFRESH_TOKEN")
	envFallback(&c.Shikimori.ClientID, "SHIKIMORI_CLIENT_ID")
	envFallback(&c.Shikimori.ClientSecret, "SHIKIMORI_CLIENT_SECRET")

	c.Shikimori.BaseURL = strings.TrimRight(strings.TrimSpace(c.Shikimori.BaseURL), "/")
	if c.Shikimori.BaseURL == "" {
		c.Shikimori.BaseURL = defaultShikimoriBaseURL
	}
	c.Shikimori.OAuthURL = strings.TrimRight(strings.TrimSpace(c.Shikimori.OAuthURL), "/")
	if c.Shikimori.OAuthURL == "" {
		c.Shikimori.OAuthURL = defaultShikimoriOAuthURL
	}
	c.Shikimori.UserAgent = strings.TrimSpace(c.Shikimori.UserAgent)
	if c.Shikimori.UserAgent == "" {
		c.Shikimori.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeMonitoring() {
	players := make([]string, 0, len(c.Monitoring.SupportedPlayers))
	seen := make(map[string]struct{}, len(c.Monitoring.SupportedPlayers))
	for _, name := range c.Monitoring.SupportedPlayers {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if name == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		players = append(players, name)
	}
	c.Monitoring.SupportedPlayers = players
}

func (c *Config) normalizeCache() error {
	if strings.TrimSpace(c.Cache.Dir) == "" {
		c.Cache.Dir = defaultCacheDir()
	}
	var err error
	if c.Cache.Dir, err = expandPath(c.Cache.Dir); err != nil {
		return fmt.Errorf("cache.dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeHistory() error {
	if strings.TrimSpace(c.History.Path) == "" {
		c.History.Path = filepath.Join(c.Cache.Dir, "history.db")
	}
	var err error
	if c.History.Path, err = expandPath(c.History.Path); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	if strings.TrimSpace(c.Logging.Dir) == "" {
		c.Logging.Dir = defaultLogDir()
	}
	var err error
	if c.Logging.Dir, err = expandPath(c.Logging.Dir); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	return nil
}

func envFallback(target *string, key string) {
	if strings.TrimSpace(*target) != "" {
		return
	}
	if value, ok := os.LookupEnv(key); ok {
		*target = strings.TrimSpace(value)
	}
}
