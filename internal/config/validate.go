package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateShikimori(); err != nil {
		return err
	}
	if err := c.validateMonitoring(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validateShikimori() error {
	for key, raw := range map[string]string{
		"shikimori.base_url":  c.Shikimori.BaseURL,
		"shikimori.oauth_url": c.Shikimori.OAuthURL,
	} {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
		}
	}
	if c.Shikimori.RequestDelayMS < 0 {
		return errors.New("shikimori.request_delay_ms must be >= 0")
	}
	if c.Shikimori.UserID < 0 {
		return errors.New("shikimori.user_id must be >= 0")
	}
	return ensurePositiveMap(map[string]int{
		"shikimori.request_timeout": c.Shikimori.RequestTimeout,
	})
}

func (c *Config) validateMonitoring() error {
	if err := ensurePositiveMap(map[string]int{
		"monitoring.check_interval":   c.Monitoring.CheckInterval,
		"monitoring.scrobble_workers": c.Monitoring.ScrobbleWorkers,
	}); err != nil {
		return err
	}
	if c.Monitoring.MinWatchTime < 0 {
		return errors.New("monitoring.min_watch_time must be >= 0")
	}
	if c.Monitoring.SimilarityThreshold <= 0 || c.Monitoring.SimilarityThreshold > 1 {
		return errors.New("monitoring.similarity_threshold must be in (0, 1]")
	}
	if c.Monitoring.SuggestionThreshold < 0 || c.Monitoring.SuggestionThreshold > c.Monitoring.SimilarityThreshold {
		return errors.New("monitoring.suggestion_threshold must be between 0 and monitoring.similarity_threshold")
	}
	if c.Monitoring.Enabled && len(c.Monitoring.SupportedPlayers) == 0 {
		return errors.New("monitoring.supported_players must list at least one executable when monitoring is enabled")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.MaxAgeHours < 0 {
		return errors.New("cache.max_age_hours must be >= 0")
	}
	return ensurePositiveMap(map[string]int{
		"cache.detail_refresh_hours": c.Cache.DetailRefreshHours,
	})
}

func (c *Config) validateAPI() error {
	if !c.API.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.API.Bind); err != nil {
		return fmt.Errorf("api.bind: %w", err)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	return ensurePositiveMap(map[string]int{
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
