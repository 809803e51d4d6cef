package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	defaultShikimoriBaseURL     = "https://shikimori.one/api"
	defaultShikimoriOAuthURL    = "https://shikimori.one/oauth"
	defaultUserAgent            = "shikiwatch/dev"
	defaultRequestDelayMS       = 500
	defaultRequestTimeout       = 30
	defaultCheckInterval        = 5
	defaultMinWatchTime         = 60
	defaultSimilarityThreshold  = 0.8
	defaultSuggestionThreshold  = 0.3
	defaultScrobbleWorkers      = 4
	defaultCacheMaxAgeHours     = 24
	defaultDetailRefreshHours   = 1
	defaultAPIBind              = "127.0.0.1:5000"
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogMaxSizeMB         = 10
	defaultLogMaxBackups        = 5
	defaultLogRetentionDays     = 30
)

var defaultSupportedPlayers = []string{
	"PotPlayerMini64.exe",
	"PotPlayerMini.exe",
	"PotPlayer64.exe",
	"PotPlayer.exe",
	"mpv",
	"vlc",
}

func defaultCacheDir() string {
	return filepath.Join(xdg.CacheHome, "shikiwatch")
}

func defaultLogDir() string {
	return filepath.Join(xdg.StateHome, "shikiwatch", "logs")
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Shikimori: Shikimori{
			BaseURL:        defaultShikimoriBaseURL,
			OAuthURL:       defaultShikimoriOAuthURL,
			UserAgent:      defaultUserAgent,
			RequestDelayMS: defaultRequestDelayMS,
			RequestTimeout: defaultRequestTimeout,
		},
		Monitoring: Monitoring{
			Enabled:             true,
			SupportedPlayers:    append([]string(nil), defaultSupportedPlayers...),
			CheckInterval:       defaultCheckInterval,
			MinWatchTime:        defaultMinWatchTime,
			SimilarityThreshold: defaultSimilarityThreshold,
			SuggestionThreshold: defaultSuggestionThreshold,
			ScrobbleWorkers:     defaultScrobbleWorkers,
			MPRIS:               true,
		},
		Cache: Cache{
			Dir:                defaultCacheDir(),
			MaxAgeHours:        defaultCacheMaxAgeHours,
			DetailRefreshHours: defaultDetailRefreshHours,
		},
		History: History{
			Enabled: true,
		},
		API: API{
			Enabled: true,
			Bind:    defaultAPIBind,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Progress:       true,
			Completed:      true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			Dir:           defaultLogDir(),
			MaxSizeMB:     defaultLogMaxSizeMB,
			MaxBackups:    defaultLogMaxBackups,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
