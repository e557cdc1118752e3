package config

const (
	defaultPlexURL          = "http://127.0.0.1:32400"
	defaultPlexLibrary      = "TV Shows"
	defaultPlexWatchlistURL = "https://discover.provider.plex.tv"
	defaultPlexTimeout      = 15

	defaultTMDBBaseURL          = "https://api.themoviedb.org/3"
	defaultTMDBLanguage         = "en-US"
	defaultTMDBRetryMaxAttempts = 3
	defaultTMDBRetryBaseDelayMS = 500
	defaultTMDBCacheTTLHours    = 24

	defaultScanScope     = "library"
	defaultLookaheadDays = 14

	defaultStateDir = "~/.local/share/plexparity"
	defaultLogDir   = "~/.local/share/plexparity/logs"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Plex: Plex{
			URL:          defaultPlexURL,
			Library:      defaultPlexLibrary,
			WatchlistURL: defaultPlexWatchlistURL,
			Timeout:      defaultPlexTimeout,
		},
		TMDB: TMDB{
			BaseURL:          defaultTMDBBaseURL,
			Language:         defaultTMDBLanguage,
			RetryMaxAttempts: defaultTMDBRetryMaxAttempts,
			RetryBaseDelayMS: defaultTMDBRetryBaseDelayMS,
			CacheTTLHours:    defaultTMDBCacheTTLHours,
		},
		Scan: Scan{
			Scope:         defaultScanScope,
			LookaheadDays: defaultLookaheadDays,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
