package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePlex()
	c.normalizeTMDB()
	c.normalizeScan()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePlex() {
	c.Plex.URL = strings.TrimRight(strings.TrimSpace(c.Plex.URL), "/")
	if c.Plex.URL == "" {
		c.Plex.URL = defaultPlexURL
	}
	if c.Plex.Token == "" {
		if value, ok := os.LookupEnv("PLEX_TOKEN"); ok {
			c.Plex.Token = value
		}
	}
	c.Plex.Token = strings.TrimSpace(c.Plex.Token)
	c.Plex.Library = strings.TrimSpace(c.Plex.Library)
	if c.Plex.Library == "" {
		c.Plex.Library = defaultPlexLibrary
	}
	c.Plex.WatchlistURL = strings.TrimRight(strings.TrimSpace(c.Plex.WatchlistURL), "/")
	if c.Plex.WatchlistURL == "" {
		c.Plex.WatchlistURL = defaultPlexWatchlistURL
	}
	if c.Plex.Timeout <= 0 {
		c.Plex.Timeout = defaultPlexTimeout
	}
}

func (c *Config) normalizeTMDB() {
	if c.TMDB.APIKey == "" {
		if value, ok := os.LookupEnv("TMDB_API_KEY"); ok {
			c.TMDB.APIKey = value
		}
	}
	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	c.TMDB.BaseURL = strings.TrimRight(strings.TrimSpace(c.TMDB.BaseURL), "/")
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	c.TMDB.Language = strings.TrimSpace(c.TMDB.Language)
	if c.TMDB.Language == "" {
		c.TMDB.Language = defaultTMDBLanguage
	}
	if c.TMDB.RetryMaxAttempts <= 0 {
		c.TMDB.RetryMaxAttempts = defaultTMDBRetryMaxAttempts
	}
	if c.TMDB.RetryBaseDelayMS <= 0 {
		c.TMDB.RetryBaseDelayMS = defaultTMDBRetryBaseDelayMS
	}
	if c.TMDB.CacheTTLHours <= 0 {
		c.TMDB.CacheTTLHours = defaultTMDBCacheTTLHours
	}
}

func (c *Config) normalizeScan() {
	c.Scan.Scope = strings.ToLower(strings.TrimSpace(c.Scan.Scope))
	if c.Scan.Scope == "" {
		c.Scan.Scope = defaultScanScope
	}
	if c.Scan.LookaheadDays <= 0 {
		c.Scan.LookaheadDays = defaultLookaheadDays
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
