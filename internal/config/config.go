package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Plex contains connection settings for the Plex media server.
type Plex struct {
	URL          string `toml:"url"`
	Token        string `toml:"token"`
	Library      string `toml:"library"`
	WatchlistURL string `toml:"watchlist_url"`
	Timeout      int    `toml:"timeout"` // seconds
}

// TMDB contains settings for The Movie Database API.
type TMDB struct {
	APIKey           string `toml:"api_key"`
	BaseURL          string `toml:"base_url"`
	Language         string `toml:"language"`
	RetryMaxAttempts int    `toml:"retry_max_attempts"`
	RetryBaseDelayMS int    `toml:"retry_base_delay_ms"`
	CacheTTLHours    int    `toml:"cache_ttl_hours"`
}

// Scan contains reconciliation pass tuning.
type Scan struct {
	Scope         string `toml:"scope"`          // "library" or "watchlist"
	LookaheadDays int    `toml:"lookahead_days"` // upcoming-episode window that forces a season audit
}

// Paths contains directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for plexparity.
type Config struct {
	Plex    Plex    `toml:"plex"`
	TMDB    TMDB    `toml:"tmdb"`
	Scan    Scan    `toml:"scan"`
	Paths   Paths   `toml:"paths"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/plexparity/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The second return is
// the resolved path, the third reports whether the file existed.
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

	return &cfg, resolvedPath, exists, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// EnsureDirectories creates the state and log directories if absent.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// LedgerPath returns the durable ledger file location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.json")
}

// MetadataCachePath returns the on-disk season cache location.
func (c *Config) MetadataCachePath() string {
	return filepath.Join(c.Paths.StateDir, "metadata_cache.gob")
}

// ScanLogPath returns the sqlite scan-history database location.
func (c *Config) ScanLogPath() string {
	return filepath.Join(c.Paths.StateDir, "scanlog.db")
}

// ScanLockPath returns the lock file guarding concurrent scans.
func (c *Config) ScanLockPath() string {
	return filepath.Join(c.Paths.StateDir, "scan.lock")
}

// LogFilePath returns the rolling log file location, or empty when no log
// directory is configured.
func (c *Config) LogFilePath() string {
	if c.Paths.LogDir == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "plexparity.log")
}

func resolveConfigPath(path string) (string, bool, error) {
	if strings.TrimSpace(path) != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err == nil {
			return expanded, true, nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	_, err = os.Stat(defaultPath)
	if err == nil {
		return defaultPath, true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return defaultPath, false, nil
	}
	return "", false, fmt.Errorf("stat config: %w", err)
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if path == "~" {
			return home, nil
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}
