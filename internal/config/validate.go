package config

import (
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable for a scan. Commands that
// only read persisted state skip this so they work before credentials are
// configured.
func (c *Config) Validate() error {
	if err := c.validatePlex(); err != nil {
		return err
	}
	if err := c.validateTMDB(); err != nil {
		return err
	}
	return c.validateScan()
}

func (c *Config) validatePlex() error {
	if _, err := url.ParseRequestURI(c.Plex.URL); err != nil {
		return fmt.Errorf("plex.url is not a valid URL: %w", err)
	}
	if c.Plex.Token == "" {
		return fmt.Errorf("plex.token is required. Set PLEX_TOKEN env var or edit the config file (create with 'plexparity config init')")
	}
	if c.Plex.Library == "" {
		return fmt.Errorf("plex.library must name the TV library section")
	}
	return nil
}

func (c *Config) validateTMDB() error {
	if c.TMDB.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/plexparity/config.toml"
		}
		return fmt.Errorf("tmdb.api_key is required. Set TMDB_API_KEY env var or edit %s (create with 'plexparity config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateScan() error {
	switch c.Scan.Scope {
	case "library", "watchlist":
	default:
		return fmt.Errorf("scan.scope must be %q or %q, got %q", "library", "watchlist", c.Scan.Scope)
	}
	return nil
}
