package preflight

import (
	"context"

	"github.com/Lunedor/plex-parity/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckPlex(ctx, cfg.Plex.URL, cfg.Plex.Token),
		CheckTMDB(ctx, cfg.TMDB.BaseURL, cfg.TMDB.APIKey),
		CheckStateDir(cfg.Paths.StateDir),
	}
}
