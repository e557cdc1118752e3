package main

import (
	"time"

	"github.com/Lunedor/plex-parity/internal/config"
	"github.com/Lunedor/plex-parity/internal/inventory"
	"github.com/Lunedor/plex-parity/internal/ledgerstore"
	"github.com/Lunedor/plex-parity/internal/metadata"
	"github.com/Lunedor/plex-parity/internal/reconcile"
	"github.com/Lunedor/plex-parity/internal/scan"
	"github.com/Lunedor/plex-parity/internal/tmdb"
)

// engine bundles the wired collaborators a command needs to act on the
// library: provider, adapter, store, and orchestrator.
type engine struct {
	cfg          *config.Config
	store        *ledgerstore.Store
	adapter      *metadata.Adapter
	provider     *inventory.PlexProvider
	orchestrator *scan.Orchestrator
}

func (c *commandContext) openEngine() (*engine, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	api, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language)
	if err != nil {
		return nil, err
	}
	adapter, err := metadata.NewAdapter(api,
		metadata.WithRetryMaxAttempts(cfg.TMDB.RetryMaxAttempts),
		metadata.WithRetryBackoff(time.Duration(cfg.TMDB.RetryBaseDelayMS)*time.Millisecond, 0),
		metadata.WithCacheTTL(time.Duration(cfg.TMDB.CacheTTLHours)*time.Hour),
		metadata.WithCachePath(cfg.MetadataCachePath()),
		metadata.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	provider := inventory.NewPlexProvider(
		cfg.Plex.URL, cfg.Plex.Token, cfg.Plex.Library,
		time.Duration(cfg.Plex.Timeout)*time.Second,
		inventory.WithWatchlistURL(cfg.Plex.WatchlistURL),
	)

	store, err := ledgerstore.Open(cfg.LedgerPath(), logger)
	if err != nil {
		return nil, err
	}

	reconciler := reconcile.New(adapter,
		reconcile.WithLogger(logger),
		reconcile.WithLookahead(time.Duration(cfg.Scan.LookaheadDays)*24*time.Hour),
	)
	orchestrator := scan.New(provider, adapter, reconciler, store, cfg.ScanLockPath(),
		scan.WithLogger(logger))

	return &engine{
		cfg:          cfg,
		store:        store,
		adapter:      adapter,
		provider:     provider,
		orchestrator: orchestrator,
	}, nil
}
