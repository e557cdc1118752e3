package scan

import (
	"context"
	"fmt"
	"strings"

	"github.com/Lunedor/plex-parity/internal/ledger"
	"github.com/Lunedor/plex-parity/internal/logging"
)

// FindEntry looks a show up by exact key or case-insensitive title.
func (o *Orchestrator) FindEntry(keyOrTitle string) (*ledger.Entry, error) {
	keyOrTitle = strings.TrimSpace(keyOrTitle)
	led := o.store.Ledger()
	if entry, ok := led.Get(keyOrTitle); ok {
		return entry, nil
	}
	for _, entry := range led.Entries() {
		if strings.EqualFold(entry.Title, keyOrTitle) {
			return entry, nil
		}
	}
	return nil, fmt.Errorf("show %q not found in ledger; run a scan first", keyOrTitle)
}

// ApplyOverride pins a show to an explicit TMDB id. The id is validated
// against TMDB, cached seasons under the previous id are invalidated, and
// the entry is marked dirty so the next visit forces a season audit.
func (o *Orchestrator) ApplyOverride(ctx context.Context, keyOrTitle string, tmdbID int64) error {
	if tmdbID <= 0 {
		return fmt.Errorf("invalid TMDB id %d", tmdbID)
	}
	entry, err := o.FindEntry(keyOrTitle)
	if err != nil {
		return err
	}
	if err := o.metadata.ValidateID(ctx, tmdbID); err != nil {
		return fmt.Errorf("validate TMDB id %d: %w", tmdbID, err)
	}

	previous := entry.TMDBID
	entry.ManualTMDBID = tmdbID
	entry.ResetResolution(false)
	if previous != 0 && previous != tmdbID {
		o.metadata.Invalidate(previous)
	}

	o.logger.Info("manual override applied",
		logging.String(logging.FieldEventType, "override_applied"),
		logging.String(logging.FieldShowKey, entry.ShowKey),
		logging.String(logging.FieldShowTitle, entry.Title),
		logging.Int64("tmdb_id", tmdbID))
	return o.store.SaveEntry(entry)
}

// ClearOverride removes a manual override and forces re-resolution.
func (o *Orchestrator) ClearOverride(keyOrTitle string) error {
	entry, err := o.FindEntry(keyOrTitle)
	if err != nil {
		return err
	}
	if !entry.HasOverride() {
		return fmt.Errorf("show %q has no manual override", entry.Title)
	}
	previous := entry.TMDBID
	entry.ResetResolution(true)
	if previous != 0 {
		o.metadata.Invalidate(previous)
	}
	return o.store.SaveEntry(entry)
}

// SetEpisodeIgnored flags or unflags one episode.
func (o *Orchestrator) SetEpisodeIgnored(keyOrTitle string, key ledger.Key, ignored bool) error {
	entry, err := o.FindEntry(keyOrTitle)
	if err != nil {
		return err
	}
	entry.SetEpisodeIgnored(key, ignored, o.now())
	return o.store.SaveEntry(entry)
}

// SetShowIgnored flags or unflags every episode of a show.
func (o *Orchestrator) SetShowIgnored(keyOrTitle string, ignored bool) error {
	entry, err := o.FindEntry(keyOrTitle)
	if err != nil {
		return err
	}
	entry.SetIgnoreAll(ignored, o.now())
	return o.store.SaveEntry(entry)
}
