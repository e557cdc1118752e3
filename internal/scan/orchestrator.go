package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/Lunedor/plex-parity/internal/inventory"
	"github.com/Lunedor/plex-parity/internal/ledger"
	"github.com/Lunedor/plex-parity/internal/ledgerstore"
	"github.com/Lunedor/plex-parity/internal/logging"
	"github.com/Lunedor/plex-parity/internal/metadata"
	"github.com/Lunedor/plex-parity/internal/reconcile"
)

// ErrScanInProgress rejects a scan requested while another holds the
// state-directory lock. Rejected, never queued.
var ErrScanInProgress = errors.New("another scan is already running")

// MetadataClient is the adapter surface the orchestrator needs beyond
// reconciliation: override validation and cache persistence.
type MetadataClient interface {
	metadata.Client
	ValidateID(ctx context.Context, tmdbID int64) error
	SaveCache() error
}

// Request describes one scan invocation.
type Request struct {
	Mode  Mode
	Scope Scope
	// TargetShow names the single show for ModeTargeted, matched by show
	// key or title.
	TargetShow string
	// Prune drops vanished episode keys during season audits.
	Prune bool
}

// Orchestrator runs scans and owns all ledger mutations.
type Orchestrator struct {
	provider   inventory.Provider
	metadata   MetadataClient
	reconciler *reconcile.Reconciler
	store      *ledgerstore.Store
	lockPath   string
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logging.NewComponentLogger(logger, "scan")
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New builds an orchestrator over the given collaborators.
func New(provider inventory.Provider, client MetadataClient, reconciler *reconcile.Reconciler, store *ledgerstore.Store, lockPath string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:   provider,
		metadata:   client,
		reconciler: reconciler,
		store:      store,
		lockPath:   lockPath,
		logger:     logging.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// visit is one selected show plus the tier chosen for it. Shows visited
// from the ledger alone (refresh mode) carry no inventory identity.
type visit struct {
	entry *ledger.Entry
	show  *inventory.Show
	tier  reconcile.Tier
}

// Run executes one scan and returns its record. The record is returned
// alongside the error for failed scans so callers can report counts.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Record, error) {
	if req.Mode == ModeTargeted && strings.TrimSpace(req.TargetShow) == "" {
		return nil, errors.New("targeted scan requires a show")
	}

	unlock, err := o.acquireLock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	record := &Record{
		ID:         uuid.New().String(),
		Mode:       req.Mode,
		Scope:      req.Scope,
		TargetShow: req.TargetShow,
		StartedAt:  o.now(),
	}
	o.logger.Info("scan started",
		logging.String(logging.FieldEventType, "scan_started"),
		logging.String(logging.FieldScanID, record.ID),
		logging.String(logging.FieldScanMode, string(req.Mode)),
		logging.String("scope", string(req.Scope)))

	visits, err := o.selectShows(ctx, req, record)
	if err != nil {
		return o.finish(record, OutcomeFailed), err
	}
	record.ShowsSelected = len(visits)

	cancelled := false
	for _, v := range visits {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		if err := o.visitShow(ctx, req, record, v); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				cancelled = true
				break
			}
			// Storage failures are the only per-show errors that abort.
			return o.finish(record, OutcomeFailed), err
		}
	}

	if err := o.metadata.SaveCache(); err != nil {
		o.logger.Warn("season cache not persisted",
			logging.String(logging.FieldEventType, "metadata_cache_save_failed"),
			logging.Error(err))
	}

	if cancelled {
		return o.finish(record, OutcomePartial), nil
	}
	return o.finish(record, OutcomeCompleted), nil
}

func (o *Orchestrator) acquireLock() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(o.lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(o.lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire scan lock: %w", err)
	}
	if !ok {
		return nil, ErrScanInProgress
	}
	return func() { _ = lock.Unlock() }, nil
}

// selectShows builds the visit list for the requested mode and scope.
func (o *Orchestrator) selectShows(ctx context.Context, req Request, record *Record) ([]visit, error) {
	led := o.store.Ledger()
	now := o.now()

	if req.Mode == ModeRefresh {
		return o.selectFromLedger(led, now), nil
	}

	shows, err := o.provider.ListShows(ctx)
	if err != nil {
		return nil, fmt.Errorf("list library shows: %w", err)
	}
	if req.Scope == ScopeWatchlist {
		items, err := o.provider.Watchlist(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch watchlist: %w", err)
		}
		shows = inventory.FilterByWatchlist(shows, items)
	}

	if req.Mode == ModeFull && req.Scope == ScopeLibrary {
		if err := o.pruneGoneShows(led, shows, record); err != nil {
			return nil, err
		}
	}

	var visits []visit
	switch req.Mode {
	case ModeTargeted:
		show := matchShow(shows, req.TargetShow)
		if show == nil {
			return nil, fmt.Errorf("show %q not found in library", req.TargetShow)
		}
		entry := led.GetOrCreate(show.Key, show.Title, show.Year)
		visits = append(visits, visit{entry: entry, show: show, tier: reconcile.TierTargeted})
	case ModeFull:
		for i := range shows {
			show := &shows[i]
			entry := led.GetOrCreate(show.Key, show.Title, show.Year)
			visits = append(visits, visit{entry: entry, show: show, tier: reconcile.TierSeasonAudit})
		}
	default: // incremental
		for i := range shows {
			show := &shows[i]
			entry := led.GetOrCreate(show.Key, show.Title, show.Year)
			if entry.Archived() && !entry.Dirty {
				record.ShowsSkipped++
				continue
			}
			visits = append(visits, visit{entry: entry, show: show, tier: o.reconciler.SelectTier(entry, now)})
		}
	}
	return visits, nil
}

// selectFromLedger picks the refresh-mode set: non-archived shows holding
// missing or upcoming episodes, no library discovery involved.
func (o *Orchestrator) selectFromLedger(led *ledger.Ledger, now time.Time) []visit {
	seen := make(map[string]struct{})
	var visits []visit
	add := func(projected []ledger.ShowEpisodes) {
		for _, item := range projected {
			if _, ok := seen[item.Entry.ShowKey]; ok {
				continue
			}
			seen[item.Entry.ShowKey] = struct{}{}
			visits = append(visits, visit{entry: item.Entry, tier: reconcile.TierSeasonAudit})
		}
	}
	add(led.Missing(false))
	add(led.Upcoming(false))
	return visits
}

// pruneGoneShows drops ledger entries for shows Plex no longer reports.
func (o *Orchestrator) pruneGoneShows(led *ledger.Ledger, shows []inventory.Show, record *Record) error {
	reported := make(map[string]struct{}, len(shows))
	for _, show := range shows {
		reported[show.Key] = struct{}{}
	}
	for _, key := range led.Keys() {
		if _, ok := reported[key]; ok {
			continue
		}
		entry, _ := led.Get(key)
		o.logger.Info("pruning show no longer in library",
			logging.String(logging.FieldEventType, "show_pruned"),
			logging.String(logging.FieldShowKey, key),
			logging.String(logging.FieldShowTitle, entry.Title))
		if err := o.store.Prune(key); err != nil {
			return fmt.Errorf("prune show %s: %w", key, err)
		}
		record.ShowsPruned++
	}
	return nil
}

// visitShow runs one show through resolution and reconciliation and
// persists the outcome. Per-show metadata and inventory failures are
// recorded and swallowed; only storage errors propagate.
func (o *Orchestrator) visitShow(ctx context.Context, req Request, record *Record, v visit) error {
	now := o.now()
	entry := v.entry

	if v.show != nil {
		o.applySignature(entry, v.show, now)
	}

	tier := v.tier
	if entry.Dirty && tier == reconcile.TierLightweight {
		// An override or re-match since selection forces an audit.
		tier = reconcile.TierSeasonAudit
	}

	if tier != reconcile.TierLightweight {
		if err := o.resolveShow(ctx, entry, v.show); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			record.fail(entry.ShowKey, entry.Title, failureReason(err))
			o.logShowFailure(record, entry, err)
			return nil
		}
	}

	local, err := o.provider.ShowEpisodes(ctx, entry.ShowKey)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		record.fail(entry.ShowKey, entry.Title, failureReason(err))
		o.logShowFailure(record, entry, err)
		return nil
	}

	result, err := o.reconciler.Reconcile(ctx, entry, local, reconcile.Params{
		Tier:        tier,
		Now:         now,
		Prune:       req.Prune,
		BypassCache: req.Mode == ModeFull || req.Mode == ModeRefresh,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		record.fail(entry.ShowKey, entry.Title, failureReason(err))
		o.logShowFailure(record, entry, err)
		return nil
	}

	record.ShowsVisited++
	record.SeasonsAudited += result.SeasonsAudited
	record.EpisodesAdded += result.Added
	record.EpisodesPromoted += result.Promoted

	if err := o.store.SaveEntry(entry); err != nil {
		return fmt.Errorf("persist show %s: %w", entry.ShowKey, err)
	}
	return nil
}

// applySignature detects a Plex re-match. A changed signature resets the
// resolved identity (manual overrides survive) and marks the entry dirty.
func (o *Orchestrator) applySignature(entry *ledger.Entry, show *inventory.Show, now time.Time) {
	sig := show.Signature()
	if entry.PlexSignature != "" && entry.PlexSignature != sig {
		o.logger.Info("plex identity changed; resetting resolution",
			logging.String(logging.FieldEventType, "show_rematched"),
			logging.String(logging.FieldShowKey, entry.ShowKey),
			logging.String(logging.FieldShowTitle, entry.Title))
		entry.ResetResolution(false)
	}
	entry.PlexSignature = sig
}

// resolveShow ensures the entry carries a TMDB id, running the resolution
// ladder on first sight or after a reset.
func (o *Orchestrator) resolveShow(ctx context.Context, entry *ledger.Entry, show *inventory.Show) error {
	if entry.TMDBID != 0 && !entry.Dirty {
		return nil
	}
	hints := metadata.Hints{
		Title:        entry.Title,
		Year:         entry.Year,
		ManualTMDBID: entry.ManualTMDBID,
		CachedTMDBID: entry.TMDBID,
	}
	if show != nil {
		hints.PlexTMDBID = show.TMDBID()
		hints.PlexIMDBID = show.IMDBID()
	}
	resolution, err := o.metadata.Resolve(ctx, hints)
	if err != nil {
		return err
	}
	entry.TMDBID = resolution.TMDBID
	entry.Source = resolution.Source
	return nil
}

func (o *Orchestrator) finish(record *Record, outcome Outcome) *Record {
	record.FinishedAt = o.now()
	record.Outcome = outcome
	o.logger.Info("scan finished",
		logging.String(logging.FieldEventType, "scan_finished"),
		logging.String(logging.FieldScanID, record.ID),
		logging.String("outcome", string(outcome)),
		logging.Int("visited", record.ShowsVisited),
		logging.Int("failed", record.ShowsFailed),
		logging.Int("added", record.EpisodesAdded),
		logging.Duration("duration", record.Duration()))
	return record
}

func (o *Orchestrator) logShowFailure(record *Record, entry *ledger.Entry, err error) {
	o.logger.Warn("show visit failed; continuing scan",
		logging.String(logging.FieldEventType, "show_visit_failed"),
		logging.String(logging.FieldScanID, record.ID),
		logging.String(logging.FieldShowKey, entry.ShowKey),
		logging.String(logging.FieldShowTitle, entry.Title),
		logging.Error(err))
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, metadata.ErrNotFound):
		return "no TMDB match; needs a manual override"
	case errors.Is(err, metadata.ErrUnavailable):
		return "metadata unavailable"
	case errors.Is(err, inventory.ErrUnavailable):
		return "inventory lookup failed"
	default:
		return err.Error()
	}
}

func matchShow(shows []inventory.Show, target string) *inventory.Show {
	target = strings.TrimSpace(target)
	for i := range shows {
		if shows[i].Key == target {
			return &shows[i]
		}
	}
	for i := range shows {
		if strings.EqualFold(shows[i].Title, target) {
			return &shows[i]
		}
	}
	return nil
}
