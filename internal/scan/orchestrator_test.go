package scan

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/Lunedor/plex-parity/internal/inventory"
	"github.com/Lunedor/plex-parity/internal/ledger"
	"github.com/Lunedor/plex-parity/internal/ledgerstore"
	"github.com/Lunedor/plex-parity/internal/metadata"
	"github.com/Lunedor/plex-parity/internal/reconcile"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeProvider struct {
	shows     []inventory.Show
	episodes  map[string]map[int][]int
	watchlist []inventory.WatchlistItem
	listErr   error
	epErr     map[string]error
}

func (f *fakeProvider) ListShows(context.Context) ([]inventory.Show, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.shows, nil
}

func (f *fakeProvider) ShowEpisodes(_ context.Context, showKey string) (map[int][]int, error) {
	if err := f.epErr[showKey]; err != nil {
		return nil, err
	}
	return f.episodes[showKey], nil
}

func (f *fakeProvider) Watchlist(context.Context) ([]inventory.WatchlistItem, error) {
	return f.watchlist, nil
}

type fakeMeta struct {
	resolved    map[string]int64
	details     map[int64]*metadata.ShowDetails
	seasons     map[int64]map[int][]metadata.EpisodeAiring
	detailErr   map[int64]error
	invalidated []int64
	seasonCalls int
	saveCalls   int
	cancelOn    int64
	cancel      context.CancelFunc
}

func (f *fakeMeta) Resolve(_ context.Context, hints metadata.Hints) (metadata.Resolution, error) {
	if hints.ManualTMDBID != 0 {
		return metadata.Resolution{TMDBID: hints.ManualTMDBID, Source: ledger.SourceManual}, nil
	}
	if id, ok := f.resolved[hints.Title]; ok {
		return metadata.Resolution{TMDBID: id, Source: ledger.SourceAuto}, nil
	}
	return metadata.Resolution{}, metadata.ErrNotFound
}

func (f *fakeMeta) ShowDetails(ctx context.Context, tmdbID int64) (*metadata.ShowDetails, error) {
	if f.cancelOn != 0 && tmdbID == f.cancelOn {
		f.cancel()
		return nil, ctx.Err()
	}
	if err := f.detailErr[tmdbID]; err != nil {
		return nil, err
	}
	details, ok := f.details[tmdbID]
	if !ok {
		return nil, metadata.ErrNotFound
	}
	return details, nil
}

func (f *fakeMeta) SeasonEpisodes(_ context.Context, tmdbID int64, season int, _ bool) ([]metadata.EpisodeAiring, error) {
	f.seasonCalls++
	return f.seasons[tmdbID][season], nil
}

func (f *fakeMeta) Invalidate(tmdbID int64) {
	f.invalidated = append(f.invalidated, tmdbID)
}

func (f *fakeMeta) ValidateID(ctx context.Context, tmdbID int64) error {
	_, err := f.ShowDetails(ctx, tmdbID)
	return err
}

func (f *fakeMeta) SaveCache() error {
	f.saveCalls++
	return nil
}

func airDate(value string) *time.Time {
	parsed, _ := time.Parse("2006-01-02", value)
	return &parsed
}

func twoShowFixture() (*fakeProvider, *fakeMeta) {
	provider := &fakeProvider{
		shows: []inventory.Show{
			{Key: "1", Title: "Alpha", Year: 2020, GUIDs: []string{"tmdb://11"}},
			{Key: "2", Title: "Beta", Year: 2021, GUIDs: []string{"tmdb://22"}},
		},
		episodes: map[string]map[int][]int{
			"1": {1: {1, 2}},
			"2": {1: {1}},
		},
	}
	meta := &fakeMeta{
		resolved: map[string]int64{"Alpha": 11, "Beta": 22},
		details: map[int64]*metadata.ShowDetails{
			11: {TMDBID: 11, Status: "Returning Series", Seasons: []metadata.SeasonCount{{Number: 1, EpisodeCount: 3}}},
			22: {TMDBID: 22, Status: "Returning Series", Seasons: []metadata.SeasonCount{{Number: 1, EpisodeCount: 2}}},
		},
		seasons: map[int64]map[int][]metadata.EpisodeAiring{
			11: {1: {
				{Episode: 1, AirDate: airDate("2026-01-01")},
				{Episode: 2, AirDate: airDate("2026-01-08")},
				{Episode: 3, AirDate: airDate("2026-02-01")},
			}},
			22: {1: {
				{Episode: 1, AirDate: airDate("2026-01-01")},
				{Episode: 2, AirDate: airDate("2026-01-08")},
			}},
		},
	}
	return provider, meta
}

func newTestOrchestrator(t *testing.T, provider *fakeProvider, meta *fakeMeta) (*Orchestrator, *ledgerstore.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := ledgerstore.Open(filepath.Join(dir, "ledger.json"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	reconciler := reconcile.New(meta)
	o := New(provider, meta, reconciler, store, filepath.Join(dir, "scan.lock"),
		WithClock(func() time.Time { return testNow }))
	return o, store
}

func TestFullScanRecordsMissingEpisodes(t *testing.T) {
	provider, meta := twoShowFixture()
	o, store := newTestOrchestrator(t, provider, meta)

	record, err := o.Run(context.Background(), Request{Mode: ModeFull, Scope: ScopeLibrary})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if record.Outcome != OutcomeCompleted {
		t.Errorf("outcome = %s", record.Outcome)
	}
	if record.ShowsVisited != 2 || record.ShowsFailed != 0 {
		t.Errorf("visited=%d failed=%d", record.ShowsVisited, record.ShowsFailed)
	}

	alpha, _ := store.Ledger().Get("1")
	ep3, ok := alpha.Episode(ledger.Key{Season: 1, Episode: 3})
	if !ok || ep3.State != ledger.StateMissing {
		t.Errorf("alpha S01E03 = %+v", ep3)
	}
	beta, _ := store.Ledger().Get("2")
	ep2, ok := beta.Episode(ledger.Key{Season: 1, Episode: 2})
	if !ok || ep2.State != ledger.StateMissing {
		t.Errorf("beta S01E02 = %+v", ep2)
	}
	if meta.saveCalls != 1 {
		t.Errorf("cache save calls = %d", meta.saveCalls)
	}
}

func TestMetadataFailureSkipsShowAndContinues(t *testing.T) {
	provider, meta := twoShowFixture()
	meta.detailErr = map[int64]error{11: metadata.ErrUnavailable}
	o, store := newTestOrchestrator(t, provider, meta)

	record, err := o.Run(context.Background(), Request{Mode: ModeFull, Scope: ScopeLibrary})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if record.Outcome != OutcomeCompleted {
		t.Errorf("outcome = %s", record.Outcome)
	}
	if record.ShowsFailed != 1 || record.ShowsVisited != 1 {
		t.Errorf("failed=%d visited=%d", record.ShowsFailed, record.ShowsVisited)
	}
	if len(record.Failures) != 1 || record.Failures[0].Title != "Alpha" {
		t.Errorf("failures = %+v", record.Failures)
	}

	// The failed show's entry holds no episode records at all.
	alpha, _ := store.Ledger().Get("1")
	if len(alpha.Episodes) != 0 {
		t.Errorf("failed show gained %d episodes", len(alpha.Episodes))
	}
	beta, _ := store.Ledger().Get("2")
	if len(beta.Episodes) == 0 {
		t.Error("subsequent show was not visited")
	}
}

func TestUnresolvableShowNeedsManualFix(t *testing.T) {
	provider, meta := twoShowFixture()
	delete(meta.resolved, "Alpha")
	provider.shows[0].GUIDs = nil
	o, _ := newTestOrchestrator(t, provider, meta)

	record, err := o.Run(context.Background(), Request{Mode: ModeFull, Scope: ScopeLibrary})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if record.ShowsFailed != 1 {
		t.Fatalf("failed = %d", record.ShowsFailed)
	}
	if record.Failures[0].Reason != "no TMDB match; needs a manual override" {
		t.Errorf("reason = %q", record.Failures[0].Reason)
	}
}

func TestOverrideForcesAuditAndInvalidatesOldID(t *testing.T) {
	provider, meta := twoShowFixture()
	o, store := newTestOrchestrator(t, provider, meta)

	if _, err := o.Run(context.Background(), Request{Mode: ModeFull, Scope: ScopeLibrary}); err != nil {
		t.Fatalf("seed scan: %v", err)
	}

	// The override target exists on TMDB.
	meta.details[33] = &metadata.ShowDetails{TMDBID: 33, Status: "Returning Series",
		Seasons: []metadata.SeasonCount{{Number: 1, EpisodeCount: 2}}}
	meta.seasons[33] = map[int][]metadata.EpisodeAiring{1: {
		{Episode: 1, AirDate: airDate("2026-01-01")},
		{Episode: 2, AirDate: airDate("2026-01-08")},
	}}

	if err := o.ApplyOverride(context.Background(), "Alpha", 33); err != nil {
		t.Fatalf("ApplyOverride: %v", err)
	}
	if len(meta.invalidated) != 1 || meta.invalidated[0] != 11 {
		t.Errorf("invalidated = %v", meta.invalidated)
	}

	alpha, _ := store.Ledger().Get("1")
	if !alpha.Dirty || alpha.TMDBID != 33 || alpha.Source != ledger.SourceManual {
		t.Errorf("entry after override: dirty=%v tmdb=%d source=%s", alpha.Dirty, alpha.TMDBID, alpha.Source)
	}

	// An incremental scan audits the overridden show even though it would
	// otherwise qualify for the lightweight tier.
	before := meta.seasonCalls
	record, err := o.Run(context.Background(), Request{Mode: ModeIncremental, Scope: ScopeLibrary})
	if err != nil {
		t.Fatalf("incremental scan: %v", err)
	}
	if record.SeasonsAudited == 0 || meta.seasonCalls == before {
		t.Error("override did not force a season audit")
	}
	alpha, _ = store.Ledger().Get("1")
	if alpha.Dirty {
		t.Error("dirty flag not cleared after audit")
	}
}

func TestClearOverride(t *testing.T) {
	provider, meta := twoShowFixture()
	o, store := newTestOrchestrator(t, provider, meta)
	if _, err := o.Run(context.Background(), Request{Mode: ModeFull, Scope: ScopeLibrary}); err != nil {
		t.Fatalf("seed scan: %v", err)
	}

	if err := o.ClearOverride("Alpha"); err == nil {
		t.Error("expected error clearing an absent override")
	}

	meta.details[33] = &metadata.ShowDetails{TMDBID: 33}
	if err := o.ApplyOverride(context.Background(), "Alpha", 33); err != nil {
		t.Fatalf("ApplyOverride: %v", err)
	}
	if err := o.ClearOverride("Alpha"); err != nil {
		t.Fatalf("ClearOverride: %v", err)
	}
	alpha, _ := store.Ledger().Get("1")
	if alpha.HasOverride() || alpha.TMDBID != 0 || !alpha.Dirty {
		t.Errorf("entry after clear: %+v", alpha)
	}
}

func TestConcurrentScanRejected(t *testing.T) {
	provider, meta := twoShowFixture()
	o, _ := newTestOrchestrator(t, provider, meta)

	lock := flock.New(o.lockPath)
	ok, err := lock.TryLock()
	if err != nil || !ok {
		t.Fatalf("prelock: ok=%v err=%v", ok, err)
	}
	defer lock.Unlock()

	_, err = o.Run(context.Background(), Request{Mode: ModeIncremental, Scope: ScopeLibrary})
	if !errors.Is(err, ErrScanInProgress) {
		t.Fatalf("expected ErrScanInProgress, got %v", err)
	}
}

func TestCancellationYieldsPartialOutcome(t *testing.T) {
	provider, meta := twoShowFixture()
	o, store := newTestOrchestrator(t, provider, meta)

	// The second show's details fetch cancels the scan, after the first
	// show has already been persisted.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	meta.cancelOn = 22
	meta.cancel = cancel

	record, err := o.Run(ctx, Request{Mode: ModeFull, Scope: ScopeLibrary})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if record.Outcome != OutcomePartial {
		t.Errorf("outcome = %s", record.Outcome)
	}
	// Already-persisted progress survives cancellation.
	alpha, _ := store.Ledger().Get("1")
	if len(alpha.Episodes) == 0 {
		t.Error("persisted show lost on cancellation")
	}
}

func TestTargetedScanVisitsOneShow(t *testing.T) {
	provider, meta := twoShowFixture()
	o, store := newTestOrchestrator(t, provider, meta)

	record, err := o.Run(context.Background(), Request{Mode: ModeTargeted, Scope: ScopeLibrary, TargetShow: "beta"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if record.ShowsSelected != 1 || record.ShowsVisited != 1 {
		t.Errorf("selected=%d visited=%d", record.ShowsSelected, record.ShowsVisited)
	}
	if _, ok := store.Ledger().Get("1"); ok {
		t.Error("untargeted show entered the ledger")
	}
}

func TestFullScanPrunesGoneShows(t *testing.T) {
	provider, meta := twoShowFixture()
	o, store := newTestOrchestrator(t, provider, meta)
	if _, err := o.Run(context.Background(), Request{Mode: ModeFull, Scope: ScopeLibrary}); err != nil {
		t.Fatalf("seed scan: %v", err)
	}

	provider.shows = provider.shows[:1] // Beta leaves the library
	record, err := o.Run(context.Background(), Request{Mode: ModeFull, Scope: ScopeLibrary})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if record.ShowsPruned != 1 {
		t.Errorf("pruned = %d", record.ShowsPruned)
	}
	if _, ok := store.Ledger().Get("2"); ok {
		t.Error("gone show still in ledger")
	}
}

func TestWatchlistScopeNarrowsSelection(t *testing.T) {
	provider, meta := twoShowFixture()
	provider.watchlist = []inventory.WatchlistItem{{Title: "Alpha", Year: 2020, GUIDs: []string{"tmdb://11"}}}
	o, store := newTestOrchestrator(t, provider, meta)

	record, err := o.Run(context.Background(), Request{Mode: ModeFull, Scope: ScopeWatchlist})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if record.ShowsSelected != 1 {
		t.Errorf("selected = %d", record.ShowsSelected)
	}
	if _, ok := store.Ledger().Get("2"); ok {
		t.Error("out-of-scope show entered the ledger")
	}
}

func TestRefreshModeSkipsDiscovery(t *testing.T) {
	provider, meta := twoShowFixture()
	o, _ := newTestOrchestrator(t, provider, meta)
	if _, err := o.Run(context.Background(), Request{Mode: ModeFull, Scope: ScopeLibrary}); err != nil {
		t.Fatalf("seed scan: %v", err)
	}

	provider.listErr = inventory.ErrUnavailable
	record, err := o.Run(context.Background(), Request{Mode: ModeRefresh, Scope: ScopeLibrary})
	if err != nil {
		t.Fatalf("refresh should not list the library: %v", err)
	}
	// Both shows hold missing episodes after the seed scan.
	if record.ShowsSelected != 2 {
		t.Errorf("selected = %d", record.ShowsSelected)
	}
}

func TestShowIgnoreSurvivesRescan(t *testing.T) {
	provider, meta := twoShowFixture()
	o, store := newTestOrchestrator(t, provider, meta)
	if _, err := o.Run(context.Background(), Request{Mode: ModeFull, Scope: ScopeLibrary}); err != nil {
		t.Fatalf("seed scan: %v", err)
	}

	if err := o.SetEpisodeIgnored("Beta", ledger.Key{Season: 1, Episode: 2}, true); err != nil {
		t.Fatalf("SetEpisodeIgnored: %v", err)
	}
	if _, err := o.Run(context.Background(), Request{Mode: ModeFull, Scope: ScopeLibrary}); err != nil {
		t.Fatalf("rescan: %v", err)
	}
	beta, _ := store.Ledger().Get("2")
	ep2, _ := beta.Episode(ledger.Key{Season: 1, Episode: 2})
	if ep2.State != ledger.StateIgnored {
		t.Errorf("ignored episode state = %s after rescan", ep2.State)
	}
}
