package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Lunedor/plex-parity/internal/ledger"
	"github.com/Lunedor/plex-parity/internal/metadata"
)

type fakeClient struct {
	details     *metadata.ShowDetails
	seasons     map[int][]metadata.EpisodeAiring
	err         error
	seasonErr   map[int]error
	detailCalls int
	seasonCalls int
}

func (f *fakeClient) Resolve(context.Context, metadata.Hints) (metadata.Resolution, error) {
	return metadata.Resolution{}, errors.New("not used")
}

func (f *fakeClient) ShowDetails(context.Context, int64) (*metadata.ShowDetails, error) {
	f.detailCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.details, nil
}

func (f *fakeClient) SeasonEpisodes(_ context.Context, _ int64, season int, _ bool) ([]metadata.EpisodeAiring, error) {
	f.seasonCalls++
	if err := f.seasonErr[season]; err != nil {
		return nil, err
	}
	return f.seasons[season], nil
}

func (f *fakeClient) Invalidate(int64) {}

func date(t *testing.T, value string) *time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return &parsed
}

func oneSeasonClient(t *testing.T, airDates ...string) *fakeClient {
	t.Helper()
	episodes := make([]metadata.EpisodeAiring, 0, len(airDates))
	for i, value := range airDates {
		var air *time.Time
		if value != "" {
			air = date(t, value)
		}
		episodes = append(episodes, metadata.EpisodeAiring{Episode: i + 1, AirDate: air})
	}
	return &fakeClient{
		details: &metadata.ShowDetails{
			TMDBID: 42,
			Name:   "Test Show",
			Status: "Returning Series",
			Seasons: []metadata.SeasonCount{
				{Number: 1, EpisodeCount: len(episodes)},
			},
		},
		seasons: map[int][]metadata.EpisodeAiring{1: episodes},
	}
}

func newEntry() *ledger.Entry {
	entry := ledger.NewEntry("100", "Test Show", 2022)
	entry.TMDBID = 42
	return entry
}

func TestSeasonAuditMarksAiredAbsentEpisodeMissing(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	client := oneSeasonClient(t, "2026-02-01", "2026-02-08", "2026-02-15", "2026-03-09")
	r := New(client)
	entry := newEntry()
	local := map[int][]int{1: {1, 2, 3}}

	result, err := r.Reconcile(context.Background(), entry, local, Params{Tier: TierSeasonAudit, Now: now})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Added != 4 {
		t.Errorf("added = %d", result.Added)
	}

	ep4, ok := entry.Episode(ledger.Key{Season: 1, Episode: 4})
	if !ok {
		t.Fatal("episode 4 not recorded")
	}
	if ep4.State != ledger.StateMissing {
		t.Errorf("episode 4 state = %s", ep4.State)
	}
	for i := 1; i <= 3; i++ {
		ep, _ := entry.Episode(ledger.Key{Season: 1, Episode: i})
		if ep.State != ledger.StatePresent {
			t.Errorf("episode %d state = %s", i, ep.State)
		}
	}
	if entry.NeverAudited() {
		t.Error("audit timestamp not set")
	}
}

func TestLightweightPromotesWithoutMetadataCalls(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	client := oneSeasonClient(t, "2026-02-01", "2026-03-20")
	r := New(client)
	entry := newEntry()
	local := map[int][]int{1: {1}}

	if _, err := r.Reconcile(context.Background(), entry, local, Params{Tier: TierSeasonAudit, Now: now}); err != nil {
		t.Fatalf("audit: %v", err)
	}
	ep2, _ := entry.Episode(ledger.Key{Season: 1, Episode: 2})
	if ep2.State != ledger.StateUpcoming {
		t.Fatalf("episode 2 state = %s", ep2.State)
	}

	client.detailCalls = 0
	client.seasonCalls = 0

	// The stored air date passes; a lightweight pass promotes it with
	// zero metadata traffic.
	later := now.Add(15 * 24 * time.Hour)
	result, err := r.Reconcile(context.Background(), entry, local, Params{Tier: TierLightweight, Now: later})
	if err != nil {
		t.Fatalf("lightweight: %v", err)
	}
	if client.detailCalls != 0 || client.seasonCalls != 0 {
		t.Errorf("metadata called: details=%d seasons=%d", client.detailCalls, client.seasonCalls)
	}
	if result.Promoted != 1 {
		t.Errorf("promoted = %d", result.Promoted)
	}
	ep2, _ = entry.Episode(ledger.Key{Season: 1, Episode: 2})
	if ep2.State != ledger.StateMissing {
		t.Errorf("episode 2 state = %s", ep2.State)
	}
}

func TestAuditIsIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	client := oneSeasonClient(t, "2026-02-01", "2026-02-08", "")
	r := New(client)
	entry := newEntry()
	local := map[int][]int{1: {1}}

	if _, err := r.Reconcile(context.Background(), entry, local, Params{Tier: TierSeasonAudit, Now: now}); err != nil {
		t.Fatalf("first audit: %v", err)
	}
	first := snapshotStates(entry)

	result, err := r.Reconcile(context.Background(), entry, local, Params{Tier: TierSeasonAudit, Now: now})
	if err != nil {
		t.Fatalf("second audit: %v", err)
	}
	if result.Added != 0 {
		t.Errorf("second audit added %d episodes", result.Added)
	}
	second := snapshotStates(entry)
	if len(first) != len(second) {
		t.Fatalf("episode count changed: %d -> %d", len(first), len(second))
	}
	for code, state := range first {
		if second[code] != state {
			t.Errorf("%s flapped %s -> %s", code, state, second[code])
		}
	}
}

func TestVanishedKeysRetainedUnlessPruned(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	client := oneSeasonClient(t, "2026-02-01", "2026-02-08")
	r := New(client)
	entry := newEntry()

	// A key known to the ledger but reported by neither side.
	entry.UpsertEpisode(&ledger.Episode{Season: 1, Episode: 9, AirDate: date(t, "2025-01-01")}, now)

	if _, err := r.Reconcile(context.Background(), entry, map[int][]int{1: {1}}, Params{Tier: TierSeasonAudit, Now: now}); err != nil {
		t.Fatalf("audit: %v", err)
	}
	if _, ok := entry.Episode(ledger.Key{Season: 1, Episode: 9}); !ok {
		t.Fatal("vanished key dropped without prune")
	}

	if _, err := r.Reconcile(context.Background(), entry, map[int][]int{1: {1}}, Params{Tier: TierSeasonAudit, Now: now, Prune: true}); err != nil {
		t.Fatalf("prune audit: %v", err)
	}
	if _, ok := entry.Episode(ledger.Key{Season: 1, Episode: 9}); ok {
		t.Fatal("vanished key survived prune")
	}
}

func TestIgnoredSurvivesFullAudit(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	client := oneSeasonClient(t, "2026-02-01", "2026-02-08")
	r := New(client)
	entry := newEntry()
	entry.SetEpisodeIgnored(ledger.Key{Season: 1, Episode: 2}, true, now)

	if _, err := r.Reconcile(context.Background(), entry, map[int][]int{1: {1}}, Params{Tier: TierSeasonAudit, Now: now, BypassCache: true}); err != nil {
		t.Fatalf("audit: %v", err)
	}
	ep2, _ := entry.Episode(ledger.Key{Season: 1, Episode: 2})
	if ep2.State != ledger.StateIgnored {
		t.Errorf("episode 2 state = %s, want ignored", ep2.State)
	}

	entry.SetEpisodeIgnored(ledger.Key{Season: 1, Episode: 2}, false, now)
	ep2, _ = entry.Episode(ledger.Key{Season: 1, Episode: 2})
	if ep2.State != ledger.StateMissing {
		t.Errorf("unignored episode 2 state = %s, want missing", ep2.State)
	}
}

func TestMetadataFailureLeavesEntryUntouched(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	client := oneSeasonClient(t, "2026-02-01", "2026-02-08")
	r := New(client)
	entry := newEntry()

	if _, err := r.Reconcile(context.Background(), entry, map[int][]int{1: {1}}, Params{Tier: TierSeasonAudit, Now: now}); err != nil {
		t.Fatalf("seed audit: %v", err)
	}
	before := snapshotStates(entry)
	beforeAudit := entry.LastFullAudit

	client.seasonErr = map[int]error{1: metadata.ErrUnavailable}
	_, err := r.Reconcile(context.Background(), entry, map[int][]int{1: {1}}, Params{Tier: TierSeasonAudit, Now: now.Add(time.Hour), BypassCache: true})
	if !errors.Is(err, metadata.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	after := snapshotStates(entry)
	if len(before) != len(after) {
		t.Fatalf("episode count changed on failure: %d -> %d", len(before), len(after))
	}
	for code, state := range before {
		if after[code] != state {
			t.Errorf("%s changed on failure: %s -> %s", code, state, after[code])
		}
	}
	if !entry.LastFullAudit.Equal(beforeAudit) {
		t.Error("audit timestamp advanced on failure")
	}
}

func TestUnmatchedLocalEpisodeSurfaced(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	client := oneSeasonClient(t, "2026-02-01")
	r := New(client)
	entry := newEntry()

	result, err := r.Reconcile(context.Background(), entry, map[int][]int{1: {1, 7}}, Params{Tier: TierSeasonAudit, Now: now})
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(result.Unmatched) != 1 || result.Unmatched[0] != (ledger.Key{Season: 1, Episode: 7}) {
		t.Fatalf("unmatched = %v", result.Unmatched)
	}
	ep7, ok := entry.Episode(ledger.Key{Season: 1, Episode: 7})
	if !ok {
		t.Fatal("unmatched local episode not recorded")
	}
	if ep7.State != ledger.StatePresent {
		t.Errorf("unmatched episode state = %s", ep7.State)
	}
}

func TestAuditSkipsSpecialsAndFarFutureSeasons(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{
		details: &metadata.ShowDetails{
			TMDBID: 42,
			Status: "Returning Series",
			Seasons: []metadata.SeasonCount{
				{Number: 0, EpisodeCount: 3},
				{Number: 1, EpisodeCount: 2},
				{Number: 2, EpisodeCount: 2},
				{Number: 5, EpisodeCount: 2},
			},
		},
		seasons: map[int][]metadata.EpisodeAiring{
			1: {{Episode: 1, AirDate: date(t, "2025-01-01")}},
			2: {{Episode: 1, AirDate: date(t, "2026-01-01")}},
		},
	}
	r := New(client)
	entry := newEntry()

	result, err := r.Reconcile(context.Background(), entry, map[int][]int{1: {1}}, Params{Tier: TierSeasonAudit, Now: now})
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if result.SeasonsAudited != 2 {
		t.Errorf("seasons audited = %d, want 2 (specials and season 5 skipped)", result.SeasonsAudited)
	}
	if client.seasonCalls != 2 {
		t.Errorf("season fetches = %d", client.seasonCalls)
	}
}

func TestSelectTier(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	r := New(&fakeClient{})

	fresh := newEntry()
	if got := r.SelectTier(fresh, now); got != TierSeasonAudit {
		t.Errorf("never-audited tier = %s", got)
	}

	audited := newEntry()
	audited.LastFullAudit = now.Add(-time.Hour)
	if got := r.SelectTier(audited, now); got != TierLightweight {
		t.Errorf("steady-state tier = %s", got)
	}

	audited.Dirty = true
	if got := r.SelectTier(audited, now); got != TierSeasonAudit {
		t.Errorf("dirty tier = %s", got)
	}
	audited.Dirty = false

	soon := now.Add(3 * 24 * time.Hour)
	audited.UpsertEpisode(&ledger.Episode{Season: 1, Episode: 8, AirDate: &soon}, now)
	if got := r.SelectTier(audited, now); got != TierSeasonAudit {
		t.Errorf("upcoming-within-window tier = %s", got)
	}
}

func snapshotStates(entry *ledger.Entry) map[string]ledger.State {
	out := make(map[string]ledger.State, len(entry.Episodes))
	for code, ep := range entry.Episodes {
		out[code] = ep.State
	}
	return out
}
