package reconcile

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/Lunedor/plex-parity/internal/ledger"
	"github.com/Lunedor/plex-parity/internal/logging"
	"github.com/Lunedor/plex-parity/internal/metadata"
)

// Tier selects how much work a show visit performs.
type Tier int

const (
	// TierLightweight refreshes presence and state snapshots only. It
	// never calls the metadata client.
	TierLightweight Tier = iota
	// TierSeasonAudit rebuilds the expected episode set from metadata.
	TierSeasonAudit
	// TierTargeted is a season audit for one explicitly chosen show.
	TierTargeted
)

// String renders the tier for logs and scan records.
func (t Tier) String() string {
	switch t {
	case TierSeasonAudit:
		return "season_audit"
	case TierTargeted:
		return "targeted"
	default:
		return "lightweight"
	}
}

// Params carries the per-visit inputs that are not the show itself.
type Params struct {
	Tier Tier
	Now  time.Time
	// Prune drops ledger keys no longer reported by metadata or
	// inventory. Off by default: vanished keys are retained as
	// unknown-but-not-missing.
	Prune bool
	// BypassCache forces fresh season fetches past the TTL cache.
	BypassCache bool
}

// Result summarizes what one visit changed.
type Result struct {
	Tier           Tier
	SeasonsAudited int
	Added          int
	Promoted       int
	// Unmatched lists locally present episodes with no metadata match.
	// They are recorded as present but flagged for a manual override.
	Unmatched []ledger.Key
}

// Reconciler applies the tiered diff algorithm to ledger entries.
type Reconciler struct {
	metadata  metadata.Client
	logger    *slog.Logger
	lookahead time.Duration
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logging.NewComponentLogger(logger, "reconcile")
		}
	}
}

// WithLookahead overrides the upcoming-episode window used for tier
// selection.
func WithLookahead(window time.Duration) Option {
	return func(r *Reconciler) {
		if window > 0 {
			r.lookahead = window
		}
	}
}

// New builds a Reconciler over the given metadata client.
func New(client metadata.Client, opts ...Option) *Reconciler {
	r := &Reconciler{
		metadata:  client,
		logger:    logging.NewNop(),
		lookahead: 14 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SelectTier picks the incremental-scan tier for a show: a season audit
// when the show has never been audited, was marked dirty, or has an
// episode airing inside the lookahead window; lightweight otherwise.
func (r *Reconciler) SelectTier(entry *ledger.Entry, now time.Time) Tier {
	if entry.NeverAudited() || entry.Dirty {
		return TierSeasonAudit
	}
	if entry.HasUpcomingWithin(now, r.lookahead) {
		return TierSeasonAudit
	}
	return TierLightweight
}

// Reconcile runs one visit of the show at the requested tier. local is
// the inventory's season -> episode-number view of what is on disk.
func (r *Reconciler) Reconcile(ctx context.Context, entry *ledger.Entry, local map[int][]int, params Params) (*Result, error) {
	switch params.Tier {
	case TierSeasonAudit, TierTargeted:
		return r.auditSeasons(ctx, entry, local, params)
	default:
		return r.lightweight(entry, local, params.Now), nil
	}
}

// lightweight updates presence flags from the fresh inventory and
// re-derives every state snapshot. No network, no metadata client.
func (r *Reconciler) lightweight(entry *ledger.Entry, local map[int][]int, now time.Time) *Result {
	result := &Result{Tier: TierLightweight}
	localSet := flattenLocal(local)

	for _, ep := range entry.Episodes {
		wasUpcoming := ep.State == ledger.StateUpcoming
		ep.Present = localSet[ep.Key()]
		delete(localSet, ep.Key())
		ep.State = ledger.DeriveState(ep.Present, ep.Ignored || entry.IgnoreAll, ep.AirDate, now)
		if wasUpcoming && ep.State == ledger.StateMissing {
			result.Promoted++
		}
	}

	// Local episodes the ledger has never seen get a present record and a
	// manual-override flag; without metadata there is nothing to match
	// them against.
	for key := range localSet {
		entry.UpsertEpisode(&ledger.Episode{
			Season:  key.Season,
			Episode: key.Episode,
			Present: true,
		}, now)
		result.Added++
		result.Unmatched = append(result.Unmatched, key)
	}
	sortKeys(result.Unmatched)

	entry.LastChecked = now
	return result
}

// auditSeasons stages all metadata responses first, then applies the
// union diff. The entry is untouched until every fetch has succeeded.
func (r *Reconciler) auditSeasons(ctx context.Context, entry *ledger.Entry, local map[int][]int, params Params) (*Result, error) {
	details, err := r.metadata.ShowDetails(ctx, entry.TMDBID)
	if err != nil {
		return nil, err
	}

	maxLocal := maxLocalSeason(local, entry)
	seasons := auditableSeasons(details.Seasons, maxLocal)

	fetched := make(map[int][]metadata.EpisodeAiring, len(seasons))
	for _, season := range seasons {
		episodes, err := r.metadata.SeasonEpisodes(ctx, entry.TMDBID, season, params.BypassCache)
		if err != nil {
			return nil, err
		}
		fetched[season] = episodes
	}

	result := &Result{Tier: params.Tier, SeasonsAudited: len(seasons)}
	r.apply(entry, details, fetched, local, params, result)

	r.logger.Debug("season audit complete",
		logging.String(logging.FieldEventType, "season_audit"),
		logging.String(logging.FieldShowTitle, entry.Title),
		logging.Int("seasons", result.SeasonsAudited),
		logging.Int("added", result.Added))
	return result, nil
}

func (r *Reconciler) apply(entry *ledger.Entry, details *metadata.ShowDetails, fetched map[int][]metadata.EpisodeAiring, local map[int][]int, params Params, result *Result) {
	now := params.Now

	entry.Status = details.Status
	entry.PosterPath = details.PosterPath
	if entry.IMDBID == "" {
		entry.IMDBID = details.IMDBID
	}

	localSet := flattenLocal(local)
	expected := make(map[ledger.Key]*time.Time)
	for season, episodes := range fetched {
		for _, ep := range episodes {
			expected[ledger.Key{Season: season, Episode: ep.Episode}] = ep.AirDate
		}
	}

	// Union of metadata keys, local keys, and existing ledger keys.
	union := make(map[ledger.Key]struct{}, len(expected))
	for key := range expected {
		union[key] = struct{}{}
	}
	for key := range localSet {
		union[key] = struct{}{}
	}
	for code := range entry.Episodes {
		if key, err := ledger.ParseCode(code); err == nil {
			union[key] = struct{}{}
		}
	}

	for key := range union {
		prior, known := entry.Episode(key)
		airDate, inMetadata := expected[key]
		present := localSet[key]

		if !inMetadata && !present {
			if !known {
				continue
			}
			// Vanished from both sides: unknown-but-not-missing, kept
			// unless pruning was asked for.
			if params.Prune {
				delete(entry.Episodes, key.Code())
				continue
			}
			prior.State = ledger.DeriveState(prior.Present, prior.Ignored || entry.IgnoreAll, prior.AirDate, now)
			continue
		}

		ep := &ledger.Episode{Season: key.Season, Episode: key.Episode, Present: present}
		if known {
			ep.Ignored = prior.Ignored
			ep.AirDate = prior.AirDate
		}
		if inMetadata && airDate != nil {
			ep.AirDate = airDate
		}
		if present && !inMetadata {
			result.Unmatched = append(result.Unmatched, key)
		}
		entry.UpsertEpisode(ep, now)
		if !known {
			result.Added++
		} else if prior.State == ledger.StateUpcoming && ep.State == ledger.StateMissing {
			result.Promoted++
		}
	}
	sortKeys(result.Unmatched)

	if entry.Seasons == nil {
		entry.Seasons = make(map[int]ledger.SeasonSummary, len(fetched))
	}
	for season, episodes := range fetched {
		summary := ledger.SeasonSummary{EpisodeCount: len(episodes), FullyAired: len(episodes) > 0}
		for _, ep := range episodes {
			if ep.AirDate == nil || ep.AirDate.After(now) {
				summary.FullyAired = false
				break
			}
		}
		entry.Seasons[season] = summary
	}

	entry.Dirty = false
	entry.LastFullAudit = now
	entry.LastChecked = now
}

// auditableSeasons keeps the seasons worth fetching: specials (season 0)
// are skipped, as are seasons numbered more than one past the highest
// season held locally.
func auditableSeasons(seasons []metadata.SeasonCount, maxLocal int) []int {
	var out []int
	for _, season := range seasons {
		if season.Number <= 0 {
			continue
		}
		if maxLocal > 0 && season.Number > maxLocal+1 {
			continue
		}
		out = append(out, season.Number)
	}
	sort.Ints(out)
	return out
}

func maxLocalSeason(local map[int][]int, entry *ledger.Entry) int {
	max := entry.MaxLocalSeason()
	for season, episodes := range local {
		if len(episodes) > 0 && season > max {
			max = season
		}
	}
	return max
}

func flattenLocal(local map[int][]int) map[ledger.Key]bool {
	set := make(map[ledger.Key]bool)
	for season, episodes := range local {
		for _, episode := range episodes {
			set[ledger.Key{Season: season, Episode: episode}] = true
		}
	}
	return set
}

func sortKeys(keys []ledger.Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Season != keys[j].Season {
			return keys[i].Season < keys[j].Season
		}
		return keys[i].Episode < keys[j].Episode
	})
}
