package ledger

import (
	"sort"
	"time"
)

// Resolution sources, ordered roughly by trust.
const (
	SourceManual   = "manual"
	SourcePlexGUID = "plex_guid"
	SourcePlexIMDB = "plex_imdb"
	SourceCache    = "cache"
	SourceAuto     = "auto"
)

// Statuses TMDB reports for shows no longer producing episodes.
var archivedStatuses = map[string]struct{}{
	"Ended":    {},
	"Canceled": {},
}

// SeasonSummary aggregates what is known about one season.
type SeasonSummary struct {
	EpisodeCount int  `json:"episode_count"`
	FullyAired   bool `json:"fully_aired"`
}

// Entry is the per-show aggregate the reconciliation engine maintains.
type Entry struct {
	ShowKey       string                `json:"show_key"`
	Title         string                `json:"title"`
	Year          int                   `json:"year,omitempty"`
	PlexSignature string                `json:"plex_signature,omitempty"`
	TMDBID        int64                 `json:"tmdb_id,omitempty"`
	IMDBID        string                `json:"imdb_id,omitempty"`
	Source        string                `json:"source,omitempty"`
	ManualTMDBID  int64                 `json:"manual_tmdb_id,omitempty"`
	Status        string                `json:"status,omitempty"`
	PosterPath    string                `json:"poster_path,omitempty"`
	IgnoreAll     bool                  `json:"ignore_all,omitempty"`
	Dirty         bool                  `json:"dirty,omitempty"`
	Episodes      map[string]*Episode   `json:"episodes,omitempty"`
	Seasons       map[int]SeasonSummary `json:"seasons,omitempty"`
	LastFullAudit time.Time             `json:"last_full_audit,omitempty"`
	LastChecked   time.Time             `json:"last_checked,omitempty"`
}

// NewEntry creates an empty entry for a show.
func NewEntry(showKey, title string, year int) *Entry {
	return &Entry{
		ShowKey:  showKey,
		Title:    title,
		Year:     year,
		Episodes: make(map[string]*Episode),
		Seasons:  make(map[int]SeasonSummary),
	}
}

// Archived reports whether the show's external status excludes it from
// ongoing views and incremental audit scheduling.
func (e *Entry) Archived() bool {
	_, ok := archivedStatuses[e.Status]
	return ok
}

// HasOverride reports whether a manual TMDB id override is in effect.
func (e *Entry) HasOverride() bool {
	return e.ManualTMDBID != 0
}

// NeverAudited reports whether the show has had a full season audit.
func (e *Entry) NeverAudited() bool {
	return e.LastFullAudit.IsZero()
}

// Episode returns the record for the given key, if present.
func (e *Entry) Episode(key Key) (*Episode, bool) {
	if e.Episodes == nil {
		return nil, false
	}
	ep, ok := e.Episodes[key.Code()]
	return ep, ok
}

// UpsertEpisode records an episode, last write wins per key. The stored
// state snapshot is re-derived against now, honoring the show-level ignore.
func (e *Entry) UpsertEpisode(ep *Episode, now time.Time) {
	if e.Episodes == nil {
		e.Episodes = make(map[string]*Episode)
	}
	ep.State = DeriveState(ep.Present, ep.Ignored || e.IgnoreAll, ep.AirDate, now)
	e.Episodes[ep.Key().Code()] = ep
}

// Refresh re-derives every episode's state snapshot against now. This is
// the whole of the lightweight tier's state work: a cheap timestamp
// comparison, no metadata involved.
func (e *Entry) Refresh(now time.Time) {
	for _, ep := range e.Episodes {
		ep.State = DeriveState(ep.Present, ep.Ignored || e.IgnoreAll, ep.AirDate, now)
	}
}

// SetEpisodeIgnored flags or unflags one episode. Unknown keys create a
// stub record so an ignore placed ahead of a scan survives reconciliation.
func (e *Entry) SetEpisodeIgnored(key Key, ignored bool, now time.Time) {
	ep, ok := e.Episode(key)
	if !ok {
		ep = &Episode{Season: key.Season, Episode: key.Episode}
	}
	ep.Ignored = ignored
	e.UpsertEpisode(ep, now)
}

// SetIgnoreAll flags or unflags the whole show and re-derives states.
func (e *Entry) SetIgnoreAll(ignored bool, now time.Time) {
	e.IgnoreAll = ignored
	e.Refresh(now)
}

// ResetResolution clears the resolved external identity and derived
// metadata, marking the entry dirty so the next visit forces a season
// audit. A manual override survives unless clearManual is set.
func (e *Entry) ResetResolution(clearManual bool) {
	if clearManual {
		e.ManualTMDBID = 0
	}
	if e.HasOverride() {
		e.TMDBID = e.ManualTMDBID
		e.Source = SourceManual
	} else {
		e.TMDBID = 0
		e.Source = ""
	}
	e.IMDBID = ""
	e.Status = ""
	e.PosterPath = ""
	e.Dirty = true
}

// EpisodesInState returns the entry's episodes holding the given state,
// ordered by season and episode number.
func (e *Entry) EpisodesInState(state State) []*Episode {
	var out []*Episode
	for _, ep := range e.Episodes {
		if ep.State == state {
			out = append(out, ep)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Season != out[j].Season {
			return out[i].Season < out[j].Season
		}
		return out[i].Episode < out[j].Episode
	})
	return out
}

// NextAir returns the earliest known future air date, if any.
func (e *Entry) NextAir(now time.Time) (Key, time.Time, bool) {
	var bestKey Key
	var best time.Time
	found := false
	for _, ep := range e.Episodes {
		if ep.AirDate == nil || !ep.AirDate.After(now) {
			continue
		}
		if !found || ep.AirDate.Before(best) {
			best = *ep.AirDate
			bestKey = ep.Key()
			found = true
		}
	}
	return bestKey, best, found
}

// HasUpcomingWithin reports whether any episode airs inside the lookahead
// window. Such a show is treated as gapped and scheduled for a season
// audit on incremental scans.
func (e *Entry) HasUpcomingWithin(now time.Time, window time.Duration) bool {
	horizon := now.Add(window)
	for _, ep := range e.Episodes {
		if ep.AirDate == nil || !ep.AirDate.After(now) {
			continue
		}
		if !ep.AirDate.After(horizon) {
			return true
		}
	}
	return false
}

// MaxLocalSeason returns the highest season number holding a locally
// present episode.
func (e *Entry) MaxLocalSeason() int {
	max := 0
	for _, ep := range e.Episodes {
		if ep.Present && ep.Season > max {
			max = ep.Season
		}
	}
	return max
}
