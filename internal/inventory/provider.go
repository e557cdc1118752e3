package inventory

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
)

// ErrUnavailable marks a Plex connection or auth failure. Without an
// inventory there is no show universe, so scans treat this as fatal.
var ErrUnavailable = errors.New("inventory unavailable")

// Show is one TV show as reported by the library section.
type Show struct {
	Key   string // Plex rating key, the ledger's show key
	Title string
	Year  int
	GUIDs []string // lowercased external GUIDs (tmdb://, imdb://, tvdb://)
}

// WatchlistItem is one show on the account watchlist. Watchlist items live
// outside the library, so they match local shows by GUID or title+year.
type WatchlistItem struct {
	Title string
	Year  int
	GUIDs []string
}

// Provider supplies the local side of reconciliation.
type Provider interface {
	// ListShows returns every show in the configured TV library.
	ListShows(ctx context.Context) ([]Show, error)
	// ShowEpisodes returns locally present episodes grouped season -> episode numbers.
	ShowEpisodes(ctx context.Context, showKey string) (map[int][]int, error)
	// Watchlist returns the account watchlist for scope intersection.
	Watchlist(ctx context.Context) ([]WatchlistItem, error)
}

// TMDBID extracts a tmdb:// GUID if Plex carries one.
func (s Show) TMDBID() int64 {
	for _, guid := range s.GUIDs {
		if rest, ok := strings.CutPrefix(guid, "tmdb://"); ok {
			if id, err := strconv.ParseInt(rest, 10, 64); err == nil {
				return id
			}
		}
	}
	return 0
}

// IMDBID extracts an imdb:// GUID if Plex carries one.
func (s Show) IMDBID() string {
	for _, guid := range s.GUIDs {
		if rest, ok := strings.CutPrefix(guid, "imdb://"); ok {
			return rest
		}
	}
	return ""
}

// Signature fingerprints the show's Plex identity. A changed signature
// means Plex re-matched the show and resolved ids can no longer be
// trusted.
func (s Show) Signature() string {
	guids := append([]string{}, s.GUIDs...)
	sort.Strings(guids)
	return s.Title + "|" + strconv.Itoa(s.Year) + "|" + strings.Join(guids, "|")
}

// FilterByWatchlist intersects library shows with watchlist items, keeping
// shows that share a GUID or, failing that, a title+year pair.
func FilterByWatchlist(shows []Show, items []WatchlistItem) []Show {
	guidSet := make(map[string]struct{})
	titleYearSet := make(map[string]struct{})
	for _, item := range items {
		for _, guid := range item.GUIDs {
			guidSet[guid] = struct{}{}
		}
		titleYearSet[titleYearKey(item.Title, item.Year)] = struct{}{}
	}

	var filtered []Show
	for _, show := range shows {
		matched := false
		for _, guid := range show.GUIDs {
			if _, ok := guidSet[guid]; ok {
				matched = true
				break
			}
		}
		if !matched {
			_, matched = titleYearSet[titleYearKey(show.Title, show.Year)]
		}
		if matched {
			filtered = append(filtered, show)
		}
	}
	return filtered
}

func titleYearKey(title string, year int) string {
	return strings.ToLower(strings.TrimSpace(title)) + "|" + strconv.Itoa(year)
}
