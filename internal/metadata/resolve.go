package metadata

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/Lunedor/plex-parity/internal/logging"
	"github.com/Lunedor/plex-parity/internal/tmdb"
)

// Resolve walks the trust ladder until a TMDB id is found. A manual
// override always wins; otherwise Plex GUIDs, then a revalidated
// previously-cached id, then a scored title search. ErrNotFound means the
// show needs a manual override; ErrUnavailable means every avenue failed
// transiently and the show should be skipped this pass.
func (a *Adapter) Resolve(ctx context.Context, hints Hints) (Resolution, error) {
	if hints.ManualTMDBID != 0 {
		return Resolution{TMDBID: hints.ManualTMDBID, Source: sourceManual}, nil
	}
	if hints.PlexTMDBID != 0 {
		return Resolution{TMDBID: hints.PlexTMDBID, Source: sourcePlexGUID}, nil
	}

	sawTransient := false

	if hints.PlexIMDBID != "" {
		result, err := doRetry(ctx, a, func() (*tmdb.TVResult, error) {
			return a.api.FindByIMDB(ctx, hints.PlexIMDBID)
		})
		switch {
		case err == nil && result != nil:
			return Resolution{TMDBID: result.ID, Source: sourcePlexIMDB}, nil
		case err != nil && errors.Is(err, context.Canceled):
			return Resolution{}, err
		case err != nil && !errors.Is(err, tmdb.ErrStatusNotFound):
			sawTransient = true
			a.logger.Warn("imdb resolution failed; trying next rung",
				logging.String("imdb_id", hints.PlexIMDBID),
				logging.Error(err))
		}
	}

	if hints.CachedTMDBID != 0 {
		if err := a.ValidateID(ctx, hints.CachedTMDBID); err == nil {
			return Resolution{TMDBID: hints.CachedTMDBID, Source: sourceCache}, nil
		} else if errors.Is(err, context.Canceled) {
			return Resolution{}, err
		} else if errors.Is(err, ErrUnavailable) {
			sawTransient = true
		}
	}

	id, transient, err := a.searchBestMatch(ctx, hints.Title, hints.Year)
	if err != nil {
		return Resolution{}, err
	}
	if id != 0 {
		return Resolution{TMDBID: id, Source: sourceAuto}, nil
	}
	if transient || sawTransient {
		return Resolution{}, fmt.Errorf("%w: resolving %q", ErrUnavailable, hints.Title)
	}
	return Resolution{}, fmt.Errorf("%w: %q (%d)", ErrNotFound, hints.Title, hints.Year)
}

var parenthetical = regexp.MustCompile(`\(.*?\)`)

// searchBestMatch scores TMDB search results across query and year
// variants, returning the best candidate id.
func (a *Adapter) searchBestMatch(ctx context.Context, title string, year int) (int64, bool, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, false, nil
	}

	variants := []string{title}
	if stripped := strings.TrimSpace(parenthetical.ReplaceAllString(title, "")); stripped != "" && stripped != title {
		variants = append(variants, stripped)
	}

	var years []int
	if year > 0 {
		years = append(years, year, year-1, year+1)
	}
	years = append(years, 0)

	var bestID int64
	bestScore := -1.0
	sawTransient := false

	for _, query := range variants {
		for _, y := range years {
			response, err := doRetry(ctx, a, func() (*tmdb.SearchResponse, error) {
				return a.api.SearchTV(ctx, query, y)
			})
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return 0, false, err
				}
				sawTransient = true
				continue
			}
			for _, candidate := range response.Results {
				if candidate.ID == 0 {
					continue
				}
				score := scoreCandidate(title, year, candidate)
				if score > bestScore {
					bestScore = score
					bestID = candidate.ID
				}
			}
		}
	}

	return bestID, sawTransient, nil
}

// scoreCandidate ranks a search result against the Plex title and year:
// name similarity dominates, year proximity nudges, capped popularity
// breaks ties.
func scoreCandidate(title string, year int, candidate tmdb.TVResult) float64 {
	titleNorm := normalizeTitle(title)
	names := []string{
		normalizeTitle(candidate.Name),
		normalizeTitle(candidate.OriginalName),
	}

	best := -1.0
	for _, name := range names {
		if name == "" {
			continue
		}
		if ratio := similarity(titleNorm, name); ratio > best {
			best = ratio
		}
	}
	if best < 0 {
		return -1
	}
	score := best * 100

	if year > 0 {
		if candidateYear := firstAirYear(candidate.FirstAirDate); candidateYear > 0 {
			switch diff := abs(candidateYear - year); {
			case diff == 0:
				score += 20
			case diff == 1:
				score += 10
			case diff > 3:
				score -= 10
			}
		}
	}

	score += min(candidate.Popularity, 50) / 10
	return score
}

var foldCaser = cases.Fold()

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// normalizeTitle case-folds and collapses everything non-alphanumeric to
// single spaces, matching how Plex and TMDB titles are compared.
func normalizeTitle(value string) string {
	folded := foldCaser.String(value)
	return strings.TrimSpace(nonAlphanumeric.ReplaceAllString(folded, " "))
}

// similarity is the Ratcliff/Obershelp ratio: twice the matched character
// count over the total length, with matches found recursively around the
// longest common substring.
func similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	matched := matchedChars(a, b)
	return 2 * float64(matched) / float64(len(a)+len(b))
}

func matchedChars(a, b string) int {
	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchedChars(a[:ai], b[:bi])
	total += matchedChars(a[ai+size:], b[bi+size:])
	return total
}

func longestCommonSubstring(a, b string) (int, int, int) {
	bestA, bestB, bestSize := 0, 0, 0
	prev := make([]int, len(b)+1)
	current := make([]int, len(b)+1)
	for i := 0; i < len(a); i++ {
		for j := 0; j < len(b); j++ {
			if a[i] == b[j] {
				current[j+1] = prev[j] + 1
				if current[j+1] > bestSize {
					bestSize = current[j+1]
					bestA = i - bestSize + 1
					bestB = j - bestSize + 1
				}
			} else {
				current[j+1] = 0
			}
		}
		prev, current = current, prev
	}
	return bestA, bestB, bestSize
}

func firstAirYear(firstAirDate string) int {
	if len(firstAirDate) < 4 {
		return 0
	}
	year, err := strconv.Atoi(firstAirDate[:4])
	if err != nil {
		return 0
	}
	return year
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
