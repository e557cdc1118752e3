package metadata

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	gocache "github.com/patrickmn/go-cache"

	"github.com/Lunedor/plex-parity/internal/ledger"
	"github.com/Lunedor/plex-parity/internal/logging"
	"github.com/Lunedor/plex-parity/internal/tmdb"
)

func init() {
	gob.Register([]EpisodeAiring{})
}

const (
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 8 * time.Second
	defaultCacheTTL       = 24 * time.Hour
)

// Hints carries everything known about a show's identity ahead of
// resolution, ordered by trust in the ladder.
type Hints struct {
	Title        string
	Year         int
	ManualTMDBID int64
	PlexTMDBID   int64
	PlexIMDBID   string
	CachedTMDBID int64
}

// Resolution is the outcome of the resolution ladder.
type Resolution struct {
	TMDBID int64
	Source string
}

// SeasonCount summarizes one season from the show details payload.
type SeasonCount struct {
	Number       int
	EpisodeCount int
}

// ShowDetails is the show-level metadata the reconciler consumes.
type ShowDetails struct {
	TMDBID     int64
	Name       string
	Status     string
	IMDBID     string
	PosterPath string
	Seasons    []SeasonCount
}

// EpisodeAiring is one episode's number and air date from a season list.
// A nil AirDate means TMDB has not announced one.
type EpisodeAiring struct {
	Episode int
	AirDate *time.Time
}

// Client is the adapter surface the reconciler depends on.
type Client interface {
	Resolve(ctx context.Context, hints Hints) (Resolution, error)
	ShowDetails(ctx context.Context, tmdbID int64) (*ShowDetails, error)
	SeasonEpisodes(ctx context.Context, tmdbID int64, season int, bypassCache bool) ([]EpisodeAiring, error)
	Invalidate(tmdbID int64)
}

// Adapter wraps the TMDB API with resolution, retry, and caching policy.
type Adapter struct {
	api    tmdb.API
	logger *slog.Logger

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration

	cache     *gocache.Cache
	cachePath string
}

var _ Client = (*Adapter)(nil)

// Option configures an Adapter.
type Option func(*Adapter)

// WithRetryMaxAttempts overrides the default retry count.
func WithRetryMaxAttempts(attempts int) Option {
	return func(a *Adapter) {
		if attempts > 0 {
			a.retryMaxAttempts = attempts
		}
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(a *Adapter) {
		if baseDelay > 0 {
			a.retryBaseDelay = baseDelay
		}
		if maxDelay > 0 {
			a.retryMaxDelay = maxDelay
		}
	}
}

// WithCachePath enables durable season-cache persistence at path.
func WithCachePath(path string) Option {
	return func(a *Adapter) {
		a.cachePath = strings.TrimSpace(path)
	}
}

// WithCacheTTL overrides how long cached season responses stay fresh.
func WithCacheTTL(ttl time.Duration) Option {
	return func(a *Adapter) {
		if ttl > 0 {
			a.cache = gocache.New(ttl, 10*time.Minute)
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logging.NewComponentLogger(logger, "metadata")
		}
	}
}

// NewAdapter constructs the adapter and loads any persisted season cache.
func NewAdapter(api tmdb.API, opts ...Option) (*Adapter, error) {
	if api == nil {
		return nil, errors.New("tmdb api required")
	}
	a := &Adapter{
		api:              api,
		logger:           logging.NewNop(),
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
		cache:            gocache.New(defaultCacheTTL, 10*time.Minute),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.cachePath != "" {
		if err := a.cache.LoadFile(a.cachePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			a.logger.Warn("failed to load season cache; starting empty",
				logging.String(logging.FieldEventType, "metadata_cache_load_failed"),
				logging.Error(err))
		}
	}
	return a, nil
}

// ShowDetails fetches show-level metadata under the retry policy.
func (a *Adapter) ShowDetails(ctx context.Context, tmdbID int64) (*ShowDetails, error) {
	details, err := doRetry(ctx, a, func() (*tmdb.TVDetails, error) {
		return a.api.GetTVDetails(ctx, tmdbID)
	})
	if err != nil {
		return nil, classify(err, fmt.Sprintf("show %d details", tmdbID))
	}

	out := &ShowDetails{
		TMDBID:     details.ID,
		Name:       details.Name,
		Status:     details.Status,
		IMDBID:     details.ExternalIDs.IMDBID,
		PosterPath: details.PosterPath,
	}
	for _, season := range details.Seasons {
		out.Seasons = append(out.Seasons, SeasonCount{
			Number:       season.SeasonNumber,
			EpisodeCount: season.EpisodeCount,
		})
	}
	return out, nil
}

// SeasonEpisodes returns the episode list for one season, consulting the
// TTL cache first unless bypassCache forces a refetch. Fresh responses
// replace the cached value.
func (a *Adapter) SeasonEpisodes(ctx context.Context, tmdbID int64, season int, bypassCache bool) ([]EpisodeAiring, error) {
	key := seasonCacheKey(tmdbID, season)
	if !bypassCache {
		if cached, found := a.cache.Get(key); found {
			if episodes, ok := cached.([]EpisodeAiring); ok {
				return episodes, nil
			}
		}
	}

	details, err := doRetry(ctx, a, func() (*tmdb.SeasonDetails, error) {
		return a.api.GetSeasonDetails(ctx, tmdbID, season)
	})
	if err != nil {
		return nil, classify(err, fmt.Sprintf("show %d season %d", tmdbID, season))
	}

	episodes := make([]EpisodeAiring, 0, len(details.Episodes))
	for _, ep := range details.Episodes {
		if ep.EpisodeNumber <= 0 {
			continue
		}
		episodes = append(episodes, EpisodeAiring{
			Episode: ep.EpisodeNumber,
			AirDate: parseAirDate(ep.AirDate),
		})
	}

	a.cache.Set(key, episodes, gocache.DefaultExpiration)
	return episodes, nil
}

// ValidateID confirms a TMDB id refers to a reachable TV show.
func (a *Adapter) ValidateID(ctx context.Context, tmdbID int64) error {
	_, err := a.ShowDetails(ctx, tmdbID)
	return err
}

// Invalidate drops every cached season under the given TMDB id. Called
// when a manual override replaces a show's resolved id so stale responses
// are never reused.
func (a *Adapter) Invalidate(tmdbID int64) {
	prefix := fmt.Sprintf("tv:%d:", tmdbID)
	for key := range a.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			a.cache.Delete(key)
		}
	}
}

// SaveCache persists the season cache when a path is configured.
func (a *Adapter) SaveCache() error {
	if a.cachePath == "" {
		return nil
	}
	if err := a.cache.SaveFile(a.cachePath); err != nil {
		return fmt.Errorf("persist season cache: %w", err)
	}
	return nil
}

func seasonCacheKey(tmdbID int64, season int) string {
	return fmt.Sprintf("tv:%d:season:%d", tmdbID, season)
}

func parseAirDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil
	}
	return &parsed
}

func doRetry[T any](ctx context.Context, a *Adapter, fn func() (T, error)) (T, error) {
	return retry.DoWithData(fn,
		retry.Context(ctx),
		retry.Attempts(uint(a.retryMaxAttempts)),
		retry.Delay(a.retryBaseDelay),
		retry.MaxDelay(a.retryMaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
	)
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, tmdb.ErrStatusNotFound) {
		return false
	}
	var statusErr *tmdb.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	// Anything else is a transport-level failure worth another attempt.
	return true
}

func classify(err error, operation string) error {
	if errors.Is(err, tmdb.ErrStatusNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, operation)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, operation, err)
}

// Source labels reuse the ledger's resolution vocabulary.
const (
	sourceManual   = ledger.SourceManual
	sourcePlexGUID = ledger.SourcePlexGUID
	sourcePlexIMDB = ledger.SourcePlexIMDB
	sourceCache    = ledger.SourceCache
	sourceAuto     = ledger.SourceAuto
)
