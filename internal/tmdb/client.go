package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrStatusNotFound marks a 404 from TMDB, distinct from transport failure.
var ErrStatusNotFound = errors.New("tmdb: not found")

// TVResult represents a single TMDB TV search match.
type TVResult struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	OriginalName string  `json:"original_name"`
	Overview     string  `json:"overview"`
	FirstAirDate string  `json:"first_air_date"`
	Popularity   float64 `json:"popularity"`
	VoteCount    int64   `json:"vote_count"`
}

// SearchResponse models the TMDB paginated TV search response.
type SearchResponse struct {
	Page         int        `json:"page"`
	Results      []TVResult `json:"results"`
	TotalPages   int        `json:"total_pages"`
	TotalResults int        `json:"total_results"`
}

// SeasonRef is the summary entry a show's details carry per season.
type SeasonRef struct {
	SeasonNumber int    `json:"season_number"`
	EpisodeCount int    `json:"episode_count"`
	AirDate      string `json:"air_date"`
}

// ExternalIDs carries cross-database identifiers for a show.
type ExternalIDs struct {
	IMDBID string `json:"imdb_id"`
}

// TVDetails captures the TMDB show payload with external ids appended.
type TVDetails struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	Status       string      `json:"status"`
	FirstAirDate string      `json:"first_air_date"`
	PosterPath   string      `json:"poster_path"`
	Seasons      []SeasonRef `json:"seasons"`
	ExternalIDs  ExternalIDs `json:"external_ids"`
}

// Episode describes a single TMDB episode entry.
type Episode struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	AirDate       string `json:"air_date"`
}

// SeasonDetails captures the full TMDB season payload (episodes included).
type SeasonDetails struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	SeasonNumber int       `json:"season_number"`
	Episodes     []Episode `json:"episodes"`
}

// findResponse models the /find payload for external-id resolution.
type findResponse struct {
	TVResults []TVResult `json:"tv_results"`
}

// API defines the TMDB operations the metadata adapter depends on.
type API interface {
	SearchTV(ctx context.Context, query string, firstAirDateYear int) (*SearchResponse, error)
	GetTVDetails(ctx context.Context, showID int64) (*TVDetails, error)
	GetSeasonDetails(ctx context.Context, showID int64, seasonNumber int) (*SeasonDetails, error)
	FindByIMDB(ctx context.Context, imdbID string) (*TVResult, error)
}

// Client provides access to the TMDB API.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
}

var _ API = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a TMDB client.
func New(apiKey, baseURL, language string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(language),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SearchTV performs a TMDB TV search, optionally constrained to a first
// air date year.
func (c *Client) SearchTV(ctx context.Context, query string, firstAirDateYear int) (*SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	params := url.Values{}
	params.Set("query", query)
	if firstAirDateYear > 0 {
		params.Set("first_air_date_year", strconv.Itoa(firstAirDateYear))
	}

	var payload SearchResponse
	if err := c.get(ctx, "/search/tv", params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetTVDetails fetches show details with external ids appended.
func (c *Client) GetTVDetails(ctx context.Context, showID int64) (*TVDetails, error) {
	if showID <= 0 {
		return nil, errors.New("show id must be positive")
	}
	params := url.Values{}
	params.Set("append_to_response", "external_ids")

	var payload TVDetails
	if err := c.get(ctx, fmt.Sprintf("/tv/%d", showID), params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetSeasonDetails fetches the ordered episode list for one season.
func (c *Client) GetSeasonDetails(ctx context.Context, showID int64, seasonNumber int) (*SeasonDetails, error) {
	if showID <= 0 {
		return nil, errors.New("show id must be positive")
	}
	if seasonNumber < 0 {
		return nil, errors.New("season number must not be negative")
	}

	var payload SeasonDetails
	if err := c.get(ctx, fmt.Sprintf("/tv/%d/season/%d", showID, seasonNumber), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// FindByIMDB resolves an IMDb id to its TMDB TV entry, returning nil when
// the id maps to no TV show.
func (c *Client) FindByIMDB(ctx context.Context, imdbID string) (*TVResult, error) {
	imdbID = strings.TrimSpace(imdbID)
	if imdbID == "" {
		return nil, errors.New("imdb id must not be empty")
	}
	params := url.Values{}
	params.Set("external_source", "imdb_id")

	var payload findResponse
	if err := c.get(ctx, "/find/"+url.PathEscape(imdbID), params, &payload); err != nil {
		return nil, err
	}
	if len(payload.TVResults) == 0 {
		return nil, nil
	}
	return &payload.TVResults[0], nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse tmdb url: %w", err)
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrStatusNotFound, path)
	default:
		return &StatusError{Code: resp.StatusCode, Path: path}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode tmdb response: %w", err)
	}
	return nil
}

// StatusError reports a non-OK, non-404 TMDB response.
type StatusError struct {
	Code int
	Path string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tmdb %s returned %d", e.Path, e.Code)
}

// Retryable reports whether the status indicates a transient condition.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}
