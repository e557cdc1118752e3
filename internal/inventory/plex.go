package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const userAgent = "PlexParity/0.1.0"

// PlexProvider reads show and episode inventory from a Plex Media Server
// over its HTTP API. It never mutates the server.
type PlexProvider struct {
	baseURL      string
	watchlistURL string
	token        string
	library      string
	client       *http.Client

	mu         sync.Mutex
	sectionKey string
}

// PlexOption customizes a PlexProvider.
type PlexOption func(*PlexProvider)

// WithPlexHTTPClient overrides the HTTP client, primarily for tests.
func WithPlexHTTPClient(client *http.Client) PlexOption {
	return func(p *PlexProvider) {
		if client != nil {
			p.client = client
		}
	}
}

// WithWatchlistURL points watchlist requests at a non-default discover
// endpoint.
func WithWatchlistURL(raw string) PlexOption {
	return func(p *PlexProvider) {
		if trimmed := strings.TrimRight(strings.TrimSpace(raw), "/"); trimmed != "" {
			p.watchlistURL = trimmed
		}
	}
}

// NewPlexProvider builds a provider for the given server and TV library.
func NewPlexProvider(baseURL, token, library string, timeout time.Duration, opts ...PlexOption) *PlexProvider {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	p := &PlexProvider{
		baseURL:      strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		watchlistURL: "https://discover.provider.plex.tv",
		token:        strings.TrimSpace(token),
		library:      library,
		client:       &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type plexGUID struct {
	ID string `json:"id"`
}

type plexMetadata struct {
	RatingKey   string     `json:"ratingKey"`
	Title       string     `json:"title"`
	Year        int        `json:"year"`
	GUIDs       []plexGUID `json:"Guid"`
	ParentIndex int        `json:"parentIndex"`
	Index       int        `json:"index"`
}

type plexDirectory struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

type plexContainer struct {
	MediaContainer struct {
		Directories []plexDirectory `json:"Directory"`
		Metadata    []plexMetadata  `json:"Metadata"`
	} `json:"MediaContainer"`
}

// ListShows fetches every show in the configured TV library section.
func (p *PlexProvider) ListShows(ctx context.Context) ([]Show, error) {
	key, err := p.ensureSection(ctx)
	if err != nil {
		return nil, err
	}

	var container plexContainer
	path := fmt.Sprintf("/library/sections/%s/all?type=2", key)
	if err := p.get(ctx, p.baseURL+path, &container); err != nil {
		return nil, err
	}

	shows := make([]Show, 0, len(container.MediaContainer.Metadata))
	for _, meta := range container.MediaContainer.Metadata {
		if meta.RatingKey == "" || meta.Title == "" {
			continue
		}
		shows = append(shows, Show{
			Key:   meta.RatingKey,
			Title: meta.Title,
			Year:  meta.Year,
			GUIDs: collectGUIDs(meta.GUIDs),
		})
	}
	return shows, nil
}

// ShowEpisodes fetches every episode file Plex has for the show, grouped by
// season number.
func (p *PlexProvider) ShowEpisodes(ctx context.Context, showKey string) (map[int][]int, error) {
	var container plexContainer
	path := fmt.Sprintf("/library/metadata/%s/allLeaves", url.PathEscape(showKey))
	if err := p.get(ctx, p.baseURL+path, &container); err != nil {
		return nil, err
	}

	episodes := make(map[int][]int)
	for _, meta := range container.MediaContainer.Metadata {
		episodes[meta.ParentIndex] = append(episodes[meta.ParentIndex], meta.Index)
	}
	return episodes, nil
}

// Watchlist fetches the account watchlist from the discover endpoint.
func (p *PlexProvider) Watchlist(ctx context.Context) ([]WatchlistItem, error) {
	var container plexContainer
	if err := p.get(ctx, p.watchlistURL+"/library/sections/watchlist/all", &container); err != nil {
		return nil, err
	}

	items := make([]WatchlistItem, 0, len(container.MediaContainer.Metadata))
	for _, meta := range container.MediaContainer.Metadata {
		if meta.Title == "" {
			continue
		}
		items = append(items, WatchlistItem{
			Title: meta.Title,
			Year:  meta.Year,
			GUIDs: collectGUIDs(meta.GUIDs),
		})
	}
	return items, nil
}

func (p *PlexProvider) ensureSection(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sectionKey != "" {
		return p.sectionKey, nil
	}

	var container plexContainer
	if err := p.get(ctx, p.baseURL+"/library/sections", &container); err != nil {
		return "", err
	}

	want := strings.ToLower(strings.TrimSpace(p.library))
	for _, dir := range container.MediaContainer.Directories {
		if dir.Key == "" || dir.Title == "" {
			continue
		}
		if strings.ToLower(dir.Title) == want {
			p.sectionKey = dir.Key
			return dir.Key, nil
		}
	}
	// Fall back to the only TV section when the configured name misses.
	var tvKeys []string
	for _, dir := range container.MediaContainer.Directories {
		if dir.Type == "show" && dir.Key != "" {
			tvKeys = append(tvKeys, dir.Key)
		}
	}
	if len(tvKeys) == 1 {
		p.sectionKey = tvKeys[0]
		return tvKeys[0], nil
	}
	return "", fmt.Errorf("%w: plex library %q not found", ErrUnavailable, p.library)
}

func (p *PlexProvider) get(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build plex request: %w", err)
	}
	req.Header.Set("X-Plex-Token", p.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%w: plex returned %s: %s", ErrUnavailable, strconv.Itoa(resp.StatusCode), strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode plex response: %v", ErrUnavailable, err)
	}
	return nil
}

func collectGUIDs(raw []plexGUID) []string {
	guids := make([]string, 0, len(raw))
	for _, guid := range raw {
		if id := strings.ToLower(strings.TrimSpace(guid.ID)); id != "" {
			guids = append(guids, id)
		}
	}
	return guids
}
