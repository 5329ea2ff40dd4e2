// Package metadata holds HTTP clients for the external film-metadata and
// poster services. Lookups are cached in-process; failures are reported
// to callers, which treat them as soft (the resolver falls through to the
// next strategy).
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	coreerrors "github.com/jamesbarge/pictures/internal/core/errors"
)

// Match is a confident identification of a title against the external
// film database.
type Match struct {
	ExternalID int64   `json:"external_id"`
	Year       int     `json:"year"`
	Confidence float32 `json:"confidence"`
}

// FilmDetails is the full external record for one film.
type FilmDetails struct {
	ExternalID int64    `json:"external_id"`
	Title      string   `json:"title"`
	Year       int      `json:"year"`
	Runtime    int      `json:"runtime"`
	Directors  []string `json:"directors"`
	Genres     []string `json:"genres"`
	Synopsis   string   `json:"synopsis"`
	PosterPath string   `json:"poster_path"`
}

// MatchHints are the optional disambiguation fields a scraper may supply.
type MatchHints struct {
	Year     int
	Director string
}

// Client calls the external metadata-matching service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *gocache.Cache
	logger     *zerolog.Logger
}

// NewClient creates a metadata client. Returns nil when no base URL is
// configured so the resolver skips the metadata strategy.
func NewClient(baseURL, apiKey string, timeout, cacheTTL time.Duration, logger *zerolog.Logger) *Client {
	if baseURL == "" {
		return nil
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		cache:      gocache.New(cacheTTL, cacheTTL),
		logger:     logger,
	}
}

// Match queries the service for a confident identification of the title.
// Returns ErrNoMatch when the service knows nothing confident enough.
func (c *Client) Match(ctx context.Context, candidateTitle string, hints MatchHints) (*Match, error) {
	cacheKey := fmt.Sprintf("match:%s:%d:%s", candidateTitle, hints.Year, hints.Director)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.(*Match), nil
	}

	query := url.Values{"title": {candidateTitle}}
	if hints.Year > 0 {
		query.Set("year", strconv.Itoa(hints.Year))
	}

	if hints.Director != "" {
		query.Set("director", hints.Director)
	}

	var match Match
	if err := c.get(ctx, "/match?"+query.Encode(), &match); err != nil {
		return nil, err
	}

	if match.ExternalID == 0 {
		return nil, coreerrors.ErrNoMatch
	}

	c.cache.Set(cacheKey, &match, gocache.DefaultExpiration)

	return &match, nil
}

// Details fetches the full external record for a matched film.
func (c *Client) Details(ctx context.Context, externalID int64) (*FilmDetails, error) {
	cacheKey := "details:" + strconv.FormatInt(externalID, 10)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.(*FilmDetails), nil
	}

	var details FilmDetails
	if err := c.get(ctx, "/films/"+strconv.FormatInt(externalID, 10), &details); err != nil {
		return nil, err
	}

	c.cache.Set(cacheKey, &details, gocache.DefaultExpiration)

	return &details, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build metadata request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("metadata request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return coreerrors.ErrNoMatch
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("metadata request: unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode metadata response: %w", err)
	}

	return nil
}
