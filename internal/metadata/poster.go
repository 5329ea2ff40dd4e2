package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	coreerrors "github.com/jamesbarge/pictures/internal/core/errors"
)

// PosterSourcePlaceholder is the sentinel source meaning "no real poster
// found"; callers must not persist placeholder URLs as real artwork.
const PosterSourcePlaceholder = "placeholder"

// Poster is the result of a poster lookup.
type Poster struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

// PosterQuery describes the film a poster is wanted for.
type PosterQuery struct {
	Title       string
	Year        int
	ExternalID  int64
	ScraperHint string
}

// PosterClient calls the external poster lookup service.
type PosterClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zerolog.Logger
}

// NewPosterClient creates a poster client. Returns nil when no base URL
// is configured.
func NewPosterClient(baseURL string, timeout time.Duration, logger *zerolog.Logger) *PosterClient {
	if baseURL == "" {
		return nil
	}

	return &PosterClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FindPoster resolves artwork for a film. Returns ErrNoPoster when the
// service only has a placeholder to offer.
func (c *PosterClient) FindPoster(ctx context.Context, q PosterQuery) (*Poster, error) {
	query := url.Values{"title": {q.Title}}
	if q.Year > 0 {
		query.Set("year", strconv.Itoa(q.Year))
	}

	if q.ExternalID > 0 {
		query.Set("external_id", strconv.FormatInt(q.ExternalID, 10))
	}

	if q.ScraperHint != "" {
		query.Set("hint", q.ScraperHint)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/poster?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build poster request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poster request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, coreerrors.ErrNoPoster
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poster request: unexpected status %d", resp.StatusCode)
	}

	var poster Poster
	if err := json.NewDecoder(resp.Body).Decode(&poster); err != nil {
		return nil, fmt.Errorf("decode poster response: %w", err)
	}

	if poster.Source == PosterSourcePlaceholder {
		return nil, coreerrors.ErrNoPoster
	}

	return &poster, nil
}
