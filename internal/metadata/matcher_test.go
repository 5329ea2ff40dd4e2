package metadata

import (
	"context"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/jamesbarge/pictures/internal/core/errors"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	logger := zerolog.Nop()
	client := NewClient("https://metadata.test", "test-key", 5*time.Second, time.Minute, &logger)
	require.NotNil(t, client)

	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	return client
}

func TestNewClientWithoutBaseURL(t *testing.T) {
	logger := zerolog.Nop()
	assert.Nil(t, NewClient("", "key", time.Second, time.Minute, &logger))
}

func TestMatch(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder("GET", `=~^https://metadata\.test/match`,
		httpmock.NewStringResponder(200, `{"external_id": 42, "year": 1995, "confidence": 0.92}`))

	match, err := client.Match(context.Background(), "Heat", MatchHints{Year: 1995, Director: "Michael Mann"})
	require.NoError(t, err)

	assert.Equal(t, int64(42), match.ExternalID)
	assert.Equal(t, 1995, match.Year)
	assert.InDelta(t, 0.92, float64(match.Confidence), 0.001)
}

func TestMatchCachesResponses(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder("GET", `=~^https://metadata\.test/match`,
		httpmock.NewStringResponder(200, `{"external_id": 42, "confidence": 0.9}`))

	_, err := client.Match(context.Background(), "Heat", MatchHints{})
	require.NoError(t, err)

	_, err = client.Match(context.Background(), "Heat", MatchHints{})
	require.NoError(t, err)

	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestMatchNotFound(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder("GET", `=~^https://metadata\.test/match`,
		httpmock.NewStringResponder(404, `{"error": "no match"}`))

	_, err := client.Match(context.Background(), "Home Movie Night", MatchHints{})
	assert.ErrorIs(t, err, coreerrors.ErrNoMatch)
}

func TestMatchZeroExternalIDIsNoMatch(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder("GET", `=~^https://metadata\.test/match`,
		httpmock.NewStringResponder(200, `{"external_id": 0, "confidence": 0.1}`))

	_, err := client.Match(context.Background(), "Untitled", MatchHints{})
	assert.ErrorIs(t, err, coreerrors.ErrNoMatch)
}

func TestDetails(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder("GET", "https://metadata.test/films/42",
		httpmock.NewStringResponder(200, `{
			"external_id": 42,
			"title": "Heat",
			"year": 1995,
			"runtime": 170,
			"directors": ["Michael Mann"],
			"synopsis": "a heist goes wrong",
			"poster_path": "https://img/heat.jpg"
		}`))

	details, err := client.Details(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, "Heat", details.Title)
	assert.Equal(t, 170, details.Runtime)
	assert.Equal(t, []string{"Michael Mann"}, details.Directors)
}

func TestFindPosterPlaceholderIsNoPoster(t *testing.T) {
	logger := zerolog.Nop()
	client := NewPosterClient("https://posters.test", 5*time.Second, &logger)
	require.NotNil(t, client)

	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder("GET", `=~^https://posters\.test/poster`,
		httpmock.NewStringResponder(200, `{"url": "https://posters.test/generic.jpg", "source": "placeholder"}`))

	_, err := client.FindPoster(context.Background(), PosterQuery{Title: "Heat"})
	assert.ErrorIs(t, err, coreerrors.ErrNoPoster)
}

func TestFindPoster(t *testing.T) {
	logger := zerolog.Nop()
	client := NewPosterClient("https://posters.test", 5*time.Second, &logger)
	require.NotNil(t, client)

	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder("GET", `=~^https://posters\.test/poster`,
		httpmock.NewStringResponder(200, `{"url": "https://posters.test/heat.jpg", "source": "archive"}`))

	poster, err := client.FindPoster(context.Background(), PosterQuery{Title: "Heat", Year: 1995})
	require.NoError(t, err)

	assert.Equal(t, "https://posters.test/heat.jpg", poster.URL)
	assert.Equal(t, "archive", poster.Source)
}
