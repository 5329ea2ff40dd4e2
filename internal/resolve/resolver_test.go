package resolve

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesbarge/pictures/internal/core/domain"
	coreerrors "github.com/jamesbarge/pictures/internal/core/errors"
	"github.com/jamesbarge/pictures/internal/metadata"
)

type fakeStore struct {
	created    []domain.Film
	byMetadata map[int64]*domain.Film

	similarID         string
	similarConfidence float32
	similarErr        error
}

func (f *fakeStore) CreateFilm(_ context.Context, film *domain.Film) error {
	film.ID = fmt.Sprintf("film-%d", len(f.created)+1)
	f.created = append(f.created, *film)

	return nil
}

func (f *fakeStore) GetFilmByMetadataID(_ context.Context, metadataID int64) (*domain.Film, error) {
	return f.byMetadata[metadataID], nil
}

func (f *fakeStore) FindSimilarFilm(_ context.Context, _ string, _ *int, _ float32) (string, float32, error) {
	return f.similarID, f.similarConfidence, f.similarErr
}

type fakeMatcher struct {
	match      *metadata.Match
	matchErr   error
	details    *metadata.FilmDetails
	detailsErr error

	matchCalls int
}

func (f *fakeMatcher) Match(_ context.Context, _ string, _ metadata.MatchHints) (*metadata.Match, error) {
	f.matchCalls++

	return f.match, f.matchErr
}

func (f *fakeMatcher) Details(_ context.Context, _ int64) (*metadata.FilmDetails, error) {
	return f.details, f.detailsErr
}

type fakePosters struct {
	poster *metadata.Poster
	err    error
}

func (f *fakePosters) FindPoster(_ context.Context, _ metadata.PosterQuery) (*metadata.Poster, error) {
	return f.poster, f.err
}

func newTestResolver(store *fakeStore, cache *Cache, opts Options) *Resolver {
	logger := zerolog.Nop()
	opts.ConfidenceFloor = 0.6

	return New(store, cache, opts, &logger)
}

func TestResolveEmptyTitle(t *testing.T) {
	r := newTestResolver(&fakeStore{}, NewCache(nil), Options{})

	_, err := r.Resolve(context.Background(), Request{Title: "..."})
	require.Error(t, err)
	assert.ErrorIs(t, err, coreerrors.ErrInvalidInput)
}

func TestResolveCacheHit(t *testing.T) {
	cache := NewCache([]domain.Film{{ID: "film-godfather", Title: "The Godfather"}})
	store := &fakeStore{}
	r := newTestResolver(store, cache, Options{})

	id, err := r.Resolve(context.Background(), Request{Title: "GODFATHER!"})
	require.NoError(t, err)

	assert.Equal(t, "film-godfather", id)
	assert.Empty(t, store.created, "cache hit must not create films")
}

func TestResolveFallbackCreatesUnmatched(t *testing.T) {
	store := &fakeStore{}
	r := newTestResolver(store, NewCache(nil), Options{})

	id, err := r.Resolve(context.Background(), Request{Title: "Obscure Short", Year: 2019, Director: "A. Nobody"})
	require.NoError(t, err)

	require.Len(t, store.created, 1)
	created := store.created[0]
	assert.Equal(t, id, created.ID)
	assert.True(t, created.Unmatched)
	assert.Equal(t, domain.MatchStrategyFallback, created.MatchStrategy)
	require.NotNil(t, created.Year)
	assert.Equal(t, 2019, *created.Year)
	assert.Equal(t, []string{"A. Nobody"}, created.Directors)
}

func TestResolveConsistentWithinRun(t *testing.T) {
	// Two requests with the same normalized title must resolve to the
	// same id, the second one through the cache.
	store := &fakeStore{}
	r := newTestResolver(store, NewCache(nil), Options{})

	first, err := r.Resolve(context.Background(), Request{Title: "Obscure Short"})
	require.NoError(t, err)

	second, err := r.Resolve(context.Background(), Request{Title: "OBSCURE SHORT!"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, store.created, 1)
}

func TestResolveBySimilarity(t *testing.T) {
	store := &fakeStore{similarID: "film-existing", similarConfidence: 0.8}
	r := newTestResolver(store, NewCache(nil), Options{SimilarityEnabled: true, SimilarityThreshold: 0.5})

	id, err := r.Resolve(context.Background(), Request{Title: "The Godfathr"})
	require.NoError(t, err)

	assert.Equal(t, "film-existing", id)
	assert.Empty(t, store.created)

	// The alias is remembered for the rest of the run.
	cached, ok := r.cache.LookupTitle("godfathr")
	assert.True(t, ok)
	assert.Equal(t, "film-existing", cached)
}

func TestResolveSimilarityBelowFloorFallsThrough(t *testing.T) {
	store := &fakeStore{similarID: "film-existing", similarConfidence: 0.4}
	r := newTestResolver(store, NewCache(nil), Options{SimilarityEnabled: true, SimilarityThreshold: 0.3})

	id, err := r.Resolve(context.Background(), Request{Title: "Something Else"})
	require.NoError(t, err)

	assert.NotEqual(t, "film-existing", id)
	require.Len(t, store.created, 1)
	assert.True(t, store.created[0].Unmatched)
}

func TestResolveSimilarityFailureIsSoft(t *testing.T) {
	store := &fakeStore{similarErr: fmt.Errorf("backend down")}
	r := newTestResolver(store, NewCache(nil), Options{SimilarityEnabled: true})

	_, err := r.Resolve(context.Background(), Request{Title: "Heat"})
	require.NoError(t, err, "a broken similarity backend must not fail the run")
	assert.Len(t, store.created, 1)
}

func TestResolveByMetadataCreatesFilm(t *testing.T) {
	matcher := &fakeMatcher{
		match: &metadata.Match{ExternalID: 42, Confidence: 0.9},
		details: &metadata.FilmDetails{
			ExternalID: 42,
			Title:      "Heat",
			Year:       1995,
			Directors:  []string{"Michael Mann"},
			Synopsis:   "a heist goes wrong",
			Runtime:    170,
			PosterPath: "https://img/heat.jpg",
		},
	}

	store := &fakeStore{}
	r := newTestResolver(store, NewCache(nil), Options{Matcher: matcher})

	id, err := r.Resolve(context.Background(), Request{Title: "HEAT (4K)"})
	require.NoError(t, err)

	require.Len(t, store.created, 1)
	created := store.created[0]
	assert.Equal(t, id, created.ID)
	assert.Equal(t, "Heat", created.Title)
	require.NotNil(t, created.MetadataID)
	assert.Equal(t, int64(42), *created.MetadataID)
	assert.Equal(t, domain.MatchStrategyMetadata, created.MatchStrategy)
	assert.Equal(t, "https://img/heat.jpg", created.PosterURL)
	assert.False(t, created.Unmatched)
}

func TestResolveByMetadataReusesExternalIDHolder(t *testing.T) {
	// Two raw titles matching the same external id must converge on one
	// film, whichever strategy found it first.
	matcher := &fakeMatcher{
		match:   &metadata.Match{ExternalID: 42, Confidence: 0.9},
		details: &metadata.FilmDetails{ExternalID: 42, Title: "Heat", Year: 1995},
	}

	store := &fakeStore{}
	r := newTestResolver(store, NewCache(nil), Options{Matcher: matcher})

	first, err := r.Resolve(context.Background(), Request{Title: "Heat"})
	require.NoError(t, err)

	second, err := r.Resolve(context.Background(), Request{Title: "Heat: 30th Anniversary"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, store.created, 1)
}

func TestResolveByMetadataReusesStoredFilm(t *testing.T) {
	existing := &domain.Film{ID: "film-db", Title: "Heat", MetadataID: int64Ptr(42)}
	matcher := &fakeMatcher{match: &metadata.Match{ExternalID: 42, Confidence: 0.9}}
	store := &fakeStore{byMetadata: map[int64]*domain.Film{42: existing}}
	r := newTestResolver(store, NewCache(nil), Options{Matcher: matcher})

	id, err := r.Resolve(context.Background(), Request{Title: "Heat 4K"})
	require.NoError(t, err)

	assert.Equal(t, "film-db", id)
	assert.Empty(t, store.created)
}

func TestResolveMetadataNoMatchFallsBack(t *testing.T) {
	matcher := &fakeMatcher{matchErr: coreerrors.ErrNoMatch}
	store := &fakeStore{}
	r := newTestResolver(store, NewCache(nil), Options{Matcher: matcher})

	_, err := r.Resolve(context.Background(), Request{Title: "Home Movie Night"})
	require.NoError(t, err)

	require.Len(t, store.created, 1)
	assert.True(t, store.created[0].Unmatched)
}

func TestResolveMetadataLowConfidenceFallsBack(t *testing.T) {
	matcher := &fakeMatcher{match: &metadata.Match{ExternalID: 42, Confidence: 0.3}}
	store := &fakeStore{}
	r := newTestResolver(store, NewCache(nil), Options{Matcher: matcher})

	_, err := r.Resolve(context.Background(), Request{Title: "Heat"})
	require.NoError(t, err)

	require.Len(t, store.created, 1)
	assert.True(t, store.created[0].Unmatched)
}

func TestResolvePosterWaterfall(t *testing.T) {
	matcher := &fakeMatcher{
		match:   &metadata.Match{ExternalID: 42, Confidence: 0.9},
		details: &metadata.FilmDetails{ExternalID: 42, Title: "Heat"},
	}
	posters := &fakePosters{poster: &metadata.Poster{URL: "https://posters/heat.jpg", Source: "archive"}}
	store := &fakeStore{}
	r := newTestResolver(store, NewCache(nil), Options{Matcher: matcher, Posters: posters})

	_, err := r.Resolve(context.Background(), Request{Title: "Heat"})
	require.NoError(t, err)

	require.Len(t, store.created, 1)
	assert.Equal(t, "https://posters/heat.jpg", store.created[0].PosterURL)
}

func TestResolveNoPosterLeavesEmpty(t *testing.T) {
	matcher := &fakeMatcher{
		match:   &metadata.Match{ExternalID: 42, Confidence: 0.9},
		details: &metadata.FilmDetails{ExternalID: 42, Title: "Heat"},
	}
	posters := &fakePosters{err: coreerrors.ErrNoPoster}
	store := &fakeStore{}
	r := newTestResolver(store, NewCache(nil), Options{Matcher: matcher, Posters: posters})

	_, err := r.Resolve(context.Background(), Request{Title: "Heat"})
	require.NoError(t, err)

	require.Len(t, store.created, 1)
	assert.Empty(t, store.created[0].PosterURL)
}

func int64Ptr(v int64) *int64 { return &v }
