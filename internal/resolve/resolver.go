// Package resolve maps raw screening titles onto canonical film records.
// Resolution strategies run in strict order, short-circuiting on the
// first hit: per-run cache, fuzzy similarity, external metadata match,
// fallback creation.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jamesbarge/pictures/internal/core/domain"
	coreerrors "github.com/jamesbarge/pictures/internal/core/errors"
	"github.com/jamesbarge/pictures/internal/core/title"
	"github.com/jamesbarge/pictures/internal/metadata"
	"github.com/jamesbarge/pictures/internal/observability"
)

// Store is the persistence surface the resolver needs.
type Store interface {
	CreateFilm(ctx context.Context, film *domain.Film) error
	GetFilmByMetadataID(ctx context.Context, metadataID int64) (*domain.Film, error)
	FindSimilarFilm(ctx context.Context, candidate string, year *int, threshold float32) (string, float32, error)
}

// Matcher is the external film-metadata matching service.
type Matcher interface {
	Match(ctx context.Context, candidateTitle string, hints metadata.MatchHints) (*metadata.Match, error)
	Details(ctx context.Context, externalID int64) (*metadata.FilmDetails, error)
}

// PosterFinder is the external poster lookup service.
type PosterFinder interface {
	FindPoster(ctx context.Context, q metadata.PosterQuery) (*metadata.Poster, error)
}

// Request identifies the film a raw screening claims to show.
type Request struct {
	Title      string
	Year       int
	Director   string
	PosterHint string
}

// Options configure optional strategies.
type Options struct {
	// Matcher enables the external metadata strategy when non-nil.
	Matcher Matcher

	// Posters enables the poster waterfall when non-nil.
	Posters PosterFinder

	// SimilarityEnabled turns on the fuzzy store lookup.
	SimilarityEnabled bool

	// SimilarityThreshold is the trigram similarity floor for the fuzzy
	// strategy.
	SimilarityThreshold float32

	// ConfidenceFloor is the minimum confidence accepted from the fuzzy
	// and metadata strategies.
	ConfidenceFloor float32
}

// Resolver resolves titles to canonical film ids. One Resolver serves one
// ingestion run; it owns the run's cache.
type Resolver struct {
	store  Store
	cache  *Cache
	opts   Options
	logger *zerolog.Logger
}

// New creates a Resolver over a pre-built run cache.
func New(store Store, cache *Cache, opts Options, logger *zerolog.Logger) *Resolver {
	return &Resolver{store: store, cache: cache, opts: opts, logger: logger}
}

// Resolve returns the canonical film id for a request, creating a new
// film as a last resort. Within one run, two requests with the same
// normalized title or external id always resolve to the same id.
func (r *Resolver) Resolve(ctx context.Context, req Request) (string, error) {
	normalized := title.Normalize(req.Title)
	if normalized == "" {
		return "", fmt.Errorf("resolve %q: %w", req.Title, coreerrors.ErrInvalidInput)
	}

	if id, ok := r.cache.LookupTitle(normalized); ok {
		observability.FilmsResolved.WithLabelValues(domain.MatchStrategyCache).Inc()

		return id, nil
	}

	if id := r.resolveBySimilarity(ctx, req, normalized); id != "" {
		observability.FilmsResolved.WithLabelValues(domain.MatchStrategySimilarity).Inc()

		return id, nil
	}

	if id, err := r.resolveByMetadata(ctx, req, normalized); err != nil {
		return "", err
	} else if id != "" {
		observability.FilmsResolved.WithLabelValues(domain.MatchStrategyMetadata).Inc()

		return id, nil
	}

	id, err := r.createFallback(ctx, req)
	if err != nil {
		return "", err
	}

	observability.FilmsResolved.WithLabelValues(domain.MatchStrategyFallback).Inc()

	return id, nil
}

// resolveBySimilarity runs the fuzzy store lookup. Failures are soft: a
// broken similarity backend must not fail the run.
func (r *Resolver) resolveBySimilarity(ctx context.Context, req Request, normalized string) string {
	if !r.opts.SimilarityEnabled {
		return ""
	}

	id, confidence, err := r.store.FindSimilarFilm(ctx, req.Title, yearPtr(req.Year), r.opts.SimilarityThreshold)
	if err != nil {
		r.logger.Warn().Err(err).Str("title", req.Title).Msg("similarity lookup failed")

		return ""
	}

	if id == "" || confidence < r.opts.ConfidenceFloor {
		return ""
	}

	r.cache.AddAlias(normalized, id)

	return id
}

// resolveByMetadata queries the external metadata service and either
// reuses the film already holding the matched external id or creates a
// new one from the external record.
func (r *Resolver) resolveByMetadata(ctx context.Context, req Request, normalized string) (string, error) {
	if r.opts.Matcher == nil {
		return "", nil
	}

	match, err := r.opts.Matcher.Match(ctx, req.Title, metadata.MatchHints{Year: req.Year, Director: req.Director})
	if err != nil {
		if !errors.Is(err, coreerrors.ErrNoMatch) {
			r.logger.Warn().Err(err).Str("title", req.Title).Msg("metadata match failed")
		}

		return "", nil
	}

	if match.Confidence < r.opts.ConfidenceFloor {
		return "", nil
	}

	if id, ok := r.cache.LookupMetadataID(match.ExternalID); ok {
		r.cache.AddAlias(normalized, id)

		return id, nil
	}

	if existing, err := r.store.GetFilmByMetadataID(ctx, match.ExternalID); err != nil {
		return "", fmt.Errorf("lookup film by metadata id: %w", err)
	} else if existing != nil {
		r.cache.Add(*existing)
		r.cache.AddAlias(normalized, existing.ID)

		return existing.ID, nil
	}

	return r.createFromMetadata(ctx, req, match)
}

// createFromMetadata fetches the full external record and creates a new
// canonical film from it.
func (r *Resolver) createFromMetadata(ctx context.Context, req Request, match *metadata.Match) (string, error) {
	details, err := r.opts.Matcher.Details(ctx, match.ExternalID)
	if err != nil {
		r.logger.Warn().Err(err).Int64("external_id", match.ExternalID).Msg("metadata details fetch failed")

		return "", nil
	}

	externalID := match.ExternalID
	film := domain.Film{
		Title:           details.Title,
		Year:            yearPtr(details.Year),
		MetadataID:      &externalID,
		Directors:       details.Directors,
		Synopsis:        details.Synopsis,
		RuntimeMinutes:  details.Runtime,
		MatchConfidence: match.Confidence,
		MatchStrategy:   domain.MatchStrategyMetadata,
		PosterURL:       r.resolvePoster(ctx, req, details),
	}

	if err := r.store.CreateFilm(ctx, &film); err != nil {
		return "", fmt.Errorf("create film from metadata: %w", err)
	}

	observability.FilmsCreated.WithLabelValues(domain.MatchStrategyMetadata).Inc()

	r.cache.Add(film)
	r.cache.AddAlias(title.Normalize(req.Title), film.ID)

	return film.ID, nil
}

// resolvePoster applies the poster waterfall: external record, then the
// poster service, then nothing (left for later enrichment).
func (r *Resolver) resolvePoster(ctx context.Context, req Request, details *metadata.FilmDetails) string {
	if details.PosterPath != "" {
		return details.PosterPath
	}

	if r.opts.Posters == nil {
		return ""
	}

	poster, err := r.opts.Posters.FindPoster(ctx, metadata.PosterQuery{
		Title:       details.Title,
		Year:        details.Year,
		ExternalID:  details.ExternalID,
		ScraperHint: req.PosterHint,
	})
	if err != nil {
		if !errors.Is(err, coreerrors.ErrNoPoster) {
			r.logger.Warn().Err(err).Str("title", details.Title).Msg("poster lookup failed")
		}

		return ""
	}

	return poster.URL
}

// createFallback creates a minimal film from scraper-supplied fields
// alone, flagged unmatched for later re-enrichment.
func (r *Resolver) createFallback(ctx context.Context, req Request) (string, error) {
	film := domain.Film{
		Title:         req.Title,
		Year:          yearPtr(req.Year),
		PosterURL:     req.PosterHint,
		MatchStrategy: domain.MatchStrategyFallback,
		Unmatched:     true,
	}

	if req.Director != "" {
		film.Directors = []string{req.Director}
	}

	if err := r.store.CreateFilm(ctx, &film); err != nil {
		return "", fmt.Errorf("create fallback film: %w", err)
	}

	observability.FilmsCreated.WithLabelValues(domain.MatchStrategyFallback).Inc()

	r.cache.Add(film)

	return film.ID, nil
}

func yearPtr(year int) *int {
	if year <= 0 {
		return nil
	}

	return &year
}
