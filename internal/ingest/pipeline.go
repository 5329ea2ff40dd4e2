// Package ingest runs the per-venue pipeline: classify raw screenings,
// resolve film identities, deduplicate, persist, and clean up stale
// rows. One Pipeline instance serves one orchestrator run.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jamesbarge/pictures/internal/classify"
	"github.com/jamesbarge/pictures/internal/cleaner"
	"github.com/jamesbarge/pictures/internal/core/domain"
	coreerrors "github.com/jamesbarge/pictures/internal/core/errors"
	"github.com/jamesbarge/pictures/internal/core/title"
	"github.com/jamesbarge/pictures/internal/dedup"
	"github.com/jamesbarge/pictures/internal/observability"
	"github.com/jamesbarge/pictures/internal/resolve"
	db "github.com/jamesbarge/pictures/internal/storage"
)

// Store is the persistence surface the pipeline needs beyond what its
// collaborators already own.
type Store interface {
	EnsureCinema(ctx context.Context, cinema domain.Cinema) error
	FutureScreeningSnapshot(ctx context.Context, cinemaID string, now time.Time) ([]db.ScreeningSnapshot, error)
	InsertScreening(ctx context.Context, s *domain.Screening) error
	UpdateScreening(ctx context.Context, s *domain.Screening) error
}

// GuardConfig tunes the blocked-run snapshot guard.
type GuardConfig struct {
	// MinPriorScreenings is the minimum number of already-persisted
	// future screenings before the guard can veto a scrape.
	MinPriorScreenings int

	// OverlapFraction is the minimum share of the prior snapshot a fresh
	// scrape must reconfirm to be trusted.
	OverlapFraction float64
}

// Stats reports one venue's ingestion outcome.
type Stats struct {
	Inserted int
	Updated  int
	Skipped  int
	Deleted  int64
}

// Total returns the number of screenings persisted or refreshed.
func (s Stats) Total() int {
	return s.Inserted + s.Updated
}

// Pipeline wires the classifier, resolver, deduplicator and cleaner into
// the per-venue ingestion pass.
type Pipeline struct {
	store      Store
	classifier *classify.Classifier
	resolver   *resolve.Resolver
	dedup      *dedup.Deduplicator
	cleaner    *cleaner.Cleaner
	guard      GuardConfig
	logger     *zerolog.Logger
}

// New creates a Pipeline.
func New(
	store Store,
	classifier *classify.Classifier,
	resolver *resolve.Resolver,
	deduplicator *dedup.Deduplicator,
	staleCleaner *cleaner.Cleaner,
	guard GuardConfig,
	logger *zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		store:      store,
		classifier: classifier,
		resolver:   resolver,
		dedup:      deduplicator,
		cleaner:    staleCleaner,
		guard:      guard,
		logger:     logger,
	}
}

// IngestVenue runs one venue's scrape results through the pipeline.
// Returns ErrBlocked (wrapped) when the snapshot guard vetoes the batch;
// the orchestrator must not retry a blocked run.
func (p *Pipeline) IngestVenue(ctx context.Context, cinema domain.Cinema, raws []domain.RawScreening, runStarted time.Time) (*Stats, error) {
	if err := p.store.EnsureCinema(ctx, cinema); err != nil {
		return nil, fmt.Errorf("ensure cinema %s: %w", cinema.ID, err)
	}

	if err := p.checkSnapshotGuard(ctx, cinema.ID, raws, runStarted); err != nil {
		return nil, err
	}

	stats := &Stats{}
	freshSourceIDs := make([]string, 0, len(raws))

	for _, raw := range raws {
		outcome, err := p.ingestOne(ctx, cinema.ID, raw, runStarted)
		if err != nil {
			return stats, fmt.Errorf("ingest %q at %s: %w", raw.FilmTitle, raw.Datetime, err)
		}

		observability.ScreeningsIngested.WithLabelValues(cinema.ID, outcome).Inc()

		switch outcome {
		case outcomeInserted:
			stats.Inserted++
		case outcomeUpdated:
			stats.Updated++
		case outcomeSkipped:
			stats.Skipped++
		}

		if raw.SourceID != "" {
			freshSourceIDs = append(freshSourceIDs, raw.SourceID)
		}
	}

	cleaned, err := p.cleaner.RemoveStale(ctx, cinema.ID, freshSourceIDs, runStarted)
	if err != nil {
		return stats, err
	}

	stats.Deleted = cleaned.Deleted

	return stats, nil
}

const (
	outcomeInserted = "inserted"
	outcomeUpdated  = "updated"
	outcomeSkipped  = "skipped"
)

// ingestOne classifies, resolves and persists a single raw screening.
func (p *Pipeline) ingestOne(ctx context.Context, cinemaID string, raw domain.RawScreening, runStarted time.Time) (string, error) {
	if raw.FilmTitle == "" || raw.Datetime.IsZero() {
		p.logger.Warn().Str("cinema", cinemaID).Str("title", raw.FilmTitle).Msg("dropping malformed raw screening")

		return outcomeSkipped, nil
	}

	classification := p.classifier.Classify(ctx, raw)

	filmID, err := p.resolver.Resolve(ctx, resolve.Request{
		Title:      classification.CandidateTitle,
		Year:       raw.Year,
		Director:   raw.Director,
		PosterHint: raw.PosterURL,
	})
	if err != nil {
		return "", err
	}

	decision, err := p.dedup.Check(ctx, filmID, cinemaID, raw.Datetime)
	if err != nil {
		return "", err
	}

	switch decision.Action {
	case dedup.ActionSkip:
		return outcomeSkipped, nil

	case dedup.ActionUpdate:
		screening := decision.Existing
		applyRaw(screening, raw, classification, runStarted)

		if err := p.store.UpdateScreening(ctx, screening); err != nil {
			return "", err
		}

		return outcomeUpdated, nil

	default:
		screening := &domain.Screening{
			FilmID:   filmID,
			CinemaID: cinemaID,
			Datetime: raw.Datetime,
		}
		applyRaw(screening, raw, classification, runStarted)

		if err := p.store.InsertScreening(ctx, screening); err != nil {
			return "", err
		}

		return outcomeInserted, nil
	}
}

// applyRaw refreshes a screening's non-identity fields from the raw
// record and its classification.
func applyRaw(s *domain.Screening, raw domain.RawScreening, c classify.Result, runStarted time.Time) {
	s.BookingURL = raw.BookingURL
	s.Screen = raw.Screen
	s.Format = c.Format
	s.EventType = c.EventType
	s.EventDescription = c.EventDescription
	s.Is3D = c.Is3D
	s.Subtitled = c.Subtitled
	s.AudioDescribed = c.AudioDescribed
	s.Relaxed = c.Relaxed
	s.SeasonLabel = c.SeasonLabel
	s.SourceID = raw.SourceID
	s.ScrapedAt = runStarted
}

// checkSnapshotGuard vetoes a scrape whose results look like garbage: the
// venue previously had a healthy set of future screenings and the fresh
// batch reconfirms almost none of them. Retrying a blocked run would just
// reproduce the same bad data, so the orchestrator treats ErrBlocked as
// terminal.
func (p *Pipeline) checkSnapshotGuard(ctx context.Context, cinemaID string, raws []domain.RawScreening, runStarted time.Time) error {
	if len(raws) == 0 || p.guard.MinPriorScreenings <= 0 {
		return nil
	}

	snapshot, err := p.store.FutureScreeningSnapshot(ctx, cinemaID, runStarted)
	if err != nil {
		return fmt.Errorf("load venue snapshot: %w", err)
	}

	if len(snapshot) < p.guard.MinPriorScreenings {
		return nil
	}

	freshSourceIDs := make(map[string]struct{}, len(raws))
	freshSlots := make(map[string]struct{}, len(raws))

	for _, raw := range raws {
		if raw.SourceID != "" {
			freshSourceIDs[raw.SourceID] = struct{}{}
		}

		freshSlots[slotKey(title.Normalize(raw.FilmTitle), raw.Datetime)] = struct{}{}
	}

	confirmed := 0

	for _, entry := range snapshot {
		if entry.SourceID != "" {
			if _, ok := freshSourceIDs[entry.SourceID]; ok {
				confirmed++
				continue
			}
		}

		if _, ok := freshSlots[slotKey(entry.NormalizedTitle, entry.Datetime)]; ok {
			confirmed++
		}
	}

	overlap := float64(confirmed) / float64(len(snapshot))
	if overlap < p.guard.OverlapFraction {
		p.logger.Error().
			Str("cinema", cinemaID).
			Int("prior", len(snapshot)).
			Int("confirmed", confirmed).
			Float64("overlap", overlap).
			Msg("scrape diverges from prior snapshot, blocking")

		return fmt.Errorf("venue %s overlap %.2f below %.2f: %w", cinemaID, overlap, p.guard.OverlapFraction, coreerrors.ErrBlocked)
	}

	return nil
}

func slotKey(normalizedTitle string, at time.Time) string {
	return normalizedTitle + "|" + at.UTC().Format(time.RFC3339)
}
