// Package dedup decides whether a candidate screening is new, a
// re-scrape of an existing row, or a disguised duplicate that must be
// dropped. It shares the resolver's title normalization through
// internal/core/title; any drift between the two reintroduces visible
// duplicates.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jamesbarge/pictures/internal/core/domain"
	"github.com/jamesbarge/pictures/internal/core/title"
)

// Action is the deduplicator's verdict for a candidate screening.
type Action int

const (
	// ActionInsert means no duplicate exists; persist a new row.
	ActionInsert Action = iota

	// ActionUpdate means the exact (film, cinema, datetime) row exists;
	// refresh it in place.
	ActionUpdate

	// ActionSkip means an existing row under a different film id is the
	// same real-world showing; drop the candidate silently.
	ActionSkip
)

// Decision carries the verdict plus the existing row for updates.
type Decision struct {
	Action   Action
	Existing *domain.Screening
}

// Store is the persistence surface the deduplicator needs.
type Store interface {
	FindScreening(ctx context.Context, filmID, cinemaID string, at time.Time) (*domain.Screening, error)
	FindScreeningsAt(ctx context.Context, cinemaID string, at time.Time) ([]domain.Screening, error)
	GetFilmTitle(ctx context.Context, filmID string) (string, error)
}

// Deduplicator enforces at most one persisted screening per
// (film, cinema, datetime) and guards against a second, differently-keyed
// film record representing the same real showing.
type Deduplicator struct {
	store  Store
	logger *zerolog.Logger
}

// New creates a Deduplicator.
func New(store Store, logger *zerolog.Logger) *Deduplicator {
	return &Deduplicator{store: store, logger: logger}
}

// Check runs the two dedup layers for a candidate (film, cinema,
// datetime).
//
// Layer 1: exact key lookup — a hit means update in place.
// Layer 2: any screening at the same (cinema, datetime) under a
// different film whose title normalizes identically is the same showing
// reached through a resolver near-miss — the candidate is skipped. A
// different normalized title is a genuine second screening (double
// feature, split screen) and inserts.
func (d *Deduplicator) Check(ctx context.Context, filmID, cinemaID string, at time.Time) (Decision, error) {
	existing, err := d.store.FindScreening(ctx, filmID, cinemaID, at)
	if err != nil {
		return Decision{}, fmt.Errorf("exact screening lookup: %w", err)
	}

	if existing != nil {
		return Decision{Action: ActionUpdate, Existing: existing}, nil
	}

	sameSlot, err := d.store.FindScreeningsAt(ctx, cinemaID, at)
	if err != nil {
		return Decision{}, fmt.Errorf("same-slot screening lookup: %w", err)
	}

	if len(sameSlot) == 0 {
		return Decision{Action: ActionInsert}, nil
	}

	candidateTitle, err := d.store.GetFilmTitle(ctx, filmID)
	if err != nil {
		return Decision{}, fmt.Errorf("candidate film title: %w", err)
	}

	normalizedCandidate := title.Normalize(candidateTitle)

	for i := range sameSlot {
		other := &sameSlot[i]
		if other.FilmID == filmID {
			continue
		}

		otherTitle, err := d.store.GetFilmTitle(ctx, other.FilmID)
		if err != nil {
			return Decision{}, fmt.Errorf("existing film title: %w", err)
		}

		if title.Normalize(otherTitle) == normalizedCandidate {
			d.logger.Debug().
				Str("cinema", cinemaID).
				Time("datetime", at).
				Str("candidate_film", filmID).
				Str("existing_film", other.FilmID).
				Msg("cross-identity duplicate skipped")

			return Decision{Action: ActionSkip, Existing: other}, nil
		}
	}

	return Decision{Action: ActionInsert}, nil
}
