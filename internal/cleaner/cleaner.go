// Package cleaner removes previously-persisted future screenings that a
// fresh scrape no longer confirms.
package cleaner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jamesbarge/pictures/internal/observability"
)

// Store is the persistence surface the cleaner needs.
type Store interface {
	DeleteStaleScreenings(ctx context.Context, cinemaID string, freshSourceIDs []string, runStarted time.Time) (int64, error)
	CountStaleScreenings(ctx context.Context, cinemaID string, freshSourceIDs []string, runStarted time.Time) (int64, error)
}

// Result reports a cleanup pass.
type Result struct {
	Deleted int64
}

// Cleaner deletes stale future screenings for one venue after a
// successful scrape.
type Cleaner struct {
	store  Store
	logger *zerolog.Logger
}

// New creates a Cleaner.
func New(store Store, logger *zerolog.Logger) *Cleaner {
	return &Cleaner{store: store, logger: logger}
}

// RemoveStale deletes future screenings for the venue whose source id is
// absent from the fresh set and which were last scraped strictly before
// this run started.
//
// Safety invariant: an empty fresh set performs no deletions and returns
// zero effect. An empty or broken scrape must never be read as
// "everything is now stale". Past screenings and other venues are never
// touched.
func (c *Cleaner) RemoveStale(ctx context.Context, cinemaID string, freshSourceIDs []string, runStarted time.Time) (Result, error) {
	if len(freshSourceIDs) == 0 {
		c.logger.Info().Str("cinema", cinemaID).Msg("no fresh source ids, skipping stale cleanup")

		return Result{}, nil
	}

	deleted, err := c.store.DeleteStaleScreenings(ctx, cinemaID, freshSourceIDs, runStarted)
	if err != nil {
		return Result{}, fmt.Errorf("remove stale screenings: %w", err)
	}

	if deleted > 0 {
		observability.StaleScreeningsDeleted.Add(float64(deleted))
		c.logger.Info().
			Str("cinema", cinemaID).
			Int64("deleted", deleted).
			Msg("removed stale screenings")
	}

	return Result{Deleted: deleted}, nil
}

// DryRun reports how many screenings RemoveStale would delete without
// writing anything.
func (c *Cleaner) DryRun(ctx context.Context, cinemaID string, freshSourceIDs []string, runStarted time.Time) (Result, error) {
	if len(freshSourceIDs) == 0 {
		return Result{}, nil
	}

	count, err := c.store.CountStaleScreenings(ctx, cinemaID, freshSourceIDs, runStarted)
	if err != nil {
		return Result{}, fmt.Errorf("count stale screenings: %w", err)
	}

	return Result{Deleted: count}, nil
}
