package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jamesbarge/pictures/internal/core/domain"
)

// RunStore persists scraper run audit rows.
type RunStore interface {
	InsertScraperRun(ctx context.Context, run *domain.ScraperRun) error
}

const recordTimeout = 10 * time.Second

// RunRecorder appends run audit rows without blocking the scrape loop.
// Writes are fire-and-forget, but Flush must be called before process
// exit so the last run's audit trail is never lost.
type RunRecorder struct {
	store  RunStore
	logger *zerolog.Logger
	wg     sync.WaitGroup
}

// NewRunRecorder creates a RunRecorder.
func NewRunRecorder(store RunStore, logger *zerolog.Logger) *RunRecorder {
	return &RunRecorder{store: store, logger: logger}
}

// Record appends one run row in the background.
func (r *RunRecorder) Record(run domain.ScraperRun) {
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()

		if err := r.store.InsertScraperRun(ctx, &run); err != nil {
			r.logger.Error().Err(err).
				Str("cinema", run.CinemaID).
				Str("status", run.Status).
				Msg("failed to record scraper run")
		}
	}()
}

// Flush waits for all pending run writes, bounded by the context.
func (r *RunRecorder) Flush(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush run log: %w", ctx.Err())
	}
}
