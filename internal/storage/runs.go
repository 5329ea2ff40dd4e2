package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jamesbarge/pictures/internal/core/domain"
)

// InsertScraperRun appends one audit row for a venue run.
func (db *DB) InsertScraperRun(ctx context.Context, run *domain.ScraperRun) error {
	var id pgtype.UUID

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO scraper_runs (
			cinema_id, started_at, completed_at, status, screening_count,
			baseline_count, anomaly_type, anomaly_details
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		run.CinemaID,
		toTimestamptz(run.StartedAt),
		toTimestamptz(run.CompletedAt),
		run.Status,
		run.ScreeningCount,
		toInt4Ptr(run.BaselineCount),
		toText(run.AnomalyType),
		toText(run.AnomalyDetails),
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert scraper run: %w", err)
	}

	run.ID = fromUUID(id)

	return nil
}

// GetBaseline returns the rolling expected screening count for a venue,
// or nil when none has been computed yet.
func (db *DB) GetBaseline(ctx context.Context, cinemaID string) (*domain.CinemaBaseline, error) {
	var baseline domain.CinemaBaseline

	err := db.Pool.QueryRow(ctx, `
		SELECT cinema_id, weekday_count, weekend_count, tolerance_pct
		FROM cinema_baselines
		WHERE cinema_id = $1
	`, cinemaID).Scan(
		&baseline.CinemaID,
		&baseline.WeekdayCount,
		&baseline.WeekendCount,
		&baseline.TolerancePct,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("get baseline: %w", err)
	}

	return &baseline, nil
}
