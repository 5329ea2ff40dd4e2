package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jamesbarge/pictures/internal/core/domain"
)

const screeningSelect = `
	SELECT id, film_id, cinema_id, datetime, booking_url, screen, format,
	       event_type, event_description, is_3d, subtitled, audio_described,
	       relaxed, season_label, source_id, scraped_at
	FROM screenings`

// FindScreening looks up the screening identified by the durable triple
// (film, cinema, datetime). Returns nil when none exists.
func (db *DB) FindScreening(ctx context.Context, filmID, cinemaID string, at time.Time) (*domain.Screening, error) {
	row := db.Pool.QueryRow(ctx, screeningSelect+`
		WHERE film_id = $1 AND cinema_id = $2 AND datetime = $3
	`, toUUID(filmID), cinemaID, at)

	screening, err := scanScreening(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("find screening: %w", err)
	}

	return screening, nil
}

// FindScreeningsAt returns every screening at the given venue and time
// regardless of film. Feeds the deduplicator's cross-identity guard.
func (db *DB) FindScreeningsAt(ctx context.Context, cinemaID string, at time.Time) ([]domain.Screening, error) {
	rows, err := db.Pool.Query(ctx, screeningSelect+`
		WHERE cinema_id = $1 AND datetime = $2
	`, cinemaID, at)
	if err != nil {
		return nil, fmt.Errorf("query screenings at: %w", err)
	}
	defer rows.Close()

	var screenings []domain.Screening

	for rows.Next() {
		s, err := scanScreening(rows)
		if err != nil {
			return nil, fmt.Errorf("scan screening row: %w", err)
		}

		screenings = append(screenings, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate screening rows: %w", err)
	}

	return screenings, nil
}

// InsertScreening inserts a new screening row and fills in its id.
func (db *DB) InsertScreening(ctx context.Context, s *domain.Screening) error {
	var id pgtype.UUID

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO screenings (
			film_id, cinema_id, datetime, booking_url, screen, format,
			event_type, event_description, is_3d, subtitled,
			audio_described, relaxed, season_label, source_id, scraped_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`,
		toUUID(s.FilmID),
		s.CinemaID,
		s.Datetime,
		toText(s.BookingURL),
		toText(s.Screen),
		toText(s.Format),
		toText(s.EventType),
		toText(s.EventDescription),
		s.Is3D,
		s.Subtitled,
		s.AudioDescribed,
		s.Relaxed,
		toText(s.SeasonLabel),
		toText(s.SourceID),
		toTimestamptz(s.ScrapedAt),
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert screening: %w", err)
	}

	s.ID = fromUUID(id)

	return nil
}

// UpdateScreening refreshes a re-scraped screening in place. Film, cinema
// and datetime are the row's identity and never change here.
func (db *DB) UpdateScreening(ctx context.Context, s *domain.Screening) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE screenings SET
			booking_url = $2,
			screen = $3,
			format = $4,
			event_type = $5,
			event_description = $6,
			is_3d = $7,
			subtitled = $8,
			audio_described = $9,
			relaxed = $10,
			season_label = $11,
			source_id = $12,
			scraped_at = $13
		WHERE id = $1
	`,
		toUUID(s.ID),
		toText(s.BookingURL),
		toText(s.Screen),
		toText(s.Format),
		toText(s.EventType),
		toText(s.EventDescription),
		s.Is3D,
		s.Subtitled,
		s.AudioDescribed,
		s.Relaxed,
		toText(s.SeasonLabel),
		toText(s.SourceID),
		toTimestamptz(s.ScrapedAt),
	)
	if err != nil {
		return fmt.Errorf("update screening: %w", err)
	}

	return nil
}

// ScreeningSnapshot is the identity of one already-persisted future
// screening, used by the blocked-run guard to compare a fresh scrape
// against the prior state of a venue.
type ScreeningSnapshot struct {
	SourceID        string
	NormalizedTitle string
	Datetime        time.Time
}

// FutureScreeningSnapshot returns the identity keys of every future
// screening currently persisted for a venue.
func (db *DB) FutureScreeningSnapshot(ctx context.Context, cinemaID string, now time.Time) ([]ScreeningSnapshot, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT COALESCE(s.source_id, ''), f.normalized_title, s.datetime
		FROM screenings s
		JOIN films f ON f.id = s.film_id
		WHERE s.cinema_id = $1 AND s.datetime > $2
	`, cinemaID, now)
	if err != nil {
		return nil, fmt.Errorf("query future screening snapshot: %w", err)
	}
	defer rows.Close()

	var snapshot []ScreeningSnapshot

	for rows.Next() {
		var entry ScreeningSnapshot
		if err := rows.Scan(&entry.SourceID, &entry.NormalizedTitle, &entry.Datetime); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		snapshot = append(snapshot, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	return snapshot, nil
}

// DeleteStaleScreenings removes future screenings for a venue whose
// source id is absent from the fresh set and which were last scraped
// strictly before this run started. Callers must never pass an empty
// fresh set; the cleaner guards that invariant.
func (db *DB) DeleteStaleScreenings(ctx context.Context, cinemaID string, freshSourceIDs []string, runStarted time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM screenings
		WHERE cinema_id = $1
		  AND datetime > NOW()
		  AND source_id IS NOT NULL
		  AND source_id <> ''
		  AND NOT (source_id = ANY($2))
		  AND scraped_at < $3
	`, cinemaID, freshSourceIDs, runStarted)
	if err != nil {
		return 0, fmt.Errorf("delete stale screenings: %w", err)
	}

	return tag.RowsAffected(), nil
}

// CountStaleScreenings reports how many rows DeleteStaleScreenings would
// remove, for dry-run mode.
func (db *DB) CountStaleScreenings(ctx context.Context, cinemaID string, freshSourceIDs []string, runStarted time.Time) (int64, error) {
	var count int64

	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM screenings
		WHERE cinema_id = $1
		  AND datetime > NOW()
		  AND source_id IS NOT NULL
		  AND source_id <> ''
		  AND NOT (source_id = ANY($2))
		  AND scraped_at < $3
	`, cinemaID, freshSourceIDs, runStarted).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count stale screenings: %w", err)
	}

	return count, nil
}

// DeleteUnrefreshedScreenings removes future screenings for a venue that
// no scrape has touched since the cutoff. The offline cleanup tool uses
// this to clear listings a venue silently withdrew.
func (db *DB) DeleteUnrefreshedScreenings(ctx context.Context, cinemaID string, cutoff time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM screenings
		WHERE cinema_id = $1
		  AND datetime > NOW()
		  AND scraped_at < $2
	`, cinemaID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete unrefreshed screenings: %w", err)
	}

	return tag.RowsAffected(), nil
}

// CountUnrefreshedScreenings reports how many rows
// DeleteUnrefreshedScreenings would remove, for dry-run mode.
func (db *DB) CountUnrefreshedScreenings(ctx context.Context, cinemaID string, cutoff time.Time) (int64, error) {
	var count int64

	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM screenings
		WHERE cinema_id = $1
		  AND datetime > NOW()
		  AND scraped_at < $2
	`, cinemaID, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unrefreshed screenings: %w", err)
	}

	return count, nil
}

// scanScreening scans one row produced by screeningSelect.
func scanScreening(row pgx.Row) (*domain.Screening, error) {
	var (
		s          domain.Screening
		id, filmID pgtype.UUID

		bookingURL, screen, format, eventType, eventDesc, seasonLabel, sourceID pgtype.Text

		scrapedAt pgtype.Timestamptz
	)

	err := row.Scan(
		&id,
		&filmID,
		&s.CinemaID,
		&s.Datetime,
		&bookingURL,
		&screen,
		&format,
		&eventType,
		&eventDesc,
		&s.Is3D,
		&s.Subtitled,
		&s.AudioDescribed,
		&s.Relaxed,
		&seasonLabel,
		&sourceID,
		&scrapedAt,
	)
	if err != nil {
		return nil, err
	}

	s.ID = fromUUID(id)
	s.FilmID = fromUUID(filmID)
	s.BookingURL = fromText(bookingURL)
	s.Screen = fromText(screen)
	s.Format = fromText(format)
	s.EventType = fromText(eventType)
	s.EventDescription = fromText(eventDesc)
	s.SeasonLabel = fromText(seasonLabel)
	s.SourceID = fromText(sourceID)
	s.ScrapedAt = fromTimestamptz(scrapedAt)

	return &s, nil
}
