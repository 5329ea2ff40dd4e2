package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jamesbarge/pictures/internal/core/domain"
	"github.com/jamesbarge/pictures/internal/core/title"
)

// CreateFilm inserts a new canonical film row and fills in its id.
// NormalizedTitle is derived here so every writer goes through the same
// normalization.
func (db *DB) CreateFilm(ctx context.Context, film *domain.Film) error {
	film.NormalizedTitle = title.Normalize(film.Title)

	var id pgtype.UUID

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO films (
			title, normalized_title, year, metadata_id, poster_url,
			directors, synopsis, runtime_minutes, match_confidence,
			match_strategy, unmatched
		)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, '{}'), $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`,
		toText(film.Title),
		toText(film.NormalizedTitle),
		toInt4Ptr(film.Year),
		toInt8Ptr(film.MetadataID),
		toText(film.PosterURL),
		film.Directors,
		toText(film.Synopsis),
		film.RuntimeMinutes,
		film.MatchConfidence,
		toText(film.MatchStrategy),
		film.Unmatched,
	).Scan(&id, &film.CreatedAt)
	if err != nil {
		return fmt.Errorf("create film: %w", err)
	}

	film.ID = fromUUID(id)

	return nil
}

// GetFilmByMetadataID returns the film carrying the given external
// metadata id, or nil when none exists.
func (db *DB) GetFilmByMetadataID(ctx context.Context, metadataID int64) (*domain.Film, error) {
	row := db.Pool.QueryRow(ctx, filmSelect+` WHERE f.metadata_id = $1 GROUP BY f.id`, metadataID)

	film, err := scanFilm(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("get film by metadata id: %w", err)
	}

	return film, nil
}

// GetFilmTitle returns just the title of a film. Used by the screening
// deduplicator's cross-identity guard.
func (db *DB) GetFilmTitle(ctx context.Context, id string) (string, error) {
	var t string
	if err := db.Pool.QueryRow(ctx, `SELECT title FROM films WHERE id = $1`, toUUID(id)).Scan(&t); err != nil {
		return "", fmt.Errorf("get film title: %w", err)
	}

	return t, nil
}

// LoadAllFilms returns every film row with its screening count. Feeds the
// per-run resolver cache and the duplicate-film merger.
func (db *DB) LoadAllFilms(ctx context.Context) ([]domain.Film, error) {
	rows, err := db.Pool.Query(ctx, filmSelect+` GROUP BY f.id ORDER BY f.created_at`)
	if err != nil {
		return nil, fmt.Errorf("query films: %w", err)
	}
	defer rows.Close()

	var films []domain.Film

	for rows.Next() {
		film, err := scanFilm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan film row: %w", err)
		}

		films = append(films, *film)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate film rows: %w", err)
	}

	return films, nil
}

// FindSimilarFilm looks up an existing film whose normalized title is
// within pg_trgm similarity distance of the candidate and whose year is
// compatible (equal, or absent on either side). Returns empty id when no
// match clears the threshold.
func (db *DB) FindSimilarFilm(ctx context.Context, candidate string, year *int, threshold float32) (string, float32, error) {
	normalized := title.Normalize(candidate)

	var (
		id         pgtype.UUID
		confidence float32
	)

	err := db.Pool.QueryRow(ctx, `
		SELECT id, similarity(normalized_title, $1)
		FROM films
		WHERE similarity(normalized_title, $1) >= $2
		  AND ($3::int IS NULL OR year IS NULL OR year = $3)
		ORDER BY similarity(normalized_title, $1) DESC
		LIMIT 1
	`, normalized, threshold, toInt4Ptr(year)).Scan(&id, &confidence)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", 0, nil
		}

		return "", 0, fmt.Errorf("find similar film: %w", err)
	}

	return fromUUID(id), confidence, nil
}

const filmSelect = `
	SELECT f.id, f.title, f.normalized_title, f.year, f.metadata_id,
	       f.poster_url, f.directors, f.synopsis, f.runtime_minutes,
	       f.match_confidence, f.match_strategy, f.unmatched, f.created_at,
	       COUNT(s.id)::int AS screening_count
	FROM films f
	LEFT JOIN screenings s ON s.film_id = f.id`

// scanFilm scans one row produced by filmSelect.
func scanFilm(row pgx.Row) (*domain.Film, error) {
	var (
		film       domain.Film
		id         pgtype.UUID
		year       pgtype.Int4
		metadataID pgtype.Int8

		posterURL, synopsis, strategy pgtype.Text
	)

	err := row.Scan(
		&id,
		&film.Title,
		&film.NormalizedTitle,
		&year,
		&metadataID,
		&posterURL,
		&film.Directors,
		&synopsis,
		&film.RuntimeMinutes,
		&film.MatchConfidence,
		&strategy,
		&film.Unmatched,
		&film.CreatedAt,
		&film.ScreeningCount,
	)
	if err != nil {
		return nil, err
	}

	film.ID = fromUUID(id)
	film.Year = fromInt4Ptr(year)
	film.MetadataID = fromInt8Ptr(metadataID)
	film.PosterURL = fromText(posterURL)
	film.Synopsis = fromText(synopsis)
	film.MatchStrategy = fromText(strategy)

	return &film, nil
}
