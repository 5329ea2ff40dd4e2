package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jamesbarge/pictures/internal/core/domain"
)

// MergeFilmCluster re-points everything referencing the duplicate films
// to the survivor and deletes the duplicates, all inside one transaction
// so a re-pointing failure can never leave screenings referencing a
// deleted film.
//
// Conflict handling is survivor-wins and never surfaces as an error: a
// duplicate's screening, season entry or user status that would collide
// with a row already on the survivor is dropped instead of re-pointed,
// and when two duplicates collide with each other exactly one of their
// rows is kept. The survivor's absorbed
// fields (poster, synopsis, runtime, year, directors filled in from the
// duplicates) are computed by the merger and written here as part of the
// same transaction.
func (db *DB) MergeFilmCluster(ctx context.Context, survivor *domain.Film, duplicateIDs []string) error {
	primaryID := survivor.ID
	if len(duplicateIDs) == 0 {
		return nil
	}

	primary := toUUID(primaryID)
	duplicates := make([]pgtype.UUID, len(duplicateIDs))

	for i, id := range duplicateIDs {
		duplicates[i] = toUUID(id)
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin merge tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Screenings that would violate the (film, cinema, datetime)
	// uniqueness after re-pointing are removed first. A duplicate's row
	// loses to the survivor's row at the same (cinema, datetime); when
	// two duplicates collide with each other, the lowest film id keeps
	// its row. Cross-identity dedup allows distinct films in the same
	// slot, so dup-on-dup collisions are a normal merge input.
	if _, err := tx.Exec(ctx, `
		DELETE FROM screenings s
		USING screenings kept
		WHERE s.film_id = ANY($2)
		  AND kept.cinema_id = s.cinema_id
		  AND kept.datetime = s.datetime
		  AND (kept.film_id = $1
		       OR (kept.film_id = ANY($2) AND kept.film_id < s.film_id))
	`, primary, duplicates); err != nil {
		return fmt.Errorf("drop colliding screenings: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE screenings SET film_id = $1 WHERE film_id = ANY($2)
	`, primary, duplicates); err != nil {
		return fmt.Errorf("repoint screenings: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM season_films sf
		USING season_films kept
		WHERE sf.film_id = ANY($2)
		  AND kept.season_id = sf.season_id
		  AND (kept.film_id = $1
		       OR (kept.film_id = ANY($2) AND kept.film_id < sf.film_id))
	`, primary, duplicates); err != nil {
		return fmt.Errorf("drop colliding season entries: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE season_films SET film_id = $1 WHERE film_id = ANY($2)
	`, primary, duplicates); err != nil {
		return fmt.Errorf("repoint season entries: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM film_user_statuses fus
		USING film_user_statuses kept
		WHERE fus.film_id = ANY($2)
		  AND kept.user_id = fus.user_id
		  AND (kept.film_id = $1
		       OR (kept.film_id = ANY($2) AND kept.film_id < fus.film_id))
	`, primary, duplicates); err != nil {
		return fmt.Errorf("drop colliding user statuses: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE film_user_statuses SET film_id = $1 WHERE film_id = ANY($2)
	`, primary, duplicates); err != nil {
		return fmt.Errorf("repoint user statuses: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM films WHERE id = ANY($1)
	`, duplicates); err != nil {
		return fmt.Errorf("delete duplicate films: %w", err)
	}

	// Survivor absorbs data it was missing from the duplicates. Runs
	// after the duplicate rows are gone so an absorbed metadata id
	// cannot trip the uniqueness constraint against its old holder.
	if _, err := tx.Exec(ctx, `
		UPDATE films SET
			poster_url = $2,
			synopsis = $3,
			runtime_minutes = $4,
			year = $5,
			directors = COALESCE($6, '{}'),
			metadata_id = $7
		WHERE id = $1
	`,
		primary,
		toText(survivor.PosterURL),
		toText(survivor.Synopsis),
		survivor.RuntimeMinutes,
		toInt4Ptr(survivor.Year),
		survivor.Directors,
		toInt8Ptr(survivor.MetadataID),
	); err != nil {
		return fmt.Errorf("absorb duplicate data: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit merge tx: %w", err)
	}

	return nil
}
