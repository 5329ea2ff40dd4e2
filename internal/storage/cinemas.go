package db

import (
	"context"
	"fmt"

	"github.com/jamesbarge/pictures/internal/core/domain"
)

// EnsureCinema upserts a venue. Idempotent; called by the orchestrator
// before any screenings are written for the venue.
func (db *DB) EnsureCinema(ctx context.Context, cinema domain.Cinema) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO cinemas (id, name, address, features)
		VALUES ($1, $2, $3, COALESCE($4, '{}'))
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			address = EXCLUDED.address,
			features = EXCLUDED.features,
			updated_at = NOW()
	`, cinema.ID, cinema.Name, toText(cinema.Address), cinema.Features)
	if err != nil {
		return fmt.Errorf("ensure cinema: %w", err)
	}

	return nil
}
