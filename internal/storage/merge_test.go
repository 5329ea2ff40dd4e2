package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesbarge/pictures/internal/core/domain"
)

// newTestDB connects to the database named by POSTGRES_TEST_DSN, runs
// migrations and empties the tables. Tests needing a live database skip
// when the variable is unset so the suite stays runnable without one.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	ctx := context.Background()
	logger := zerolog.Nop()

	database, err := New(ctx, dsn, &logger)
	require.NoError(t, err)
	t.Cleanup(database.Close)

	require.NoError(t, database.Migrate(ctx))

	_, err = database.Pool.Exec(ctx,
		`TRUNCATE film_user_statuses, season_films, seasons, screenings, scraper_runs, cinema_baselines, films, cinemas`)
	require.NoError(t, err)

	return database
}

func createTestFilm(t *testing.T, database *DB, filmTitle string) domain.Film {
	t.Helper()

	film := domain.Film{Title: filmTitle, MatchStrategy: domain.MatchStrategyFallback, Unmatched: true}
	require.NoError(t, database.CreateFilm(context.Background(), &film))

	return film
}

func insertTestScreening(t *testing.T, database *DB, filmID, cinemaID string, at time.Time) {
	t.Helper()

	s := domain.Screening{FilmID: filmID, CinemaID: cinemaID, Datetime: at, ScrapedAt: time.Now()}
	require.NoError(t, database.InsertScreening(context.Background(), &s))
}

// Two duplicates in one cluster can hold screenings in the same slot,
// because cross-identity dedup deliberately keeps same-slot showings of
// films whose titles differ. Merging such a cluster must keep exactly
// one row per slot instead of tripping the screenings uniqueness
// constraint and aborting the transaction.
func TestMergeFilmClusterDuplicatesCollidingWithEachOther(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, database.EnsureCinema(ctx, domain.Cinema{ID: "pcc", Name: "Prince Charles Cinema"}))

	survivor := createTestFilm(t, database, "Alien")
	dupA := createTestFilm(t, database, "Alien 4K")
	dupB := createTestFilm(t, database, "Alien 35mm")

	// Both duplicates in the same slot, the survivor in neither.
	at := time.Date(2026, 9, 1, 19, 30, 0, 0, time.UTC)
	insertTestScreening(t, database, dupA.ID, "pcc", at)
	insertTestScreening(t, database, dupB.ID, "pcc", at)

	// Same shape for season memberships and user statuses.
	var seasonID pgtype.UUID
	require.NoError(t, database.Pool.QueryRow(ctx,
		`INSERT INTO seasons (name) VALUES ('Ridley Scott') RETURNING id`).Scan(&seasonID))

	for _, dup := range []domain.Film{dupA, dupB} {
		_, err := database.Pool.Exec(ctx,
			`INSERT INTO season_films (season_id, film_id) VALUES ($1, $2)`, seasonID, toUUID(dup.ID))
		require.NoError(t, err)

		_, err = database.Pool.Exec(ctx,
			`INSERT INTO film_user_statuses (user_id, film_id, status) VALUES (7, $1, 'seen')`, toUUID(dup.ID))
		require.NoError(t, err)
	}

	merged := survivor
	require.NoError(t, database.MergeFilmCluster(ctx, &merged, []string{dupA.ID, dupB.ID}))

	remaining, err := database.FindScreeningsAt(ctx, "pcc", at)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, survivor.ID, remaining[0].FilmID)

	films, err := database.LoadAllFilms(ctx)
	require.NoError(t, err)
	require.Len(t, films, 1)
	assert.Equal(t, survivor.ID, films[0].ID)

	var seasonRows, statusRows int
	require.NoError(t, database.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM season_films WHERE film_id = $1`, toUUID(survivor.ID)).Scan(&seasonRows))
	require.NoError(t, database.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM film_user_statuses WHERE film_id = $1`, toUUID(survivor.ID)).Scan(&statusRows))
	assert.Equal(t, 1, seasonRows)
	assert.Equal(t, 1, statusRows)
}

func TestMergeFilmClusterSurvivorKeepsItsRow(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, database.EnsureCinema(ctx, domain.Cinema{ID: "pcc", Name: "Prince Charles Cinema"}))

	survivor := createTestFilm(t, database, "Heat")
	dup := createTestFilm(t, database, "Heat!")

	at := time.Date(2026, 9, 2, 20, 0, 0, 0, time.UTC)
	insertTestScreening(t, database, survivor.ID, "pcc", at)
	insertTestScreening(t, database, dup.ID, "pcc", at)

	merged := survivor
	require.NoError(t, database.MergeFilmCluster(ctx, &merged, []string{dup.ID}))

	remaining, err := database.FindScreeningsAt(ctx, "pcc", at)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, survivor.ID, remaining[0].FilmID)
}
