package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/pictures")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost:5432/pictures", cfg.PostgresDSN)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, int32(10), cfg.DBMaxConnections)
	assert.Equal(t, 2, cfg.RetryAttempts)
	assert.Equal(t, 5*time.Second, cfg.RetryBackoffBase)
	assert.Equal(t, 10*time.Second, cfg.InterVenueDelay)
	assert.Equal(t, 120*time.Second, cfg.ScrapeTimeout)
	assert.Equal(t, float32(0.5), cfg.SimilarityThreshold)
	assert.Equal(t, float32(0.6), cfg.MatchConfidenceFloor)
	assert.Equal(t, 10, cfg.BlockedMinPriorScreenings)
	assert.Equal(t, 0.1, cfg.BlockedOverlapFraction)
	assert.Equal(t, 0.5, cfg.MergeSimilarityThreshold)
	assert.True(t, cfg.SimilarityEnabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/pictures")
	t.Setenv("RETRY_ATTEMPTS", "5")
	t.Setenv("SIMILARITY_ENABLED", "false")
	t.Setenv("SCRAPE_TIMEOUT", "90s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.RetryAttempts)
	assert.False(t, cfg.SimilarityEnabled)
	assert.Equal(t, 90*time.Second, cfg.ScrapeTimeout)
}

func TestLoadRequiresDSN(t *testing.T) {
	// t.Setenv registers the restore; the variable must be genuinely
	// absent for the required check to trip.
	t.Setenv("POSTGRES_DSN", "placeholder")
	require.NoError(t, os.Unsetenv("POSTGRES_DSN"))

	_, err := Load()
	assert.Error(t, err)
}
