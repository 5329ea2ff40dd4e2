// Package config loads application configuration from the environment.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config carries every tunable for the ingestion pipeline, the
// orchestrator and the batch tools. Thresholds and scoring weights are
// tuned heuristics, not invariants; they are env-configurable on purpose.
type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`

	// MetricsPort exposes /healthz, /readyz and /metrics while a run is
	// in flight. Zero disables the server.
	MetricsPort int `env:"METRICS_PORT" envDefault:"0"`

	// Database pool
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"10"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS" envDefault:"2"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"5m"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"30m"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`

	// Film metadata service
	MetadataBaseURL  string        `env:"METADATA_BASE_URL"`
	MetadataAPIKey   string        `env:"METADATA_API_KEY"`
	MetadataTimeout  time.Duration `env:"METADATA_TIMEOUT" envDefault:"10s"`
	MetadataCacheTTL time.Duration `env:"METADATA_CACHE_TTL" envDefault:"6h"`

	// Poster service
	PosterBaseURL string        `env:"POSTER_BASE_URL"`
	PosterTimeout time.Duration `env:"POSTER_TIMEOUT" envDefault:"10s"`

	// Classification service
	ClassifierAPIKey  string        `env:"CLASSIFIER_API_KEY"`
	ClassifierModel   string        `env:"CLASSIFIER_MODEL" envDefault:"gpt-4o-mini"`
	ClassifierTimeout time.Duration `env:"CLASSIFIER_TIMEOUT" envDefault:"30s"`

	// Resolver
	SimilarityEnabled    bool    `env:"SIMILARITY_ENABLED" envDefault:"true"`
	SimilarityThreshold  float32 `env:"SIMILARITY_THRESHOLD" envDefault:"0.5"`
	MatchConfidenceFloor float32 `env:"MATCH_CONFIDENCE_FLOOR" envDefault:"0.6"`

	// Orchestrator
	RetryAttempts      int           `env:"RETRY_ATTEMPTS" envDefault:"2"`
	RetryBackoffBase   time.Duration `env:"RETRY_BACKOFF_BASE" envDefault:"5s"`
	InterVenueDelay    time.Duration `env:"INTER_VENUE_DELAY" envDefault:"10s"`
	ScrapeTimeout      time.Duration `env:"SCRAPE_TIMEOUT" envDefault:"120s"`
	HealthCheckTimeout time.Duration `env:"HEALTH_CHECK_TIMEOUT" envDefault:"15s"`
	RunLogFlushTimeout time.Duration `env:"RUN_LOG_FLUSH_TIMEOUT" envDefault:"10s"`

	// BaselineToleranceFallback applies when a venue's baseline row
	// carries no tolerance of its own.
	BaselineToleranceFallback float32 `env:"BASELINE_TOLERANCE_FALLBACK" envDefault:"0.25"`

	// Blocked-run snapshot guard
	BlockedMinPriorScreenings int     `env:"BLOCKED_MIN_PRIOR_SCREENINGS" envDefault:"10"`
	BlockedOverlapFraction    float64 `env:"BLOCKED_OVERLAP_FRACTION" envDefault:"0.1"`

	// Duplicate film merger
	MergeSimilarityThreshold float64 `env:"MERGE_SIMILARITY_THRESHOLD" envDefault:"0.5"`
}

// Load reads configuration from the environment, honouring a local .env
// file when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
