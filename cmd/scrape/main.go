package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jamesbarge/pictures/internal/classify"
	"github.com/jamesbarge/pictures/internal/cleaner"
	"github.com/jamesbarge/pictures/internal/config"
	"github.com/jamesbarge/pictures/internal/dedup"
	"github.com/jamesbarge/pictures/internal/ingest"
	"github.com/jamesbarge/pictures/internal/metadata"
	"github.com/jamesbarge/pictures/internal/observability"
	"github.com/jamesbarge/pictures/internal/orchestrator"
	"github.com/jamesbarge/pictures/internal/resolve"
	db "github.com/jamesbarge/pictures/internal/storage"
)

var errTargetsFailed = errors.New("one or more targets failed")

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "scrape [target-id...]",
		Short:         "Scrape cinema listings into the catalogue",
		Long:          "Runs one or more registered venue or chain scrapers through the ingestion pipeline.",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args)
		},
	}
}

func run(targetIDs []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.NewWithOptions(ctx, cfg.PostgresDSN, poolOptions(cfg), &logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")

		return err
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to run migrations")

		return err
	}

	if cfg.MetricsPort > 0 {
		server := observability.NewServer(database, cfg.MetricsPort, &logger)

		go func() {
			if err := server.Start(ctx); err != nil {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	orch, recorder, err := buildOrchestrator(ctx, cfg, database, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build pipeline")

		return err
	}

	failed := false

	for _, id := range targetIDs {
		target, err := orchestrator.LookupTarget(id)
		if err != nil {
			logger.Error().Err(err).Strs("known", orchestrator.TargetIDs()).Msg("unknown target")

			failed = true

			continue
		}

		logger.Info().Str("target", id).Msg("running target")

		if _, err := orch.Run(ctx, target); err != nil {
			logger.Error().Err(err).Str("target", id).Msg("target finished with failures")

			failed = true
		}
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), cfg.RunLogFlushTimeout)
	defer cancel()

	if err := recorder.Flush(flushCtx); err != nil {
		logger.Error().Err(err).Msg("run log flush incomplete")
	}

	if failed {
		return errTargetsFailed
	}

	return nil
}

// buildOrchestrator wires the per-run ingestion pipeline. The film cache
// is built once here, owned by this run, and discarded when the process
// exits.
func buildOrchestrator(ctx context.Context, cfg *config.Config, database *db.DB, logger *zerolog.Logger) (*orchestrator.Orchestrator, *orchestrator.RunRecorder, error) {
	films, err := database.LoadAllFilms(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load films for run cache: %w", err)
	}

	cache := resolve.NewCache(films)

	opts := resolve.Options{
		SimilarityEnabled:   cfg.SimilarityEnabled,
		SimilarityThreshold: cfg.SimilarityThreshold,
		ConfidenceFloor:     cfg.MatchConfidenceFloor,
	}

	if matcher := metadata.NewClient(cfg.MetadataBaseURL, cfg.MetadataAPIKey, cfg.MetadataTimeout, cfg.MetadataCacheTTL, logger); matcher != nil {
		opts.Matcher = matcher
	}

	if posters := metadata.NewPosterClient(cfg.PosterBaseURL, cfg.PosterTimeout, logger); posters != nil {
		opts.Posters = posters
	}

	classifier := classify.New(
		classify.NewLLMService(cfg.ClassifierAPIKey, cfg.ClassifierModel, cfg.ClassifierTimeout, logger),
		logger,
	)

	pipeline := ingest.New(
		database,
		classifier,
		resolve.New(database, cache, opts, logger),
		dedup.New(database, logger),
		cleaner.New(database, logger),
		ingest.GuardConfig{
			MinPriorScreenings: cfg.BlockedMinPriorScreenings,
			OverlapFraction:    cfg.BlockedOverlapFraction,
		},
		logger,
	)

	recorder := orchestrator.NewRunRecorder(database, logger)

	orch := orchestrator.New(pipeline, database, recorder, orchestrator.Config{
		RetryAttempts:             cfg.RetryAttempts,
		BackoffBase:               cfg.RetryBackoffBase,
		InterVenueDelay:           cfg.InterVenueDelay,
		ScrapeTimeout:             cfg.ScrapeTimeout,
		HealthCheckTimeout:        cfg.HealthCheckTimeout,
		BaselineToleranceFallback: cfg.BaselineToleranceFallback,
	}, logger)

	return orch, recorder, nil
}

func poolOptions(cfg *config.Config) db.PoolOptions {
	return db.PoolOptions{
		MaxConns:          cfg.DBMaxConnections,
		MinConns:          cfg.DBMinConnections,
		MaxConnIdleTime:   cfg.DBMaxConnIdleTime,
		MaxConnLifetime:   cfg.DBMaxConnLifetime,
		HealthCheckPeriod: cfg.DBHealthCheckPeriod,
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	switch cfg.LogLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	return logger
}
