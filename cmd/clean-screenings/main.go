package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jamesbarge/pictures/internal/config"
	db "github.com/jamesbarge/pictures/internal/storage"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		apply     bool
		execute   bool
		dryRun    bool
		olderThan time.Duration
	)

	cmd := &cobra.Command{
		Use:           "clean-screenings [cinema-id...]",
		Short:         "Remove future screenings no scrape has refreshed recently",
		Long:          "Deletes future screenings for the given venues whose last successful scrape is older than the cutoff. Dry-run by default; pass --apply to delete.",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args, olderThan, dryRun || (!apply && !execute))
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "delete the stale screenings")
	cmd.Flags().BoolVar(&execute, "execute", false, "alias for --apply")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "count without deleting (the default)")
	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "age a screening's last scrape must exceed to count as stale")

	return cmd
}

func run(cinemaIDs []string, olderThan time.Duration, dryRun bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.PostgresDSN, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")

		return err
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to run migrations")

		return err
	}

	cutoff := time.Now().Add(-olderThan)

	var total int64

	for _, cinemaID := range cinemaIDs {
		var (
			count int64
			err   error
		)

		if dryRun {
			count, err = database.CountUnrefreshedScreenings(ctx, cinemaID, cutoff)
		} else {
			count, err = database.DeleteUnrefreshedScreenings(ctx, cinemaID, cutoff)
		}

		if err != nil {
			logger.Error().Err(err).Str("cinema", cinemaID).Msg("cleanup failed")

			return err
		}

		total += count

		logger.Info().
			Str("cinema", cinemaID).
			Int64("screenings", count).
			Bool("dry_run", dryRun).
			Msg("stale screening cleanup")
	}

	if dryRun && total > 0 {
		logger.Info().Int64("total", total).Msg("re-run with --apply to delete these screenings")
	}

	return nil
}
