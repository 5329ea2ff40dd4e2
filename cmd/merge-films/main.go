package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jamesbarge/pictures/internal/config"
	"github.com/jamesbarge/pictures/internal/merge"
	db "github.com/jamesbarge/pictures/internal/storage"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var apply, execute, dryRun bool

	cmd := &cobra.Command{
		Use:           "merge-films",
		Short:         "Find and merge duplicate film records",
		Long:          "Clusters duplicate films by external id and title similarity, then merges each cluster into its best record. Dry-run by default; pass --apply to write.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(dryRun || (!apply && !execute))
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "write merges to the database")
	cmd.Flags().BoolVar(&execute, "execute", false, "alias for --apply")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report clusters without writing (the default)")

	return cmd
}

func run(dryRun bool) error {
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

	merger := merge.New(database, merge.Options{
		SimilarityThreshold: cfg.MergeSimilarityThreshold,
	}, &logger)

	report, err := merger.Run(ctx, dryRun)
	if err != nil {
		logger.Error().Err(err).Msg("merge run failed")

		return err
	}

	for _, cluster := range report.Clusters {
		titles := make([]string, len(cluster.Duplicates))
		for i, dup := range cluster.Duplicates {
			titles[i] = dup.Title
		}

		logger.Info().
			Str("primary", cluster.Primary.Title).
			Str("reason", cluster.Reason).
			Strs("duplicates", titles).
			Msg("duplicate cluster")
	}

	logger.Info().
		Bool("dry_run", report.DryRun).
		Int("clusters", len(report.Clusters)).
		Int("films_merged", report.FilmsMerged).
		Msg("merge run complete")

	if dryRun && len(report.Clusters) > 0 {
		logger.Info().Msg("re-run with --apply to merge these clusters")
	}

	return nil
}
