// Package merge finds and merges duplicate film records across the whole
// catalogue. It runs offline, independently of per-run ingestion.
package merge

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/jamesbarge/pictures/internal/core/domain"
	"github.com/jamesbarge/pictures/internal/core/title"
	"github.com/jamesbarge/pictures/internal/observability"
)

// Store is the persistence surface the merger needs.
type Store interface {
	LoadAllFilms(ctx context.Context) ([]domain.Film, error)
	MergeFilmCluster(ctx context.Context, survivor *domain.Film, duplicateIDs []string) error
}

// Options configure clustering.
type Options struct {
	// SimilarityThreshold is the trigram similarity floor for the fuzzy
	// pass. A tuned heuristic, not an invariant.
	SimilarityThreshold float64
}

// Report summarizes one merge run.
type Report struct {
	Clusters    []domain.DuplicateCluster
	FilmsMerged int
	DryRun      bool
}

// Merger clusters duplicate films and merges each cluster into its
// highest-scoring member.
type Merger struct {
	store  Store
	opts   Options
	logger *zerolog.Logger
}

// New creates a Merger.
func New(store Store, opts Options, logger *zerolog.Logger) *Merger {
	return &Merger{store: store, opts: opts, logger: logger}
}

// Run computes duplicate clusters over the current film table and merges
// them. With dryRun set it only reports what it would do.
func (m *Merger) Run(ctx context.Context, dryRun bool) (*Report, error) {
	films, err := m.store.LoadAllFilms(ctx)
	if err != nil {
		return nil, fmt.Errorf("load films: %w", err)
	}

	clusters := m.FindClusters(films)
	report := &Report{Clusters: clusters, DryRun: dryRun}

	for _, cluster := range clusters {
		report.FilmsMerged += len(cluster.Duplicates)

		if dryRun {
			continue
		}

		survivor := absorb(cluster.Primary, cluster.Duplicates)

		duplicateIDs := make([]string, len(cluster.Duplicates))
		for i, dup := range cluster.Duplicates {
			duplicateIDs[i] = dup.ID
		}

		if err := m.store.MergeFilmCluster(ctx, &survivor, duplicateIDs); err != nil {
			return report, fmt.Errorf("merge cluster around %q: %w", cluster.Primary.Title, err)
		}

		observability.MergeClusters.WithLabelValues(cluster.Reason).Inc()
		observability.MergedFilms.Add(float64(len(cluster.Duplicates)))

		m.logger.Info().
			Str("primary", cluster.Primary.Title).
			Str("reason", cluster.Reason).
			Int("duplicates", len(cluster.Duplicates)).
			Msg("merged duplicate film cluster")
	}

	return report, nil
}

// FindClusters computes duplicate clusters from the given film rows.
//
// Pass 1 groups films sharing a non-null external metadata id (certainty
// "exact"). Pass 2 runs pairwise trigram similarity over the remaining
// films, restricted to pairs whose years match or are absent, and takes
// connected components via union-find (certainty "fuzzy").
func (m *Merger) FindClusters(films []domain.Film) []domain.DuplicateCluster {
	var clusters []domain.DuplicateCluster

	covered := make(map[string]bool)

	byMetadataID := make(map[int64][]domain.Film)

	for _, film := range films {
		if film.MetadataID != nil {
			byMetadataID[*film.MetadataID] = append(byMetadataID[*film.MetadataID], film)
		}
	}

	metadataIDs := make([]int64, 0, len(byMetadataID))
	for id := range byMetadataID {
		metadataIDs = append(metadataIDs, id)
	}

	sort.Slice(metadataIDs, func(i, j int) bool { return metadataIDs[i] < metadataIDs[j] })

	for _, id := range metadataIDs {
		group := byMetadataID[id]
		if len(group) < 2 {
			continue
		}

		cluster := buildCluster(domain.ClusterReasonExternalID, group)
		clusters = append(clusters, cluster)

		for _, film := range group {
			covered[film.ID] = true
		}
	}

	remaining := make([]domain.Film, 0, len(films))

	for _, film := range films {
		if !covered[film.ID] {
			remaining = append(remaining, film)
		}
	}

	clusters = append(clusters, m.fuzzyClusters(remaining)...)

	return clusters
}

// fuzzyClusters builds similarity components over films not already
// clustered by external id.
func (m *Merger) fuzzyClusters(films []domain.Film) []domain.DuplicateCluster {
	uf := newUnionFind(len(films))

	for i := 0; i < len(films); i++ {
		for j := i + 1; j < len(films); j++ {
			if !yearsCompatible(films[i].Year, films[j].Year) {
				continue
			}

			if title.Similarity(films[i].Title, films[j].Title) >= m.opts.SimilarityThreshold {
				uf.union(i, j)
			}
		}
	}

	var clusters []domain.DuplicateCluster

	for _, component := range uf.components() {
		group := make([]domain.Film, len(component))
		for i, idx := range component {
			group[i] = films[idx]
		}

		clusters = append(clusters, buildCluster(domain.ClusterReasonSimilarity, group))
	}

	return clusters
}

// buildCluster picks the highest-scoring member as primary.
func buildCluster(reason string, group []domain.Film) domain.DuplicateCluster {
	sort.SliceStable(group, func(i, j int) bool {
		si, sj := Score(group[i]), Score(group[j])
		if si != sj {
			return si > sj
		}

		return group[i].CreatedAt.Before(group[j].CreatedAt)
	})

	return domain.DuplicateCluster{
		Reason:     reason,
		Primary:    group[0],
		Duplicates: group[1:],
	}
}

// Score ranks a film's fitness to survive a merge. Weights are tuned
// heuristics carried over unchanged.
func Score(film domain.Film) float64 {
	score := 0.0

	if film.MetadataID != nil {
		score += 100
	}

	if film.PosterURL != "" {
		score += 50
	}

	if film.Synopsis != "" {
		score += 20
	}

	if film.RuntimeMinutes > 0 {
		score += 10
	}

	if len(film.Directors) > 0 {
		score += 10
	}

	score += 10 * float64(film.MatchConfidence)
	score += float64(film.ScreeningCount)

	return score
}

// absorb fills the survivor's missing fields from its duplicates,
// best-scoring duplicate first.
func absorb(primary domain.Film, duplicates []domain.Film) domain.Film {
	survivor := primary

	for _, dup := range duplicates {
		if survivor.MetadataID == nil && dup.MetadataID != nil {
			survivor.MetadataID = dup.MetadataID
		}

		if survivor.PosterURL == "" {
			survivor.PosterURL = dup.PosterURL
		}

		if survivor.Synopsis == "" {
			survivor.Synopsis = dup.Synopsis
		}

		if survivor.RuntimeMinutes == 0 {
			survivor.RuntimeMinutes = dup.RuntimeMinutes
		}

		if survivor.Year == nil {
			survivor.Year = dup.Year
		}

		if len(survivor.Directors) == 0 {
			survivor.Directors = dup.Directors
		}
	}

	return survivor
}

// yearsCompatible reports whether two films could be the same release:
// equal years, or year unknown on either side.
func yearsCompatible(a, b *int) bool {
	if a == nil || b == nil {
		return true
	}

	return *a == *b
}
