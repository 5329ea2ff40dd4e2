// Package observability holds prometheus collectors for the ingestion
// pipeline and orchestrator.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScreeningsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pictures_screenings_ingested_total",
		Help: "The total number of screenings processed by the pipeline",
	}, []string{"cinema", "outcome"})

	FilmsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pictures_films_resolved_total",
		Help: "The total number of film resolutions by strategy",
	}, []string{"strategy"})

	FilmsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pictures_films_created_total",
		Help: "The total number of canonical films created",
	}, []string{"strategy"})

	StaleScreeningsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pictures_stale_screenings_deleted_total",
		Help: "The total number of stale future screenings removed",
	})

	ScrapeRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pictures_scrape_runs_total",
		Help: "The total number of venue scrape runs by outcome",
	}, []string{"cinema", "status"})

	ScrapeAnomalies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pictures_scrape_anomalies_total",
		Help: "The total number of baseline anomalies by type",
	}, []string{"cinema", "type"})

	ScrapeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pictures_scrape_duration_seconds",
		Help:    "Duration of one venue scrape including ingestion",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
	}, []string{"cinema"})

	MergeClusters = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pictures_merge_clusters_total",
		Help: "The total number of duplicate film clusters merged by reason",
	}, []string{"reason"})

	MergedFilms = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pictures_merged_films_total",
		Help: "The total number of duplicate film rows removed by merges",
	})
)
