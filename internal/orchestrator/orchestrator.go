// Package orchestrator drives venue scrapers through the ingestion
// pipeline with health checks, bounded retries, blocked-run detection,
// baseline anomaly detection and structured run logging.
//
// State machine per venue per run:
//
//	pending → health-checking → scraping → processing → {succeeded | blocked | failed}
//
// Venues are processed sequentially with an explicit inter-venue delay —
// politeness toward external sites is traded for throughput on purpose.
// A venue failing never aborts sibling venues.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jamesbarge/pictures/internal/core/domain"
	coreerrors "github.com/jamesbarge/pictures/internal/core/errors"
	"github.com/jamesbarge/pictures/internal/ingest"
	"github.com/jamesbarge/pictures/internal/observability"
)

// Ingestor runs one venue's scrape results through the pipeline.
type Ingestor interface {
	IngestVenue(ctx context.Context, cinema domain.Cinema, raws []domain.RawScreening, runStarted time.Time) (*ingest.Stats, error)
}

// BaselineStore reads rolling venue baselines for anomaly detection.
type BaselineStore interface {
	GetBaseline(ctx context.Context, cinemaID string) (*domain.CinemaBaseline, error)
}

// Config tunes retries, delays and timeouts.
type Config struct {
	// RetryAttempts is the retry budget after the first attempt. A venue
	// whose scraper always fails is attempted RetryAttempts+1 times.
	RetryAttempts int

	// BackoffBase seeds the exponential backoff between attempts.
	BackoffBase time.Duration

	// InterVenueDelay is the politeness gap between venues.
	InterVenueDelay time.Duration

	// ScrapeTimeout bounds one scrape call.
	ScrapeTimeout time.Duration

	// HealthCheckTimeout bounds one health check.
	HealthCheckTimeout time.Duration

	// BaselineToleranceFallback applies when a venue's baseline row has
	// no tolerance set.
	BaselineToleranceFallback float32
}

// Outcome is one venue's terminal result for this run.
type Outcome struct {
	CinemaID string
	Status   string
	Stats    ingest.Stats
	Anomaly  string
	Err      error
}

// Orchestrator runs targets. One instance serves one invocation.
type Orchestrator struct {
	ingestor  Ingestor
	baselines BaselineStore
	recorder  *RunRecorder
	cfg       Config
	limiter   *rate.Limiter
	logger    *zerolog.Logger
}

// New creates an Orchestrator.
func New(ingestor Ingestor, baselines BaselineStore, recorder *RunRecorder, cfg Config, logger *zerolog.Logger) *Orchestrator {
	interval := cfg.InterVenueDelay
	if interval <= 0 {
		interval = time.Nanosecond
	}

	return &Orchestrator{
		ingestor:  ingestor,
		baselines: baselines,
		recorder:  recorder,
		cfg:       cfg,
		limiter:   rate.NewLimiter(rate.Every(interval), 1),
		logger:    logger,
	}
}

// Run executes a target and returns per-venue outcomes. Iteration never
// short-circuits on a venue failure; the error return is non-nil when at
// least one venue ended failed or blocked, so callers can exit non-zero.
func (o *Orchestrator) Run(ctx context.Context, target Target) ([]Outcome, error) {
	var outcomes []Outcome

	switch target.Kind {
	case TargetChain:
		outcomes = o.runChain(ctx, target.Chain)
	default:
		outcomes = o.runVenues(ctx, target.Venues)
	}

	failed := 0

	for _, outcome := range outcomes {
		if outcome.Status != domain.RunStatusSucceeded {
			failed++
		}
	}

	if failed > 0 {
		return outcomes, fmt.Errorf("%d of %d venues failed", failed, len(outcomes))
	}

	return outcomes, nil
}

// runVenues processes single and multi targets sequentially.
func (o *Orchestrator) runVenues(ctx context.Context, venues []VenueTarget) []Outcome {
	outcomes := make([]Outcome, 0, len(venues))

	for _, venue := range venues {
		if err := o.limiter.Wait(ctx); err != nil {
			outcomes = append(outcomes, Outcome{CinemaID: venue.Cinema.ID, Status: domain.RunStatusFailed, Err: err})
			continue
		}

		outcomes = append(outcomes, o.runVenue(ctx, venue))
	}

	return outcomes
}

// runVenue drives one venue through the state machine with retries.
func (o *Orchestrator) runVenue(ctx context.Context, venue VenueTarget) Outcome {
	started := time.Now()

	retry := o.newBackoff()
	outcome := Outcome{CinemaID: venue.Cinema.ID}

	for attempt := 0; attempt <= o.cfg.RetryAttempts; attempt++ {
		stats, err := o.attemptVenue(ctx, venue, started)
		if err == nil {
			outcome.Status = domain.RunStatusSucceeded
			outcome.Stats = *stats

			break
		}

		outcome.Err = err

		if errors.Is(err, coreerrors.ErrBlocked) {
			// Retrying a blocked run would reproduce the same bad data.
			outcome.Status = domain.RunStatusBlocked

			break
		}

		outcome.Status = domain.RunStatusFailed

		o.logger.Warn().Err(err).
			Str("cinema", venue.Cinema.ID).
			Int("attempt", attempt+1).
			Msg("venue attempt failed")

		if attempt < o.cfg.RetryAttempts {
			if waitErr := wait(ctx, retry.NextBackOff()); waitErr != nil {
				break
			}
		}
	}

	o.finishVenue(ctx, &outcome, started)
	observability.ScrapeDuration.WithLabelValues(venue.Cinema.ID).Observe(time.Since(started).Seconds())

	return outcome
}

// attemptVenue is one pass through health-checking → scraping →
// processing.
func (o *Orchestrator) attemptVenue(ctx context.Context, venue VenueTarget, runStarted time.Time) (*ingest.Stats, error) {
	if err := o.healthCheck(ctx, venue.Scraper.HealthCheck); err != nil {
		return nil, fmt.Errorf("health check %s: %w", venue.Cinema.ID, err)
	}

	scrapeCtx, cancel := context.WithTimeout(ctx, o.cfg.ScrapeTimeout)
	defer cancel()

	raws, err := venue.Scraper.Scrape(scrapeCtx)
	if err != nil {
		return nil, fmt.Errorf("scrape %s: %w", venue.Cinema.ID, err)
	}

	return o.ingestor.IngestVenue(ctx, venue.Cinema, raws, runStarted)
}

// runChain scrapes all venues in one session and fans results out per
// venue for independent ingestion and logging. The retry budget applies
// to the shared scrape; per-venue ingestion failures don't re-run it.
func (o *Orchestrator) runChain(ctx context.Context, chain ChainTarget) []Outcome {
	started := time.Now()

	combined, scrapeErr := o.scrapeChain(ctx, chain)
	if scrapeErr != nil {
		outcomes := make([]Outcome, 0, len(chain.Cinemas))

		for _, cinema := range chain.Cinemas {
			outcome := Outcome{CinemaID: cinema.ID, Status: domain.RunStatusFailed, Err: scrapeErr}
			o.finishVenue(ctx, &outcome, started)
			outcomes = append(outcomes, outcome)
		}

		return outcomes
	}

	outcomes := make([]Outcome, 0, len(chain.Cinemas))

	for _, cinema := range chain.Cinemas {
		if err := o.limiter.Wait(ctx); err != nil {
			outcomes = append(outcomes, Outcome{CinemaID: cinema.ID, Status: domain.RunStatusFailed, Err: err})
			continue
		}

		outcome := Outcome{CinemaID: cinema.ID}

		stats, err := o.ingestor.IngestVenue(ctx, cinema, combined[cinema.ID], started)

		switch {
		case err == nil:
			outcome.Status = domain.RunStatusSucceeded
			outcome.Stats = *stats
		case errors.Is(err, coreerrors.ErrBlocked):
			outcome.Status = domain.RunStatusBlocked
			outcome.Err = err
		default:
			outcome.Status = domain.RunStatusFailed
			outcome.Err = err
		}

		o.finishVenue(ctx, &outcome, started)
		outcomes = append(outcomes, outcome)
	}

	return outcomes
}

// scrapeChain runs the shared chain scrape with the retry budget.
func (o *Orchestrator) scrapeChain(ctx context.Context, chain ChainTarget) (map[string][]domain.RawScreening, error) {
	retry := o.newBackoff()

	var lastErr error

	for attempt := 0; attempt <= o.cfg.RetryAttempts; attempt++ {
		if err := o.healthCheck(ctx, chain.Scraper.HealthCheck); err != nil {
			lastErr = fmt.Errorf("chain health check: %w", err)
		} else {
			scrapeCtx, cancel := context.WithTimeout(ctx, o.cfg.ScrapeTimeout)
			combined, err := chain.Scraper.ScrapeAll(scrapeCtx)

			cancel()

			if err == nil {
				return combined, nil
			}

			lastErr = fmt.Errorf("chain scrape: %w", err)
		}

		o.logger.Warn().Err(lastErr).Int("attempt", attempt+1).Msg("chain attempt failed")

		if attempt < o.cfg.RetryAttempts {
			if waitErr := wait(ctx, retry.NextBackOff()); waitErr != nil {
				break
			}
		}
	}

	return nil, lastErr
}

// finishVenue applies anomaly detection, emits metrics and records the
// audit row.
func (o *Orchestrator) finishVenue(ctx context.Context, outcome *Outcome, started time.Time) {
	run := domain.ScraperRun{
		CinemaID:       outcome.CinemaID,
		StartedAt:      started,
		CompletedAt:    time.Now(),
		Status:         outcome.Status,
		ScreeningCount: outcome.Stats.Total(),
	}

	if outcome.Status == domain.RunStatusSucceeded {
		o.detectAnomaly(ctx, outcome, &run)
	} else if outcome.Err != nil {
		run.AnomalyDetails = outcome.Err.Error()
	}

	observability.ScrapeRuns.WithLabelValues(outcome.CinemaID, outcome.Status).Inc()

	if outcome.Status == domain.RunStatusSucceeded {
		o.logger.Info().
			Str("cinema", outcome.CinemaID).
			Int("inserted", outcome.Stats.Inserted).
			Int("updated", outcome.Stats.Updated).
			Int("skipped", outcome.Stats.Skipped).
			Int64("deleted", outcome.Stats.Deleted).
			Str("anomaly", outcome.Anomaly).
			Msg("venue run succeeded")
	} else {
		o.logger.Error().Err(outcome.Err).
			Str("cinema", outcome.CinemaID).
			Str("status", outcome.Status).
			Msg("venue run did not succeed")
	}

	o.recorder.Record(run)
}

// detectAnomaly compares the run's screening count against the venue's
// rolling baseline. Anomalies are reported, not corrective: the run still
// succeeds and the data stands.
func (o *Orchestrator) detectAnomaly(ctx context.Context, outcome *Outcome, run *domain.ScraperRun) {
	count := outcome.Stats.Total()

	if count == 0 {
		outcome.Anomaly = domain.AnomalyZeroResults
		run.AnomalyType = domain.AnomalyZeroResults
		run.AnomalyDetails = "scrape produced no screenings"
		observability.ScrapeAnomalies.WithLabelValues(outcome.CinemaID, domain.AnomalyZeroResults).Inc()

		return
	}

	baseline, err := o.baselines.GetBaseline(ctx, outcome.CinemaID)
	if err != nil {
		o.logger.Warn().Err(err).Str("cinema", outcome.CinemaID).Msg("baseline lookup failed")

		return
	}

	if baseline == nil {
		return
	}

	expected := baseline.ExpectedCount(run.StartedAt)
	if expected <= 0 {
		return
	}

	run.BaselineCount = &expected

	pct := baseline.TolerancePct
	if pct <= 0 {
		pct = o.cfg.BaselineToleranceFallback
	}

	tolerance := float64(expected) * float64(pct)

	switch {
	case float64(count) < float64(expected)-tolerance:
		outcome.Anomaly = domain.AnomalyLowCount
	case float64(count) > float64(expected)+tolerance:
		outcome.Anomaly = domain.AnomalyHighCount
	default:
		return
	}

	run.AnomalyType = outcome.Anomaly
	run.AnomalyDetails = fmt.Sprintf("count %d outside %.0f%% of baseline %d", count, pct*100, expected)
	observability.ScrapeAnomalies.WithLabelValues(outcome.CinemaID, outcome.Anomaly).Inc()
}

// healthCheck runs a bounded health check.
func (o *Orchestrator) healthCheck(ctx context.Context, check func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.HealthCheckTimeout)
	defer cancel()

	return check(ctx)
}

// newBackoff builds the retry schedule: base·2^attempt scaled by a
// random factor in [0.5, 1.5), so synchronized retry storms across
// venues decorrelate.
func (o *Orchestrator) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.cfg.BackoffBase
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxInterval = 10 * time.Minute
	b.MaxElapsedTime = 0
	b.Reset()

	return b
}

// wait blocks for d or until the context is canceled.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait: %w", ctx.Err())
	case <-time.After(d):
		return nil
	}
}
