// Package domain defines the core entities of the screening catalogue.
package domain

import "time"

// RawScreening is one showtime as reported by a single scraper, before
// identity resolution. Immutable once produced. SourceID is the scraper's
// stable identity for this showing; empty when the source cannot
// guarantee one, which disables stale cleanup for the screening.
type RawScreening struct {
	FilmTitle        string
	Datetime         time.Time
	Screen           string
	Format           string
	BookingURL       string
	EventType        string
	EventDescription string
	SourceID         string
	PosterURL        string
	Year             int
	Director         string
}

// Film is the canonical, deduplicated record representing one real film.
// At most one Film may carry any given external metadata id.
// Normalized-title collisions are expected and resolved by scoring,
// not treated as identity.
type Film struct {
	ID              string
	Title           string
	NormalizedTitle string
	Year            *int
	MetadataID      *int64
	PosterURL       string
	Directors       []string
	Synopsis        string
	RuntimeMinutes  int
	MatchConfidence float32
	MatchStrategy   string
	Unmatched       bool
	CreatedAt       time.Time
	ScreeningCount  int
}

// Match strategy values recorded on Film.MatchStrategy.
const (
	MatchStrategyCache      = "cache"
	MatchStrategySimilarity = "similarity"
	MatchStrategyMetadata   = "metadata"
	MatchStrategyFallback   = "fallback"
)

// Screening is a single showing of a Film at a Cinema. The triple
// (FilmID, CinemaID, Datetime) is the durable identity of a showing
// regardless of how many times it is re-scraped.
type Screening struct {
	ID               string
	FilmID           string
	CinemaID         string
	Datetime         time.Time
	BookingURL       string
	Screen           string
	Format           string
	EventType        string
	EventDescription string
	Is3D             bool
	Subtitled        bool
	AudioDescribed   bool
	Relaxed          bool
	SeasonLabel      string
	SourceID         string
	ScrapedAt        time.Time
}

// Cinema is a venue. Effectively static reference data, created
// idempotently before any screenings are written for it.
type Cinema struct {
	ID       string
	Name     string
	Address  string
	Features []string
}

// Run status values for ScraperRun.Status.
const (
	RunStatusSucceeded = "succeeded"
	RunStatusBlocked   = "blocked"
	RunStatusFailed    = "failed"
)

// Anomaly types recorded on ScraperRun.AnomalyType.
const (
	AnomalyZeroResults = "zero_results"
	AnomalyLowCount    = "low_count"
	AnomalyHighCount   = "high_count"
)

// ScraperRun is one append-only audit row per venue per orchestrator
// invocation.
type ScraperRun struct {
	ID             string
	CinemaID       string
	StartedAt      time.Time
	CompletedAt    time.Time
	Status         string
	ScreeningCount int
	BaselineCount  *int
	AnomalyType    string
	AnomalyDetails string
}

// CinemaBaseline is the rolling expected screening count for a venue,
// split by weekday/weekend, with a tolerance percentage. Read-only input
// to anomaly detection; maintained by a separate process.
type CinemaBaseline struct {
	CinemaID     string
	WeekdayCount int
	WeekendCount int
	TolerancePct float32
}

// ExpectedCount returns the baseline count applicable to the given date.
func (b CinemaBaseline) ExpectedCount(at time.Time) int {
	switch at.Weekday() {
	case time.Saturday, time.Sunday:
		return b.WeekendCount
	default:
		return b.WeekdayCount
	}
}

// Cluster reasons for DuplicateCluster.Reason.
const (
	ClusterReasonExternalID = "external-id"
	ClusterReasonSimilarity = "similarity"
)

// DuplicateCluster groups Film rows believed to represent the same real
// film. Transient: recomputed from current rows on every merge run, never
// persisted.
type DuplicateCluster struct {
	Reason     string
	Primary    Film
	Duplicates []Film
}
