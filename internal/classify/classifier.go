// Package classify derives event type, projection format and
// accessibility flags from raw screening metadata. Scraper-supplied
// fields are authoritative; classification only fills in the gaps.
package classify

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jamesbarge/pictures/internal/core/domain"
	"github.com/jamesbarge/pictures/internal/core/title"
)

// Event types assigned to classified screenings.
const (
	EventSpecial    = "special_event"
	EventQA         = "q_and_a"
	EventFestival   = "festival"
	EventDoubleBill = "double_bill"
	EventMarathon   = "marathon"
	EventSeason     = "season"
)

// Result is the merged classification for one raw screening.
type Result struct {
	CandidateTitle   string
	EventType        string
	EventDescription string
	Format           string
	Is3D             bool
	Subtitled        bool
	AudioDescribed   bool
	Relaxed          bool
	SeasonLabel      string
}

// Service is the external classification backend. Implementations must
// never be fatal to the pipeline; the classifier logs failures and falls
// back to local heuristics.
type Service interface {
	Classify(ctx context.Context, rawTitle string) (*ServiceResult, error)
}

// ServiceResult is what the external classification service returns.
type ServiceResult struct {
	EventTypes     []string `json:"event_types"`
	Format         string   `json:"format"`
	Is3D           bool     `json:"is_3d"`
	Subtitled      bool     `json:"subtitled"`
	AudioDescribed bool     `json:"audio_described"`
	Relaxed        bool     `json:"relaxed"`
	Season         string   `json:"season"`
}

// Classifier merges scraper-supplied fields, external classification and
// local heuristics into one Result.
type Classifier struct {
	service Service
	logger  *zerolog.Logger
}

// New creates a Classifier. service may be nil, in which case only local
// heuristics run.
func New(service Service, logger *zerolog.Logger) *Classifier {
	return &Classifier{service: service, logger: logger}
}

var (
	needsClassificationMarkers = []string{
		"+", " presents", "q&a", "q & a", "double bill", "double-bill",
		"marathon", "all-nighter", "festival", "season", "anniversary",
		"sing-along", "singalong", "preview", "premiere", "intro",
	}

	format35mm = regexp.MustCompile(`(?i)\b35\s?mm\b`)
	format70mm = regexp.MustCompile(`(?i)\b70\s?mm\b`)
	format4K   = regexp.MustCompile(`(?i)\b4k\b`)
	formatIMAX = regexp.MustCompile(`(?i)\bimax\b`)
	flag3D     = regexp.MustCompile(`(?i)\(?\b3-?d\b\)?`)
	flagSubs   = regexp.MustCompile(`(?i)\[?\b(subtitled|subtitles|captioned|cc)\b\]?`)
	flagAD     = regexp.MustCompile(`(?i)\baudio[- ]described?\b`)
	flagRelax  = regexp.MustCompile(`(?i)\brelaxed( screening)?\b`)
)

// NeedsClassification reports whether a raw title carries markers that
// suggest it is more than a plain showing of one film.
func NeedsClassification(rawTitle string) bool {
	lower := strings.ToLower(rawTitle)

	for _, marker := range needsClassificationMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}

	if _, stripped := title.StripEventPrefix(rawTitle); stripped {
		return true
	}

	return false
}

// Classify derives classification for one raw screening. When the
// scraper already supplied an event type or format, its data is
// authoritative and the external service is skipped entirely.
func (c *Classifier) Classify(ctx context.Context, raw domain.RawScreening) Result {
	candidate, _ := title.StripEventPrefix(raw.FilmTitle)

	result := Result{
		CandidateTitle:   candidate,
		EventType:        raw.EventType,
		EventDescription: raw.EventDescription,
		Format:           raw.Format,
	}

	applyLocalHeuristics(raw.FilmTitle, &result)

	if raw.EventType != "" || raw.Format != "" {
		return result
	}

	if c.service == nil || !NeedsClassification(raw.FilmTitle) {
		return result
	}

	svcResult, err := c.service.Classify(ctx, raw.FilmTitle)
	if err != nil {
		c.logger.Warn().Err(err).Str("title", raw.FilmTitle).Msg("classification failed, proceeding with scraper data")

		return result
	}

	mergeServiceResult(svcResult, &result)

	return result
}

// applyLocalHeuristics fills in format and accessibility flags that are
// visible in the raw title itself.
func applyLocalHeuristics(rawTitle string, result *Result) {
	if result.Format == "" {
		switch {
		case format70mm.MatchString(rawTitle):
			result.Format = "70mm"
		case format35mm.MatchString(rawTitle):
			result.Format = "35mm"
		case formatIMAX.MatchString(rawTitle):
			result.Format = "IMAX"
		case format4K.MatchString(rawTitle):
			result.Format = "4K"
		}
	}

	if flag3D.MatchString(rawTitle) {
		result.Is3D = true
	}

	if flagSubs.MatchString(rawTitle) {
		result.Subtitled = true
	}

	if flagAD.MatchString(rawTitle) {
		result.AudioDescribed = true
	}

	if flagRelax.MatchString(rawTitle) {
		result.Relaxed = true
	}
}

// mergeServiceResult folds the external classification into the result:
// first event type wins, additional ones become a human-readable note.
func mergeServiceResult(svc *ServiceResult, result *Result) {
	if len(svc.EventTypes) > 0 {
		result.EventType = svc.EventTypes[0]

		if len(svc.EventTypes) > 1 && result.EventDescription == "" {
			result.EventDescription = fmt.Sprintf("also: %s", strings.Join(svc.EventTypes[1:], ", "))
		}
	}

	if result.Format == "" {
		result.Format = svc.Format
	}

	result.Is3D = result.Is3D || svc.Is3D
	result.Subtitled = result.Subtitled || svc.Subtitled
	result.AudioDescribed = result.AudioDescribed || svc.AudioDescribed
	result.Relaxed = result.Relaxed || svc.Relaxed
	result.SeasonLabel = svc.Season
}
