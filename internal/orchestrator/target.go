package orchestrator

import (
	"context"

	"github.com/jamesbarge/pictures/internal/core/domain"
)

// VenueScraper is the capability contract a single-venue scraper
// supplies. Implementations live outside this module; the orchestrator
// only drives them.
type VenueScraper interface {
	HealthCheck(ctx context.Context) error
	Scrape(ctx context.Context) ([]domain.RawScreening, error)
}

// ChainScraper scrapes all of a chain's venues in one underlying network
// session. Results are keyed by cinema id and fanned back out per venue
// for independent logging.
type ChainScraper interface {
	HealthCheck(ctx context.Context) error
	ScrapeAll(ctx context.Context) (map[string][]domain.RawScreening, error)
}

// TargetKind discriminates the target union.
type TargetKind int

const (
	// TargetSingle runs one fixed venue.
	TargetSingle TargetKind = iota

	// TargetMulti runs a fixed list of venues under one umbrella, for
	// example two screens of one site, each with its own scraper.
	TargetMulti

	// TargetChain runs all of a chain's venues through one scrape
	// session.
	TargetChain
)

// VenueTarget pairs one venue with its scraper.
type VenueTarget struct {
	Cinema  domain.Cinema
	Scraper VenueScraper
}

// ChainTarget pairs a chain's venues with the shared scraper.
type ChainTarget struct {
	Cinemas []domain.Cinema
	Scraper ChainScraper
}

// Target is the tagged union the orchestrator consumes: one of a single
// venue, a venue list, or a chain. Exactly the variant named by Kind is
// populated.
type Target struct {
	Kind   TargetKind
	Venues []VenueTarget
	Chain  ChainTarget
}

// Single builds a single-venue target.
func Single(cinema domain.Cinema, scraper VenueScraper) Target {
	return Target{Kind: TargetSingle, Venues: []VenueTarget{{Cinema: cinema, Scraper: scraper}}}
}

// Multi builds a fixed-list target.
func Multi(venues ...VenueTarget) Target {
	return Target{Kind: TargetMulti, Venues: venues}
}

// Chain builds a chain target.
func Chain(scraper ChainScraper, cinemas ...domain.Cinema) Target {
	return Target{Kind: TargetChain, Chain: ChainTarget{Cinemas: cinemas, Scraper: scraper}}
}
