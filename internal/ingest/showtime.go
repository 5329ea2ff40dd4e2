package ingest

import (
	"fmt"
	"time"

	"github.com/araddon/dateparse"
)

// ParseShowtime parses a loosely-formatted scraper datetime string in
// the venue's timezone. Scrapers emit everything from ISO timestamps to
// human-readable listings; this is the one place they all get parsed.
func ParseShowtime(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	t, err := dateparse.ParseIn(value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse showtime %q: %w", value, err)
	}

	return t, nil
}
