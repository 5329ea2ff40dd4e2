// Package errors provides centralized error definitions for the application.
// Errors are organized by domain to avoid duplication and provide consistent
// naming.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - All sentinel errors should be defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package errors

import "errors"

// Ingestion errors.
var (
	// ErrBlocked indicates the ingestion layer vetoed a scrape result as
	// suspect. A blocked run must never be retried.
	ErrBlocked = errors.New("scrape blocked by snapshot guard")
)

// Entity resolution errors.
var (
	// ErrFilmNotFound indicates a film could not be found.
	ErrFilmNotFound = errors.New("film not found")
)

// External service errors.
var (
	// ErrNoMatch indicates the metadata service returned no confident match.
	ErrNoMatch = errors.New("no metadata match")

	// ErrNoPoster indicates no real poster was found.
	ErrNoPoster = errors.New("no poster found")

	// ErrEmptyResponse indicates an empty response was received.
	ErrEmptyResponse = errors.New("empty response")
)

// Validation errors.
var (
	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = errors.New("invalid input")
)

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
