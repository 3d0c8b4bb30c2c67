package search

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned for search requests that can't be sent to GitHub.
	ErrValidation = errors.New("invalid search")
	// ErrEmptyKeyword is returned when the search has no keyword. No request is sent.
	ErrEmptyKeyword = fmt.Errorf("%w: keyword is required", ErrValidation)
	// ErrAuthRequired is returned when no GitHub token is available. No request is sent.
	ErrAuthRequired = errors.New("authentication required: sign in with GitHub first")
	// ErrSuperseded is returned when a newer search for the same session replaced this one.
	ErrSuperseded = errors.New("search superseded by a newer search")
)

// UpstreamError is returned when the GitHub search call itself fails. The whole search is aborted.
type UpstreamError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("github search failed (status %d): %v", e.StatusCode, e.Err)
	}
	return "github search failed: " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// EnrichmentError is a failure to enrich a single search hit. It is never returned to the caller:
// the hit is replaced by a partial record instead.
type EnrichmentError struct {
	Login string
	Err   error
}

func (e *EnrichmentError) Error() string {
	return "enrich " + e.Login + ": " + e.Err.Error()
}

func (e *EnrichmentError) Unwrap() error {
	return e.Err
}
