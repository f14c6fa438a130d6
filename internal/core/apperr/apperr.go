// Package apperr defines the error taxonomy shared by the ingestion
// and serving paths (spec.md §7).
package apperr

import "errors"

// Sentinel errors. Wrap with fmt.Errorf("...: %w", Sentinel) to retain
// context while keeping errors.Is matching intact.
var (
	// ErrUpstreamUnavailable marks a fetch failure or non-2xx response
	// from Overpass, replication, or the country feed. Retried with
	// exponential backoff by the scheduler.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrMalformedDiff marks an unparsable replication diff document.
	ErrMalformedDiff = errors.New("malformed diff")

	// ErrMalformedSnapshot marks an unparsable Overpass snapshot
	// response.
	ErrMalformedSnapshot = errors.New("malformed snapshot")

	// ErrSuspiciousFeed marks a sanity-check failure on an otherwise
	// well-formed upstream payload (e.g. too few countries, zero
	// elements in a must-return snapshot).
	ErrSuspiciousFeed = errors.New("suspicious feed")

	// ErrStorage marks a database write or constraint failure.
	ErrStorage = errors.New("storage error")

	// ErrNotFound marks an id-based lookup that found nothing.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRequest marks rejected input at the HTTP boundary.
	ErrInvalidRequest = errors.New("invalid request")
)
