// Package apperr defines the workflow error taxonomy. Callers classify
// failures with errors.Is; handlers map them onto HTTP statuses with Status.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrValidation covers missing reason/comment and malformed payloads.
	// Rejected before any state change.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicatePending means another request for the same target is still
	// open; the caller must wait for it to resolve.
	ErrDuplicatePending = errors.New("a pending request already exists for this entity")

	// ErrInvalidTransition means the attempted action does not match the
	// request's current state, e.g. deciding a terminal request.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrConcurrentModification is the optimistic-concurrency conflict: the
	// stored status no longer matches what the caller last read. The caller
	// should re-fetch and retry once; the engine never retries automatically.
	ErrConcurrentModification = errors.New("request was modified concurrently")

	// ErrForbidden is an authorization failure, reported distinctly from
	// validation failures and never retryable.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound means the referenced approval request or entity row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedEntityType means no handler is registered for the tag.
	// This is a fatal configuration error, not a retryable one.
	ErrUnsupportedEntityType = errors.New("unsupported entity type")

	// ErrMonthLocked means the posting month of the change is frozen.
	ErrMonthLocked = errors.New("posting month is locked")
)

// Status maps a taxonomy error onto the HTTP status the handlers report.
// Unclassified errors surface as 500s, never swallowed.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrDuplicatePending):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusBadRequest
	case errors.Is(err, ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrMonthLocked):
		return http.StatusConflict
	case errors.Is(err, ErrUnsupportedEntityType):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
