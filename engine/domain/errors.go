package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline failure taxonomy.
var (
	// ErrUnreadableDocument means the source bytes could not be decoded at
	// all (corrupt container, empty payload). Unrecoverable, input-only: the
	// document is skipped and reported, other documents are unaffected.
	ErrUnreadableDocument = errors.New("unreadable document")

	// ErrLowConfidence marks an extraction candidate below the configured
	// cutoff. Recoverable: the candidate is discarded and extraction continues.
	ErrLowConfidence = errors.New("extraction confidence below cutoff")

	// ErrModelUnavailable means the language-model capability failed or timed
	// out. Recoverable at the boundary: retried with backoff, then surfaced
	// as a degraded-mode response.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrMergeConflict means entity matching found more than one canonical
	// candidate. It is logged and resolved by the earlier-id-wins rule,
	// never left unresolved.
	ErrMergeConflict = errors.New("merge conflict")

	// ErrInsufficientContext is the expected, user-facing signal that no
	// entity cleared the relevance floor. Not a system fault.
	ErrInsufficientContext = errors.New("insufficient context")

	ErrInvalidDocument = errors.New("invalid document")
	ErrInvalidQuery    = errors.New("invalid query")
)

// ValidationError wraps a sentinel with field context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
