package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrMissingEmbedding marks an article that cannot serve similarity queries.
	ErrMissingEmbedding = errors.New("missing embedding")
	// ErrPreferencesRequired signals that onboarding is needed; it is not a failure.
	ErrPreferencesRequired = errors.New("preferences required")
	// ErrEnrichmentUnavailable is returned when the AI analysis provider fails.
	ErrEnrichmentUnavailable = errors.New("enrichment unavailable")
	// ErrEmbeddingUnavailable is returned when the embedding provider fails.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrStoreUnavailable is a retryable sentinel for unreachable backing stores.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError rejects malformed input. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "validation error"
	}
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func Validation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
