package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrConfiguration indicates required credentials or identifiers are absent.
	// It is fatal and never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrValidation indicates a caller parameter is missing or malformed.
	// No remote call is attempted when it is returned.
	ErrValidation = errors.New("validation error")

	// ErrUpstream indicates a remote collaborator answered with a non-success response.
	ErrUpstream = errors.New("upstream error")

	// ErrNotFound indicates a referenced folder or object does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRunInProgress indicates a stateful reindex run is already executing in this process.
	ErrRunInProgress = errors.New("reindex run in progress")

	// ErrStatusConflict indicates the reindex status was advanced by a concurrent run
	// between this run's read and its commit.
	ErrStatusConflict = errors.New("reindex status changed concurrently")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")
)

// UpstreamError carries the status and detail of a failed remote call.
type UpstreamError struct {
	// Service names the collaborator (drive, embedding, vectorize).
	Service string

	// Status is the HTTP status code returned, or 0 if none.
	Status int

	// Detail is the upstream message or response body excerpt.
	Detail string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Service, e.Detail)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Service, e.Status, e.Detail)
}

// Unwrap lets errors.Is match ErrUpstream.
func (e *UpstreamError) Unwrap() error {
	return ErrUpstream
}

// NewUpstreamError creates an UpstreamError, truncating long details.
func NewUpstreamError(service string, status int, detail string) *UpstreamError {
	const maxDetail = 512
	if len(detail) > maxDetail {
		detail = detail[:maxDetail] + "..."
	}
	return &UpstreamError{Service: service, Status: status, Detail: detail}
}

// ValidationError wraps ErrValidation with the offending field.
func ValidationError(field, msg string) error {
	return fmt.Errorf("%w: %s: %s", ErrValidation, field, msg)
}

// ConfigurationError wraps ErrConfiguration with the missing setting.
func ConfigurationError(key, msg string) error {
	return fmt.Errorf("%w: %s: %s", ErrConfiguration, key, msg)
}

// ErrorKind classifies err into the taxonomy name used by outer boundaries.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	case errors.Is(err, ErrRunInProgress), errors.Is(err, ErrStatusConflict):
		return "conflict"
	default:
		return "internal"
	}
}
