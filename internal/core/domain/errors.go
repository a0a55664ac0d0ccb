package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates a malformed or out-of-range request field
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller may not access the requested scope
	ErrForbidden = errors.New("forbidden")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrRateLimited indicates the caller exceeded its request budget
	ErrRateLimited = errors.New("rate limited")

	// ErrRetrieverUnavailable indicates a candidate retriever's backing store failed.
	// Absorbed by the search pipeline unless every retriever fails.
	ErrRetrieverUnavailable = errors.New("retriever unavailable")

	// ErrRerankUnavailable indicates the reranker timed out or errored.
	// Never surfaced to callers.
	ErrRerankUnavailable = errors.New("rerank unavailable")

	// ErrNoCandidateSources indicates every retriever that ran failed
	ErrNoCandidateSources = errors.New("no candidate sources")

	// ErrServiceUnavailable indicates an external service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")
)

// FieldError describes an invalid request field.
// It unwraps to ErrInvalidArgument.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid argument: %s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidArgument
}

// InvalidField builds a FieldError for the given field.
func InvalidField(field, format string, args ...any) error {
	return &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ErrorCode maps an error onto the public error taxonomy code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument):
		return "InvalidArgument"
	case errors.Is(err, ErrTokenExpired), errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ErrForbidden):
		return "Forbidden"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrRateLimited):
		return "RateLimited"
	case errors.Is(err, ErrNoCandidateSources):
		return "NoCandidateSources"
	case errors.Is(err, ErrRetrieverUnavailable):
		return "RetrieverUnavailable"
	case errors.Is(err, ErrRerankUnavailable):
		return "RerankUnavailable"
	case errors.Is(err, ErrServiceUnavailable):
		return "ServiceUnavailable"
	default:
		return "Internal"
	}
}
