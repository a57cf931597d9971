package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies every failure surfaced by the generation core. Raw
// transport errors never cross a package boundary; each one is reclassified at
// the submit/poll/materialize seam so callers need no provider knowledge.
type ErrorKind string

const (
	ErrKindValidation      ErrorKind = "validation"
	ErrKindAuth            ErrorKind = "auth"
	ErrKindRateLimited     ErrorKind = "rate_limited"
	ErrKindRejected        ErrorKind = "provider_rejected"
	ErrKindUnavailable     ErrorKind = "upstream_unavailable"
	ErrKindNotFound        ErrorKind = "not_found"
	ErrKindTimedOut        ErrorKind = "timed_out"
	ErrKindMaterialization ErrorKind = "materialization"
)

// Error is the structured failure handed to the UI layer: a kind, a short
// message and, where the failure was anticipated, actionable suggestions.
type Error struct {
	Kind        ErrorKind
	Field       string
	Message     string
	Suggestions []string
	cause       error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Retryable reports whether an unchanged retry could plausibly succeed.
func (e *Error) Retryable() bool {
	return e.Kind == ErrKindRateLimited || e.Kind == ErrKindUnavailable
}

// NewValidationError builds a pre-flight validation failure. These are
// returned before any network call is issued.
func NewValidationError(field, reason string) *Error {
	return &Error{Kind: ErrKindValidation, Field: field, Message: reason}
}

// NewError builds a classified error with optional suggestions.
func NewError(kind ErrorKind, msg string, suggestions ...string) *Error {
	return &Error{Kind: kind, Message: msg, Suggestions: suggestions}
}

// WrapError classifies an underlying cause.
func WrapError(kind ErrorKind, msg string, cause error, suggestions ...string) *Error {
	return &Error{Kind: kind, Message: msg, Suggestions: suggestions, cause: cause}
}

// AsError extracts a structured *Error from err, or wraps err as an
// upstream-unavailable failure when it carries no classification.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var derr *Error
	if errors.As(err, &derr) {
		return derr
	}
	return WrapError(ErrKindUnavailable, err.Error(), err)
}

// ClassifyHTTPStatus maps a provider HTTP status onto the taxonomy.
func ClassifyHTTPStatus(status int, detail string) *Error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewError(ErrKindAuth, nonEmpty(detail, "provider rejected credentials"),
			"verify the provider access and secret keys are configured",
			"check the key has not expired or been revoked")
	case status == http.StatusTooManyRequests:
		return NewError(ErrKindRateLimited, nonEmpty(detail, "provider rate limit exceeded"),
			"wait a moment before retrying",
			"reduce the number of parallel generations")
	case status == http.StatusNotFound:
		return NewError(ErrKindNotFound, nonEmpty(detail, "resource not found"))
	case status >= 400 && status < 500:
		return NewError(ErrKindRejected, nonEmpty(detail, fmt.Sprintf("provider rejected request (status %d)", status)))
	default:
		return NewError(ErrKindUnavailable, nonEmpty(detail, fmt.Sprintf("provider unavailable (status %d)", status)),
			"retry in a few seconds")
	}
}

func nonEmpty(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
