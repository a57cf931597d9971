package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestClassifyHTTPStatus(t *testing.T) {
	cases := []struct {
		status int
		want   ErrorKind
	}{
		{http.StatusUnauthorized, ErrKindAuth},
		{http.StatusForbidden, ErrKindAuth},
		{http.StatusTooManyRequests, ErrKindRateLimited},
		{http.StatusNotFound, ErrKindNotFound},
		{http.StatusBadRequest, ErrKindRejected},
		{http.StatusUnprocessableEntity, ErrKindRejected},
		{http.StatusInternalServerError, ErrKindUnavailable},
		{http.StatusBadGateway, ErrKindUnavailable},
	}
	for _, tc := range cases {
		got := ClassifyHTTPStatus(tc.status, "")
		if got.Kind != tc.want {
			t.Errorf("status %d: kind = %q, want %q", tc.status, got.Kind, tc.want)
		}
	}
}

func TestAuthErrorCarriesCredentialSuggestion(t *testing.T) {
	err := ClassifyHTTPStatus(http.StatusUnauthorized, "")
	if len(err.Suggestions) == 0 {
		t.Fatalf("expected suggestions on auth error")
	}
	found := false
	for _, s := range err.Suggestions {
		if contains(s, "key") || contains(s, "credential") {
			found = true
		}
	}
	if !found {
		t.Fatalf("suggestions %v should mention credential configuration", err.Suggestions)
	}
}

func TestAsErrorPreservesClassification(t *testing.T) {
	orig := NewValidationError("prompt", "must not be empty")
	wrapped := fmt.Errorf("submit: %w", orig)
	got := AsError(wrapped)
	if got.Kind != ErrKindValidation || got.Field != "prompt" {
		t.Fatalf("AsError lost classification: %+v", got)
	}
}

func TestAsErrorWrapsUnknown(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")
	got := AsError(cause)
	if got.Kind != ErrKindUnavailable {
		t.Fatalf("kind = %q, want %q", got.Kind, ErrKindUnavailable)
	}
	if !errors.Is(got, cause) {
		t.Fatalf("expected cause to be preserved")
	}
}

func TestRetryable(t *testing.T) {
	if !NewError(ErrKindRateLimited, "slow down").Retryable() {
		t.Errorf("rate_limited should be retryable")
	}
	if NewError(ErrKindAuth, "bad key").Retryable() {
		t.Errorf("auth should not be retryable")
	}
	if NewValidationError("duration", "unsupported").Retryable() {
		t.Errorf("validation should not be retryable")
	}
}

func TestTerminalStatuses(t *testing.T) {
	terminal := []JobStatus{JobStatusReady, JobStatusFailed, JobStatusModerated, JobStatusNotFound, JobStatusTimedOut}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%q should be terminal", s)
		}
	}
	for _, s := range []JobStatus{JobStatusPending, JobStatusProcessing} {
		if s.Terminal() {
			t.Errorf("%q should not be terminal", s)
		}
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
