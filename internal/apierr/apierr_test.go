package apierr

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{Validation, http.StatusUnprocessableEntity},
		{Authentication, http.StatusUnauthorized},
		{Authorization, http.StatusForbidden},
		{NotFound, http.StatusNotFound},
		{Conflict, http.StatusConflict},
		{StoreUnavailable, http.StatusServiceUnavailable},
		{IssuerUnreachable, http.StatusServiceUnavailable},
		{Internal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.kind); got != tt.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestIsAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(StoreUnavailable, "store down", cause)

	if !Is(err, StoreUnavailable) {
		t.Errorf("expected Is to match StoreUnavailable")
	}
	if Is(err, NotFound) {
		t.Errorf("expected Is to not match NotFound")
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected Unwrap to expose the cause to errors.Is")
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(StoreUnavailable) || !Retryable(IssuerUnreachable) {
		t.Errorf("expected store/issuer unavailability to be retryable")
	}
	if Retryable(Validation) || Retryable(NotFound) {
		t.Errorf("expected validation/not-found to not be retryable")
	}
}

func TestRetrySucceedsWithoutRetryingNonRetryableError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		return New(Validation, "bad input")
	})
	if !Is(err, Validation) {
		t.Errorf("expected the validation error to pass through unchanged")
	}
	if calls != 1 {
		t.Errorf("expected exactly one call for a non-retryable error, got %d", calls)
	}
}

func TestRetryExhaustsBackoffScheduleThenReturnsLastError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		return New(StoreUnavailable, "down")
	})
	if !Is(err, StoreUnavailable) {
		t.Errorf("expected the final error to still be StoreUnavailable")
	}
	if calls != 3 {
		t.Errorf("expected 1 initial call + 2 retries = 3 total calls, got %d", calls)
	}
}

func TestRetryStopsEarlyOnSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		if calls == 2 {
			return nil
		}
		return New(IssuerUnreachable, "unreachable")
	})
	if err != nil {
		t.Errorf("expected eventual success, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected exactly 2 calls, got %d", calls)
	}
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, func() error {
		calls++
		return New(StoreUnavailable, "down")
	})
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected only the initial call before the cancelled context is observed, got %d", calls)
	}
}
