// Package apierr implements a sentinel-with-code error pattern: a typed
// error carrying both a stable code and the HTTP status it maps to.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bentoauthz/internal/constants"
)

// Kind is a stable, client-facing error classification.
type Kind string

const (
	Validation       Kind = "validation_error"
	Authentication   Kind = "authentication_error"
	Authorization    Kind = "authorization_error"
	NotFound         Kind = "not_found"
	Conflict         Kind = "conflict"
	StoreUnavailable Kind = "store_unavailable"
	IssuerUnreachable Kind = "issuer_unreachable"
	Internal         Kind = "internal"
)

// Error is the typed error every component above the pure policy/matching
// core returns. The policy core itself never returns one for ordinary
// deny decisions — a deny is a normal Decision, not an Error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err (or something it wraps) is an *Error of kind k.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// HTTPStatus maps an error kind to the HTTP status code a handler should
// respond with.
func HTTPStatus(k Kind) int {
	switch k {
	case Validation:
		return http.StatusUnprocessableEntity
	case Authentication:
		return http.StatusUnauthorized
	case Authorization:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case StoreUnavailable, IssuerUnreachable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether k is a transient upstream failure eligible
// for the internal retry policy.
func Retryable(k Kind) bool {
	return k == StoreUnavailable || k == IssuerUnreachable
}

// Retry runs fn up to constants.RetryMaxAttempts additional times with the
// configured exponential backoff when it fails with a retryable *Error.
// Any other error, or exhausting the backoff schedule, returns the last
// error seen.
func Retry(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !Is(err, StoreUnavailable) && !Is(err, IssuerUnreachable) {
		return err
	}

	for _, delay := range constants.RetryBackoff {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		err = fn()
		if err == nil || !Retryable(kindOf(err)) {
			return err
		}
	}
	return err
}

func kindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
