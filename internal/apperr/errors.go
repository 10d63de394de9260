// Package apperr holds the error kinds shared by every frontend (HTTP API, CLI).
// Callers switch on Kind, never on the concrete error chain.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a stable error category that frontends render consistently.
type Kind string

const (
	KindNotAuthenticated     Kind = "NOT_AUTHENTICATED"
	KindWrongRole            Kind = "WRONG_ROLE"
	KindInvalidInput         Kind = "INVALID_INPUT"
	KindNoCaregiverAvailable Kind = "NO_CAREGIVER_AVAILABLE"
	KindInsufficientStock    Kind = "INSUFFICIENT_STOCK"
	KindConflict             Kind = "CONFLICT"
	KindStoreUnavailable     Kind = "STORE_UNAVAILABLE"
	KindNotFound             Kind = "NOT_FOUND"
	KindLoginFailed          Kind = "LOGIN_FAILED"
	KindRateLimited          Kind = "RATE_LIMITED"
)

var defaultMessages = map[Kind]string{
	KindNotAuthenticated:     "Please login first",
	KindWrongRole:            "Please login with the correct account type",
	KindInvalidInput:         "Please try again",
	KindNoCaregiverAvailable: "No caregiver is available",
	KindInsufficientStock:    "Not enough available doses",
	KindConflict:             "Already exists, try again",
	KindStoreUnavailable:     "Please try again",
	KindNotFound:             "Not found",
	KindLoginFailed:          "Login failed",
	KindRateLimited:          "Too many requests, try again later",
}

// Error is the typed failure returned by services.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an error of the given kind with a user-facing message.
// An empty message falls back to the default text for the kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap attaches a kind to an underlying cause.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the kind of err. Errors that carry no kind are treated as
// store failures, which callers render as a generic retryable failure.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStoreUnavailable
}

// Is reports whether err has the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user-facing text for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return defaultMessages[KindOf(err)]
}
