// Package apperr defines the error kinds shared by the registry, the inbox
// engine and the tool router, and maps them onto HTTP statuses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind discriminates failures so callers can tell "retry" from "fix the
// request" from "operator action needed".
type Kind string

const (
	AlreadyExists       Kind = "AlreadyExists"
	NotFound            Kind = "NotFound"
	PoolExhausted       Kind = "PoolExhausted"
	DmNotFound          Kind = "DmNotFound"
	ToolNotFound        Kind = "ToolNotFound"
	ProviderUnavailable Kind = "ProviderUnavailable"
	InvalidArgument     Kind = "InvalidArgument"
	Internal            Kind = "Internal"
)

// Error carries a Kind, a human-readable message and an optional cause.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error of the given kind with err as its cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether retrying the same request may succeed.
func Retryable(kind Kind) bool {
	return kind == ProviderUnavailable
}

// Message returns the detail message of err without the kind prefix.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// HTTPStatus maps a kind onto a response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case InvalidArgument:
		return http.StatusBadRequest
	case NotFound, DmNotFound, ToolNotFound:
		return http.StatusNotFound
	case AlreadyExists:
		return http.StatusConflict
	case ProviderUnavailable:
		return http.StatusBadGateway
	case PoolExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
