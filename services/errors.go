package services

import (
	"errors"
	"net/http"
)

type ErrorKind int

const (
	KindInvalidInput ErrorKind = iota + 1
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindInvalidState
	KindDownstreamFailure
	KindPersistenceFailure
)

// Error is a failure with a kind the HTTP layer can map to a status code.
// Message is what the caller sees; Err keeps the cause for logs.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidInput, KindDownstreamFailure:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func NewInvalidInputError(msg string) error { return &Error{Kind: KindInvalidInput, Message: msg} }
func NewUnauthenticatedError(msg string) error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}
func NewForbiddenError(msg string) error    { return &Error{Kind: KindForbidden, Message: msg} }
func NewNotFoundError(msg string) error     { return &Error{Kind: KindNotFound, Message: msg} }
func NewInvalidStateError(msg string) error { return &Error{Kind: KindInvalidState, Message: msg} }

// NewDownstreamError reports a failure of the identity or role store. The
// cause's message is surfaced as is.
func NewDownstreamError(err error) error {
	return &Error{Kind: KindDownstreamFailure, Message: err.Error(), Err: err}
}

func NewPersistenceError(err error) error {
	return &Error{Kind: KindPersistenceFailure, Message: "failed to store test result", Err: err}
}

func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == kind
}
