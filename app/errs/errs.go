// Package errs defines the error kinds shared by the calendar engine.
//
// Every component returns *Error values carrying one of the sentinel kinds
// below, so callers can branch with errors.Is(err, errs.ErrBusy) while the
// wrapped cause stays reachable for logging.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrBusy         = errors.New("busy")
	ErrPrecondition = errors.New("precondition failed")
	ErrValidation   = errors.New("validation error")
	ErrCollaborator = errors.New("collaborator error")
	ErrCancelled    = errors.New("cancelled")
)

type Error struct {
	Kind    error
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func NotFound(op, format string, args ...any) error {
	return newError(ErrNotFound, op, format, args...)
}

func Busy(op, format string, args ...any) error {
	return newError(ErrBusy, op, format, args...)
}

func Precondition(op, format string, args ...any) error {
	return newError(ErrPrecondition, op, format, args...)
}

func Validation(op, format string, args ...any) error {
	return newError(ErrValidation, op, format, args...)
}

func Cancelled(op, format string, args ...any) error {
	return newError(ErrCancelled, op, format, args...)
}

// Collaborator wraps a provider failure. The provider's message is kept
// verbatim as the error text.
func Collaborator(op string, err error) error {
	return &Error{Kind: ErrCollaborator, Op: op, Err: err}
}

// KindOf names the kind of err for payloads and manifests. Errors without a
// known kind are reported as "internal".
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrPrecondition):
		return "precondition_failed"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrCollaborator):
		return "collaborator_error"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	default:
		return "internal"
	}
}
