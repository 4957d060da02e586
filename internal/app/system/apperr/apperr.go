// Package apperr defines the error kinds every service and handler agrees on.
//
// Services return *Error values (or wrap store errors with FromStore); the
// HTTP layer maps Kind to a status code.
package apperr

import (
	"context"
	"errors"
	"fmt"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/mongo"
)

// Kind classifies an error for callers and for the HTTP status mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindInvalidOperation
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidOperation:
		return "invalid_operation"
	case KindTransient:
		return "transient"
	default:
		return "internal"
	}
}

// MsgNotFoundOrDenied is returned wherever telling "absent" apart from
// "not visible to you" would leak existence.
const MsgNotFoundOrDenied = "not found or access denied"

// Error carries a Kind, a caller-safe message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap attaches cause to a new error of the given kind.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

func Unauthorized(msg string) *Error     { return New(KindUnauthorized, msg) }
func Forbidden(msg string) *Error        { return New(KindForbidden, msg) }
func NotFound(msg string) *Error         { return New(KindNotFound, msg) }
func Conflict(msg string) *Error         { return New(KindConflict, msg) }
func InvalidOperation(msg string) *Error { return New(KindInvalidOperation, msg) }

// Hidden is the NotFound used when the caller cannot see the resource.
func Hidden() *Error { return NotFound(MsgNotFoundOrDenied) }

// Internal wraps an unexpected failure. The message never reaches clients.
func Internal(msg string, cause error) *Error {
	return Wrap(KindInternal, msg, cause)
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the caller-safe message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Msg
	}
	return "internal error"
}

// FromStore classifies a storage error. Errors that already carry a Kind are
// returned unchanged.
func FromStore(err error, op string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return Wrap(KindNotFound, MsgNotFoundOrDenied, err)
	case wafflemongo.IsDup(err):
		return Wrap(KindConflict, op+": already exists", err)
	case errors.Is(err, context.DeadlineExceeded), mongo.IsTimeout(err), mongo.IsNetworkError(err):
		return Wrap(KindTransient, op+": storage unavailable, retry", err)
	}
	return Wrap(KindInternal, op, err)
}
