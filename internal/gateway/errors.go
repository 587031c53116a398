package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/anonto42/nano-midea/client/internal/repositories"
	"github.com/anonto42/nano-midea/client/internal/validators"
)

// Failure kinds. Every error returned by Client matches exactly one of these with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrValidationRejected = errors.New("validation rejected")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrPartialFailure     = errors.New("partial failure")
	ErrUnknown            = errors.New("unknown error")
)

var (
	errNoSession       = errors.New("no active session")
	errInvalidArgument = errors.New("invalid argument")
)

// Error is a failed gateway operation
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func classify(err error) error {
	var ge *Error
	var fe *validators.FieldErrors
	var ne net.Error
	switch {
	case errors.As(err, &ge):
		return ge.Kind
	case errors.As(err, &fe), errors.Is(err, errInvalidArgument):
		return ErrValidationRejected
	case errors.Is(err, repositories.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, errNoSession),
		errors.Is(err, repositories.ErrInvalidCredentials),
		errors.Is(err, repositories.ErrSessionExpired):
		return ErrUnauthorized
	case errors.Is(err, repositories.ErrConflict):
		return ErrValidationRejected
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, repositories.ErrUnavailable),
		errors.As(err, &ne):
		return ErrServiceUnavailable
	default:
		return ErrUnknown
	}
}

// Partial marks err as a multi-step write that left remote state changed
func Partial(op string, err error) error {
	var ge *Error
	if errors.As(err, &ge) {
		return &Error{Op: op + ": " + ge.Op, Kind: ErrPartialFailure, Err: ge.Err}
	}
	return &Error{Op: op, Kind: ErrPartialFailure, Err: err}
}

// Reject fails op with kind before anything is sent to the backend
func Reject(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}
