// Package domain provides shared domain-level sentinel errors and the
// stable error taxonomy surfaced to clients over the wire.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Handlers compare against these with errors.Is; the
// connection hub maps each to its wire {code, message} exactly once,
// centrally, rather than scattering status mapping through handlers.
var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrStopped         = errors.New("project is stopped")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrStaleEpoch      = errors.New("stale epoch")
	ErrPrecondition    = errors.New("precondition failed")
	ErrInvalidPath     = errors.New("invalid path")
	ErrInternal        = errors.New("internal error")
)

// Code is the stable wire error code, taken from one of the sentinels above.
type Code string

const (
	CodeInvalidRequest  Code = "invalid_request"
	CodeUnauthenticated Code = "unauthenticated"
	CodeStopped         Code = "stopped"
	CodeNotFound        Code = "not_found"
	CodeConflict        Code = "conflict"
	CodeForbidden       Code = "forbidden"
	CodeStaleEpoch      Code = "stale_epoch"
	CodePrecondition    Code = "precondition"
	CodeInvalidPath     Code = "invalid_path"
	CodeInternal        Code = "internal"
)

// CodedError wraps a sentinel with a human-readable message while keeping
// errors.Is/errors.As working against the sentinel via Unwrap.
type CodedError struct {
	Sentinel error
	Msg      string
}

func (e *CodedError) Error() string {
	if e.Msg == "" {
		return e.Sentinel.Error()
	}
	return fmt.Sprintf("%s: %s", e.Sentinel.Error(), e.Msg)
}

func (e *CodedError) Unwrap() error { return e.Sentinel }

// NewError builds a CodedError carrying a specific human message.
func NewError(sentinel error, format string, args ...any) *CodedError {
	return &CodedError{Sentinel: sentinel, Msg: fmt.Sprintf(format, args...)}
}

var sentinelCodes = map[error]Code{
	ErrInvalidRequest:  CodeInvalidRequest,
	ErrUnauthenticated: CodeUnauthenticated,
	ErrStopped:         CodeStopped,
	ErrNotFound:        CodeNotFound,
	ErrConflict:        CodeConflict,
	ErrForbidden:       CodeForbidden,
	ErrStaleEpoch:      CodeStaleEpoch,
	ErrPrecondition:    CodePrecondition,
	ErrInvalidPath:     CodeInvalidPath,
	ErrInternal:        CodeInternal,
}

// CodeOf maps an error (possibly wrapped) to its stable wire code, falling
// back to CodeInternal for anything that isn't part of the taxonomy.
func CodeOf(err error) Code {
	for sentinel, code := range sentinelCodes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeInternal
}
