// Package apperr defines the error taxonomy shared by every subsystem of the
// ladder: guards, the data layer, the matchmaker, and the lifecycle
// coordinator all return one of these kinds instead of leaking adapter or
// platform-specific errors to callers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies which branch of the taxonomy an error belongs to so a
// caller can switch on it without string matching.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindState      Kind = "state"
	KindQuota      Kind = "quota"
	KindConflict   Kind = "conflict"
	KindUpstream   Kind = "upstream"
	KindCancelled  Kind = "cancelled"
)

// Error wraps an underlying cause with a Kind so handlers can map it to a
// status code centrally instead of re-deriving it at every call site.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func new_(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Validation(msg string, err error) *Error { return new_(KindValidation, msg, err) }
func NotFound(msg string, err error) *Error    { return new_(KindNotFound, msg, err) }
func State(msg string, err error) *Error       { return new_(KindState, msg, err) }
func Quota(msg string, err error) *Error       { return new_(KindQuota, msg, err) }
func Conflict(msg string, err error) *Error    { return new_(KindConflict, msg, err) }
func Upstream(msg string, err error) *Error    { return new_(KindUpstream, msg, err) }
func Cancelled(msg string, err error) *Error   { return new_(KindCancelled, msg, err) }

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}
