// Package rlmerr defines the error taxonomy shared across the runtime
// (spec.md §7): sentinel kinds wrapped with context, so callers can
// classify a failure with errors.Is while still getting a readable
// message. Grounded on the teacher's internal/llm error-kind pattern
// (sentinel errors joined with fmt.Errorf %w, never raw strings).
package rlmerr

import (
	"errors"
	"fmt"
)

// Kind is one of the taxonomy's named failure classes.
type Kind string

const (
	KindBadInput         Kind = "bad-input"
	KindUnsafeExpression Kind = "unsafe-expression"
	KindSyntaxError      Kind = "syntax-error"
	KindUnboundVariable  Kind = "unbound-variable"
	KindRuntimeError     Kind = "runtime-error"
	KindTimeout          Kind = "timeout"
	KindMemoryExceeded   Kind = "memory-exceeded"
	KindSubCallLimit     Kind = "sub-call-limit"
	KindInvalidHandle    Kind = "invalid-handle"
	KindTransportError   Kind = "transport-error"
	KindNoProgress       Kind = "no-progress"
)

// Sentinel errors for errors.Is classification. Err wraps one of these.
var (
	ErrBadInput         = errors.New(string(KindBadInput))
	ErrUnsafeExpression = errors.New(string(KindUnsafeExpression))
	ErrSyntaxError      = errors.New(string(KindSyntaxError))
	ErrUnboundVariable  = errors.New(string(KindUnboundVariable))
	ErrRuntimeError     = errors.New(string(KindRuntimeError))
	ErrTimeout          = errors.New(string(KindTimeout))
	ErrMemoryExceeded   = errors.New(string(KindMemoryExceeded))
	ErrSubCallLimit     = errors.New(string(KindSubCallLimit))
	ErrInvalidHandle    = errors.New(string(KindInvalidHandle))
	ErrTransportError   = errors.New(string(KindTransportError))
	ErrNoProgress       = errors.New(string(KindNoProgress))
)

var sentinels = map[Kind]error{
	KindBadInput:         ErrBadInput,
	KindUnsafeExpression: ErrUnsafeExpression,
	KindSyntaxError:      ErrSyntaxError,
	KindUnboundVariable:  ErrUnboundVariable,
	KindRuntimeError:     ErrRuntimeError,
	KindTimeout:          ErrTimeout,
	KindMemoryExceeded:   ErrMemoryExceeded,
	KindSubCallLimit:     ErrSubCallLimit,
	KindInvalidHandle:    ErrInvalidHandle,
	KindTransportError:   ErrTransportError,
	KindNoProgress:       ErrNoProgress,
}

// Error pairs a Kind with a formatted message, wrapping the kind's
// sentinel so errors.Is(err, rlmerr.ErrUnboundVariable) works.
type Error struct {
	Kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return sentinels[e.Kind] }

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err, if it (or something it wraps) is an
// *Error; ok is false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

func BadInputf(format string, args ...any) *Error          { return New(KindBadInput, format, args...) }
func UnsafeExpressionf(format string, args ...any) *Error  { return New(KindUnsafeExpression, format, args...) }
func SyntaxErrorf(format string, args ...any) *Error       { return New(KindSyntaxError, format, args...) }
func UnboundVariablef(format string, args ...any) *Error   { return New(KindUnboundVariable, format, args...) }
func RuntimeErrorf(format string, args ...any) *Error      { return New(KindRuntimeError, format, args...) }
func Timeoutf(format string, args ...any) *Error           { return New(KindTimeout, format, args...) }
func MemoryExceededf(format string, args ...any) *Error    { return New(KindMemoryExceeded, format, args...) }
func SubCallLimitf(format string, args ...any) *Error      { return New(KindSubCallLimit, format, args...) }
func InvalidHandlef(format string, args ...any) *Error     { return New(KindInvalidHandle, format, args...) }
func TransportErrorf(format string, args ...any) *Error    { return New(KindTransportError, format, args...) }
func NoProgressf(format string, args ...any) *Error        { return New(KindNoProgress, format, args...) }
