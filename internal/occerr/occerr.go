// Public domain.

// Package occerr defines the error kinds shared by the inversion packages.
//
// Every error produced by the core matches exactly one of the kind
// sentinels under errors.Is, however deeply it has been wrapped.
package occerr

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	ErrRange         = errors.New("epoch out of range")
	ErrConsistency   = errors.New("inconsistent inputs")
	ErrConfiguration = errors.New("configuration error")
	ErrNumerical     = errors.New("numerical error")
)

// Error is an error of a known kind raised by a named operation.
type Error struct {
	Kind error  // one of the Err kinds above
	Op   string // operation, e.g. "green.New"
	Msg  string
	Err  error // underlying cause, may be nil
}

func (e *Error) Error() string {
	s := e.Op
	if s != "" {
		s += ": "
	}
	switch {
	case e.Msg == "" && e.Err != nil:
		return s + e.Err.Error()
	case e.Msg == "":
		s += e.Kind.Error()
	default:
		s += e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap exposes both the kind and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New returns an error of the given kind with a formatted message.
func New(kind error, op, format string, a ...any) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, a...)}
}

// Wrap returns an error of the given kind wrapping err.
// It returns nil if err is nil.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Range, Consistency, Configuration and Numerical are shorthands for New.
func Range(op, format string, a ...any) error {
	return New(ErrRange, op, format, a...)
}

func Consistency(op, format string, a ...any) error {
	return New(ErrConsistency, op, format, a...)
}

func Configuration(op, format string, a ...any) error {
	return New(ErrConfiguration, op, format, a...)
}

func Numerical(op, format string, a ...any) error {
	return New(ErrNumerical, op, format, a...)
}

// KindOf returns the kind sentinel matched by err, or nil.
func KindOf(err error) error {
	for _, k := range []error{ErrRange, ErrConsistency, ErrConfiguration, ErrNumerical} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
