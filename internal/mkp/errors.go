package mkp

import (
	"errors"
	"fmt"
)

// Sentinels exposed through (*Error).Unwrap so callers can use errors.Is.
var (
	ErrInvalid      = errors.New("invalid")
	ErrConflict     = errors.New("file conflict")
	ErrMissingFile  = errors.New("missing file")
	ErrIncompatible = errors.New("incompatible version")
	ErrExists       = errors.New("already exists")
	ErrCorrupt      = errors.New("corrupt package")
	ErrNotInstalled = errors.New("not installed")
	ErrNotEnabled   = errors.New("not enabled")
	ErrNotFound     = errors.New("not found")
)

// Error is the one error kind raised by the package engine. The message is
// meant for humans; Kind is one of the sentinels above.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

// Errorf builds an *Error of the given kind.
func Errorf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrapf builds an *Error of the given kind that also carries a cause.
func Wrapf(kind error, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

// Unwrap returns the kind sentinel and the cause, if any.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// IsPackageError reports whether err carries an *Error anywhere in its chain.
func IsPackageError(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}
