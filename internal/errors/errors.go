// Package errors re-exports github.com/cockroachdb/errors so the rest of the
// module gets stack traces, wrapping and user hints from one import.
//
//	if err := ds.Validate(); err != nil {
//	    return errors.Wrap(err, "load dataset")
//	}
//	return errors.WithHint(err, "pass --delimiter ';' for semicolon files")
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

var (
	WithHint     = crdb.WithHint
	WithHintf    = crdb.WithHintf
	WithDetail   = crdb.WithDetail
	WithDetailf  = crdb.WithDetailf
	GetAllHints  = crdb.GetAllHints
	FlattenHints = crdb.FlattenHints
)

var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Sentinels shared across packages; wrap them to add context.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates malformed input from a caller.
	ErrInvalidRequest = New("invalid request")
)

// NewInvalidRequestError creates an invalid-request error with a formatted message.
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, Newf(format, args...).Error())
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest.
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}
