package siemerr

import (
	"errors"
	"fmt"
)

// Kind classifies failures so callers can decide whether a pipeline run can continue.
type Kind string

const (
	KindConfig      Kind = "config"
	KindNotFound    Kind = "not_found"
	KindTransport   Kind = "transport"
	KindSearch      Kind = "search"
	KindPersistence Kind = "persistence"
	KindModel       Kind = "model"
)

// Error is a typed error that can be surfaced to tool callers without leaking backend internals.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs a new typed Error.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Config(message string, err error) *Error      { return New(KindConfig, message, err) }
func NotFound(message string, err error) *Error    { return New(KindNotFound, message, err) }
func Transport(message string, err error) *Error   { return New(KindTransport, message, err) }
func Search(message string, err error) *Error      { return New(KindSearch, message, err) }
func Persistence(message string, err error) *Error { return New(KindPersistence, message, err) }
func Model(message string, err error) *Error       { return New(KindModel, message, err) }

// KindOf returns the kind of the first *Error in err's chain, or "" when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
