package fault

import (
	"errors"
	"fmt"
)

// Kinds. Every error returned by a service wraps exactly one of these.
var (
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalid      = errors.New("invalid_request")
	ErrTransient    = errors.New("transient_store_error")
)

// Error is a coded domain error bound to a kind.
type Error struct {
	Code string
	Kind error
}

func (e *Error) Error() string {
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func NotFound(code string) *Error {
	return &Error{Code: code, Kind: ErrNotFound}
}

func Conflict(code string) *Error {
	return &Error{Code: code, Kind: ErrConflict}
}

func Unauthorized(code string) *Error {
	return &Error{Code: code, Kind: ErrUnauthorized}
}

func Invalid(code string) *Error {
	return &Error{Code: code, Kind: ErrInvalid}
}

// Transient marks a store failure as safe to retry.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransient) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// KindOf returns the kind sentinel carried by err, or nil when err is not classified.
func KindOf(err error) error {
	for _, kind := range []error{ErrNotFound, ErrConflict, ErrUnauthorized, ErrInvalid, ErrTransient} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Code returns the domain code of err, falling back to its kind.
func Code(err error) string {
	var coded *Error
	if errors.As(err, &coded) && coded != nil {
		return coded.Code
	}
	if kind := KindOf(err); kind != nil {
		return kind.Error()
	}
	return "internal_error"
}
