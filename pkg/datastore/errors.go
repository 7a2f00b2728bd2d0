package datastore

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned for edits submitted after Close.
	ErrClosed = errors.New("datastore: store closed")

	// ErrKindMismatch is returned when a key reads a slot written with another kind.
	ErrKindMismatch = errors.New("datastore: kind mismatch")

	// ErrInvalidName is returned for empty or malformed preference names.
	ErrInvalidName = errors.New("datastore: invalid preference name")

	// ErrInvalidEntry is returned when an entry's value does not parse as its kind.
	ErrInvalidEntry = errors.New("datastore: invalid entry")
)

// DecodeError reports a stored value that could not be decoded into the
// key's Go type.
type DecodeError struct {
	Name string
	Kind Kind
	Err  error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("datastore: decode %q (%s): %v", e.Name, e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
