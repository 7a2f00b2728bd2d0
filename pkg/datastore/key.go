package datastore

import (
	"fmt"
	"unicode"
)

const maxNameLen = 256

// Key identifies one typed preference slot. The name is unique within a
// store; the kind is fixed when the key is created.
type Key[T any] struct {
	name   string
	kind   Kind
	encode func(T) (string, error)
	decode func(string) (T, error)
}

func IntKey(name string) Key[int]         { return newKey(name, KindInt, encodeInt, decodeInt) }
func Int64Key(name string) Key[int64]     { return newKey(name, KindInt64, encodeInt64, decodeInt64) }
func Float32Key(name string) Key[float32] { return newKey(name, KindFloat32, encodeFloat32, decodeFloat32) }
func Float64Key(name string) Key[float64] { return newKey(name, KindFloat64, encodeFloat64, decodeFloat64) }
func StringKey(name string) Key[string]   { return newKey(name, KindString, encodeString, decodeString) }
func BoolKey(name string) Key[bool]       { return newKey(name, KindBool, encodeBool, decodeBool) }

// StringSetKey stores a set of strings. Values are written sorted and
// de-duplicated.
func StringSetKey(name string) Key[[]string] {
	return newKey(name, KindStringSet, encodeStringSet, decodeStringSet)
}

// EncodedKey stores a structured value under a string-kind slot using the
// supplied encoder and decoder.
func EncodedKey[T any](name string, encode func(T) (string, error), decode func(string) (T, error)) Key[T] {
	return newKey(name, KindString, encode, decode)
}

// RawKey reads and writes the stored entry itself, whatever its kind.
func RawKey(name string) Key[Entry] {
	return Key[Entry]{name: name}
}

func newKey[T any](name string, kind Kind, enc func(T) (string, error), dec func(string) (T, error)) Key[T] {
	return Key[T]{name: name, kind: kind, encode: enc, decode: dec}
}

func (k Key[T]) Name() string { return k.name }

// Kind returns the key's kind, or "" for a RawKey.
func (k Key[T]) Kind() Kind { return k.kind }

func (k Key[T]) String() string {
	if k.kind == "" {
		return k.name
	}
	return fmt.Sprintf("%s(%s)", k.name, k.kind)
}

// Read returns the value stored under k in p and whether it is present.
func (k Key[T]) Read(p *Preferences) (T, bool, error) {
	var zero T
	if p == nil {
		return zero, false, nil
	}
	e, ok := p.entries[k.name]
	if !ok {
		return zero, false, nil
	}
	return k.decodeEntry(e)
}

func (k Key[T]) decodeEntry(e Entry) (T, bool, error) {
	var zero T
	if k.kind == "" {
		v, _ := any(e).(T)
		return v, true, nil
	}
	if e.Kind != k.kind {
		return zero, true, fmt.Errorf("%w: %q is %s, key wants %s", ErrKindMismatch, k.name, e.Kind, k.kind)
	}
	v, err := k.decode(e.Value)
	if err != nil {
		return zero, true, &DecodeError{Name: k.name, Kind: k.kind, Err: err}
	}
	return v, true, nil
}

// Decode converts a stored entry back into a value, as Read would.
func (k Key[T]) Decode(e Entry) (T, error) {
	v, _, err := k.decodeEntry(e)
	return v, err
}

// Entry encodes v into its storage form.
func (k Key[T]) Entry(v T) (Entry, error) {
	if k.kind == "" {
		e, _ := any(v).(Entry)
		if err := e.Validate(); err != nil {
			return Entry{}, err
		}
		return e, nil
	}
	s, err := k.encode(v)
	if err != nil {
		return Entry{}, fmt.Errorf("datastore: encode %q: %w", k.name, err)
	}
	return Entry{Kind: k.kind, Value: s}, nil
}

// Put stores v under k in m.
func (k Key[T]) Put(m *MutablePreferences, v T) error {
	e, err := k.Entry(v)
	if err != nil {
		return err
	}
	return m.SetEntry(k.name, e)
}

// Remove deletes k from m.
func (k Key[T]) Remove(m *MutablePreferences) error {
	return m.Remove(k.name)
}

// ValidateName checks that name can be used as a preference name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("%w: name longer than %d bytes", ErrInvalidName, maxNameLen)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: %q contains a control character", ErrInvalidName, name)
		}
	}
	return nil
}
