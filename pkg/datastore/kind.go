package datastore

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// Kind identifies the value type stored in a preference slot.
type Kind string

const (
	KindInt       Kind = "int"
	KindInt64     Kind = "int64"
	KindFloat32   Kind = "float32"
	KindFloat64   Kind = "float64"
	KindString    Kind = "string"
	KindBool      Kind = "bool"
	KindStringSet Kind = "string_set"
)

var kinds = []Kind{KindInt, KindInt64, KindFloat32, KindFloat64, KindString, KindBool, KindStringSet}

// Kinds returns every supported kind.
func Kinds() []Kind {
	return slices.Clone(kinds)
}

// ParseKind converts a kind name into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("datastore: unknown kind %q", s)
	}
	return k, nil
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	return slices.Contains(kinds, k)
}

func (k Kind) String() string {
	return string(k)
}

// Entry is the storage form of one preference value.
type Entry struct {
	Kind  Kind   `json:"kind" yaml:"kind"`
	Value string `json:"value" yaml:"value"`
}

// Validate checks that e.Value parses as e.Kind.
func (e Entry) Validate() error {
	var err error
	switch e.Kind {
	case KindInt:
		_, err = decodeInt(e.Value)
	case KindInt64:
		_, err = decodeInt64(e.Value)
	case KindFloat32:
		_, err = decodeFloat32(e.Value)
	case KindFloat64:
		_, err = decodeFloat64(e.Value)
	case KindString:
	case KindBool:
		_, err = decodeBool(e.Value)
	case KindStringSet:
		_, err = decodeStringSet(e.Value)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEntry, e.Kind)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return nil
}

func encodeInt(v int) (string, error)         { return strconv.Itoa(v), nil }
func decodeInt(s string) (int, error)         { return strconv.Atoi(s) }
func encodeInt64(v int64) (string, error)     { return strconv.FormatInt(v, 10), nil }
func decodeInt64(s string) (int64, error)     { return strconv.ParseInt(s, 10, 64) }
func encodeString(v string) (string, error)   { return v, nil }
func decodeString(s string) (string, error)   { return s, nil }
func encodeBool(v bool) (string, error)       { return strconv.FormatBool(v), nil }
func decodeBool(s string) (bool, error)       { return strconv.ParseBool(s) }
func encodeFloat64(v float64) (string, error) { return strconv.FormatFloat(v, 'g', -1, 64), nil }
func decodeFloat64(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

func encodeFloat32(v float32) (string, error) {
	return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
}

func decodeFloat32(s string) (float32, error) {
	f, err := strconv.ParseFloat(s, 32)
	return float32(f), err
}

// encodeStringSet stores the set as a sorted, de-duplicated JSON array.
func encodeStringSet(v []string) (string, error) {
	set := slices.Clone(v)
	slices.Sort(set)
	set = slices.Compact(set)
	if set == nil {
		set = []string{}
	}
	b, err := json.Marshal(set)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeStringSet(s string) ([]string, error) {
	var set []string
	if err := json.Unmarshal([]byte(s), &set); err != nil {
		return nil, err
	}
	if set == nil {
		set = []string{}
	}
	return set, nil
}
