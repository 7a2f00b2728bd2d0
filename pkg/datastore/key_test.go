package datastore_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/prefstate/pkg/datastore"
	"github.com/kalambet/prefstate/pkg/datastore/memstore"
)

func seeded(t *testing.T, entries map[string]datastore.Entry) *datastore.Preferences {
	t.Helper()
	return openStore(t, memstore.New(entries)).Snapshot()
}

func TestPrimitiveKeysRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, memstore.New(nil))

	p, err := s.Edit(ctx, func(m *datastore.MutablePreferences) error {
		return errors.Join(
			datastore.IntKey("int").Put(m, -42),
			datastore.Int64Key("int64").Put(m, 1<<40),
			datastore.Float32Key("float32").Put(m, 1.5),
			datastore.Float64Key("float64").Put(m, 0.1),
			datastore.StringKey("string").Put(m, "héllo"),
			datastore.BoolKey("bool").Put(m, true),
			datastore.StringSetKey("set").Put(m, []string{"b", "a", "b"}),
		)
	})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}

	if v, _, err := datastore.IntKey("int").Read(p); err != nil || v != -42 {
		t.Errorf("int = %d, %v", v, err)
	}
	if v, _, err := datastore.Int64Key("int64").Read(p); err != nil || v != 1<<40 {
		t.Errorf("int64 = %d, %v", v, err)
	}
	if v, _, err := datastore.Float32Key("float32").Read(p); err != nil || v != 1.5 {
		t.Errorf("float32 = %v, %v", v, err)
	}
	if v, _, err := datastore.Float64Key("float64").Read(p); err != nil || v != 0.1 {
		t.Errorf("float64 = %v, %v", v, err)
	}
	if v, _, err := datastore.StringKey("string").Read(p); err != nil || v != "héllo" {
		t.Errorf("string = %q, %v", v, err)
	}
	if v, _, err := datastore.BoolKey("bool").Read(p); err != nil || !v {
		t.Errorf("bool = %v, %v", v, err)
	}
	v, _, err := datastore.StringSetKey("set").Read(p)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, v); diff != "" {
		t.Errorf("set (-want +got):\n%s", diff)
	}
}

func TestReadAbsent(t *testing.T) {
	p := seeded(t, nil)
	v, ok, err := datastore.IntKey("missing").Read(p)
	if v != 0 || ok || err != nil {
		t.Errorf("Read(missing) = %d, %v, %v; want 0, false, nil", v, ok, err)
	}
	if _, ok, _ := datastore.IntKey("x").Read(nil); ok {
		t.Error("Read(nil) reported present")
	}
}

func TestReadKindMismatch(t *testing.T) {
	p := seeded(t, map[string]datastore.Entry{
		"retries": {Kind: datastore.KindString, Value: "five"},
	})
	_, ok, err := datastore.IntKey("retries").Read(p)
	if !ok {
		t.Error("mismatched slot reported absent")
	}
	if !errors.Is(err, datastore.ErrKindMismatch) {
		t.Errorf("err = %v, want ErrKindMismatch", err)
	}
}

func TestReadDecodeError(t *testing.T) {
	p := seeded(t, map[string]datastore.Entry{
		"user": {Kind: datastore.KindString, Value: "{not json"},
	})
	key := datastore.EncodedKey("user",
		func(v int) (string, error) { return strconv.Itoa(v), nil },
		strconv.Atoi,
	)

	_, _, err := key.Read(p)
	var de *datastore.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want *DecodeError", err)
	}
	if de.Name != "user" || de.Kind != datastore.KindString {
		t.Errorf("DecodeError = %+v", de)
	}
	var ne *strconv.NumError
	if !errors.As(err, &ne) {
		t.Errorf("DecodeError does not unwrap to the decoder error: %v", err)
	}
}

func TestRawKey(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, memstore.New(nil))
	raw := datastore.RawKey("limit")

	p, err := s.Edit(ctx, func(m *datastore.MutablePreferences) error {
		return raw.Put(m, datastore.Entry{Kind: datastore.KindFloat64, Value: "2.5"})
	})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	e, ok, err := raw.Read(p)
	if err != nil || !ok || e.Kind != datastore.KindFloat64 {
		t.Errorf("raw Read = %+v, %v, %v", e, ok, err)
	}
	if v, _, _ := datastore.Float64Key("limit").Read(p); v != 2.5 {
		t.Errorf("typed Read = %v, want 2.5", v)
	}

	_, err = s.Edit(ctx, func(m *datastore.MutablePreferences) error {
		return raw.Put(m, datastore.Entry{Kind: datastore.KindInt, Value: "abc"})
	})
	if !errors.Is(err, datastore.ErrInvalidEntry) {
		t.Errorf("Put(invalid entry) err = %v, want ErrInvalidEntry", err)
	}
}

func TestInvalidNames(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, memstore.New(nil))

	for _, name := range []string{"", "bad\nname", strings.Repeat("x", 257)} {
		_, err := s.Edit(ctx, func(m *datastore.MutablePreferences) error {
			return datastore.StringKey(name).Put(m, "v")
		})
		if !errors.Is(err, datastore.ErrInvalidName) {
			t.Errorf("Put(%q) err = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestEntryValidate(t *testing.T) {
	valid := []datastore.Entry{
		{Kind: datastore.KindInt, Value: "7"},
		{Kind: datastore.KindString, Value: ""},
		{Kind: datastore.KindStringSet, Value: `["a"]`},
	}
	for _, e := range valid {
		if err := e.Validate(); err != nil {
			t.Errorf("Validate(%+v) = %v", e, err)
		}
	}
	invalid := []datastore.Entry{
		{Kind: datastore.KindBool, Value: "maybe"},
		{Kind: datastore.KindStringSet, Value: "a,b"},
		{Kind: "color", Value: "red"},
	}
	for _, e := range invalid {
		if err := e.Validate(); !errors.Is(err, datastore.ErrInvalidEntry) {
			t.Errorf("Validate(%+v) = %v, want ErrInvalidEntry", e, err)
		}
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range datastore.Kinds() {
		got, err := datastore.ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %q, %v", k, got, err)
		}
	}
	if _, err := datastore.ParseKind("color"); err == nil {
		t.Error("ParseKind(color) succeeded")
	}
}

func TestDecodeNormalizesStringSet(t *testing.T) {
	key := datastore.StringSetKey("plugins")
	e, err := key.Entry([]string{"z", "a", "a"})
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	got, err := key.Decode(e)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "z"}, got); diff != "" {
		t.Errorf("Decode (-want +got):\n%s", diff)
	}
}
