package sqlitestore

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/prefstate/pkg/datastore"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same directory and checks
// that no migration is applied twice.
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()
	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if diff := cmp.Diff(v1, v2); diff != "" {
		t.Errorf("applied migrations changed (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2}, v2); diff != "" {
		t.Errorf("applied migrations (-want +got):\n%s", diff)
	}
}

func TestCommitAndLoad(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	err := s.Commit(ctx, []datastore.Change{
		{Name: "retries", Entry: datastore.Entry{Kind: datastore.KindInt, Value: "3"}},
		{Name: "theme", Entry: datastore.Entry{Kind: datastore.KindString, Value: "dark"}},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	err = s.Commit(ctx, []datastore.Change{
		{Name: "retries", Entry: datastore.Entry{Kind: datastore.KindInt, Value: "5"}},
		{Name: "theme", Delete: true},
	})
	if err != nil {
		t.Fatalf("second Commit: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := map[string]datastore.Entry{
		"retries": {Kind: datastore.KindInt, Value: "5"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
}

func TestCommitCancelledWritesNothing(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Commit(ctx, []datastore.Change{
		{Name: "retries", Entry: datastore.Entry{Kind: datastore.KindInt, Value: "3"}},
	})
	if err == nil {
		t.Fatal("Commit with cancelled context succeeded")
	}

	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load after cancelled Commit = %v, want empty", got)
	}
}

func TestUpdatedAt(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.UpdatedAt(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdatedAt(missing) err = %v, want ErrNotFound", err)
	}
	if err := s.Commit(ctx, []datastore.Change{
		{Name: "theme", Entry: datastore.Entry{Kind: datastore.KindString, Value: "dark"}},
	}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	ts, err := s.UpdatedAt(ctx, "theme")
	if err != nil {
		t.Fatalf("UpdatedAt: %v", err)
	}
	if ts.IsZero() {
		t.Error("UpdatedAt returned zero time")
	}
}

// TestStoreSurvivesReopen writes through a datastore.Store and reads the
// value back after reopening the database.
func TestStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	key := datastore.IntKey("retries")

	backend, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	store, err := datastore.New(ctx, backend)
	if err != nil {
		t.Fatalf("datastore.New: %v", err)
	}
	if _, err := store.Edit(ctx, func(m *datastore.MutablePreferences) error {
		return key.Put(m, 5)
	}); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	backend, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	store, err = datastore.New(ctx, backend)
	if err != nil {
		t.Fatalf("datastore.New after reopen: %v", err)
	}
	defer store.Close()

	v, ok, err := key.Read(store.Snapshot())
	if err != nil || !ok || v != 5 {
		t.Errorf("Read(retries) = %d, %v, %v; want 5, true, nil", v, ok, err)
	}
}

func TestEmbeddedMigrationsOrdered(t *testing.T) {
	ms, err := migrations()
	if err != nil {
		t.Fatalf("migrations: %v", err)
	}
	var got []int
	for _, m := range ms {
		got = append(got, m.version)
	}
	if diff := cmp.Diff([]int{1, 2}, got); diff != "" {
		t.Errorf("migration order (-want +got):\n%s", diff)
	}
}
