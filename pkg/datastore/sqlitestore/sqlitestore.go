// Package sqlitestore is a durable datastore backend on SQLite.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kalambet/prefstate/pkg/datastore"
)

// FileName is the database file created inside the data directory.
const FileName = "prefs.db"

const (
	selectAll   = `SELECT name, kind, value FROM preferences`
	selectStamp = `SELECT updated_at FROM preferences WHERE name = ?`
	deleteOne   = `DELETE FROM preferences WHERE name = ?`
	upsertOne   = `INSERT INTO preferences (name, kind, value, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET kind = excluded.kind, value = excluded.value, updated_at = excluded.updated_at`
)

// Store keeps preferences in a single SQLite table, one row per name.
type Store struct {
	db *sql.DB
}

var _ datastore.Backend = (*Store)(nil)

// Open opens (or creates) the database in dataDir and runs pending
// migrations. ":memory:" opens a private in-memory database.
func Open(dataDir string) (*Store, error) {
	path := ":memory:"
	if dataDir != ":memory:" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlitestore: creating data directory: %w", err)
		}
		path = filepath.Join(dataDir, FileName)
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: opening %s: %w", path, err)
	}
	// Single writer, and :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: migrating %s: %w", path, err)
	}
	return s, nil
}

// dsn applies the connection pragmas through modernc's _pragma parameters
// so that every pooled connection gets them.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	if path != ":memory:" {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	q.Add("_pragma", "synchronous(NORMAL)")
	return path + "?" + q.Encode()
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns every stored preference.
func (s *Store) Load(ctx context.Context) (map[string]datastore.Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectAll)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: load: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]datastore.Entry)
	for rows.Next() {
		var (
			name string
			e    datastore.Entry
		)
		if err := rows.Scan(&name, &e.Kind, &e.Value); err != nil {
			return nil, fmt.Errorf("sqlitestore: load: %w", err)
		}
		entries[name] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore: load: %w", err)
	}
	return entries, nil
}

// Commit applies changes in one transaction. Nothing is written unless
// every change succeeds.
func (s *Store) Commit(ctx context.Context, changes []datastore.Change) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	upsert, err := tx.PrepareContext(ctx, upsertOne)
	if err != nil {
		return fmt.Errorf("sqlitestore: prepare upsert: %w", err)
	}
	defer upsert.Close()

	stamp := time.Now().UTC().Format(time.RFC3339Nano)
	for _, c := range changes {
		if c.Delete {
			_, err = tx.ExecContext(ctx, deleteOne, c.Name)
		} else {
			_, err = upsert.ExecContext(ctx, c.Name, string(c.Entry.Kind), c.Entry.Value, stamp)
		}
		if err != nil {
			return fmt.Errorf("sqlitestore: write %q: %w", c.Name, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlitestore: commit: %w", err)
	}
	return nil
}

// UpdatedAt reports when name was last written.
func (s *Store) UpdatedAt(ctx context.Context, name string) (time.Time, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, selectStamp, name).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return time.Time{}, fmt.Errorf("%q: %w", name, ErrNotFound)
	case err != nil:
		return time.Time{}, fmt.Errorf("sqlitestore: updated_at %q: %w", name, err)
	}
	return time.Parse(time.RFC3339Nano, raw)
}
