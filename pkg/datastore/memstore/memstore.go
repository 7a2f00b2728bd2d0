// Package memstore is an in-memory datastore backend. Nothing survives the
// process; it exists for tests and for callers that only need the binding
// behaviour.
package memstore

import (
	"context"
	"maps"
	"sync"

	"github.com/kalambet/prefstate/pkg/datastore"
)

// Store keeps entries in a map.
type Store struct {
	mu      sync.RWMutex
	entries map[string]datastore.Entry
	closed  bool
}

// New returns a backend holding a copy of seed.
func New(seed map[string]datastore.Entry) *Store {
	entries := maps.Clone(seed)
	if entries == nil {
		entries = map[string]datastore.Entry{}
	}
	return &Store{entries: entries}
}

func (s *Store) Load(ctx context.Context) (map[string]datastore.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, datastore.ErrClosed
	}
	return maps.Clone(s.entries), nil
}

func (s *Store) Commit(ctx context.Context, changes []datastore.Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return datastore.ErrClosed
	}
	for _, c := range changes {
		if c.Delete {
			delete(s.entries, c.Name)
			continue
		}
		s.entries[c.Name] = c.Entry
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
