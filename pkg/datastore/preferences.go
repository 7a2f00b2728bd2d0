package datastore

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Preferences is an immutable snapshot of every entry in a store.
type Preferences struct {
	entries   map[string]Entry
	version   uint64
	id        string
	createdAt time.Time
}

func newPreferences(entries map[string]Entry, version uint64) *Preferences {
	if entries == nil {
		entries = map[string]Entry{}
	}
	return &Preferences{
		entries:   entries,
		version:   version,
		id:        uuid.NewString(),
		createdAt: time.Now().UTC(),
	}
}

// Version increases by one for every snapshot a store publishes.
func (p *Preferences) Version() uint64 { return p.version }

// ID is unique per published snapshot.
func (p *Preferences) ID() string { return p.id }

func (p *Preferences) CreatedAt() time.Time { return p.createdAt }

func (p *Preferences) Len() int { return len(p.entries) }

func (p *Preferences) Contains(name string) bool {
	_, ok := p.entries[name]
	return ok
}

// Entry returns the stored entry for name.
func (p *Preferences) Entry(name string) (Entry, bool) {
	e, ok := p.entries[name]
	return e, ok
}

// Names returns all names in sorted order.
func (p *Preferences) Names() []string {
	return slices.Sorted(maps.Keys(p.entries))
}

// Entries returns a copy of all entries.
func (p *Preferences) Entries() map[string]Entry {
	return maps.Clone(p.entries)
}

func (p *Preferences) mutate() *MutablePreferences {
	return &MutablePreferences{
		entries: maps.Clone(p.entries),
		changed: map[string]struct{}{},
	}
}

// Change is one pending write: an upsert of Entry, or a delete.
type Change struct {
	Name   string
	Entry  Entry
	Delete bool
}

// MutablePreferences is the view an edit function modifies. Changes are
// committed atomically when the function returns nil.
type MutablePreferences struct {
	entries map[string]Entry
	changed map[string]struct{}
}

// Get returns the entry as currently modified.
func (m *MutablePreferences) Get(name string) (Entry, bool) {
	e, ok := m.entries[name]
	return e, ok
}

// SetEntry stores e under name after validating both.
func (m *MutablePreferences) SetEntry(name string, e Entry) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return err
	}
	m.entries[name] = e
	m.changed[name] = struct{}{}
	return nil
}

// Remove deletes name. Removing an absent name is not an error.
func (m *MutablePreferences) Remove(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	delete(m.entries, name)
	m.changed[name] = struct{}{}
	return nil
}

// Clear removes every entry.
func (m *MutablePreferences) Clear() {
	for name := range m.entries {
		m.changed[name] = struct{}{}
	}
	clear(m.entries)
}

// changes diffs the edited entries against base, sorted by name.
func (m *MutablePreferences) changes(base *Preferences) []Change {
	var out []Change
	for _, name := range slices.Sorted(maps.Keys(m.changed)) {
		after, present := m.entries[name]
		before, existed := base.entries[name]
		switch {
		case present && (!existed || before != after):
			out = append(out, Change{Name: name, Entry: after})
		case !present && existed:
			out = append(out, Change{Name: name, Delete: true})
		}
	}
	return out
}
