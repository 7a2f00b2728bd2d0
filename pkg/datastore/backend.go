package datastore

import "context"

// Backend persists entries for a Store. The store calls Commit from a
// single goroutine; Load may be called concurrently with nothing else.
type Backend interface {
	// Load returns every stored entry.
	Load(ctx context.Context) (map[string]Entry, error)

	// Commit applies changes atomically: either all of them are durable
	// when it returns nil, or none are.
	Commit(ctx context.Context, changes []Change) error

	// Close releases the backend's resources.
	Close() error
}

// Watcher is implemented by backends that can observe changes made by
// other processes.
type Watcher interface {
	// Watch blocks until ctx is done, calling notify whenever the
	// persisted data may have changed.
	Watch(ctx context.Context, notify func()) error
}
