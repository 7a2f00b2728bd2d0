// Package datastore implements a persistent, typed key-value preference
// store with immutable snapshots and a change stream.
//
// A Store owns one Backend. All writes go through a single writer goroutine
// in the order they are received, so concurrent writers are
// last-writer-wins. Every successful commit publishes a new *Preferences
// snapshot on the stream returned by Data.
//
//	backend, _ := sqlitestore.Open(dir)
//	store, _ := datastore.New(ctx, backend)
//	defer store.Close()
//
//	key := datastore.IntKey("retries")
//	store.Edit(ctx, func(m *datastore.MutablePreferences) error {
//		return key.Put(m, 5)
//	})
//	v, ok, err := key.Read(store.Snapshot())
package datastore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/imkira/go-observer/v2"
)

const defaultQueueSize = 64

// EditFunc modifies preferences inside an edit. Returning an error aborts
// the edit without touching the backend.
type EditFunc func(m *MutablePreferences) error

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithErrorHandler registers fn to be called for every failed Submit edit
// and every failed reload triggered by the backend's watcher.
// fn runs on the writer goroutine and must not block.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Store) { s.onError = fn }
}

// WithQueueSize sets how many edits may be queued before Submit blocks.
func WithQueueSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithWatch controls whether a backend implementing Watcher is watched for
// changes made by other processes. Watching is on by default.
func WithWatch(enabled bool) Option {
	return func(s *Store) { s.watch = enabled }
}

// Store is a persistent preference container. It is safe for concurrent use.
type Store struct {
	backend   Backend
	logger    *slog.Logger
	onError   func(error)
	queueSize int
	watch     bool

	mu      sync.RWMutex
	current *Preferences
	prop    observer.Property[*Preferences]

	closeMu sync.RWMutex
	closed  bool
	edits   chan edit
	done    chan struct{}

	reloadQueued atomic.Bool
	cancelWatch  context.CancelFunc
	watchDone    chan struct{}

	errMu    sync.Mutex
	failures []error
}

type edit struct {
	ctx    context.Context
	fn     EditFunc
	reload bool
	done   func(*Preferences, error)
}

// New loads the backend's entries and starts the store's writer.
func New(ctx context.Context, backend Backend, opts ...Option) (*Store, error) {
	s := &Store{
		backend:   backend,
		logger:    slog.Default(),
		queueSize: defaultQueueSize,
		watch:     true,
	}
	for _, opt := range opts {
		opt(s)
	}

	entries, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("datastore: loading preferences: %w", err)
	}
	s.current = newPreferences(entries, 1)
	s.prop = observer.NewProperty(s.current)
	s.edits = make(chan edit, s.queueSize)
	s.done = make(chan struct{})
	go s.run()

	if w, ok := backend.(Watcher); ok && s.watch {
		s.startWatch(w)
	}
	return s, nil
}

// Snapshot returns the latest committed preferences.
func (s *Store) Snapshot() *Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Data returns a stream of snapshots, starting at the current one.
func (s *Store) Data() observer.Stream[*Preferences] {
	return s.prop.Observe()
}

// Edit applies fn atomically and waits for the commit. It returns the
// snapshot that includes the edit.
func (s *Store) Edit(ctx context.Context, fn EditFunc) (*Preferences, error) {
	type result struct {
		p   *Preferences
		err error
	}
	res := make(chan result, 1)
	err := s.enqueue(edit{ctx: ctx, fn: fn, done: func(p *Preferences, err error) {
		res <- result{p, err}
	}})
	if err != nil {
		return nil, err
	}
	select {
	case r := <-res:
		return r.p, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Submit queues fn without waiting for it. done, if non-nil, is called on
// the writer goroutine with the resulting snapshot or error and must not
// block. Failures are also reported by the next Sync.
func (s *Store) Submit(fn EditFunc, done func(*Preferences, error)) {
	err := s.enqueue(edit{ctx: context.Background(), fn: fn, done: func(p *Preferences, err error) {
		if err != nil {
			s.fail(err)
		}
		if done != nil {
			done(p, err)
		}
	}})
	if err != nil {
		s.logger.Warn("datastore: edit rejected", "error", err)
		if done != nil {
			done(s.Snapshot(), err)
		}
	}
}

// Sync waits until every edit queued before it has been applied and
// returns the failures of Submit edits and watcher-triggered reloads since
// the previous Sync.
func (s *Store) Sync(ctx context.Context) error {
	reached := make(chan struct{})
	err := s.enqueue(edit{ctx: ctx, done: func(*Preferences, error) { close(reached) }})
	if err != nil {
		return err
	}
	select {
	case <-reached:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.errMu.Lock()
	failures := s.failures
	s.failures = nil
	s.errMu.Unlock()
	return errors.Join(failures...)
}

// Reload re-reads the backend and publishes a new snapshot if anything
// changed.
func (s *Store) Reload(ctx context.Context) error {
	res := make(chan error, 1)
	err := s.enqueue(edit{ctx: ctx, reload: true, done: func(_ *Preferences, err error) {
		res <- err
	}})
	if err != nil {
		return err
	}
	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the watcher, applies every queued edit and closes the backend.
// Edits submitted afterwards fail with ErrClosed.
func (s *Store) Close() error {
	if s.cancelWatch != nil {
		s.cancelWatch()
		<-s.watchDone
	}

	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	close(s.edits)
	s.closeMu.Unlock()

	<-s.done
	return s.backend.Close()
}

func (s *Store) enqueue(e edit) error {
	if e.ctx == nil {
		e.ctx = context.Background()
	}
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	s.edits <- e
	return nil
}

// run is the writer loop. It exits once edits is closed and drained.
func (s *Store) run() {
	defer close(s.done)
	for e := range s.edits {
		p, err := s.apply(e)
		if e.done != nil {
			e.done(p, err)
		}
	}
}

func (s *Store) apply(e edit) (*Preferences, error) {
	cur := s.Snapshot()
	if e.reload {
		return s.reload(e.ctx, cur)
	}
	if e.fn == nil {
		return cur, nil
	}
	if err := e.ctx.Err(); err != nil {
		return cur, err
	}

	m := cur.mutate()
	if err := e.fn(m); err != nil {
		return cur, err
	}
	changes := m.changes(cur)
	if len(changes) == 0 {
		return cur, nil
	}
	if err := s.backend.Commit(e.ctx, changes); err != nil {
		return cur, fmt.Errorf("datastore: committing %d change(s): %w", len(changes), err)
	}

	next := newPreferences(m.entries, cur.version+1)
	s.publish(next)
	s.logger.Debug("datastore: committed", "changes", len(changes), "version", next.version, "snapshot_id", next.id)
	return next, nil
}

func (s *Store) reload(ctx context.Context, cur *Preferences) (*Preferences, error) {
	s.reloadQueued.Store(false)
	entries, err := s.backend.Load(ctx)
	if err != nil {
		return cur, fmt.Errorf("datastore: reloading preferences: %w", err)
	}
	if maps.Equal(entries, cur.entries) {
		return cur, nil
	}
	next := newPreferences(entries, cur.version+1)
	s.publish(next)
	s.logger.Debug("datastore: reloaded", "entries", len(entries), "version", next.version, "snapshot_id", next.id)
	return next, nil
}

func (s *Store) publish(p *Preferences) {
	s.mu.Lock()
	s.current = p
	s.mu.Unlock()
	s.prop.Update(p)
}

func (s *Store) fail(err error) {
	s.logger.Warn("datastore: queued edit failed", "error", err)
	s.record(err)
}

// record keeps err for the next Sync and hands it to the error handler.
func (s *Store) record(err error) {
	s.errMu.Lock()
	s.failures = append(s.failures, err)
	s.errMu.Unlock()
	if s.onError != nil {
		s.onError(err)
	}
}

func (s *Store) startWatch(w Watcher) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelWatch = cancel
	s.watchDone = make(chan struct{})
	go func() {
		defer close(s.watchDone)
		if err := w.Watch(ctx, s.requestReload); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("datastore: watcher stopped", "error", err)
		}
	}()
}

// requestReload queues at most one pending reload.
func (s *Store) requestReload() {
	if !s.reloadQueued.CompareAndSwap(false, true) {
		return
	}
	err := s.enqueue(edit{reload: true, done: func(_ *Preferences, err error) {
		if err != nil {
			s.logger.Error("datastore: reload after external change failed", "error", err)
			s.record(err)
		}
	}})
	if err != nil {
		s.reloadQueued.Store(false)
	}
}
