// Package preference binds typed preference keys to observable values.
//
// A Binding reads through to a datastore.Store and overlays the latest
// value written through it until the store acknowledges the write, so
// Get reflects a Set immediately:
//
//	retries := preference.Int(ctx, store, "retries", preference.WithDefault(3))
//	retries.Get() // 3
//	retries.Set(5)
//	retries.Get() // 5, before the write reaches disk
//
// Observe returns a stream that a UI layer can redraw from. The stream is
// fed by a goroutine that lives until the binding's context is done.
package preference

import (
	"context"
	"log/slog"
	"reflect"
	"sync"

	"github.com/imkira/go-observer/v2"

	"github.com/kalambet/prefstate/pkg/datastore"
)

// MutableState is a readable and writable value cell.
type MutableState[T any] interface {
	Get() T
	Set(T)
}

// Binding is the observable view of one preference key.
type Binding[T any] struct {
	ctx    context.Context
	store  *datastore.Store
	key    datastore.Key[T]
	def    func() T
	logger *slog.Logger

	mu      sync.Mutex
	local   *localWrite[T]
	pending int
	warned  datastore.Entry

	notifyMu sync.Mutex
	prop     observer.Property[T]
	last     T
}

// localWrite is the value of the newest write that the store has not
// acknowledged yet.
type localWrite[T any] struct {
	value   T
	present bool
}

var _ MutableState[int] = (*Binding[int])(nil)

// Bind returns a binding for key in store. Without WithDefault or
// WithDefaultFunc, Get returns the zero value while the key is absent; use
// Lookup or Optional to tell absence apart.
func Bind[T any](ctx context.Context, store *datastore.Store, key datastore.Key[T], opts ...Option[T]) *Binding[T] {
	o := options[T]{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Binding[T]{
		ctx:    ctx,
		store:  store,
		key:    key,
		def:    o.def,
		logger: o.logger,
	}
}

func (b *Binding[T]) Name() string { return b.key.Name() }

func (b *Binding[T]) Key() datastore.Key[T] { return b.key }

// Get returns the current value, or the default when the key is absent or
// its stored value cannot be decoded.
func (b *Binding[T]) Get() T {
	if v, ok := b.Lookup(); ok {
		return v
	}
	return b.fallback()
}

// Lookup returns the current value and whether the key is present.
// An undecodable stored value counts as absent.
func (b *Binding[T]) Lookup() (T, bool) {
	if w := b.pendingWrite(); w != nil {
		return w.value, w.present
	}
	v, ok, err := b.key.Read(b.store.Snapshot())
	if err != nil {
		b.warn(err)
		var zero T
		return zero, false
	}
	return v, ok
}

// Load is Get with errors: a stored value that cannot be decoded is
// reported as a *datastore.DecodeError or datastore.ErrKindMismatch, with
// the default as the value.
func (b *Binding[T]) Load() (T, bool, error) {
	if w := b.pendingWrite(); w != nil {
		if !w.present {
			return b.fallback(), false, nil
		}
		return w.value, true, nil
	}
	v, ok, err := b.key.Read(b.store.Snapshot())
	if err != nil {
		return b.fallback(), ok, err
	}
	if !ok {
		return b.fallback(), false, nil
	}
	return v, true, nil
}

// Set stores v. Get and Observe reflect v at once; the write itself is
// queued on the store and never blocks. A failed write is reported by the
// store's Sync and the binding falls back to the committed value.
func (b *Binding[T]) Set(v T) {
	e, err := b.key.Entry(v)
	if err != nil {
		b.logger.Warn("preference: cannot encode value, ignoring write", "name", b.key.Name(), "error", err)
		return
	}
	// Hold the value as it will read back from the store, so sets come
	// back normalized before the write is acknowledged.
	if stored, err := b.key.Decode(e); err == nil {
		v = stored
	}
	name := b.key.Name()
	b.write(&localWrite[T]{value: v, present: true}, func(m *datastore.MutablePreferences) error {
		return m.SetEntry(name, e)
	})
}

// Delete removes the key, so Get returns the default again.
func (b *Binding[T]) Delete() {
	b.write(&localWrite[T]{}, b.key.Remove)
}

// Optional returns a view of b where absence is nil and Set(nil) deletes.
func (b *Binding[T]) Optional() MutableState[*T] {
	return optional[T]{b}
}

// Observe returns a stream of the binding's values, starting with the
// current one. The first call subscribes to the store.
func (b *Binding[T]) Observe() observer.Stream[T] {
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()
	if b.prop == nil {
		stream := b.store.Data()
		b.last = b.Get()
		b.prop = observer.NewProperty(b.last)
		go b.watch(stream)
	}
	return b.prop.Observe()
}

func (b *Binding[T]) write(w *localWrite[T], fn datastore.EditFunc) {
	b.mu.Lock()
	b.local = w
	b.pending++
	b.mu.Unlock()
	b.notify()

	b.store.Submit(fn, func(_ *datastore.Preferences, err error) {
		b.mu.Lock()
		b.pending--
		settled := b.pending == 0
		if settled {
			b.local = nil
		}
		b.mu.Unlock()
		if err != nil {
			b.logger.Warn("preference: write failed", "name", b.key.Name(), "error", err)
		}
		if settled {
			b.notify()
		}
	})
}

func (b *Binding[T]) pendingWrite() *localWrite[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.local
}

func (b *Binding[T]) fallback() T {
	if b.def != nil {
		return b.def()
	}
	var zero T
	return zero
}

// warn logs an unreadable value once per stored entry.
func (b *Binding[T]) warn(err error) {
	e, _ := b.store.Snapshot().Entry(b.key.Name())
	b.mu.Lock()
	seen := b.warned == e
	b.warned = e
	b.mu.Unlock()
	if !seen {
		b.logger.Warn("preference: unreadable stored value, using default", "name", b.key.Name(), "error", err)
	}
}

// notify publishes the current value if it differs from the last one.
func (b *Binding[T]) notify() {
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()
	if b.prop == nil {
		return
	}
	v := b.Get()
	if reflect.DeepEqual(v, b.last) {
		return
	}
	b.last = v
	b.prop.Update(v)
}

// watch forwards store snapshots that touch this key until ctx is done.
func (b *Binding[T]) watch(stream observer.Stream[*datastore.Preferences]) {
	name := b.key.Name()
	last, lastOK := stream.Value().Entry(name)
	for {
		select {
		case <-b.ctx.Done():
			return
		case <-stream.Changes():
		}
		e, ok := stream.Next().Entry(name)
		if e == last && ok == lastOK {
			continue
		}
		last, lastOK = e, ok
		b.notify()
	}
}

type optional[T any] struct {
	b *Binding[T]
}

func (o optional[T]) Get() *T {
	v, ok := o.b.Lookup()
	if !ok {
		return nil
	}
	return &v
}

func (o optional[T]) Set(v *T) {
	if v == nil {
		o.b.Delete()
		return
	}
	o.b.Set(*v)
}
