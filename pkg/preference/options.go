package preference

import (
	"log/slog"
	"sync"
)

// Option configures a Binding.
type Option[T any] func(*options[T])

type options[T any] struct {
	def    func() T
	logger *slog.Logger
}

// WithDefault makes Get return v while the key is absent.
func WithDefault[T any](v T) Option[T] {
	return func(o *options[T]) {
		o.def = func() T { return v }
	}
}

// WithDefaultFunc makes Get return fn() while the key is absent. fn is called
// at most once per binding, on the first read that needs it.
func WithDefaultFunc[T any](fn func() T) Option[T] {
	return func(o *options[T]) {
		if fn != nil {
			o.def = sync.OnceValue(fn)
		}
	}
}

// WithLogger sets the logger used to report unreadable stored values.
func WithLogger[T any](l *slog.Logger) Option[T] {
	return func(o *options[T]) {
		if l != nil {
			o.logger = l
		}
	}
}
