package preference

import (
	"context"

	"github.com/kalambet/prefstate/pkg/datastore"
)

func Int(ctx context.Context, s *datastore.Store, name string, opts ...Option[int]) *Binding[int] {
	return Bind(ctx, s, datastore.IntKey(name), opts...)
}

func Int64(ctx context.Context, s *datastore.Store, name string, opts ...Option[int64]) *Binding[int64] {
	return Bind(ctx, s, datastore.Int64Key(name), opts...)
}

func Float32(ctx context.Context, s *datastore.Store, name string, opts ...Option[float32]) *Binding[float32] {
	return Bind(ctx, s, datastore.Float32Key(name), opts...)
}

func Float64(ctx context.Context, s *datastore.Store, name string, opts ...Option[float64]) *Binding[float64] {
	return Bind(ctx, s, datastore.Float64Key(name), opts...)
}

func String(ctx context.Context, s *datastore.Store, name string, opts ...Option[string]) *Binding[string] {
	return Bind(ctx, s, datastore.StringKey(name), opts...)
}

func Bool(ctx context.Context, s *datastore.Store, name string, opts ...Option[bool]) *Binding[bool] {
	return Bind(ctx, s, datastore.BoolKey(name), opts...)
}

// StringSet binds a set of strings. Values read back sorted and
// de-duplicated.
func StringSet(ctx context.Context, s *datastore.Store, name string, opts ...Option[[]string]) *Binding[[]string] {
	return Bind(ctx, s, datastore.StringSetKey(name), opts...)
}
