package preference

import (
	"context"
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/kalambet/prefstate/pkg/datastore"
)

// Codec converts structured values to and from the string stored under a
// preference key.
type Codec[T any] interface {
	Encode(v T) (string, error)
	Decode(s string) (T, error)
}

// JSONCodec stores values as JSON.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(v T) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (JSONCodec[T]) Decode(s string) (T, error) {
	var v T
	err := json.Unmarshal([]byte(s), &v)
	return v, err
}

// YAMLCodec stores values as YAML documents.
type YAMLCodec[T any] struct{}

func (YAMLCodec[T]) Encode(v T) (string, error) {
	b, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (YAMLCodec[T]) Decode(s string) (T, error) {
	var v T
	err := yaml.Unmarshal([]byte(s), &v)
	return v, err
}

// CodecKey returns a string-kind key that stores values through codec.
func CodecKey[T any](name string, codec Codec[T]) datastore.Key[T] {
	return datastore.EncodedKey(name, codec.Encode, codec.Decode)
}

// Encoded binds a structured value stored through codec.
func Encoded[T any](ctx context.Context, s *datastore.Store, name string, codec Codec[T], opts ...Option[T]) *Binding[T] {
	return Bind(ctx, s, CodecKey(name, codec), opts...)
}

// JSON binds a structured value stored as JSON.
func JSON[T any](ctx context.Context, s *datastore.Store, name string, opts ...Option[T]) *Binding[T] {
	return Encoded[T](ctx, s, name, JSONCodec[T]{}, opts...)
}

// YAML binds a structured value stored as YAML.
func YAML[T any](ctx context.Context, s *datastore.Store, name string, opts ...Option[T]) *Binding[T] {
	return Encoded[T](ctx, s, name, YAMLCodec[T]{}, opts...)
}
