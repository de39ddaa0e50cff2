package asset

import (
	"context"

	"github.com/google/uuid"
)

// TypedDataProvider is implemented by concrete resource data types so
// Typed[T] can validate a loaded Handle without runtime reflection.
type TypedDataProvider interface {
	Data
	// StaticTypeUUID is the type UUID this Go type always reports. It must
	// equal TypeUUID() for any live instance.
	StaticTypeUUID() uuid.UUID
}

// Typed wraps an untyped Handle with a compile-time type parameter. The
// wrapped type's data is only valid to access once the handle settles in
// Ok and its UUID matches T's declared type UUID.
type Typed[T TypedDataProvider] struct {
	Untyped Handle
}

// Equal reports whether two typed handles refer to the same resource.
func (t Typed[T]) Equal(o Typed[T]) bool { return t.Untyped.Equal(o.Untyped) }

// State proxies to the underlying handle.
func (t Typed[T]) State() State { return t.Untyped.State() }

// Await proxies to the underlying handle.
func (t Typed[T]) Await(ctx context.Context) error { return t.Untyped.Await(ctx) }

// DataRef returns the strongly-typed data, failing if the handle is not
// Ok or the data's type UUID does not match T's.
func (t Typed[T]) DataRef() (T, bool) {
	var zero T
	d, ok := t.Untyped.Data()
	if !ok {
		return zero, false
	}
	typed, ok := d.(T)
	if !ok {
		return zero, false
	}
	if typed.TypeUUID() != zero.StaticTypeUUID() {
		return zero, false
	}
	return typed, true
}
