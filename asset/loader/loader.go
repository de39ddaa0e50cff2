// Package loader maps file extensions to the pluggable decoders that
// turn bytes into asset.Data.
package loader

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"git.sr.ht/~gioverse/forge/asset"
	"git.sr.ht/~gioverse/forge/asset/ioadapter"
	"github.com/google/uuid"
)

// Payload is what a successful Load returns.
type Payload struct {
	Data asset.Data
}

// Loader decodes bytes for one or more file extensions into a typed
// data object.
type Loader interface {
	// Extensions lists the (lowercased, without leading dot) extensions
	// this loader handles.
	Extensions() []string
	// DataTypeUUID is the type UUID of data this loader produces.
	DataTypeUUID() uuid.UUID
	// Load decodes path via io. It must not block on anything holding the
	// resource manager's lock, and must report failures through the
	// returned error rather than panicking.
	Load(ctx context.Context, path string, io ioadapter.IO) (Payload, error)
}

// Registry maps extension -> Loader. The set is mutable at runtime but
// access is serialized behind a mutex; registration is expected at
// startup, lookups happen continuously from load tasks.
type Registry struct {
	mu    sync.RWMutex
	byExt map[string]Loader
}

// NewRegistry returns an empty loader registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]Loader)}
}

// Set registers l for every extension it declares, overwriting any
// previous loader for the same extension.
func (r *Registry) Set(l Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range l.Extensions() {
		r.byExt[strings.ToLower(ext)] = l
	}
}

// IsEmpty reports whether no loaders are registered.
func (r *Registry) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byExt) == 0
}

func ext(path string) string {
	e := filepath.Ext(path)
	return strings.ToLower(strings.TrimPrefix(e, "."))
}

// For returns the loader registered for path's extension, if any.
func (r *Registry) For(path string) (Loader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.byExt[ext(path)]
	return l, ok
}

// IsSupported reports whether any registered loader claims path's
// extension (case-insensitive).
func (r *Registry) IsSupported(path string) bool {
	_, ok := r.For(path)
	return ok
}

// ExtensionMatchesType reports whether the loader registered for path's
// extension produces data of the given type UUID. Used to validate
// typed requests without loading anything.
func (r *Registry) ExtensionMatchesType(path string, typeUUID uuid.UUID) bool {
	l, ok := r.For(path)
	if !ok {
		return false
	}
	return l.DataTypeUUID() == typeUUID
}
