// Package registry persists the UUID<->relative-path mapping that
// decouples a resource's stable identity from its mutable location on
// disk, and rebuilds that mapping by scanning an asset root and
// consulting per-file metadata sidecars.
package registry

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"git.sr.ht/~gioverse/forge/asset/ioadapter"
	"git.sr.ht/~gioverse/forge/asset/loader"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the conventional registry file location.
const DefaultPath = "./resources.registry"

// Registry is the in-memory UUID<->path map plus a readiness Gate that
// load tasks await before resolving a request key.
type Registry struct {
	mu    sync.RWMutex
	paths map[uuid.UUID]string

	ready *Gate
	// Logger receives warnings for recoverable anomalies (missing
	// sidecar, UUID collision). Defaults to log.Default() if nil at
	// construction.
	Logger *log.Logger
}

// New returns an empty, not-yet-ready registry.
func New(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		paths:  make(map[uuid.UUID]string),
		ready:  NewGate(),
		Logger: logger,
	}
}

// Ready returns the gate load tasks should await.
func (r *Registry) Ready() *Gate { return r.ready }

// entryFile is the on-disk shape: a sorted list so the serialization is
// stable across save/load round trips regardless of Go map iteration
// order.
type entryFile struct {
	UUID uuid.UUID `yaml:"uuid"`
	Path string    `yaml:"path"`
}

// snapshot returns a sorted copy of the current mapping for
// serialization.
func (r *Registry) snapshot() []entryFile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entryFile, 0, len(r.paths))
	for id, p := range r.paths {
		out = append(out, entryFile{UUID: id, Path: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UUID.String() < out[j].UUID.String() })
	return out
}

// setAll replaces the entire mapping.
func (r *Registry) setAll(entries []entryFile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = make(map[uuid.UUID]string, len(entries))
	for _, e := range entries {
		r.paths[e.UUID] = e.Path
	}
}

// UUIDToPath resolves a UUID to its current relative path.
func (r *Registry) UUIDToPath(id uuid.UUID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.paths[id]
	return p, ok
}

// PathToUUID resolves a relative path to its UUID.
func (r *Registry) PathToUUID(path string) (uuid.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, p := range r.paths {
		if p == path {
			return id, true
		}
	}
	return uuid.Nil, false
}

// PathToUUIDOrRandom resolves path, or logs a warning and mints a fresh
// UUID if the registry has no entry for it yet (e.g. queried before a
// scan completed).
func (r *Registry) PathToUUIDOrRandom(path string) uuid.UUID {
	if id, ok := r.PathToUUID(path); ok {
		return id
	}
	r.Logger.Printf("registry: no UUID for %s, using a random one; run Scan to fix this", path)
	return uuid.New()
}

// Register records uuid -> path, returning the previous path it
// replaced, if any.
func (r *Registry) Register(id uuid.UUID, path string) (previous string, replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous, replaced = r.paths[id]
	r.paths[id] = path
	return previous, replaced
}

// UnregisterPath removes whatever UUID currently maps to path.
func (r *Registry) UnregisterPath(path string) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.paths {
		if p == path {
			delete(r.paths, id)
			return id, true
		}
	}
	return uuid.Nil, false
}

// Len reports the number of mapped resources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.paths)
}

// LoadFromFile deserializes a registry from path, e.g. DefaultPath.
func LoadFromFile(ctx context.Context, path string, io ioadapter.IO, logger *log.Logger) (*Registry, error) {
	raw, err := io.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	var entries []entryFile
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, ioadapter.NewFileError("decode", path, err)
	}
	r := New(logger)
	r.setAll(entries)
	return r, nil
}

// Save serializes the registry to path as a pretty, UUID-ordered list.
func (r *Registry) Save(ctx context.Context, path string, io ioadapter.IO) error {
	entries := r.snapshot()
	raw, err := yaml.Marshal(entries)
	if err != nil {
		return ioadapter.NewFileError("encode", path, err)
	}
	return io.Write(ctx, path, raw)
}

// Scan walks root, and for every file with a supported extension reads
// its metadata sidecar -- synthesizing and writing one if absent or
// unreadable -- and records uuid -> path. It never deletes an existing
// sidecar, and logs (rather than fails on) a single bad file: one
// corrupt sidecar must not abort indexing the rest of the asset root.
func Scan(ctx context.Context, io ioadapter.IO, loaders *loader.Registry, root string, logger *log.Logger) (*Registry, error) {
	if logger == nil {
		logger = log.Default()
	}
	paths, err := io.WalkDirectory(ctx, root)
	if err != nil {
		return nil, err
	}

	r := New(logger)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	// Bound sidecar I/O concurrency; the walk itself is effectively
	// unbounded but metadata reads/writes benefit from not overwhelming
	// the backend.
	const scanConcurrency = 8
	sem := make(chan struct{}, scanConcurrency)

	for path := range paths {
		path := path
		if !loaders.IsSupported(path) {
			continue
		}
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			metaPath := AppendExtension(path, MetaExtension)
			meta, err := LoadMetadata(gctx, metaPath, io)
			if err != nil {
				logger.Printf("registry: unable to load metadata for %s (%v); regenerating, do not delete this file once written", path, err)
				meta = NewMetadataWithRandomID()
				if err := meta.Save(gctx, metaPath, io); err != nil {
					logger.Printf("registry: unable to save metadata for %s: %v", path, err)
				}
			}

			mu.Lock()
			if existing, ok := r.paths[meta.ResourceID]; ok && existing != path {
				logger.Printf("registry: UUID collision for %s (already mapped to %s); last write wins", path, existing)
			}
			r.paths[meta.ResourceID] = path
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("registry: scan of %s failed: %w", root, err)
	}

	return r, nil
}
