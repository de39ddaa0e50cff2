// Package manager ties together the loader registry, the path<->UUID
// registry, the task pool, and the event broadcaster into the single
// shared cache every part of a running program requests resources
// through.
//
// The state-machine shape (a lockable struct behind a facade type,
// requests that either find an existing entry or spawn a load task and
// return immediately) is adapted from the teacher's async.Loader, but
// generalized from a single tag-keyed cache into one that additionally
// tracks on-disk identity (registry), TTL-based eviction, and
// hot-reload, following fyrox-resource/src/manager.rs's
// ResourceManagerState::find_or_load/spawn_loading_task/update.
package manager

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"git.sr.ht/~gioverse/forge/asset"
	"git.sr.ht/~gioverse/forge/asset/event"
	"git.sr.ht/~gioverse/forge/asset/ioadapter"
	"git.sr.ht/~gioverse/forge/asset/loader"
	"git.sr.ht/~gioverse/forge/asset/registry"
	"git.sr.ht/~gioverse/forge/asset/task"
	"git.sr.ht/~gioverse/forge/asset/watch"
	"github.com/google/uuid"
)

// Options configures a Manager. Zero values are filled in with
// reasonable defaults by New (a HostFS rooted at Root, an empty loader
// registry, a 4-worker FixedPool, log.Default()).
type Options struct {
	// Root is the directory resource paths are relative to.
	Root string
	// RegistryPath is where the UUID<->path registry is persisted.
	// Defaults to registry.DefaultPath.
	RegistryPath string
	// DefaultLifetime is how long an Ok resource may sit with no external
	// holder before Update(dt) evicts it. Zero disables TTL eviction
	// (resources are only ever removed by DestroyUnusedResources or
	// Unregister).
	DefaultLifetime time.Duration
	Logger          *log.Logger
	TaskPool        task.Pool
	IO              ioadapter.IO
	Loaders         *loader.Registry
}

// trackedEntry is one resource the manager has ever seen. owned is the
// manager's own bookkeeping handle -- it is never itself Cloned, so
// asset.Handle.UseCount reports only external callers' clones, letting
// Update and DestroyUnusedResources tell "nobody holds this" (0) apart
// from "a caller still has it" (>0) without the manager's own
// bookkeeping copy skewing the count.
type trackedEntry struct {
	owned     asset.Handle
	unusedFor time.Duration
}

// Manager is the shared, type-erased resource cache. It is safe for
// concurrent use from any number of goroutines.
type Manager struct {
	logger  *log.Logger
	io      ioadapter.IO
	loaders *loader.Registry
	pool    task.Pool
	events  *event.Broadcaster
	root    string
	regPath string

	defaultLifetime time.Duration

	mu            sync.Mutex
	reg           *registry.Registry
	entries       []*trackedEntry
	watcher       *watch.Watcher
	pendingReload []string
	// builtins records every AddBuiltIn path->UUID mapping so it can be
	// reapplied after UpdateRegistry replaces reg wholesale -- a built-in
	// is not discovered by scanning disk, so a fresh registry has no idea
	// it exists until this map tells it again.
	builtins map[string]uuid.UUID
}

// New constructs a Manager. The registry starts empty and not-ready.
// Load tasks wait for the registry to become ready, so every Request
// stays Pending until UpdateRegistry has run.
func New(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	io := opts.IO
	if io == nil {
		io = ioadapter.NewHostFS(opts.Root)
	}
	loaders := opts.Loaders
	if loaders == nil {
		loaders = loader.NewRegistry()
	}
	pool := opts.TaskPool
	if pool == nil {
		pool = task.NewFixedPool(4)
	}
	regPath := opts.RegistryPath
	if regPath == "" {
		regPath = registry.DefaultPath
	}
	return &Manager{
		logger:          logger,
		io:              io,
		loaders:         loaders,
		pool:            pool,
		events:          event.NewBroadcaster(),
		root:            opts.Root,
		regPath:         regPath,
		defaultLifetime: opts.DefaultLifetime,
		reg:             registry.New(logger),
		builtins:        make(map[string]uuid.UUID),
	}
}

// Loaders returns the mutable loader registry so callers can register
// decoders at startup.
func (m *Manager) Loaders() *loader.Registry { return m.loaders }

// SetWatcher attaches a filesystem watcher whose events drive
// hot-reload inside Update. Pass nil to disable hot-reload.
func (m *Manager) SetWatcher(w *watch.Watcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watcher = w
}

// SetResourceIO swaps the I/O backend, e.g. to point at an embedded
// filesystem instead of the host disk.
func (m *Manager) SetResourceIO(io ioadapter.IO) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.io = io
}

// Request resolves path to a handle, reusing an in-flight or already
// loaded resource if one is tracked for it, otherwise spawning a load
// task and returning a Pending handle immediately. The returned handle
// is an owned Clone; call Release (or let it be garbage collected) when
// done with it.
func (m *Manager) Request(path string) asset.Handle {
	return m.findOrLoad(asset.ExplicitPath(path))
}

// RequestByUUID resolves a resource by its stable identity rather than
// its current path.
func (m *Manager) RequestByUUID(id uuid.UUID) asset.Handle {
	return m.findOrLoad(asset.ImplicitUUID(id))
}

func (m *Manager) findOrLoad(key asset.RequestKey) asset.Handle {
	m.mu.Lock()
	if e := m.findLocked(key); e != nil {
		h := e.owned.Clone()
		m.mu.Unlock()
		return h
	}
	owned := asset.NewPending(asset.KindExternal, key)
	m.entries = append(m.entries, &trackedEntry{owned: owned})
	caller := owned.Clone()
	m.mu.Unlock()

	m.spawnLoadingTask(owned, key, false)
	return caller
}

// findLocked returns the tracked entry matching key, if any. Must be
// called with m.mu held.
func (m *Manager) findLocked(key asset.RequestKey) *trackedEntry {
	if path, ok := key.Path(); ok {
		if id, ok := m.reg.PathToUUID(path); ok {
			for _, e := range m.entries {
				if uid, ok := e.owned.ResourceUUID(); ok && uid == id {
					return e
				}
			}
		}
		for _, e := range m.entries {
			if e.owned.State() != asset.StateOk && e.owned.Key().Equal(key) {
				return e
			}
		}
		return nil
	}
	id, _ := key.UUID()
	for _, e := range m.entries {
		if uid, ok := e.owned.ResourceUUID(); ok && uid == id {
			return e
		}
		if e.owned.State() != asset.StateOk && e.owned.Key().Equal(key) {
			return e
		}
	}
	return nil
}

// spawnLoadingTask resolves key to a path and UUID, decodes it with the
// registered loader, and commits the result into h. Mirrors
// manager.rs's spawn_loading_task: wait for the registry, resolve the
// key, load, commit.
func (m *Manager) spawnLoadingTask(h asset.Handle, key asset.RequestKey, reload bool) {
	m.pool.Spawn(func(ctx context.Context) {
		select {
		case <-m.reg.Ready().Wait():
		case <-ctx.Done():
			h.CommitError(key, asset.NewLoadError(key, ctx.Err()))
			return
		}

		var path string
		var id uuid.UUID
		if p, ok := key.Path(); ok {
			path = p
			id = m.reg.PathToUUIDOrRandom(path)
		} else {
			uid, _ := key.UUID()
			p, ok := m.reg.UUIDToPath(uid)
			if !ok {
				h.CommitError(key, asset.NewLoadError(key, fmt.Errorf("manager: no registered path for uuid %s", uid)))
				return
			}
			path, id = p, uid
		}

		l, ok := m.loaders.For(path)
		if !ok {
			h.CommitError(key, asset.NewLoadError(key, fmt.Errorf("manager: no resource loader registered for %s", path)))
			return
		}
		if !m.io.Exists(ctx, path) {
			h.CommitError(key, asset.NewLoadError(key, fmt.Errorf("manager: %s does not exist", path)))
			return
		}
		payload, err := l.Load(ctx, path, m.io)
		if err != nil {
			h.CommitError(key, asset.NewLoadError(key, err))
			return
		}
		h.CommitOk(payload.Data, id)
		m.events.BroadcastLoadedOrReloaded(h, reload)
	})
}

// Register associates an already-Ok, in-memory handle with path,
// turning it into an externally-backed resource future Requests can
// find. onRegister, if non-nil, is called with the handle's data and
// the destination path before the registration is finalized -- e.g. to
// write the data out -- and a false return aborts registration with
// ErrUnableToRegister.
func (m *Manager) Register(h asset.Handle, path string, onRegister func(asset.Data, string) bool) error {
	if !h.IsValid() || h.State() != asset.StateOk {
		return ErrInvalidState
	}
	id, _ := h.ResourceUUID()
	data, _ := h.Data()

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.reg.PathToUUID(path); ok && existing != id {
		return ErrAlreadyRegistered
	}
	if onRegister != nil && !onRegister(data, path) {
		return ErrUnableToRegister
	}
	m.reg.Register(id, path)
	h.MakeExternal()

	for _, e := range m.entries {
		if e.owned.Equal(h) {
			m.events.Broadcast(event.Event{Kind: event.KindAdded, Handle: h, Path: path})
			return nil
		}
	}
	m.entries = append(m.entries, &trackedEntry{owned: h})
	m.events.Broadcast(event.Event{Kind: event.KindAdded, Handle: h, Path: path})
	return nil
}

// MoveResource moves a resource's backing file (and its .meta/.options
// sidecars) to newPath and updates the registry to match.
func (m *Manager) MoveResource(ctx context.Context, h asset.Handle, newPath string) error {
	oldPath, ok := m.ResourcePath(h)
	if !ok {
		return fmt.Errorf("manager: cannot move a resource with no known path")
	}
	if err := m.io.Move(ctx, oldPath, newPath); err != nil {
		return err
	}
	for _, ext := range []string{registry.MetaExtension, registry.OptionsExtension} {
		src := registry.AppendExtension(oldPath, ext)
		if m.io.Exists(ctx, src) {
			_ = m.io.Move(ctx, src, registry.AppendExtension(newPath, ext))
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.reg.UnregisterPath(oldPath); ok {
		m.reg.Register(id, newPath)
	}
	return nil
}

// Unregister drops path's registry entry and the tracked cache entry
// for the resource it named, broadcasting Removed for it. A path with no
// registry entry is a no-op; a registered path whose resource is not
// currently tracked only loses its registry mapping.
func (m *Manager) Unregister(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.reg.UnregisterPath(path)
	delete(m.builtins, path)
	if !ok {
		return
	}
	kept := m.entries[:0]
	for _, e := range m.entries {
		if uid, ok := e.owned.ResourceUUID(); ok && uid == id {
			m.events.Broadcast(event.Event{Kind: event.KindRemoved, Handle: e.owned, Path: path})
			e.owned.Release()
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
}

// ReloadResource re-enters h into Pending and re-runs the load pipeline
// against its current key. It is a no-op on a handle this manager does
// not track and on an embedded resource such as a built-in.
func (m *Manager) ReloadResource(h asset.Handle) {
	m.mu.Lock()
	var key asset.RequestKey
	found := false
	for _, e := range m.entries {
		if e.owned.Equal(h) {
			if e.owned.Kind() == asset.KindEmbedded {
				break
			}
			found = true
			if path, ok := m.resourcePathLocked(e.owned); ok {
				key = asset.ExplicitPath(path)
			} else {
				key = e.owned.Key()
			}
			break
		}
	}
	m.mu.Unlock()
	if !found {
		return
	}
	h.Reset(key)
	m.spawnLoadingTask(h, key, true)
}

// ReloadResources reloads every tracked resource and waits for all of
// them to settle. If any resource ends in LoadError (or ctx ends first),
// it returns the error of the first such resource to finish settling.
func (m *Manager) ReloadResources(ctx context.Context) error {
	m.mu.Lock()
	handles := make([]asset.Handle, len(m.entries))
	for i, e := range m.entries {
		handles[i] = e.owned
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	errs := make(chan error, len(handles))
	for _, h := range handles {
		h := h
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.ReloadResource(h)
			if err := h.Await(ctx); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	var first error
	for err := range errs {
		if first == nil {
			first = err
		}
	}
	return first
}

// Update advances TTL-based eviction and, if a watcher is attached,
// processes at most one hot-reload per call even if multiple files
// changed since the last call -- further changes remain queued for
// subsequent calls rather than being dropped.
func (m *Manager) Update(dt time.Duration) {
	m.mu.Lock()
	m.sweepLocked(dt)
	h, key, ok := m.pickReloadLocked()
	m.mu.Unlock()
	if ok {
		h.Reset(key)
		m.spawnLoadingTask(h, key, true)
	}
}

func (m *Manager) sweepLocked(dt time.Duration) {
	if m.defaultLifetime <= 0 {
		return
	}
	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.owned.State() == asset.StateOk && e.owned.UseCount() == 0 {
			e.unusedFor += dt
			if e.unusedFor >= m.defaultLifetime {
				path, _ := m.resourcePathLocked(e.owned)
				m.events.Broadcast(event.Event{Kind: event.KindRemoved, Handle: e.owned, Path: path})
				e.owned.Release()
				continue
			}
		} else {
			e.unusedFor = 0
		}
		kept = append(kept, e)
	}
	m.entries = kept
}

// pickReloadLocked pulls at most one pending watcher-reported path off
// the queue (refilling the queue from the watcher first if it is
// empty), resolves it to a tracked entry, and reports whether a reload
// should be performed. The caller performs the actual Reset/spawn after
// releasing m.mu, since both touch the handle's own lock and the task
// pool, neither of which should happen while m.mu is held.
func (m *Manager) pickReloadLocked() (h asset.Handle, key asset.RequestKey, ok bool) {
	if len(m.pendingReload) == 0 && m.watcher != nil {
		if evt, got := m.watcher.TryGetEvent(); got {
			m.pendingReload = append(m.pendingReload, evt.Paths...)
		}
	}
	if len(m.pendingReload) == 0 {
		return asset.Handle{}, asset.RequestKey{}, false
	}
	abs := m.pendingReload[0]
	m.pendingReload = m.pendingReload[1:]

	rel := abs
	if m.root != "" {
		r, err := filepath.Rel(m.root, abs)
		if err != nil {
			m.logger.Printf("manager: unable to relativize watch path %s against root %s: %v", abs, m.root, err)
			return asset.Handle{}, asset.RequestKey{}, false
		}
		rel = filepath.ToSlash(r)
	}
	for _, e := range m.entries {
		if p, pathOK := m.resourcePathLocked(e.owned); pathOK && p == rel {
			return e.owned, asset.ExplicitPath(rel), true
		}
	}
	return asset.Handle{}, asset.RequestKey{}, false
}

// UpdateRegistry (re)populates the registry, first by trying to load
// RegistryPath, then falling back to a full directory scan, and marks
// it ready either way so blocked load tasks can proceed. The refreshed
// registry is persisted back to RegistryPath on a successful scan.
func (m *Manager) UpdateRegistry(ctx context.Context) error {
	if r, err := registry.LoadFromFile(ctx, m.regPath, m.io, m.logger); err == nil {
		m.mu.Lock()
		old := m.reg
		m.reg = r
		m.reapplyBuiltinsLocked()
		m.reg.Ready().MarkReady()
		// Tasks already blocked on the replaced registry's gate wake up
		// and read the new m.reg.
		old.Ready().MarkReady()
		m.mu.Unlock()
		return nil
	} else {
		m.logger.Printf("manager: unable to load registry from %s (%v); scanning %s", m.regPath, err, m.root)
	}

	// "." scans everything under the IO backend's own root; m.root (an
	// absolute path) is only meaningful for relativizing the watcher's
	// absolute paths, not as an argument to the IO backend, which is
	// already rooted there.
	r, err := registry.Scan(ctx, m.io, m.loaders, ".", m.logger)
	if err != nil {
		return err
	}
	m.mu.Lock()
	old := m.reg
	m.reg = r
	m.reapplyBuiltinsLocked()
	m.reg.Ready().MarkReady()
	old.Ready().MarkReady()
	m.mu.Unlock()
	if err := r.Save(ctx, m.regPath, m.io); err != nil {
		m.logger.Printf("manager: unable to persist scanned registry to %s: %v", m.regPath, err)
	}
	return nil
}

// reapplyBuiltinsLocked restores every AddBuiltIn path->UUID mapping
// into the current registry. A scan or a loaded registry file has no
// way to discover a built-in (it has no file on disk), so whichever
// replaces m.reg must have built-in identity handed back to it
// explicitly, or Request(builtinPath) stops resolving by path and
// spawns a spurious (failing) load instead of reusing the pinned entry.
func (m *Manager) reapplyBuiltinsLocked() {
	for path, id := range m.builtins {
		m.reg.Register(id, path)
	}
}

// Find resolves a resource already tracked under uuid, without
// triggering a load.
func (m *Manager) Find(id uuid.UUID) (asset.Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if uid, ok := e.owned.ResourceUUID(); ok && uid == id {
			return e.owned, true
		}
	}
	return asset.Handle{}, false
}

// FindByPath resolves a resource already tracked under path, without
// triggering a load.
func (m *Manager) FindByPath(path string) (asset.Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e := m.findLocked(asset.ExplicitPath(path)); e != nil {
		return e.owned, true
	}
	return asset.Handle{}, false
}

// ResourcePath returns h's current registry path, if known. Meaningful
// for Ok handles (resolved via the registry) and for Pending/LoadError
// handles still holding an explicit-path key.
func (m *Manager) ResourcePath(h asset.Handle) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resourcePathLocked(h)
}

func (m *Manager) resourcePathLocked(h asset.Handle) (string, bool) {
	if id, ok := h.ResourceUUID(); ok {
		return m.reg.UUIDToPath(id)
	}
	return h.Key().Path()
}

// LoadingProgress returns the percentage (0-100) of tracked resources
// that have left the Pending state. Returns 100 when nothing is
// tracked.
func (m *Manager) LoadingProgress() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return 100
	}
	settled := 0
	for _, e := range m.entries {
		if !e.owned.IsLoading() {
			settled++
		}
	}
	return settled * 100 / len(m.entries)
}

// CountRegisteredResources reports how many UUID<->path mappings the
// registry currently holds.
func (m *Manager) CountRegisteredResources() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reg.Len()
}

// Subscribe registers a listener for resource lifecycle events.
func (m *Manager) Subscribe(buffer int) (int, <-chan event.Event) {
	return m.events.Subscribe(buffer)
}

// Unsubscribe removes a listener registered via Subscribe.
func (m *Manager) Unsubscribe(id int) {
	m.events.Unsubscribe(id)
}

// DestroyUnusedResources immediately evicts every Ok resource with no
// external holder, regardless of DefaultLifetime. Intended for explicit
// "free everything now" moments like a level transition, distinct from
// the gradual TTL sweep Update performs.
func (m *Manager) DestroyUnusedResources() {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.owned.State() == asset.StateOk && e.owned.UseCount() == 0 {
			path, _ := m.resourcePathLocked(e.owned)
			m.events.Broadcast(event.Event{Kind: event.KindRemoved, Handle: e.owned, Path: path})
			e.owned.Release()
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
}

// GetWaitContext snapshots every currently tracked handle so a caller
// can block on "everything requested so far" settling.
func (m *Manager) GetWaitContext() WaitContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	handles := make([]asset.Handle, len(m.entries))
	for i, e := range m.entries {
		handles[i] = e.owned
	}
	return WaitContext{handles: handles}
}

// AddBuiltIn registers an embedded resource that never goes through the
// I/O backend or hot-reload, e.g. a fallback texture baked into the
// binary.
func (m *Manager) AddBuiltIn(ctx context.Context, b BuiltIn) error {
	h, err := m.resolveBuiltIn(ctx, b)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id, _ := h.ResourceUUID()
	m.reg.Register(id, b.Path)
	m.builtins[b.Path] = id
	// Built-ins are pinned by a manager-held clone, unlike ordinary
	// tracked entries: a baked-in fallback resource should survive TTL
	// eviction and DestroyUnusedResources even when nothing else
	// currently holds it.
	m.entries = append(m.entries, &trackedEntry{owned: h.Clone()})
	m.events.Broadcast(event.Event{Kind: event.KindAdded, Handle: h, Path: b.Path})
	return nil
}

// Request resolves path through m and returns a Typed handle. It panics
// if the loader registered for path's extension declares a data type
// other than T's; with no loader registered it does not panic, and the
// handle settles in LoadError. DataRef checks the loaded data's type
// again. Go generics cannot be declared as methods with their own type
// parameter on a non-generic receiver, so this and TryRequest are free
// functions in this package rather than Manager methods.
func Request[T asset.TypedDataProvider](m *Manager, path string) asset.Typed[T] {
	var zero T
	if l, ok := m.loaders.For(path); ok && l.DataTypeUUID() != zero.StaticTypeUUID() {
		panic((&asset.ErrTypeMismatch{Path: path}).Error())
	}
	return asset.Typed[T]{Untyped: m.Request(path)}
}

// TryRequest is like Request but, instead of panicking, returns
// ErrTypeMismatch when the loader registered for path's extension does
// not produce T, or when no loader is registered for it.
func TryRequest[T asset.TypedDataProvider](m *Manager, path string) (asset.Typed[T], error) {
	var zero T
	if !m.loaders.ExtensionMatchesType(path, zero.StaticTypeUUID()) {
		return asset.Typed[T]{}, &asset.ErrTypeMismatch{Path: path}
	}
	return asset.Typed[T]{Untyped: m.Request(path)}, nil
}
