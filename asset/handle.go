// Package asset holds the core, engine-agnostic state machine shared by
// every resource the manager tracks: a tagged variant (Pending / Ok /
// LoadError) behind a lockable record, plus a cheaply cloned Handle that
// identifies "the same asset" by pointer identity of that record.
//
// The concurrency shape is adapted from gioverse/chat's async package
// (git.sr.ht/~gioverse/chat async/loader.go): a small mutex-guarded record
// that readers and a single committing goroutine synchronize on, plus an
// explicit "wake up awaiters" step on every state transition. Where the
// teacher used a State/Value pair polled once per UI frame, this package
// exposes a context-aware Await so load tasks and callers can block
// without polling.
package asset

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// record is the shared, lockable state behind every Handle. It is never
// copied; all sharing happens through pointers wrapped by Handle.
type record struct {
	mu sync.Mutex

	kind  Kind
	state State
	key   RequestKey // meaningful in Pending and LoadError
	data  Data       // meaningful in Ok
	id    uuid.UUID  // meaningful in Ok
	err   error      // meaningful in LoadError

	waitCh chan struct{} // closed when state next leaves Pending

	refCount int32 // atomic; see Handle.Clone/Release
}

func newRecord(kind Kind, key RequestKey) *record {
	return &record{
		kind:   kind,
		state:  StatePending,
		key:    key,
		waitCh: make(chan struct{}),
	}
}

// token is the unit of external ownership a Clone hands out. Its
// finalizer is how the manager observes a caller letting go of a handle
// without ever calling Release explicitly.
type token struct {
	// released is set atomically by the first Release. It also gives the
	// token a non-zero size: the runtime ignores finalizers on zero-sized
	// objects, which all share one address.
	released int32
}

// Handle is a shared, type-erased, cheaply-passed reference to a
// resource's state record. Two Handles refer to "the same asset" iff
// they wrap the same record pointer, regardless of the Handle's own
// ownership token -- use Equal to test this, not ==.
type Handle struct {
	rec *record
	tok *token
}

// NewPending creates a new handle in the Pending state, keyed by key.
// The returned handle carries no external ownership token; call Clone to
// mint owned copies (the pattern the manager uses: it keeps the un-cloned
// handle for its own bookkeeping and returns a Clone to the caller).
func NewPending(kind Kind, key RequestKey) Handle {
	return Handle{rec: newRecord(kind, key)}
}

// NewOk creates a handle already in the Ok state, e.g. for built-ins or
// directly-registered in-memory resources.
func NewOk(kind Kind, id uuid.UUID, data Data) Handle {
	r := newRecord(kind, RequestKey{})
	r.state = StateOk
	r.id = id
	r.data = data
	close(r.waitCh)
	return Handle{rec: r}
}

// NewLoadErrorHandle creates a handle already in the LoadError state.
func NewLoadErrorHandle(kind Kind, key RequestKey, err error) Handle {
	r := newRecord(kind, key)
	r.state = StateLoadError
	r.key = key
	r.err = err
	close(r.waitCh)
	return Handle{rec: r}
}

// Equal reports whether h and o refer to the same underlying resource
// record (pointer identity), independent of which Handle value (and
// which ownership token) is being compared.
func (h Handle) Equal(o Handle) bool { return h.rec == o.rec }

// IsValid reports whether h wraps a record at all (the zero Handle does
// not).
func (h Handle) IsValid() bool { return h.rec != nil }

// Clone mints a new, independently-tracked external holder of this
// handle. The manager keeps its own bookkeeping copy without ever
// cloning it, so UseCount reflects only callers' clones -- zero means no
// caller currently holds this resource. Holding a Handle via a plain Go
// assignment (h2 := h1) does not mint a new holder -- it shares h1's
// ownership token, exactly as re-borrowing would. Call Clone when a new,
// logically distinct owner should be tracked.
func (h Handle) Clone() Handle {
	rec := h.rec
	t := new(token)
	atomic.AddInt32(&rec.refCount, 1)
	runtime.SetFinalizer(t, func(*token) {
		atomic.AddInt32(&rec.refCount, -1)
	})
	return Handle{rec: rec, tok: t}
}

// Release deterministically drops this handle's ownership token instead
// of waiting for the garbage collector to notice it is unreachable. It
// is a no-op on a Handle that was never Cloned. Calling Release more
// than once on clones sharing the same token is safe but only the first
// call has an effect.
func (h Handle) Release() {
	if h.tok == nil || !atomic.CompareAndSwapInt32(&h.tok.released, 0, 1) {
		return
	}
	runtime.SetFinalizer(h.tok, nil)
	atomic.AddInt32(&h.rec.refCount, -1)
}

// UseCount returns the number of live external clones of this handle.
// Zero means nothing outside the manager is currently holding it, the
// condition Manager.Update's eviction sweep and DestroyUnusedResources
// look for.
func (h Handle) UseCount() int {
	return int(atomic.LoadInt32(&h.rec.refCount))
}

// Kind reports whether this is an external (I/O-backed) or embedded
// resource.
func (h Handle) Kind() Kind {
	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	return h.rec.kind
}

// MakeExternal marks an embedded resource as external. Used by
// Register, which turns an in-memory Ok resource into one with a
// registry-tracked path.
func (h Handle) MakeExternal() {
	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	h.rec.kind = KindExternal
}

// State reports the current coarse state.
func (h Handle) State() State {
	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	return h.rec.state
}

// IsLoading reports whether the resource is still Pending.
func (h Handle) IsLoading() bool {
	return h.State() == StatePending
}

// Key returns the request key this handle is (or was, before its last
// successful load) addressed by. Meaningful in Pending and LoadError;
// for Ok it returns the zero key (use ResourceUUID instead).
func (h Handle) Key() RequestKey {
	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	return h.rec.key
}

// ResourceUUID returns the resource's UUID, which is only known once the
// state is Ok.
func (h Handle) ResourceUUID() (uuid.UUID, bool) {
	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	if h.rec.state != StateOk {
		return uuid.Nil, false
	}
	return h.rec.id, true
}

// Data returns the loaded payload, if the state is Ok.
func (h Handle) Data() (Data, bool) {
	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	if h.rec.state != StateOk {
		return nil, false
	}
	return h.rec.data, true
}

// Err returns the load failure, if the state is LoadError.
func (h Handle) Err() error {
	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	if h.rec.state != StateLoadError {
		return nil
	}
	return h.rec.err
}

// CommitOk transitions Pending -> Ok. It panics if the current state is
// not Pending: committing twice, or committing over an Ok/LoadError
// state, is a logic fault in the caller (a reload must first call Reset
// to re-enter Pending).
func (h Handle) CommitOk(data Data, id uuid.UUID) {
	h.rec.mu.Lock()
	if h.rec.state != StatePending {
		h.rec.mu.Unlock()
		panic(fmt.Sprintf("asset: CommitOk called on a %s handle", h.rec.state))
	}
	h.rec.state = StateOk
	h.rec.data = data
	h.rec.id = id
	h.rec.key = RequestKey{}
	waitCh := h.rec.waitCh
	h.rec.mu.Unlock()
	close(waitCh)
}

// CommitError transitions Pending -> LoadError. Same one-way-per-load
// contract as CommitOk.
func (h Handle) CommitError(key RequestKey, err error) {
	h.rec.mu.Lock()
	if h.rec.state != StatePending {
		h.rec.mu.Unlock()
		panic(fmt.Sprintf("asset: CommitError called on a %s handle", h.rec.state))
	}
	h.rec.state = StateLoadError
	h.rec.key = key
	h.rec.err = err
	waitCh := h.rec.waitCh
	h.rec.mu.Unlock()
	close(waitCh)
}

// Reset re-enters Pending from any state, establishing a fresh wait
// gate for the next commit. This is the only way Pending is reachable
// other than initial creation, and it is what makes reload possible:
// Ok/LoadError -> Pending -> Ok/LoadError.
func (h Handle) Reset(key RequestKey) {
	h.rec.mu.Lock()
	h.rec.state = StatePending
	h.rec.key = key
	h.rec.data = nil
	h.rec.err = nil
	h.rec.waitCh = make(chan struct{})
	h.rec.mu.Unlock()
}

// Await blocks until the state leaves Pending (or ctx is done) and
// returns the load error, if any. It is safe to call from multiple
// goroutines and across a reload: a caller awaiting across a Reset
// observes the reloaded value, because Await always re-reads the
// current wait channel under the lock before blocking on it.
func (h Handle) Await(ctx context.Context) error {
	for {
		h.rec.mu.Lock()
		state := h.rec.state
		waitCh := h.rec.waitCh
		h.rec.mu.Unlock()
		if state != StatePending {
			return h.Err()
		}
		select {
		case <-waitCh:
			// Loop again: if a concurrent Reset fired between our read of
			// waitCh and it closing, we want to observe the newest state
			// rather than racing a stale close.
			continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
