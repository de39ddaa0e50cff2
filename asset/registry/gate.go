package registry

import "sync"

// Gate is an awaitable boolean: load tasks suspend on it until the
// registry has been populated (from a file load or a directory scan),
// instead of polling an ad-hoc flag.
type Gate struct {
	mu    sync.Mutex
	ready bool
	ch    chan struct{}
}

// NewGate returns a Gate that starts not-ready.
func NewGate() *Gate {
	return &Gate{ch: make(chan struct{})}
}

// MarkReady opens the gate, releasing any current and future waiters
// until the next MarkNotReady.
func (g *Gate) MarkReady() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ready {
		return
	}
	g.ready = true
	close(g.ch)
}

// MarkNotReady closes the gate again, e.g. while a rescan is in flight.
func (g *Gate) MarkNotReady() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.ready {
		return
	}
	g.ready = false
	g.ch = make(chan struct{})
}

// Wait returns a channel that is closed once the gate is ready. It does
// not block itself.
func (g *Gate) Wait() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ch
}

// IsReady reports the current state without blocking.
func (g *Gate) IsReady() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready
}
