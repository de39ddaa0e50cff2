// Package event is the single-producer/multi-consumer broadcast of
// resource lifecycle events: Added, Loaded, Reloaded, Removed.
//
// The non-blocking "try to send, drop if nobody's listening fast enough"
// discipline follows the teacher's async.Loader.update(), which posts to
// a buffered, size-1 channel with a select/default rather than ever
// blocking the load path on a slow UI consumer.
package event

import (
	"sync"

	"git.sr.ht/~gioverse/forge/asset"
)

// Kind identifies what happened to a resource.
type Kind int

const (
	KindAdded Kind = iota
	KindLoaded
	KindReloaded
	KindRemoved
)

func (k Kind) String() string {
	switch k {
	case KindAdded:
		return "added"
	case KindLoaded:
		return "loaded"
	case KindReloaded:
		return "reloaded"
	case KindRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event describes a single resource lifecycle transition. Path is
// populated for Added and Removed (for Removed, the handle may already be
// gone from the registry by the time subscribers observe the event);
// Loaded and Reloaded leave it empty.
type Event struct {
	Kind   Kind
	Handle asset.Handle
	Path   string
}

// Broadcaster fans a sequence of Events out to any number of
// subscribers, in publication order, without ever blocking the
// publisher on a slow subscriber.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Event)}
}

// Subscribe registers a new listener with a bounded mailbox of the
// given size (at least 1). Unsubscribe with the returned id when done.
func (b *Broadcaster) Subscribe(buffer int) (id int, events <-chan Event) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	id = b.nextID
	b.nextID++
	b.subs[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber's channel.
func (b *Broadcaster) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Broadcast publishes e to every current subscriber. A subscriber whose
// mailbox is full has the event dropped for it rather than stalling the
// load path that is publishing.
func (b *Broadcaster) Broadcast(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// BroadcastLoadedOrReloaded is a convenience matching the manager's load
// task, which needs to pick Loaded vs Reloaded depending on whether this
// task was spawned by a fresh request or by a reload.
func (b *Broadcaster) BroadcastLoadedOrReloaded(h asset.Handle, reload bool) {
	kind := KindLoaded
	if reload {
		kind = KindReloaded
	}
	b.Broadcast(Event{Kind: kind, Handle: h})
}
