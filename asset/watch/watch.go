// Package watch wraps fsnotify into the narrow, non-blocking shape the
// resource manager's update loop wants: "is there a pending modify event
// to deal with right now", rather than a channel the caller must select
// on continuously.
//
// Adapted from the watcher shape in the pack's obsidian-cli cache
// service (fsnotify.Watcher behind a small interface, events drained by
// a background goroutine into a buffered, coalesced signal) and the
// ko preview watcher, both of which wrap fsnotify.Watcher rather than
// using it directly so tests can substitute a fake.
package watch

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ModifyEvent reports one or more filesystem paths that changed in a
// single burst.
type ModifyEvent struct {
	Paths []string
}

// Watcher buffers the most recent coalesced modify event so Manager.Update
// can poll it without blocking.
type Watcher struct {
	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending *ModifyEvent

	done chan struct{}
}

// New creates a watcher rooted at one or more directories.
func New(roots ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, root := range roots {
		if err := fsw.Add(root); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	w := &Watcher{fsw: fsw, done: make(chan struct{})}
	go w.run()
	return w, nil
}

// Add starts watching an additional directory, e.g. one discovered by a
// directory-create event.
func (w *Watcher) Add(dir string) error {
	return w.fsw.Add(dir)
}

func (w *Watcher) run() {
	for {
		select {
		case evt, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.mu.Lock()
			if w.pending == nil {
				w.pending = &ModifyEvent{}
			}
			w.pending.Paths = append(w.pending.Paths, filepath.Clean(evt.Name))
			w.mu.Unlock()
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Errors are surfaced as no-op: a missed event just means the
			// next manager.UpdateRegistry() rescan will catch up.
		case <-w.done:
			return
		}
	}
}

// TryGetEvent returns and clears the pending coalesced modify event, if
// any, without blocking.
func (w *Watcher) TryGetEvent() (ModifyEvent, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		return ModifyEvent{}, false
	}
	evt := *w.pending
	w.pending = nil
	return evt, true
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
