package manager

import (
	"context"

	"git.sr.ht/~gioverse/forge/asset"
)

// WaitContext is a snapshot of handles requested up to the moment it was
// taken, so loading-screen code can block on "everything asked for so
// far" without caring about requests made after the snapshot.
//
// Grounded on fyrox-resource/src/manager.rs's ResourceWaitContext /
// GetWaitContext.
type WaitContext struct {
	handles []asset.Handle
}

// IsAllLoaded reports whether every snapshotted handle has left the
// Pending state, without blocking.
func (w WaitContext) IsAllLoaded() bool {
	for _, h := range w.handles {
		if h.IsLoading() {
			return false
		}
	}
	return true
}

// Wait blocks until every snapshotted handle leaves Pending or ctx is
// done, returning the first error encountered (if any).
func (w WaitContext) Wait(ctx context.Context) error {
	for _, h := range w.handles {
		if err := h.Await(ctx); err != nil {
			return err
		}
	}
	return nil
}
