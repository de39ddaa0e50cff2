package asset

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type testData struct {
	id uuid.UUID
}

func (d testData) TypeUUID() uuid.UUID { return d.id }
func (d testData) CanBeSaved() bool    { return false }
func (d testData) Save(string) error   { return errors.New("cannot save test data") }

func TestHandleEqualIsRecordIdentity(t *testing.T) {
	h1 := NewPending(KindExternal, ExplicitPath("a.txt"))
	h2 := h1
	h3 := NewPending(KindExternal, ExplicitPath("a.txt"))

	if !h1.Equal(h2) {
		t.Errorf("plain assignment of a Handle should refer to the same record")
	}
	if h1.Equal(h3) {
		t.Errorf("two independently created handles for the same path should not be Equal")
	}
}

func TestCloneTracksUseCountIndependentlyOfAssignment(t *testing.T) {
	h := NewPending(KindExternal, ExplicitPath("a.txt"))
	owned := h.Clone()
	if got := owned.UseCount(); got != 1 {
		t.Fatalf("UseCount() after one Clone = %d, want 1", got)
	}

	// Plain assignment does not mint a new holder.
	alias := owned
	if got := alias.UseCount(); got != 1 {
		t.Errorf("UseCount() after plain assignment = %d, want 1 (assignment must not count as a new holder)", got)
	}

	second := owned.Clone()
	if got := owned.UseCount(); got != 2 {
		t.Fatalf("UseCount() after second Clone = %d, want 2", got)
	}

	second.Release()
	if got := owned.UseCount(); got != 1 {
		t.Errorf("UseCount() after Release = %d, want 1", got)
	}
}

func TestCommitOkTransitionsPendingToOk(t *testing.T) {
	id := uuid.New()
	h := NewPending(KindExternal, ExplicitPath("a.txt"))
	if h.State() != StatePending {
		t.Fatalf("new handle state = %v, want Pending", h.State())
	}
	h.CommitOk(testData{id: id}, id)
	if h.State() != StateOk {
		t.Fatalf("state after CommitOk = %v, want Ok", h.State())
	}
	got, ok := h.ResourceUUID()
	if !ok || got != id {
		t.Errorf("ResourceUUID() = (%v, %v), want (%v, true)", got, ok, id)
	}
}

func TestCommitOkPanicsWhenNotPending(t *testing.T) {
	h := NewOk(KindEmbedded, uuid.New(), testData{id: uuid.New()})
	defer func() {
		if recover() == nil {
			t.Errorf("CommitOk on a non-Pending handle should panic")
		}
	}()
	h.CommitOk(testData{}, uuid.New())
}

func TestResetAllowsReload(t *testing.T) {
	id := uuid.New()
	h := NewPending(KindExternal, ExplicitPath("a.txt"))
	h.CommitOk(testData{id: id}, id)

	h.Reset(ExplicitPath("a.txt"))
	if h.State() != StatePending {
		t.Fatalf("state after Reset = %v, want Pending", h.State())
	}
	if _, ok := h.Data(); ok {
		t.Errorf("Data() should be unavailable while Pending after Reset")
	}

	h.CommitOk(testData{id: id}, id)
	if h.State() != StateOk {
		t.Fatalf("state after second CommitOk = %v, want Ok", h.State())
	}
}

func TestAwaitUnblocksOnCommit(t *testing.T) {
	h := NewPending(KindExternal, ExplicitPath("a.txt"))
	done := make(chan error, 1)
	go func() {
		done <- h.Await(context.Background())
	}()

	select {
	case <-done:
		t.Fatalf("Await returned before the handle settled")
	case <-time.After(20 * time.Millisecond):
	}

	h.CommitOk(testData{id: uuid.New()}, uuid.New())

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Await() error = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Await did not unblock after CommitOk")
	}
}

func TestAwaitReturnsLoadError(t *testing.T) {
	h := NewPending(KindExternal, ExplicitPath("a.txt"))
	wantErr := errors.New("boom")
	h.CommitError(ExplicitPath("a.txt"), wantErr)

	err := h.Await(context.Background())
	if !errors.Is(err, wantErr) {
		t.Errorf("Await() error = %v, want wrapping %v", err, wantErr)
	}
}

func TestAwaitRespectsContextCancellation(t *testing.T) {
	h := NewPending(KindExternal, ExplicitPath("a.txt"))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := h.Await(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Await() error = %v, want context.DeadlineExceeded", err)
	}
}
