package ioadapter

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"testing/fstest"
)

func TestNewFileErrorNilIsNil(t *testing.T) {
	if err := NewFileError("read", "a.txt", nil); err != nil {
		t.Errorf("NewFileError with nil cause = %v, want nil", err)
	}
}

func TestFileErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewFileError("read", "a.txt", cause)
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want true")
	}
}

func TestHostFSReadWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	h := NewHostFS(dir)
	ctx := context.Background()

	if h.Exists(ctx, "a.txt") {
		t.Errorf("Exists(a.txt) = true before it was written")
	}
	if err := h.Write(ctx, "a.txt", []byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !h.Exists(ctx, "a.txt") {
		t.Errorf("Exists(a.txt) = false after Write")
	}
	got, err := h.Read(ctx, "a.txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("Read = %q, want %q", got, "hello")
	}
}

func TestHostFSWriteCreatesNestedDirectories(t *testing.T) {
	dir := t.TempDir()
	h := NewHostFS(dir)
	ctx := context.Background()

	if err := h.Write(ctx, "nested/deep/b.txt", []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "nested", "deep", "b.txt")); err != nil {
		t.Errorf("expected nested file on disk: %v", err)
	}
}

func TestHostFSReadMissingReturnsFileError(t *testing.T) {
	h := NewHostFS(t.TempDir())
	_, err := h.Read(context.Background(), "missing.txt")
	if err == nil {
		t.Fatal("Read of a missing file returned no error")
	}
	var fe *FileError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v (%T), want *FileError", err, err)
	}
	if fe.Op != "read" || fe.Path != "missing.txt" {
		t.Errorf("FileError = %+v, want Op=read Path=missing.txt", fe)
	}
}

func TestHostFSMove(t *testing.T) {
	dir := t.TempDir()
	h := NewHostFS(dir)
	ctx := context.Background()

	if err := h.Write(ctx, "src.txt", []byte("payload")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := h.Move(ctx, "src.txt", "moved/dst.txt"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if h.Exists(ctx, "src.txt") {
		t.Errorf("Exists(src.txt) = true after Move")
	}
	got, err := h.Read(ctx, "moved/dst.txt")
	if err != nil {
		t.Fatalf("Read after Move: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("Read after Move = %q, want %q", got, "payload")
	}
}

func TestHostFSWalkDirectoryYieldsAllFiles(t *testing.T) {
	dir := t.TempDir()
	h := NewHostFS(dir)
	ctx := context.Background()

	want := []string{"a.txt", "sub/b.txt", "sub/deeper/c.txt"}
	for _, p := range want {
		if err := h.Write(ctx, p, []byte("x")); err != nil {
			t.Fatalf("Write(%s): %v", p, err)
		}
	}

	ch, err := h.WalkDirectory(ctx, ".")
	if err != nil {
		t.Fatalf("WalkDirectory: %v", err)
	}
	var got []string
	for p := range ch {
		got = append(got, p)
	}
	sort.Strings(got)
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestHostFSWalkDirectoryMissingRoot(t *testing.T) {
	h := NewHostFS(t.TempDir())
	if _, err := h.WalkDirectory(context.Background(), "nope"); err == nil {
		t.Fatal("WalkDirectory on a missing root returned no error")
	}
}

func TestEmbeddedReadAndExists(t *testing.T) {
	fsys := fstest.MapFS{
		"a.txt":     {Data: []byte("hello")},
		"sub/b.txt": {Data: []byte("world")},
	}
	e := NewEmbedded(fsys)
	ctx := context.Background()

	if !e.Exists(ctx, "a.txt") {
		t.Errorf("Exists(a.txt) = false")
	}
	if e.Exists(ctx, "missing.txt") {
		t.Errorf("Exists(missing.txt) = true")
	}
	got, err := e.Read(ctx, "sub/b.txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "world" {
		t.Errorf("Read = %q, want %q", got, "world")
	}
}

func TestEmbeddedWriteAndMoveFail(t *testing.T) {
	e := NewEmbedded(fstest.MapFS{"a.txt": {Data: []byte("x")}})
	ctx := context.Background()

	if err := e.Write(ctx, "a.txt", []byte("y")); err == nil {
		t.Error("Write on Embedded succeeded, want a read-only error")
	} else if !errors.Is(err, fs.ErrPermission) {
		t.Errorf("Write error = %v, want wrapping fs.ErrPermission", err)
	}
	if err := e.Move(ctx, "a.txt", "b.txt"); err == nil {
		t.Error("Move on Embedded succeeded, want a read-only error")
	}
}

func TestEmbeddedWalkDirectory(t *testing.T) {
	fsys := fstest.MapFS{
		"a.txt":     {Data: []byte("x")},
		"sub/b.txt": {Data: []byte("y")},
	}
	e := NewEmbedded(fsys)
	ch, err := e.WalkDirectory(context.Background(), ".")
	if err != nil {
		t.Fatalf("WalkDirectory: %v", err)
	}
	var got []string
	for p := range ch {
		got = append(got, p)
	}
	sort.Strings(got)
	want := []string{"a.txt", "sub/b.txt"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
