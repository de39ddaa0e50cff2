package ioadapter

import (
	"context"
	"io/fs"
	"path"
)

// Embedded wraps an fs.FS (typically produced by //go:embed) as a
// read-only IO backend. Write and Move fail; this is intended for
// built-in resources whose bytes are baked into the executable.
type Embedded struct {
	FS fs.FS
}

func NewEmbedded(f fs.FS) *Embedded { return &Embedded{FS: f} }

func (e *Embedded) Read(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(e.FS, path.Clean(p))
	if err != nil {
		return nil, NewFileError("read", p, err)
	}
	return data, nil
}

func (e *Embedded) Write(ctx context.Context, p string, data []byte) error {
	return NewFileError("write", p, fs.ErrPermission)
}

func (e *Embedded) Exists(ctx context.Context, p string) bool {
	f, err := e.FS.Open(path.Clean(p))
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

func (e *Embedded) Move(ctx context.Context, src, dst string) error {
	return NewFileError("move", src, fs.ErrPermission)
}

func (e *Embedded) WalkDirectory(ctx context.Context, root string) (<-chan string, error) {
	out := make(chan string)
	go func() {
		defer close(out)
		_ = fs.WalkDir(e.FS, path.Clean(root), func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			select {
			case out <- p:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
	}()
	return out, nil
}
