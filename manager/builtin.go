package manager

import (
	"context"
	"fmt"

	"git.sr.ht/~gioverse/forge/asset"
	"git.sr.ht/~gioverse/forge/asset/ioadapter"
	"github.com/google/uuid"
)

// DataSource lets a built-in resource be reconstructed from embedded
// bytes via the ordinary loader pipeline, rather than requiring the
// caller to hand-build an asset.Data value.
//
// Grounded on fyrox-resource/src/manager.rs's DataSource/BuiltInResource,
// which carries either embedded bytes or a pre-built resource so engine
// startup can register shaders and fallback textures without touching
// disk.
type DataSource struct {
	// Extension selects which registered loader decodes Bytes, e.g.
	// "png".
	Extension string
	Bytes     []byte
}

// BuiltIn describes an embedded, non-reloadable resource registered at
// Manager construction or startup time.
type BuiltIn struct {
	// Path is the virtual path other code requests this resource by.
	Path string
	// Source is used to decode the resource if Resource is not already
	// populated.
	Source *DataSource
	// Resource is used directly if already Ok, bypassing decoding.
	Resource asset.Handle
}

// memIO is a minimal ioadapter.IO over a single in-memory blob, used to
// run a registered Loader against DataSource bytes without a real
// filesystem.
type memIO struct {
	path string
	data []byte
}

func (m *memIO) Read(_ context.Context, path string) ([]byte, error) {
	if path != m.path {
		return nil, ioadapter.NewFileError("read", path, fmt.Errorf("not found"))
	}
	return m.data, nil
}

func (m *memIO) Write(_ context.Context, path string, data []byte) error {
	return ioadapter.NewFileError("write", path, fmt.Errorf("built-in data source is read-only"))
}

func (m *memIO) Exists(_ context.Context, path string) bool { return path == m.path }

func (m *memIO) Move(_ context.Context, src, dst string) error {
	return ioadapter.NewFileError("move", src, fmt.Errorf("built-in data source is read-only"))
}

func (m *memIO) WalkDirectory(_ context.Context, _ string) (<-chan string, error) {
	ch := make(chan string, 1)
	ch <- m.path
	close(ch)
	return ch, nil
}

// resolveBuiltIn produces an Ok handle for b, decoding via Source if
// Resource was not already supplied.
func (mgr *Manager) resolveBuiltIn(ctx context.Context, b BuiltIn) (asset.Handle, error) {
	if b.Resource.IsValid() && b.Resource.State() == asset.StateOk {
		return b.Resource, nil
	}
	if b.Source == nil {
		return asset.Handle{}, fmt.Errorf("manager: built-in %q has neither a resolved resource nor a data source", b.Path)
	}
	l, ok := mgr.loaders.For("." + b.Source.Extension)
	if !ok {
		return asset.Handle{}, fmt.Errorf("manager: no loader registered for built-in %q (extension %q)", b.Path, b.Source.Extension)
	}
	io := &memIO{path: b.Path, data: b.Source.Bytes}
	payload, err := l.Load(ctx, b.Path, io)
	if err != nil {
		return asset.Handle{}, fmt.Errorf("manager: decoding built-in %q: %w", b.Path, err)
	}
	return asset.NewOk(asset.KindEmbedded, uuid.New(), payload.Data), nil
}
