package registry

import (
	"context"

	"git.sr.ht/~gioverse/forge/asset/ioadapter"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// MetaExtension is the implementation-defined suffix for per-asset
// metadata sidecars: an asset at "foo/bar.png" has its identity recorded
// in "foo/bar.png.meta".
const MetaExtension = "meta"

// OptionsExtension is the suffix for optional per-asset import-options
// sidecars, moved together with the asset by Manager.MoveResource.
const OptionsExtension = "options"

// Metadata is the minimal per-asset sidecar content: just enough to
// recover the asset's stable identity independent of its current path.
type Metadata struct {
	ResourceID uuid.UUID `yaml:"resource_id"`
}

// NewMetadataWithRandomID mints fresh identity for an asset that has
// never been seen before.
func NewMetadataWithRandomID() Metadata {
	return Metadata{ResourceID: uuid.New()}
}

// LoadMetadata reads and parses the sidecar at path.
func LoadMetadata(ctx context.Context, path string, io ioadapter.IO) (Metadata, error) {
	raw, err := io.Read(ctx, path)
	if err != nil {
		return Metadata{}, err
	}
	var m Metadata
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Metadata{}, ioadapter.NewFileError("decode", path, err)
	}
	return m, nil
}

// Save serializes the sidecar to path.
func (m Metadata) Save(ctx context.Context, path string, io ioadapter.IO) error {
	raw, err := yaml.Marshal(m)
	if err != nil {
		return ioadapter.NewFileError("encode", path, err)
	}
	return io.Write(ctx, path, raw)
}

// AppendExtension appends ".ext" to path, the same sidecar-naming
// convention used for metadata and import-options files.
func AppendExtension(path, ext string) string {
	return path + "." + ext
}
