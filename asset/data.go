package asset

import "github.com/google/uuid"

// Data is the type-erased payload a loaded resource carries. Concrete
// loaders (texture, material, model, ...) implement this for whatever
// in-memory representation they produce; this package never inspects the
// contents, only the type UUID used for downcast checks.
type Data interface {
	// TypeUUID identifies the concrete type of this data, independent of
	// its Go type. A typed handle validates this against the UUID it was
	// constructed for.
	TypeUUID() uuid.UUID
	// CanBeSaved reports whether Save is implemented. Some data (e.g.
	// procedurally generated or externally-owned buffers) cannot be
	// written back out.
	CanBeSaved() bool
	// Save writes the data back to path. Implementations that return
	// false from CanBeSaved should return an error here.
	Save(path string) error
}
