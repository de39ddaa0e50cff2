package asset

import (
	"fmt"

	"github.com/google/uuid"
)

// RequestKey names a resource either by its explicit filesystem path or
// implicitly by its UUID. Both forms resolve to the same handle when they
// refer to the same underlying asset (see the resource registry).
type RequestKey struct {
	path     string
	id       uuid.UUID
	implicit bool
}

// ExplicitPath builds a RequestKey naming a resource by path.
func ExplicitPath(path string) RequestKey {
	return RequestKey{path: path}
}

// ImplicitUUID builds a RequestKey naming a resource by UUID. id must not
// be uuid.Nil.
func ImplicitUUID(id uuid.UUID) RequestKey {
	if id == uuid.Nil {
		panic("asset: ImplicitUUID requires a non-nil UUID")
	}
	return RequestKey{id: id, implicit: true}
}

// IsImplicit reports whether this key names a resource by UUID rather
// than by path.
func (k RequestKey) IsImplicit() bool { return k.implicit }

// Path returns the explicit path, if any.
func (k RequestKey) Path() (string, bool) {
	if k.implicit {
		return "", false
	}
	return k.path, true
}

// UUID returns the implicit UUID, if any.
func (k RequestKey) UUID() (uuid.UUID, bool) {
	if !k.implicit {
		return uuid.Nil, false
	}
	return k.id, true
}

// Equal reports whether two keys name the same request, i.e. are the
// same kind of key (path or UUID) carrying an equal value.
func (k RequestKey) Equal(o RequestKey) bool {
	if k.implicit != o.implicit {
		return false
	}
	if k.implicit {
		return k.id == o.id
	}
	return k.path == o.path
}

func (k RequestKey) String() string {
	if k.implicit {
		return fmt.Sprintf("uuid:%s", k.id)
	}
	return fmt.Sprintf("path:%s", k.path)
}
