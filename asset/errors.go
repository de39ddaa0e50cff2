package asset

import "fmt"

// LoadError wraps a failure reported by a loader or encountered while
// resolving a request key to a loadable path. It never escapes a load
// task as a Go error return — it is always committed into the handle's
// state (see Handle.CommitError) and observed by polling or awaiting.
type LoadError struct {
	Key RequestKey
	Err error
}

func NewLoadError(key RequestKey, err error) *LoadError {
	return &LoadError{Key: key, Err: err}
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("unable to load resource %s: %v", e.Key, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ErrTypeMismatch is returned by typed request helpers when a loader's
// declared data type UUID does not match the requested type.
type ErrTypeMismatch struct {
	Path string
}

func (e *ErrTypeMismatch) Error() string {
	return fmt.Sprintf("resource %s does not have the requested type", e.Path)
}
