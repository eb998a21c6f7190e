package fs

import (
	"os"
)

// Real implements [FS] using the host filesystem.
//
// Its one method is a pure passthrough to the [os] package with
// identical behavior and error semantics.
type Real struct{}

// NewReal returns a new [Real] filesystem.
func NewReal() *Real {
	return &Real{}
}

// A passthrough wrapper for [os.OpenFile].
func (r *Real) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(path, flag, perm)
}

// Compile-time interface check.
var _ FS = (*Real)(nil)
