// Package fs provides the filesystem abstraction the corpus engine uses
// for its content-addressed writes.
//
// The main types are:
//   - [FS]: the single filesystem operation the engine needs (OpenFile)
//   - [File]: the open-file surface [ExclusiveWriter] drives
//   - [Real]: production implementation using the [os] package
//
// Example usage:
//
//	fsys := fs.NewReal()
//	w := fs.NewExclusiveWriter(fsys)
//	err := w.Write("out/deadbeef", data, 0o644)
package fs

import (
	"io"
	"os"
)

// File is the open-file surface [ExclusiveWriter] needs: write the
// bytes, fsync them, close the handle.
//
// This interface is satisfied by [os.File].
//
// Implementations must be safe for concurrent use by multiple goroutines.
type File interface {
	io.WriteCloser

	// Sync commits the file's contents to disk. See [os.File.Sync].
	Sync() error
}

// FS defines the filesystem operation the corpus engine performs:
// opening a file with explicit flags, so [ExclusiveWriter] can request
// exclusive creation.
//
// The only implementation in this module is [Real], which wraps the [os]
// package.
//
// Paths use OS semantics (like the os package and path/filepath), not the
// slash-separated paths used by the standard library io/fs package.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type FS interface {
	// OpenFile opens a file with specified flags and permissions. See
	// [os.OpenFile]. [ExclusiveWriter] always passes
	// os.O_WRONLY|os.O_CREATE|os.O_EXCL.
	OpenFile(path string, flag int, perm os.FileMode) (File, error)
}

// Compile-time interface checks.
var _ File = (*os.File)(nil)
