package fs

import (
	"errors"
	"fmt"
	"os"
)

// ErrExists indicates that [ExclusiveWriter.WriteMode] found a file already present
// at the target path.
//
// Per the content-addressed naming scheme used by the corpus engine, this
// is not a failure: the identical bytes are already on disk under this
// name, so the caller should treat it as a successful no-op.
var ErrExists = errors.New("fs: file exists")

// ExclusiveWriter writes files using exclusive create, never overwriting
// an existing file.
//
// There is no temp-file-plus-rename step: the data
// either lands under its final name in one write or the call fails. This
// matches the durability model of content-addressed output directories,
// where the name already encodes the content and a second writer racing
// for the same name is writing the same bytes.
type ExclusiveWriter struct {
	fs FS
}

// NewExclusiveWriter creates an ExclusiveWriter that uses the given filesystem.
// Panics if fs is nil.
func NewExclusiveWriter(fsys FS) *ExclusiveWriter {
	if fsys == nil {
		panic("fs is nil")
	}

	return &ExclusiveWriter{fs: fsys}
}

// Write creates path with O_EXCL and writes data to it.
//
// If path already exists, Write returns an error satisfying
// errors.Is(err, [ErrExists]) and performs no write. The caller decides
// whether that is success (content-addressed dedup) or failure.
//
// Write is equivalent to calling [ExclusiveWriter.WriteMode] with
// sync=true.
func (w *ExclusiveWriter) Write(path string, data []byte, perm os.FileMode) error {
	return w.WriteMode(path, data, perm, true)
}

// WriteMode is [ExclusiveWriter.Write] with explicit control over
// whether the file is fsynced before Close. Passing sync=false trades
// the immediate durability guarantee for throughput - the data is
// written but may not survive a crash until a later sync of the same
// directory (a writeback-style persistence mode).
func (w *ExclusiveWriter) WriteMode(path string, data []byte, perm os.FileMode, sync bool) error {
	if path == "" {
		return errors.New("path is empty")
	}

	if perm == 0 {
		return errors.New("perm must be non-zero")
	}

	f, err := w.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("create %q: %w", path, ErrExists)
		}

		return fmt.Errorf("create %q: %w", path, err)
	}

	_, writeErr := f.Write(data)
	if writeErr != nil {
		_ = f.Close()

		return fmt.Errorf("write %q: %w", path, writeErr)
	}

	if sync {
		if err := f.Sync(); err != nil {
			_ = f.Close()

			return fmt.Errorf("sync %q: %w", path, err)
		}
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close %q: %w", path, err)
	}

	return nil
}
