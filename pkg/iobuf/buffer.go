// Package iobuf provides DynamicBuffer, the per-worker mmap-backed byte
// buffer that is the I/O contract between the corpus engine and the
// target program under test.
package iobuf

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/corpusd/fuzzcorpus/pkg/corpuslog"
)

// Default and ceiling sizes for the buffer, per spec §4.2's derivation of
// maxInputSz from the input directory scan.
const (
	DefaultSize = 8192
	MaxSize     = 1 << 20
)

// ErrSizeExceedsCapacity is returned by [Buffer.SetSize] when the
// requested size is larger than the buffer's maxInputSz. This is a fatal
// invariant violation per spec §7.1: the caller owns the decision of how
// to respond (the engine itself never calls os.Exit).
var ErrSizeExceedsCapacity = errors.New("iobuf: size exceeds buffer capacity")

// Buffer is a resizable, mmap-backed byte buffer with an authoritative
// length that is separate from its mmap capacity.
//
// The mapping is always maxInputSz bytes so the target's file descriptor
// never needs remapping; size is communicated out of band. Buffer is not
// safe for concurrent use - each worker owns exactly one.
type Buffer struct {
	file       *os.File
	data       []byte
	size       int
	maxInputSz int
	logger     corpuslog.Logger
}

// New creates a DynamicBuffer backed by a fresh temp file in dir, mapped
// at capacity maxInputSz.
//
// The temp file is unlinked as soon as it is mapped: the mapping keeps
// the data alive, and the worker never needs the file to have a name on
// disk. The file descriptor remains valid (and is what gets handed to
// the target program) until [Buffer.Close].
func New(dir string, maxInputSz int, logger corpuslog.Logger) (*Buffer, error) {
	if maxInputSz <= 0 {
		return nil, fmt.Errorf("iobuf: maxInputSz must be positive, got %d", maxInputSz)
	}

	f, err := os.CreateTemp(dir, "corpus-buf-*")
	if err != nil {
		return nil, fmt.Errorf("iobuf: create temp file: %w", err)
	}

	if err := f.Truncate(int64(maxInputSz)); err != nil {
		_ = f.Close()

		return nil, fmt.Errorf("iobuf: truncate to %d: %w", maxInputSz, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, maxInputSz, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = f.Close()

		return nil, fmt.Errorf("iobuf: mmap: %w", err)
	}

	// Unlink once mapped; the mapping and the fd keep the storage alive.
	_ = os.Remove(f.Name())

	return &Buffer{
		file:       f,
		data:       data,
		maxInputSz: maxInputSz,
		logger:     corpuslog.OrDiscard(logger),
	}, nil
}

// Fd returns the backing file descriptor, stable for the lifetime of the
// Buffer. The external pre/post-processing path in internal/prep does
// not use it; it hands the command the fd of its own tmp file instead.
func (b *Buffer) Fd() int {
	return int(b.file.Fd())
}

// MaxInputSz returns the buffer's mmap capacity.
func (b *Buffer) MaxInputSz() int {
	return b.maxInputSz
}

// Size returns the current authoritative length.
func (b *Buffer) Size() int {
	return b.size
}

// SetSize updates the authoritative length and attempts to truncate the
// backing file to match.
//
// Idempotent when n == Size(). Fatal (returns [ErrSizeExceedsCapacity])
// when n exceeds maxInputSz. Truncation failure is logged, not returned:
// size is updated regardless, since size (not file length) is the
// authoritative contract on platforms where truncating a mapped file is
// refused (spec §4.1, §9).
func (b *Buffer) SetSize(n int) error {
	if n < 0 {
		return fmt.Errorf("iobuf: negative size %d", n)
	}

	if n > b.maxInputSz {
		return fmt.Errorf("%w: %d > %d", ErrSizeExceedsCapacity, n, b.maxInputSz)
	}

	if n == b.size {
		return nil
	}

	b.size = n

	if err := b.file.Truncate(int64(n)); err != nil {
		b.logger.Warnf("iobuf: truncate to %d failed (size still authoritative): %v", n, err)
	}

	return nil
}

// Bytes returns a writable view of length maxInputSz. Workers must only
// write into [0, Size()); bytes past Size() are undefined.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Close releases the mmap and the backing file descriptor.
func (b *Buffer) Close() error {
	var err error

	if b.data != nil {
		if unmapErr := unix.Munmap(b.data); unmapErr != nil {
			err = fmt.Errorf("iobuf: munmap: %w", unmapErr)
		}

		b.data = nil
	}

	if closeErr := b.file.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("iobuf: close: %w", closeErr)
	}

	return err
}
