// Package staticreader implements the Static Corpus Reader (SCR): a
// thread-safe, round-robin reader over the initial input directory used
// during the fuzzer's dry-run phase.
package staticreader

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/corpusd/fuzzcorpus/pkg/corpuslog"
	"github.com/corpusd/fuzzcorpus/pkg/iobuf"
)

// DirStats summarizes one directory scan.
type DirStats struct {
	Count      uint64
	MaxInputSz int
}

// Reader is a single process-wide, mutex-protected iterator over the
// regular files in one input directory.
//
// A Reader must be created with [New] and initialized with [Reader.Init]
// before use; the zero value is not usable.
type Reader struct {
	mu  sync.Mutex
	dir *os.File

	dirPath   string
	maxFileSz int // operator ceiling; 0 means unset
	logger    corpuslog.Logger

	entries []string // cached regular-file names from the last scan
	cursor  int      // index into entries for the next getNext

	// fingerprints tracks the last-seen xxhash of each file's content,
	// keyed by name. A rescan (typically triggered by fsnotify) compares
	// against it and logs a warning for every file whose content changed
	// since the previous scan; the file is still served as usual.
	fingerprints map[string]uint64

	count      atomic.Uint64
	maxInputSz atomic.Int64
}

// New creates a Reader for dirPath. maxFileSz is the operator-configured
// ceiling on input size (0 means unset, derive from the scan instead).
func New(dirPath string, maxFileSz int, logger corpuslog.Logger) *Reader {
	return &Reader{
		dirPath:      dirPath,
		maxFileSz:    maxFileSz,
		logger:       corpuslog.OrDiscard(logger),
		fingerprints: make(map[string]uint64),
	}
}

// Init opens the input directory and performs the first scan.
//
// Per spec §4.7: any failure here is a load failure, not fatal - the
// caller decides whether to proceed without a static corpus. A directory
// with no regular files is such a failure. On failure, Count is 0.
func (r *Reader) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir, err := os.Open(r.dirPath)
	if err != nil {
		r.count.Store(0)

		return fmt.Errorf("staticreader: open input dir %q: %w", r.dirPath, err)
	}

	r.dir = dir

	stats, err := r.rewindAndRescanLocked()
	if err != nil {
		r.count.Store(0)

		return err
	}

	if stats.Count == 0 {
		return fmt.Errorf("staticreader: input dir %q has no regular files", r.dirPath)
	}

	return nil
}

// Count returns the number of regular files found by the most recent scan.
func (r *Reader) Count() uint64 {
	return r.count.Load()
}

// MaxInputSz returns maxInputSz as derived by the most recent scan,
// clamped per spec §4.2.
func (r *Reader) MaxInputSz() int {
	return int(r.maxInputSz.Load())
}

// GetNext returns the next regular file name in the input directory, in
// round-robin order.
//
// If iteration is exhausted and rewind is false, returns ("", false, nil).
// If iteration is exhausted and rewind is true, the directory is
// re-scanned (via [Reader.RewindAndRescan]) and the first entry of the
// new scan (if any) is returned.
func (r *Reader) GetNext(rewind bool) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cursor < len(r.entries) {
		name := r.entries[r.cursor]
		r.cursor++

		return name, true, nil
	}

	if !rewind {
		return "", false, nil
	}

	if _, err := r.rewindAndRescanLocked(); err != nil {
		return "", false, err
	}

	if len(r.entries) == 0 {
		return "", false, nil
	}

	name := r.entries[0]
	r.cursor = 1

	return name, true, nil
}

// RewindAndRescan rewinds the shared directory stream, walks every
// regular file, republishes Count/MaxInputSz atomically, and returns the
// resulting [DirStats]. This is getDirStatsAndRewind from spec §4.2.
func (r *Reader) RewindAndRescan() (DirStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.rewindAndRescanLocked()
}

func (r *Reader) rewindAndRescanLocked() (DirStats, error) {
	if _, err := r.dir.Seek(0, io.SeekStart); err != nil {
		return DirStats{}, fmt.Errorf("staticreader: rewind %q: %w", r.dirPath, err)
	}

	dirEntries, err := r.dir.ReadDir(-1)
	if err != nil {
		return DirStats{}, fmt.Errorf("staticreader: readdir %q: %w", r.dirPath, err)
	}

	entries := make([]string, 0, len(dirEntries))

	var observedMax int

	for _, de := range dirEntries {
		if de.IsDir() || !de.Type().IsRegular() {
			continue
		}

		info, err := de.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue // removed between readdir and stat
			}

			r.logger.Warnf("staticreader: stat %q/%q failed: %v", r.dirPath, de.Name(), err)

			continue
		}

		size := int(info.Size())

		if r.maxFileSz > 0 && size > r.maxFileSz {
			r.logger.Warnf("staticreader: %q/%q (%d bytes) exceeds configured ceiling %d; still counted",
				r.dirPath, de.Name(), size, r.maxFileSz)
		}

		if size > observedMax {
			observedMax = size
		}

		r.checkFingerprint(de.Name())

		entries = append(entries, de.Name())
	}

	r.pruneFingerprints(entries)

	r.entries = entries
	r.cursor = 0

	stats := DirStats{
		Count:      uint64(len(entries)),
		MaxInputSz: deriveMaxInputSz(observedMax, r.maxFileSz),
	}

	r.count.Store(stats.Count)
	r.maxInputSz.Store(int64(stats.MaxInputSz))

	return stats, nil
}

// checkFingerprint hashes name's current content and compares it
// against the previous scan's fingerprint, warning (not failing) on a
// mismatch. Read failures are treated the same as "unknown" - it is not
// this reader's job to reject a file it cannot hash.
func (r *Reader) checkFingerprint(name string) {
	data, err := os.ReadFile(filepath.Join(r.dirPath, name))
	if err != nil {
		return
	}

	sum := xxhash.Sum64(data)

	if prev, ok := r.fingerprints[name]; ok && prev != sum {
		r.logger.Warnf("staticreader: %q/%q changed content since the last scan", r.dirPath, name)
	}

	r.fingerprints[name] = sum
}

// pruneFingerprints drops fingerprints for files no longer present.
func (r *Reader) pruneFingerprints(current []string) {
	live := make(map[string]bool, len(current))
	for _, name := range current {
		live[name] = true
	}

	for name := range r.fingerprints {
		if !live[name] {
			delete(r.fingerprints, name)
		}
	}
}

// deriveMaxInputSz implements spec §4.2's derivation rule.
func deriveMaxInputSz(observedMax, ceiling int) int {
	switch {
	case ceiling > 0:
		return ceiling
	case observedMax < iobuf.DefaultSize:
		return iobuf.DefaultSize
	case observedMax > iobuf.MaxSize:
		return iobuf.MaxSize
	default:
		return observedMax
	}
}

// Close releases the directory handle.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dir == nil {
		return nil
	}

	err := r.dir.Close()
	r.dir = nil

	return err
}
