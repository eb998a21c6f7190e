// Package corpus implements the DynamicCorpus (DC): the in-memory,
// coverage-ordered population of test cases that feeds the fuzzing loop,
// plus its persistence to an on-disk, content-addressed output
// directory.
package corpus

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corpusd/fuzzcorpus/pkg/covvec"
	"github.com/corpusd/fuzzcorpus/pkg/fs"
	"github.com/corpusd/fuzzcorpus/pkg/iobuf"
	"github.com/corpusd/fuzzcorpus/pkg/mangle"
	"github.com/corpusd/fuzzcorpus/pkg/phase"

	"github.com/corpusd/fuzzcorpus/pkg/corpuslog"
)

// Options configures a [Corpus].
type Options struct {
	// OutputDir is where accepted finds are persisted. If empty,
	// InputDir is used instead (spec §4.3.2 step 8).
	OutputDir string

	// InputDir is the fallback persistence directory.
	InputDir string

	// NewCoverageDir, if set, receives a second copy of every find
	// accepted while Oracle reports [phase.DynamicMain] (spec §4.3.2
	// step 9).
	NewCoverageDir string

	// Oracle reports the active fuzzer phase; required.
	Oracle phase.Oracle

	// SocketFuzzer disables persistence entirely when true (spec
	// §4.3.2 step 6).
	SocketFuzzer bool

	// Writeback, when true, skips the fsync on each persisted find for
	// higher throughput at the cost of immediate crash durability.
	Writeback bool
}

// Corpus is the process-wide DynamicCorpus. The zero value is not
// usable; construct with [New].
type Corpus struct {
	mu sync.RWMutex

	nodes             []node
	head, tail, cursor int

	count         atomic.Uint64
	maxEntrySize  atomic.Uint64
	newUnitsAdded atomic.Uint64
	lastCovUpdate atomic.Int64

	opts   Options
	logger corpuslog.Logger
	writer *fs.ExclusiveWriter
}

// New creates an empty Corpus.
func New(opts Options, fsys fs.FS, logger corpuslog.Logger) *Corpus {
	if opts.Oracle == nil {
		panic("corpus: Options.Oracle is required")
	}

	return &Corpus{
		head:   none,
		tail:   none,
		cursor: none,
		opts:   opts,
		logger: corpuslog.OrDiscard(logger),
		writer: fs.NewExclusiveWriter(fsys),
	}
}

// Count returns the number of entries.
func (c *Corpus) Count() uint64 { return c.count.Load() }

// MaxEntrySize returns the largest Size seen across all entries (I3).
func (c *Corpus) MaxEntrySize() uint64 { return c.maxEntrySize.Load() }

// NewUnitsAdded returns the count of dynamic-main insertions since the
// counter was last reset (e.g. at the end of a dry-run pass).
func (c *Corpus) NewUnitsAdded() uint64 { return c.newUnitsAdded.Load() }

// ResetNewUnitsAdded zeroes the new-units counter (called when the
// surrounding fuzzer completes a dry-run pass).
func (c *Corpus) ResetNewUnitsAdded() { c.newUnitsAdded.Store(0) }

// LastCovUpdate returns the unix-seconds timestamp of the most recent
// insertion, or 0 if none yet.
func (c *Corpus) LastCovUpdate() int64 { return c.lastCovUpdate.Load() }

// nowUnix is overridable by tests.
var nowUnix = func() int64 { return time.Now().Unix() }

// AddDynamicInput ingests a new coverage-improving test case (spec §4.3.2).
//
// Persistence failures are logged, not returned as an error - this
// method only fails if there is nothing left to do after a caller
// mistake (none defined here; present for symmetry and future use).
func (c *Corpus) AddDynamicInput(data []byte, cov covvec.Vector, path string) error {
	c.mu.Lock()

	c.lastCovUpdate.Store(nowUnix())

	dataCopy := bytes.Clone(data)
	newEntry := &Entry{
		Cov:  cov,
		Size: len(dataCopy),
		Data: dataCopy,
		Idx:  c.count.Load(),
		Path: path,
	}

	c.nodes = append(c.nodes, node{entry: newEntry, prev: none, next: none})
	newIdx := len(c.nodes) - 1

	currentPhase := c.opts.Oracle.Current()

	if currentPhase == phase.DynamicMain {
		c.linkAtHead(newIdx)
		c.cursor = newIdx
	} else {
		c.insertSorted(newIdx)
	}

	c.count.Add(1)

	for {
		maxSize := c.maxEntrySize.Load()
		if uint64(newEntry.Size) <= maxSize {
			break
		}

		if c.maxEntrySize.CompareAndSwap(maxSize, uint64(newEntry.Size)) {
			break
		}
	}

	skipPersist := c.opts.SocketFuzzer || currentPhase == phase.Minimize

	c.mu.Unlock()

	if skipPersist {
		return nil
	}

	dir := c.opts.OutputDir
	if dir == "" {
		dir = c.opts.InputDir
	}

	if err := c.writeCovFile(dir, dataCopy); err != nil {
		c.logger.Warnf("corpus: persisting new input to %q failed: %v", dir, err)
	}

	if currentPhase == phase.DynamicMain {
		c.newUnitsAdded.Add(1)

		if c.opts.NewCoverageDir != "" {
			if err := c.writeCovFile(c.opts.NewCoverageDir, dataCopy); err != nil {
				c.logger.Warnf("corpus: persisting new input to new-coverage dir %q failed: %v", c.opts.NewCoverageDir, err)
			}
		}
	}

	return nil
}

// insertSorted inserts node newIdx into coverage-sorted-descending
// position: immediately before the first existing entry it strictly
// beats (cmpCov), or at the tail if it beats none. Caller holds c.mu.
func (c *Corpus) insertSorted(newIdx int) {
	newEntry := c.nodes[newIdx].entry

	target := none

	for n := c.head; n != none; n = c.nodes[n].next {
		if covvec.Greater(newEntry.Cov, c.nodes[n].entry.Cov) {
			target = n

			break
		}
	}

	if target == none {
		c.linkAtTail(newIdx)
	} else {
		c.linkBefore(newIdx, target)
	}
}

func (c *Corpus) linkAtHead(idx int) {
	c.nodes[idx].prev = none
	c.nodes[idx].next = c.head

	if c.head != none {
		c.nodes[c.head].prev = idx
	}

	c.head = idx

	if c.tail == none {
		c.tail = idx
	}
}

func (c *Corpus) linkAtTail(idx int) {
	c.nodes[idx].next = none
	c.nodes[idx].prev = c.tail

	if c.tail != none {
		c.nodes[c.tail].next = idx
	}

	c.tail = idx

	if c.head == none {
		c.head = idx
	}
}

func (c *Corpus) linkBefore(idx, target int) {
	prev := c.nodes[target].prev

	c.nodes[idx].prev = prev
	c.nodes[idx].next = target
	c.nodes[target].prev = idx

	if prev != none {
		c.nodes[prev].next = idx
	} else {
		c.head = idx
	}
}

// writeCovFile persists data under its content-addressed name in dir
// (spec §4.3.3). A pre-existing file with the same name is treated as
// success: the tuple (forward CRC, reverse CRC, length) is the content
// identity, so a name collision means the bytes are already there.
func (c *Corpus) writeCovFile(dir string, data []byte) error {
	name := covFileName(data)
	path := filepath.Join(dir, name)

	err := c.writer.WriteMode(path, data, 0o644, !c.opts.Writeback)
	if errors.Is(err, fs.ErrExists) {
		return nil
	}

	return err
}

// RenumerateInputs restores the idx invariant (I2): walking head to
// tail, idx strictly decreases from Count() down to 1. Call this after
// any operation that may have disturbed the coverage-sorted order -
// specifically, a run of dynamic-main head-insertions.
func (c *Corpus) RenumerateInputs() {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.count.Load()

	for n := c.head; n != none; n = c.nodes[n].next {
		c.nodes[n].entry.Idx = idx
		idx--
	}
}

// PrepareDynamicInput selects the next entry under the sampling cursor,
// copies its bytes into buf, and optionally invokes mutator (spec
// §4.3.4). Fatal ([ErrEmpty]) if the corpus has no entries.
func (c *Corpus) PrepareDynamicInput(buf *iobuf.Buffer, needsMangle bool, mutator mangle.Mutator) error {
	c.mu.Lock()

	total := c.count.Load()
	if total == 0 {
		c.mu.Unlock()

		return ErrEmpty
	}

	if c.cursor == none {
		c.cursor = c.head
	}

	current := c.cursor
	entry := c.nodes[current].entry

	testCnt, err := NumTests(entry.Idx, total)
	if err != nil {
		c.mu.Unlock()

		return err
	}

	entry.Tested++

	if entry.Tested >= uint64(testCnt) {
		entry.Tested = 0
		c.cursor = c.nodes[current].next
	}

	data := bytes.Clone(entry.Data)
	size := entry.Size

	c.mu.Unlock()

	if err := buf.SetSize(size); err != nil {
		return fmt.Errorf("corpus: prepare dynamic input: %w", err)
	}

	copy(buf.Bytes(), data)

	if needsMangle {
		newSize := mutator.Mangle(buf.Bytes(), buf.Size(), buf.MaxInputSz())
		if err := buf.SetSize(newSize); err != nil {
			return fmt.Errorf("corpus: prepare dynamic input: mangle resized past capacity: %w", err)
		}
	}

	return nil
}

// MinimizeResult is the outcome of one [Corpus.PrepareDynamicFileForMinimization] step.
type MinimizeResult struct {
	// More is false once the minimization walk has visited every entry.
	More bool
	// OrigFileName is the origin label of the entry just loaded into buf.
	OrigFileName string
}

// PrepareDynamicFileForMinimization advances the minimization cursor one
// step and loads the resulting entry into buf (spec §4.3.7).
func (c *Corpus) PrepareDynamicFileForMinimization(buf *iobuf.Buffer) (MinimizeResult, error) {
	c.mu.Lock()

	if c.cursor == none {
		c.cursor = c.head
	} else {
		c.cursor = c.nodes[c.cursor].next
	}

	if c.cursor == none {
		c.mu.Unlock()

		return MinimizeResult{More: false}, nil
	}

	entry := c.nodes[c.cursor].entry
	data := bytes.Clone(entry.Data)
	size := entry.Size
	origPath := entry.Path

	c.mu.Unlock()

	if err := buf.SetSize(size); err != nil {
		return MinimizeResult{}, fmt.Errorf("corpus: prepare minimization file: %w", err)
	}

	copy(buf.Bytes(), data)

	return MinimizeResult{More: true, OrigFileName: origPath}, nil
}

// Snapshot returns a head-to-tail copy of entry metadata (Cov, Size,
// Idx, Path - not Data) for diagnostics. Held under the read lock so it
// reflects one consistent state.
func (c *Corpus) Snapshot() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, 0, c.count.Load())

	for n := c.head; n != none; n = c.nodes[n].next {
		e := *c.nodes[n].entry
		e.Data = nil
		out = append(out, e)
	}

	return out
}
