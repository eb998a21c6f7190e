// Package prep implements the InputPreparer (IP): the worker-facing
// façade that chooses between static and dynamic sourcing based on the
// fuzzer's phase, loads bytes into a worker's [iobuf.Buffer], and
// optionally drives external pre/post-processing and mutation.
package prep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/corpusd/fuzzcorpus/pkg/corpus"
	"github.com/corpusd/fuzzcorpus/pkg/corpuslog"
	"github.com/corpusd/fuzzcorpus/pkg/iobuf"
	"github.com/corpusd/fuzzcorpus/pkg/mangle"
	"github.com/corpusd/fuzzcorpus/pkg/phase"
	"github.com/corpusd/fuzzcorpus/pkg/staticreader"
	"github.com/corpusd/fuzzcorpus/pkg/subproc"
)

// Deps wires one Preparer's collaborators. Reader, Oracle, and Buf are
// required; Mutator and Runner may be nil if the caller never sets
// needsMangle/calls PrepareExternalFile. Corpus is carried but no
// Preparer method reads it.
type Deps struct {
	Corpus  *corpus.Corpus
	Reader  *staticreader.Reader
	Oracle  phase.Oracle
	Buf     *iobuf.Buffer
	Mutator mangle.Mutator
	Runner  subproc.Runner

	InputDir string
	WorkDir  string // scratch directory for external-command tmp files

	Minimize bool
	Logger   corpuslog.Logger
}

// Preparer is one worker's InputPreparer. Not safe for concurrent use by
// multiple goroutines - each worker owns exactly one, matching its one
// [iobuf.Buffer] (spec §5: "each worker owns its own DB").
type Preparer struct {
	deps Deps

	staticFileTryMore bool
	currentStaticFile string
}

// New creates a Preparer from deps.
func New(deps Deps) *Preparer {
	deps.Logger = corpuslog.OrDiscard(deps.Logger)

	return &Preparer{deps: deps}
}

// shouldReadNewFile implements spec §4.6.1's sizing/advance decision.
func (p *Preparer) shouldReadNewFile() (newFile bool, targetSize int) {
	maxInputSz := p.deps.Buf.MaxInputSz()

	if p.deps.Oracle.Current() != phase.DryRun || p.deps.Minimize {
		return true, maxInputSz
	}

	if !p.staticFileTryMore {
		p.staticFileTryMore = true

		return true, min(1024, maxInputSz)
	}

	newsz := p.deps.Buf.Size() * 2
	if newsz >= maxInputSz {
		newsz = maxInputSz
		p.staticFileTryMore = false
	}

	return false, newsz
}

// PrepareStaticFile implements spec §4.6.1: the dry-run sourcing path.
//
// Returns (false, nil) when the static corpus is exhausted (caller
// drops the case and asks for the next); per-case I/O failures are
// returned as an error.
func (p *Preparer) PrepareStaticFile(rewind, needsMangle bool) (bool, error) {
	newFile, targetSize := p.shouldReadNewFile()

	if err := p.deps.Buf.SetSize(targetSize); err != nil {
		return false, fmt.Errorf("prep: prepare static file: %w", err)
	}

	if newFile {
		name, ok, err := p.deps.Reader.GetNext(rewind)
		if err != nil {
			return false, fmt.Errorf("prep: prepare static file: %w", err)
		}

		if !ok {
			return false, nil
		}

		p.currentStaticFile = name
	}

	path := filepath.Join(p.deps.InputDir, p.currentStaticFile)

	n, err := readPrefix(path, p.deps.Buf.Bytes()[:targetSize])
	if err != nil {
		return false, fmt.Errorf("prep: read %q: %w", path, err)
	}

	if n < targetSize {
		p.staticFileTryMore = false
	}

	if err := p.deps.Buf.SetSize(n); err != nil {
		return false, fmt.Errorf("prep: prepare static file: %w", err)
	}

	if needsMangle {
		if err := p.mangleBuffer(); err != nil {
			return false, err
		}
	}

	return true, nil
}

// readPrefix reads up to len(dst) bytes from the start of path into dst,
// returning the number of bytes actually read. Reaching EOF before dst
// is filled is not an error - it is the normal outcome once a growing
// prefix size exceeds the file's actual length.
func readPrefix(path string, dst []byte) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n, err := io.ReadFull(f, dst)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return n, nil
	}

	return n, err
}

func (p *Preparer) mangleBuffer() error {
	if p.deps.Mutator == nil {
		return fmt.Errorf("prep: needsMangle requested but no mutator configured")
	}

	newSize := p.deps.Mutator.Mangle(p.deps.Buf.Bytes(), p.deps.Buf.Size(), p.deps.Buf.MaxInputSz())

	if err := p.deps.Buf.SetSize(newSize); err != nil {
		return fmt.Errorf("prep: mangle resized past capacity: %w", err)
	}

	return nil
}

// PrepareExternalFile implements spec §4.6.2: run an external command
// over a freshly created empty tmp file, then load its output into the
// buffer.
func (p *Preparer) PrepareExternalFile(ctx context.Context, cmd string, argv []string) error {
	return p.runProcessorFile(ctx, cmd, argv, false)
}

// PostProcessFile implements spec §4.6.3: identical to
// PrepareExternalFile, except the tmp file is seeded with the buffer's
// current contents before the command runs.
func (p *Preparer) PostProcessFile(ctx context.Context, cmd string, argv []string) error {
	return p.runProcessorFile(ctx, cmd, argv, true)
}

func (p *Preparer) runProcessorFile(ctx context.Context, cmd string, argv []string, seed bool) error {
	if p.deps.Runner == nil {
		return fmt.Errorf("prep: external command requested but no runner configured")
	}

	tmp, err := os.CreateTemp(p.deps.WorkDir, "corpus-ext-*")
	if err != nil {
		return fmt.Errorf("prep: create tmp file: %w", err)
	}

	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if seed {
		if _, err := tmp.Write(p.deps.Buf.Bytes()[:p.deps.Buf.Size()]); err != nil {
			return fmt.Errorf("prep: seed tmp file: %w", err)
		}

		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("prep: seek tmp file: %w", err)
		}
	}

	fdPath := fmt.Sprintf("/dev/fd/%d", tmp.Fd())

	fullArgv := make([]string, 0, len(argv))

	for _, a := range argv {
		if a == "___FILE___" {
			fullArgv = append(fullArgv, fdPath)

			continue
		}

		fullArgv = append(fullArgv, a)
	}

	exitCode, err := p.deps.Runner.Run(ctx, cmd, fullArgv)
	if err != nil {
		return fmt.Errorf("prep: run %q: %w", cmd, err)
	}

	if exitCode != 0 {
		return fmt.Errorf("prep: %q exited with code %d", cmd, exitCode)
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("prep: seek tmp file for read-back: %w", err)
	}

	maxSz := p.deps.Buf.MaxInputSz()

	if err := p.deps.Buf.SetSize(maxSz); err != nil {
		return fmt.Errorf("prep: %w", err)
	}

	n, err := readAllUpTo(tmp, p.deps.Buf.Bytes()[:maxSz])
	if err != nil {
		return fmt.Errorf("prep: read back tmp file: %w", err)
	}

	if err := p.deps.Buf.SetSize(n); err != nil {
		return fmt.Errorf("prep: %w", err)
	}

	return nil
}

func readAllUpTo(r io.Reader, dst []byte) (int, error) {
	n, err := io.ReadFull(r, dst)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return n, nil
	}

	return n, err
}

// RemoveStaticFile implements spec §4.6.4: unlink a rejected case.
// Errors are logged, not returned - per spec §7.3 this is a recoverable
// per-entry I/O failure.
func (p *Preparer) RemoveStaticFile(dir, name string) {
	path := filepath.Join(dir, name)

	if err := os.Remove(path); err != nil {
		p.deps.Logger.Warnf("prep: remove static file %q failed: %v", path, err)
	}
}
