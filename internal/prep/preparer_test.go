package prep_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corpusd/fuzzcorpus/internal/prep"
	"github.com/corpusd/fuzzcorpus/pkg/iobuf"
	"github.com/corpusd/fuzzcorpus/pkg/phase"
	"github.com/corpusd/fuzzcorpus/pkg/staticreader"
)

func newPreparer(t *testing.T, inputDir string, maxInputSz int, sm *phase.StateMachine) (*prep.Preparer, *iobuf.Buffer) {
	t.Helper()

	rdr := staticreader.New(inputDir, maxInputSz, nil)
	require.NoError(t, rdr.Init())

	buf, err := iobuf.New(t.TempDir(), maxInputSz, nil)
	require.NoError(t, err)
	t.Cleanup(func() { buf.Close() })

	p := prep.New(prep.Deps{
		Reader:   rdr,
		Oracle:   sm,
		Buf:      buf,
		InputDir: inputDir,
		WorkDir:  t.TempDir(),
	})

	return p, buf
}

// TestPrepareStaticFileGeometricGrowth exercises the dry-run prefix
// growth: each pass over the same file doubles the read size until it
// first meets or exceeds the file's length, at which point the file is
// exhausted and the next call advances to a new file.
func TestPrepareStaticFileGeometricGrowth(t *testing.T) {
	dir := t.TempDir()

	content := make([]byte, 5000)
	for i := range content {
		content[i] = byte(i)
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.bin"), content, 0o644))

	sm := phase.NewStateMachine()
	sm.Transition(phase.DryRun)

	p, buf := newPreparer(t, dir, 1<<20, sm)

	wantSizes := []int{1024, 2048, 4096, 5000}

	for i, want := range wantSizes {
		ok, err := p.PrepareStaticFile(false, false)
		require.NoErrorf(t, err, "pass %d", i)
		require.Truef(t, ok, "pass %d", i)
		require.Equalf(t, want, buf.Size(), "pass %d", i)
		require.Equal(t, content[:want], buf.Bytes()[:want])
	}

	// The file is now exhausted at its true length; the next call must
	// advance to a new file rather than re-reading f.bin from scratch.
	ok, err := p.PrepareStaticFile(false, false)
	require.NoError(t, err)
	require.False(t, ok, "static corpus has only one file")
}

func TestPrepareStaticFileNonDryRunAlwaysReadsFull(t *testing.T) {
	dir := t.TempDir()
	content := []byte("a small fixed file")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "g.bin"), content, 0o644))

	sm := phase.NewStateMachine()
	sm.Transition(phase.DynamicMain)

	p, buf := newPreparer(t, dir, 1<<16, sm)

	ok, err := p.PrepareStaticFile(false, false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, len(content), buf.Size())
	require.Equal(t, content, buf.Bytes()[:buf.Size()])
}

func TestPrepareExternalFileUsesRunnerOutput(t *testing.T) {
	sm := phase.NewStateMachine()
	dir := t.TempDir()

	rdr := staticreader.New(dir, 4096, nil)

	buf, err := iobuf.New(t.TempDir(), 4096, nil)
	require.NoError(t, err)
	defer buf.Close()

	p := prep.New(prep.Deps{
		Reader:   rdr,
		Oracle:   sm,
		Buf:      buf,
		InputDir: dir,
		WorkDir:  t.TempDir(),
		Runner:   fakeRunner{writeBack: []byte("generated")},
	})

	require.NoError(t, p.PrepareExternalFile(context.Background(), "gen", []string{"___FILE___"}))
	require.Equal(t, "generated", string(buf.Bytes()[:buf.Size()]))
}

type fakeRunner struct {
	writeBack []byte
}

// Run simulates an external generator: it opens the fd path the
// Preparer handed it (a live /dev/fd/N entry in this same process) and
// overwrites its contents with writeBack.
func (f fakeRunner) Run(_ context.Context, _ string, argv []string) (int, error) {
	path := argv[len(argv)-1]

	fd, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return 1, err
	}
	defer fd.Close()

	if _, err := fd.Write(f.writeBack); err != nil {
		return 1, err
	}

	return 0, nil
}
