package fs_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corpusd/fuzzcorpus/pkg/fs"
)

func TestExclusiveWriterWritesNewFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entry")

	w := fs.NewExclusiveWriter(fs.NewReal())
	require.NoError(t, w.Write(path, []byte("payload"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))
}

func TestExclusiveWriterRejectsExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entry")

	w := fs.NewExclusiveWriter(fs.NewReal())
	require.NoError(t, w.Write(path, []byte("payload"), 0o644))

	err := w.Write(path, []byte("payload"), 0o644)
	require.True(t, errors.Is(err, fs.ErrExists))
}

func TestExclusiveWriterWriteModeSkipsSync(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entry")

	w := fs.NewExclusiveWriter(fs.NewReal())
	require.NoError(t, w.WriteMode(path, []byte("payload"), 0o644, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))
}
