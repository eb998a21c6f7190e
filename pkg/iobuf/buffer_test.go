package iobuf_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corpusd/fuzzcorpus/pkg/iobuf"
)

func TestSetSizeIdempotent(t *testing.T) {
	buf, err := iobuf.New(t.TempDir(), 1024, nil)
	require.NoError(t, err)

	defer func() { require.NoError(t, buf.Close()) }()

	require.NoError(t, buf.SetSize(256))
	require.Equal(t, 256, buf.Size())

	require.NoError(t, buf.SetSize(256))
	require.Equal(t, 256, buf.Size())
}

func TestSetSizeExceedsCapacityIsFatal(t *testing.T) {
	buf, err := iobuf.New(t.TempDir(), 1024, nil)
	require.NoError(t, err)

	defer func() { require.NoError(t, buf.Close()) }()

	err = buf.SetSize(2048)
	require.True(t, errors.Is(err, iobuf.ErrSizeExceedsCapacity))
	require.Equal(t, 0, buf.Size(), "size must not change on a rejected SetSize")
}

func TestBytesCapacityStaysAtMax(t *testing.T) {
	buf, err := iobuf.New(t.TempDir(), 4096, nil)
	require.NoError(t, err)

	defer func() { require.NoError(t, buf.Close()) }()

	require.NoError(t, buf.SetSize(10))
	require.Len(t, buf.Bytes(), 4096, "mapping stays at capacity to avoid remap churn")
}

func TestWriteAndReadBack(t *testing.T) {
	buf, err := iobuf.New(t.TempDir(), 64, nil)
	require.NoError(t, err)

	defer func() { require.NoError(t, buf.Close()) }()

	require.NoError(t, buf.SetSize(5))
	copy(buf.Bytes(), []byte("hello"))

	require.Equal(t, []byte("hello"), buf.Bytes()[:buf.Size()])
}

// recordingLogger captures Warnf calls so tests can assert a failure was
// reported without needing the failure to also abort the operation.
type recordingLogger struct {
	warnings []string
}

func (r *recordingLogger) Warnf(format string, args ...any) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

func TestSetSizeSurvivesTruncateFailure(t *testing.T) {
	buf, err := iobuf.New(t.TempDir(), 64, nil)
	require.NoError(t, err)

	defer func() { require.NoError(t, buf.Close()) }()

	require.NoError(t, buf.SetSize(32))
	require.Equal(t, 32, buf.Size())

	logger := &recordingLogger{}
	buf2, err := iobuf.New(t.TempDir(), 64, logger)
	require.NoError(t, err)

	require.NoError(t, buf2.Close())

	err = buf2.SetSize(16)
	require.NoError(t, err, "a truncate failure on a closed backing file must not fail SetSize")
	require.Equal(t, 16, buf2.Size(), "size stays authoritative even when truncate fails")
	require.NotEmpty(t, logger.warnings, "the truncate failure must still be logged")
}
