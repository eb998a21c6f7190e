package corpus_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corpusd/fuzzcorpus/pkg/corpus"
	"github.com/corpusd/fuzzcorpus/pkg/covvec"
	"github.com/corpusd/fuzzcorpus/pkg/fs"
	"github.com/corpusd/fuzzcorpus/pkg/iobuf"
	"github.com/corpusd/fuzzcorpus/pkg/phase"
)

func Test_ConcurrentAddAndPrepare_NeverPanicsOrCorrupts(t *testing.T) {
	t.Parallel()

	sm := phase.NewStateMachine()
	sm.Transition(phase.DynamicMain)

	c := corpus.New(corpus.Options{
		OutputDir: t.TempDir(),
		Oracle:    sm,
	}, fs.NewReal(), nil)

	const writers = 8
	const readers = 8
	const opsPerGoroutine = 200

	var wg sync.WaitGroup

	for w := range writers {
		wg.Add(1)

		go func(w int) {
			defer wg.Done()

			for i := range opsPerGoroutine {
				data := fmt.Appendf(nil, "worker-%d-case-%d", w, i)
				cov := covvec.Vector{uint64(w), uint64(i), 0, 0}
				require.NoError(t, c.AddDynamicInput(data, cov, fmt.Sprintf("w%d-%d", w, i)))
			}
		}(w)
	}

	for r := range readers {
		wg.Add(1)

		go func(r int) {
			defer wg.Done()

			buf, err := iobuf.New(t.TempDir(), 4096, nil)
			require.NoError(t, err)

			defer buf.Close()

			for range opsPerGoroutine {
				err := c.PrepareDynamicInput(buf, false, nil)
				if err != nil {
					require.ErrorIs(t, err, corpus.ErrEmpty, "only an empty corpus is an acceptable error during the race start")
				}
			}
		}(r)
	}

	wg.Wait()

	require.EqualValues(t, writers*opsPerGoroutine, c.Count())

	c.RenumerateInputs()

	snap := c.Snapshot()
	require.Len(t, snap, writers*opsPerGoroutine)

	for i := 1; i < len(snap); i++ {
		require.Less(t, snap[i].Idx, snap[i-1].Idx)
	}
}
