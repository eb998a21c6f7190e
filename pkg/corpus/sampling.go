package corpus

import "fmt"

// NumTests implements the biased-sampling table from spec §4.3.5.
//
// idx is the entry's rank (1..total, higher is better coverage); total
// is the corpus size. The percentile p = floor(idx*100/total) selects a
// test multiplier: entries in the top few percentiles are tested up to
// 10x more than the bulk of the corpus, which gets tested once per pass.
//
// Fatal if idx > total.
func NumTests(idx, total uint64) (int, error) {
	if idx > total {
		return 0, fmt.Errorf("%w: idx=%d, total=%d", ErrIdxOutOfRange, idx, total)
	}

	if total == 0 {
		return 1, nil
	}

	p := idx * 100 / total

	switch {
	case p <= 90:
		return 1, nil
	case p <= 92:
		return 2, nil
	case p <= 94:
		return 3, nil
	case p <= 96:
		return 4, nil
	case p <= 98:
		return 5, nil
	default: // 99..100
		return 10, nil
	}
}
