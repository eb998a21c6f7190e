package corpus

import "errors"

// Error classification codes.
//
// Callers classify with errors.Is. ErrEmpty and ErrIdxOutOfRange are the
// fatal-class errors from spec §7.1: they signal a violated internal
// invariant (selecting from an empty corpus, an out-of-range index) and
// the caller - not this package - decides how to respond; the engine
// itself never calls os.Exit.
var (
	// ErrEmpty indicates prepareDynamicInput was called on an empty corpus.
	ErrEmpty = errors.New("corpus: empty")

	// ErrIdxOutOfRange indicates numTests was asked about an index
	// beyond the corpus size.
	ErrIdxOutOfRange = errors.New("corpus: idx out of range")
)
