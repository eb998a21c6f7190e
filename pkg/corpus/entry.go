package corpus

import "github.com/corpusd/fuzzcorpus/pkg/covvec"

// Entry is one corpus-worthy test case (DynFile in spec terms).
//
// Data never mutates after insertion. Size always equals len(Data).
// Idx is corpus rank, restored by [Corpus.RenumerateInputs]: higher
// means better coverage. Tested counts selections since the last time
// the sampling cursor moved past this entry.
type Entry struct {
	Cov    covvec.Vector
	Size   int
	Data   []byte
	Idx    uint64
	Tested uint64
	Path   string
}

// node is one arena slot: an Entry plus its links in the corpus's
// doubly-linked ordering. Entries are append-only and never compacted
// during a run (spec §9's "Intrusive list -> owned sequence" design
// note), so indices into Corpus.nodes are stable for the life of the
// process and safe to hold as cursor/head/tail references.
type node struct {
	entry      *Entry
	prev, next int // -1 sentinel
}

const none = -1
