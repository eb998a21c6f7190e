// Package dictionary loads the fuzzer's token dictionary: a flat file of
// quoted, escaped byte strings used by the (out-of-scope) mutation engine
// as insertion candidates.
package dictionary

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/corpusd/fuzzcorpus/pkg/corpuslog"
)

// MaxEntryLen is the maximum stored length of a single dictionary entry;
// decoded payloads are truncated to this length.
const MaxEntryLen = 256

// MaxEntries is the maximum number of entries a Dictionary holds.
// Exceeding it stops the load early (the remaining lines are not read);
// already-loaded entries are kept.
const MaxEntries = 1 << 15

// maxRawPayloadLen bounds the quoted-and-escaped substring taken from a
// line before decoding, per spec §4.4 ("up to 1024 bytes").
const maxRawPayloadLen = 1024

// Entry is one dictionary token.
type Entry struct {
	Data []byte
	Len  int
}

// Dictionary is a bounded, read-only, once-parsed list of entries.
type Dictionary struct {
	entries []Entry
}

// Len returns the number of loaded entries.
func (d *Dictionary) Len() int {
	return len(d.entries)
}

// At returns the entry at index i.
func (d *Dictionary) At(i int) Entry {
	return d.entries[i]
}

// Entries returns all loaded entries. The returned slice must not be mutated.
func (d *Dictionary) Entries() []Entry {
	return d.entries
}

// Load parses the dictionary file at path.
//
// Lines starting with '#' and blank lines are comments, skipped silently.
// A valid line contains a pair of '"' delimiters; everything between the
// first and last '"' is the payload, decoded via the escape grammar in
// this package and truncated to [MaxEntryLen]. Malformed lines (no quote
// pair, bad escape, empty payload) are logged and skipped - not fatal.
// Reaching [MaxEntries] logs a warning and stops the load.
func Load(path string, logger corpuslog.Logger) (*Dictionary, error) {
	logger = corpuslog.OrDiscard(logger)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dictionary: open %q: %w", path, err)
	}
	defer f.Close()

	d := &Dictionary{}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := strings.TrimRight(scanner.Text(), "\n")

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry, ok := parseLine(line, logger, lineNo)
		if !ok {
			continue
		}

		if len(d.entries) >= MaxEntries {
			logger.Warnf("dictionary: reached max entries (%d), stopping load at line %d", MaxEntries, lineNo)

			break
		}

		d.entries = append(d.entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dictionary: read %q: %w", path, err)
	}

	return d, nil
}

func parseLine(line string, logger corpuslog.Logger, lineNo int) (Entry, bool) {
	first := strings.IndexByte(line, '"')
	last := strings.LastIndexByte(line, '"')

	if first < 0 || last <= first {
		logger.Warnf("dictionary: line %d malformed (missing quote pair), skipped", lineNo)

		return Entry{}, false
	}

	raw := []byte(line[first+1 : last])
	if len(raw) == 0 {
		logger.Warnf("dictionary: line %d is an empty entry, skipped", lineNo)

		return Entry{}, false
	}

	if len(raw) > maxRawPayloadLen {
		raw = raw[:maxRawPayloadLen]
	}

	decoded, err := decodeEscapes(raw)
	if err != nil {
		logger.Warnf("dictionary: line %d malformed (%v), skipped", lineNo, err)

		return Entry{}, false
	}

	if len(decoded) > MaxEntryLen {
		decoded = decoded[:MaxEntryLen]
	}

	data := bytes.Clone(decoded)

	return Entry{Data: data, Len: len(data)}, true
}
