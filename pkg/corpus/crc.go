package corpus

import (
	"fmt"
	"hash/crc64"
)

// isoTable is the fixed polynomial required by spec §6 for output
// filename stability: "identical output across platforms required for
// output-directory stability across runs." hash/crc64's ISO polynomial
// is computed once and reused for both the forward and reverse digests.
//
// No third-party CRC64 implementation appears anywhere in the retrieval
// pack (see DESIGN.md); the standard library's well-defined, unextended
// CRC64 is used directly rather than reaching for an unrelated library.
var isoTable = crc64.MakeTable(crc64.ISO)

// crc64Forward computes CRC64-ISO over data as given.
func crc64Forward(data []byte) uint64 {
	return crc64.Checksum(data, isoTable)
}

// crc64Reverse computes CRC64-ISO over data with its byte order
// reversed, giving an independent second digest from the same bytes -
// the pair is the content-identity tuple from spec §6.
func crc64Reverse(data []byte) uint64 {
	reversed := make([]byte, len(data))
	for i, b := range data {
		reversed[len(data)-1-i] = b
	}

	return crc64.Checksum(reversed, isoTable)
}

// covFileName builds the content-addressed name from spec §6:
// {16-hex crc64-forward}{16-hex crc64-reverse}.{8-hex length}.honggfuzz.cov
func covFileName(data []byte) string {
	return fmt.Sprintf("%016x%016x.%08x.honggfuzz.cov", crc64Forward(data), crc64Reverse(data), len(data))
}
