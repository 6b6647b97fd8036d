package tabular

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// payloadChecksum computes the fast integrity checksum recorded in the
// cache manifest for every payload. xxHash64 is plenty here: the checksum
// guards against truncated or bit-rotted entries, not adversarial input.
func payloadChecksum(b []byte) string {
	return strconv.FormatUint(xxhash.Sum64(b), 16)
}
