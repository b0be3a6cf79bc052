// Package checksum computes fast content fingerprints used as ETags.
package checksum

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// Sum returns the hex-encoded XXH3-64 digest of data.
func Sum(data []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}

// ETag returns Sum(data) as a quoted strong entity tag.
func ETag(data []byte) string {
	return `"` + Sum(data) + `"`
}
