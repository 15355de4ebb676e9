// Package checksum provides content hashing for import source files and rows.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// BytesSHA256 returns the hex-encoded SHA-256 digest of in-memory data.
// Used as the source identity of an import batch.
func BytesSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Record returns a fast content hash over one CSV record, stored alongside
// the raw row for provenance. Not cryptographic; xxhash is enough to spot
// identical rows across batches.
func Record(fields []string) string {
	digest := xxhash.New()
	for i, f := range fields {
		if i > 0 {
			digest.WriteString(";")
		}
		digest.WriteString(strings.TrimSpace(f))
	}
	return strconv.FormatUint(digest.Sum64(), 16)
}
