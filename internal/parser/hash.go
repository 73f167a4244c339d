package parser

import (
	"crypto/md5"
	"encoding/hex"
)

// ContentHash returns the stable digest of a raw message used as the
// cross-system deduplication key. The digest is the MD5 hex of the raw
// bytes; ledgers populated by earlier importers already store hashes in
// this form, so the algorithm and encoding must not change.
func ContentHash(raw string) string {
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}
