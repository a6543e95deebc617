package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the content fingerprint of raw document bytes. Identical
// bytes always produce the identical fingerprint, which is what document
// dedup and idempotent re-ingestion key on.
func Fingerprint(b []byte) string {
	x := sha256.Sum256(b)
	return hex.EncodeToString(x[:])
}
