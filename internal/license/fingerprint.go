package license

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashFingerprint digests a device fingerprint for storage and comparison.
// Plaintext fingerprints never reach the database.
func HashFingerprint(fingerprint string) string {
	sum := sha256.Sum256([]byte(fingerprint))
	return hex.EncodeToString(sum[:])
}
