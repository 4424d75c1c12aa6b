package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// LegacySHA256Hex returns the unsalted SHA-256 hex digest that older customer accounts were stored with.
func LegacySHA256Hex(password string) string {
	h := sha256.Sum256([]byte(password))
	return hex.EncodeToString(h[:])
}

// LegacyHashEqual performs constant-time comparison of the password's legacy digest
// with the stored hex hash (case-insensitive).
func LegacyHashEqual(password, storedHex string) bool {
	provided := LegacySHA256Hex(password)
	return subtle.ConstantTimeCompare([]byte(provided), []byte(strings.ToLower(storedHex))) == 1
}
