package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2SaltLen = 16
	pbkdf2KeyLen  = 32
)

// ErrMalformedHash is returned when a stored PBKDF2 hash or salt is not valid hex.
var ErrMalformedHash = errors.New("malformed password hash")

// PBKDF2Hasher derives employee password hashes with PBKDF2-HMAC-SHA256.
// Hash and salt are stored hex-encoded in separate columns.
type PBKDF2Hasher struct {
	Iterations int
}

// NewPBKDF2Hasher returns a hasher with the given iteration count (100000 when <= 0).
func NewPBKDF2Hasher(iterations int) *PBKDF2Hasher {
	if iterations <= 0 {
		iterations = 100000
	}
	return &PBKDF2Hasher{Iterations: iterations}
}

// Hash derives a key for password with a fresh random salt.
func (h *PBKDF2Hasher) Hash(password string) (hashHex, saltHex string, err error) {
	salt := make([]byte, pbkdf2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", "", err
	}
	key := pbkdf2.Key([]byte(password), salt, h.Iterations, pbkdf2KeyLen, sha256.New)
	return hex.EncodeToString(key), hex.EncodeToString(salt), nil
}

// Verify reports whether password derives to hashHex under saltHex.
func (h *PBKDF2Hasher) Verify(password, hashHex, saltHex string) (bool, error) {
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false, ErrMalformedHash
	}
	want, err := hex.DecodeString(hashHex)
	if err != nil || len(want) == 0 {
		return false, ErrMalformedHash
	}
	got := pbkdf2.Key([]byte(password), salt, h.Iterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
