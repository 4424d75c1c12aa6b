package security

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies customer passwords using bcrypt. Callers must not log or
// persist plaintext passwords.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost (4–31). Cost 12 is a
// reasonable default for interactive login.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash produces a bcrypt hash of password suitable for storage.
func (h *Hasher) Hash(password []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(password, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare verifies password against the stored hash using constant-time
// comparison. Returns nil if they match.
func (h *Hasher) Compare(hash string, password []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), password)
}

// Verify checks password against either a bcrypt hash or a legacy unsalted SHA-256 hex hash.
// needsUpgrade is true when the stored hash is legacy and should be replaced with Hash(password).
func (h *Hasher) Verify(stored string, password []byte) (ok, needsUpgrade bool) {
	if IsBcryptHash(stored) {
		return h.Compare(stored, password) == nil, false
	}
	if LegacyHashEqual(string(password), stored) {
		return true, true
	}
	return false, false
}

// IsBcryptHash reports whether stored looks like a bcrypt hash ($2a$, $2b$, $2y$).
func IsBcryptHash(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$")
}
