package domain

import "time"

// PrincipalKind distinguishes the two kinds of authenticated principals.
type PrincipalKind string

const (
	PrincipalCustomer PrincipalKind = "customer"
	PrincipalEmployee PrincipalKind = "employee"
)

// Valid reports whether k is a known principal kind.
func (k PrincipalKind) Valid() bool {
	return k == PrincipalCustomer || k == PrincipalEmployee
}

// Principal is the identity a session token resolves to.
type Principal struct {
	ID   string
	Kind PrincipalKind
	// Role is the employee position (e.g. "AD", "QL", "NV"); empty for customers.
	Role string
}

// Session is the single active session of a principal. Token is opaque and unique;
// PrincipalID is unique across sessions (a new login replaces the previous row).
type Session struct {
	Token         string
	PrincipalID   string
	PrincipalKind PrincipalKind
	PrincipalRole string
	ExpiresAt     time.Time
	LastAccess    time.Time
	CreatedAt     time.Time
}

// Principal returns the principal the session belongs to.
func (s *Session) Principal() Principal {
	return Principal{ID: s.PrincipalID, Kind: s.PrincipalKind, Role: s.PrincipalRole}
}

// ExpiredAt reports whether the session is past ExpiresAt+leeway at now.
func (s *Session) ExpiredAt(now time.Time, leeway time.Duration) bool {
	return now.After(s.ExpiresAt.Add(leeway))
}
