package repository

import (
	"context"
	"time"

	"github.com/ZewK3/Home-sub002/internal/session/domain"
)

// Repository defines persistence for sessions.
type Repository interface {
	// GetByToken returns the session for token, or nil if not found.
	GetByToken(ctx context.Context, token string) (*domain.Session, error)
	// Upsert stores s as the only session of (s.PrincipalKind, s.PrincipalID), replacing any previous one.
	Upsert(ctx context.Context, s *domain.Session) error
	// DeleteByToken removes the session with token. Missing rows are not an error.
	DeleteByToken(ctx context.Context, token string) error
	// UpdateLastAccess sets last_access for token. Missing rows are not an error.
	UpdateLastAccess(ctx context.Context, token string, at time.Time) error
	// DeleteExpiredBefore removes sessions whose ExpiresAt is before cutoff and returns how many.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
