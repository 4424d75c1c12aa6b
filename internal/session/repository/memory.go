package repository

import (
	"context"
	"sync"
	"time"

	"github.com/ZewK3/Home-sub002/internal/session/domain"
)

// MemoryRepository is an in-memory Repository with the same single-session-per-principal
// semantics as the Postgres table. Used by tests and local tooling.
type MemoryRepository struct {
	mu          sync.RWMutex
	byToken     map[string]*domain.Session
	byPrincipal map[principalKey]string
}

type principalKey struct {
	kind domain.PrincipalKind
	id   string
}

func keyOf(s *domain.Session) principalKey {
	return principalKey{kind: s.PrincipalKind, id: s.PrincipalID}
}

// NewMemoryRepository returns an empty in-memory session repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byToken:     make(map[string]*domain.Session),
		byPrincipal: make(map[principalKey]string),
	}
}

// GetByToken returns a copy of the session for token, or nil if not found.
func (r *MemoryRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byToken[token]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// Upsert stores s and drops the principal's previous token.
func (r *MemoryRepository) Upsert(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := keyOf(s)
	if old, ok := r.byPrincipal[key]; ok {
		delete(r.byToken, old)
	}
	cp := *s
	r.byToken[s.Token] = &cp
	r.byPrincipal[key] = s.Token
	return nil
}

// DeleteByToken removes the session with token.
func (r *MemoryRepository) DeleteByToken(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteLocked(token)
	return nil
}

// UpdateLastAccess sets LastAccess for token.
func (r *MemoryRepository) UpdateLastAccess(ctx context.Context, token string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byToken[token]; ok {
		s.LastAccess = at
	}
	return nil
}

// DeleteExpiredBefore removes sessions whose ExpiresAt is before cutoff.
func (r *MemoryRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for token, s := range r.byToken {
		if s.ExpiresAt.Before(cutoff) {
			r.deleteLocked(token)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byToken)
}

func (r *MemoryRepository) deleteLocked(token string) {
	s, ok := r.byToken[token]
	if !ok {
		return
	}
	delete(r.byToken, token)
	if key := keyOf(s); r.byPrincipal[key] == token {
		delete(r.byPrincipal, key)
	}
}
