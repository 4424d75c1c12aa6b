// Package service implements the session authority: issuing opaque tokens for principals and
// resolving tokens back to principals with lazy expiry.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZewK3/Home-sub002/internal/security"
	"github.com/ZewK3/Home-sub002/internal/session/domain"
)

// Sentinel errors for the session authority; the HTTP layer maps the auth errors to 401
// and ErrStorage to 500.
var (
	ErrMissingToken = errors.New("missing session token")
	ErrInvalidToken = errors.New("invalid session token")
	ErrExpiredToken = errors.New("session token expired")
	ErrStorage      = errors.New("session storage failure")
)

// IsAuthError reports whether err is one of the client-facing authentication errors.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrMissingToken) || errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrExpiredToken)
}

// SessionRepo is the minimal session repository needed by the authority.
type SessionRepo interface {
	GetByToken(ctx context.Context, token string) (*domain.Session, error)
	Upsert(ctx context.Context, s *domain.Session) error
	DeleteByToken(ctx context.Context, token string) error
	UpdateLastAccess(ctx context.Context, token string, at time.Time) error
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Issued is the result of Issue.
type Issued struct {
	Token       string
	PrincipalID string
	ExpiresAt   time.Time
	LastAccess  time.Time
}

// Authority issues and validates opaque session tokens.
type Authority struct {
	repo     SessionRepo
	ttl      time.Duration
	leeway   time.Duration
	log      zerolog.Logger
	nowF     func() time.Time
	newToken func() (string, error)
}

// Option configures an Authority.
type Option func(*Authority)

// WithLeeway accepts tokens up to d past ExpiresAt to absorb clock skew between writers.
func WithLeeway(d time.Duration) Option {
	return func(a *Authority) {
		if d > 0 {
			a.leeway = d
		}
	}
}

// WithLogger sets the logger used for best-effort failures.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Authority) { a.log = l }
}

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(a *Authority) { a.nowF = now }
}

// WithTokenGenerator overrides the token generator. Tests only.
func WithTokenGenerator(gen func() (string, error)) Option {
	return func(a *Authority) { a.newToken = gen }
}

// NewAuthority returns an Authority storing sessions in repo with lifetime ttl (1h when <= 0).
func NewAuthority(repo SessionRepo, ttl time.Duration, opts ...Option) *Authority {
	if ttl <= 0 {
		ttl = time.Hour
	}
	a := &Authority{
		repo:     repo,
		ttl:      ttl,
		log:      zerolog.Nop(),
		nowF:     func() time.Time { return time.Now().UTC() },
		newToken: security.NewSessionToken,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// TTL returns the configured session lifetime.
func (a *Authority) TTL() time.Duration { return a.ttl }

// Issue creates a fresh session for p, replacing any existing session of the same principal.
// The previous token (if any) stops validating once Issue returns.
func (a *Authority) Issue(ctx context.Context, p domain.Principal) (*Issued, error) {
	if p.ID == "" || !p.Kind.Valid() {
		return nil, fmt.Errorf("issue session: invalid principal %q/%q", p.ID, p.Kind)
	}
	token, err := a.newToken()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	now := a.nowF()
	s := &domain.Session{
		Token:         token,
		PrincipalID:   p.ID,
		PrincipalKind: p.Kind,
		PrincipalRole: p.Role,
		ExpiresAt:     now.Add(a.ttl),
		LastAccess:    now,
		CreatedAt:     now,
	}
	if err := a.repo.Upsert(ctx, s); err != nil {
		return nil, fmt.Errorf("%w: upsert: %w", ErrStorage, err)
	}
	return &Issued{Token: token, PrincipalID: p.ID, ExpiresAt: s.ExpiresAt, LastAccess: now}, nil
}

// Validate resolves token to its principal.
//
// An expired row is deleted before ErrExpiredToken is returned, so the same token reports
// ErrInvalidToken afterwards. On success LastAccess is refreshed best-effort; ExpiresAt never moves.
// The read and the touch are separate statements: a concurrent Issue for the same principal may
// land between them, in which case the touch updates nothing.
func (a *Authority) Validate(ctx context.Context, token string) (domain.Principal, error) {
	if token == "" {
		return domain.Principal{}, ErrMissingToken
	}
	s, err := a.repo.GetByToken(ctx, token)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: lookup: %w", ErrStorage, err)
	}
	if s == nil {
		return domain.Principal{}, ErrInvalidToken
	}
	now := a.nowF()
	if s.ExpiredAt(now, a.leeway) {
		if err := a.repo.DeleteByToken(ctx, token); err != nil {
			a.log.Warn().Err(err).Str("principal_id", s.PrincipalID).Msg("session: failed to delete expired session")
		}
		return domain.Principal{}, ErrExpiredToken
	}
	if err := a.repo.UpdateLastAccess(ctx, token, now); err != nil {
		a.log.Warn().Err(err).Str("principal_id", s.PrincipalID).Msg("session: failed to update last access")
	}
	return s.Principal(), nil
}

// Revoke deletes the session for token (logout). Unknown tokens are not an error.
func (a *Authority) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return ErrMissingToken
	}
	if err := a.repo.DeleteByToken(ctx, token); err != nil {
		return fmt.Errorf("%w: delete: %w", ErrStorage, err)
	}
	return nil
}

// Reap deletes every session already past ExpiresAt+leeway and returns how many were removed.
// Lazy expiry in Validate does not depend on it.
func (a *Authority) Reap(ctx context.Context) (int64, error) {
	n, err := a.repo.DeleteExpiredBefore(ctx, a.nowF().Add(-a.leeway))
	if err != nil {
		return 0, fmt.Errorf("%w: reap: %w", ErrStorage, err)
	}
	return n, nil
}

// RunReaper calls Reap every interval until ctx is done.
func (a *Authority) RunReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := a.Reap(ctx)
			if err != nil {
				a.log.Error().Err(err).Msg("session: reap failed")
				continue
			}
			if n > 0 {
				a.log.Debug().Int64("deleted", n).Msg("session: reaped expired sessions")
			}
		}
	}
}
