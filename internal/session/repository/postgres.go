package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ZewK3/Home-sub002/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `token, principal_id, principal_kind, principal_role, expires_at, last_access, created_at`

// GetByToken returns the session for token, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token = $1`, token)
	var (
		s    domain.Session
		kind string
	)
	err := row.Scan(&s.Token, &s.PrincipalID, &kind, &s.PrincipalRole, &s.ExpiresAt, &s.LastAccess, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.PrincipalKind = domain.PrincipalKind(kind)
	return &s, nil
}

// Upsert inserts the session or replaces the existing row for the same (kind, id) in one statement,
// so the previous token stops resolving as soon as the new one is stored.
func (r *PostgresRepository) Upsert(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO sessions (`+sessionColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (principal_kind, principal_id) DO UPDATE SET
    token          = EXCLUDED.token,
    principal_role = EXCLUDED.principal_role,
    expires_at     = EXCLUDED.expires_at,
    last_access    = EXCLUDED.last_access,
    created_at     = EXCLUDED.created_at`,
		s.Token, s.PrincipalID, string(s.PrincipalKind), s.PrincipalRole, s.ExpiresAt, s.LastAccess, s.CreatedAt,
	)
	return err
}

// DeleteByToken removes the session with token.
func (r *PostgresRepository) DeleteByToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	return err
}

// UpdateLastAccess sets the session's last-access timestamp. ExpiresAt is not touched.
func (r *PostgresRepository) UpdateLastAccess(ctx context.Context, token string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET last_access = $2 WHERE token = $1`, token, at)
	return err
}

// DeleteExpiredBefore removes sessions that expired before cutoff.
func (r *PostgresRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
