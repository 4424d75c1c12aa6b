package repository

import (
	"context"
	"database/sql"

	"github.com/ZewK3/Home-sub002/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the audit log. The audit log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	meta := sql.NullString{String: a.Metadata, Valid: a.Metadata != ""}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO audit_logs (id, principal_id, action, resource, ip, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.PrincipalID, a.Action, a.Resource, a.IP, meta, a.CreatedAt)
	return err
}

// ListByPrincipal returns the principal's audit logs, newest first, paginated by limit and offset.
func (r *PostgresRepository) ListByPrincipal(ctx context.Context, principalID string, limit, offset int32) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, principal_id, action, resource, ip, metadata, created_at
FROM audit_logs WHERE principal_id = $1
ORDER BY created_at DESC LIMIT $2 OFFSET $3`, principalID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		var (
			a    domain.AuditLog
			meta sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.PrincipalID, &a.Action, &a.Resource, &a.IP, &meta, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Metadata = meta.String
		out = append(out, &a)
	}
	return out, rows.Err()
}
