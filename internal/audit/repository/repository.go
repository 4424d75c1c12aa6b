package repository

import (
	"context"

	"github.com/ZewK3/Home-sub002/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	ListByPrincipal(ctx context.Context, principalID string, limit, offset int32) ([]*domain.AuditLog, error)
}
