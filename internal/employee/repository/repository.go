package repository

import (
	"context"

	"github.com/ZewK3/Home-sub002/internal/employee/domain"
)

// Repository defines persistence for employees, pending and active.
type Repository interface {
	GetByID(ctx context.Context, employeeID string) (*domain.Employee, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, e *domain.Employee) error
}
