package repository

import (
	"context"

	"github.com/ZewK3/Home-sub002/internal/user/domain"
)

// Repository defines persistence for customers.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	// AdjustExp adds delta to the user's exp (clamped at zero), recalculates rank and returns the updated user,
	// or nil if the user does not exist.
	AdjustExp(ctx context.Context, id string, delta int64) (*domain.User, error)
}
