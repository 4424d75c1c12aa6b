package repository

import (
	"context"
	"errors"

	"github.com/ZewK3/Home-sub002/internal/order/domain"
	userdomain "github.com/ZewK3/Home-sub002/internal/user/domain"
)

var (
	// ErrDuplicateClientRef is returned by Create when the principal already has an order for the client ref.
	ErrDuplicateClientRef = errors.New("order already exists for client reference")
	// ErrStatusConflict is returned when the order is no longer in a status the update may start from.
	ErrStatusConflict = errors.New("order status changed concurrently")
)

// Repository defines persistence for orders.
type Repository interface {
	Create(ctx context.Context, o *domain.Order) error
	// GetByID returns the order or nil if not found.
	GetByID(ctx context.Context, orderID string) (*domain.Order, error)
	// GetByClientRef returns the principal's order created from the client's temporary id, or nil.
	GetByClientRef(ctx context.Context, principalID, clientRef string) (*domain.Order, error)
	// ListByPrincipal returns the principal's orders, newest first.
	ListByPrincipal(ctx context.Context, principalID string) ([]*domain.Order, error)
	// SetStatus moves an open (pending or awaiting_payment) order to status. Returns ErrStatusConflict
	// when the order is already terminal.
	SetStatus(ctx context.Context, orderID string, status domain.Status) error
	// CompleteWithExp flips an open order to success and credits expDelta to the principal in one
	// transaction. Returns the principal's new exp and rank.
	CompleteWithExp(ctx context.Context, orderID, principalID string, expDelta int64) (int64, userdomain.Rank, error)
}
