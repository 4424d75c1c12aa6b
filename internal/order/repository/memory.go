package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ZewK3/Home-sub002/internal/order/domain"
	userdomain "github.com/ZewK3/Home-sub002/internal/user/domain"
)

// ExpAdjuster credits exp to a customer. *userrepo.MemoryRepository satisfies it.
type ExpAdjuster interface {
	AdjustExp(ctx context.Context, id string, delta int64) (*userdomain.User, error)
}

// MemoryRepository is an in-process order store for tests and local tooling.
type MemoryRepository struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
	users  ExpAdjuster
}

// NewMemoryRepository returns an empty store that credits exp through users.
func NewMemoryRepository(users ExpAdjuster) *MemoryRepository {
	return &MemoryRepository{orders: make(map[string]*domain.Order), users: users}
}

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Cart = append(domain.Cart(nil), o.Cart...)
	if o.Delivery != nil {
		d := *o.Delivery
		cp.Delivery = &d
	}
	return &cp
}

func (r *MemoryRepository) Create(ctx context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o.ClientRef != "" {
		for _, existing := range r.orders {
			if existing.PrincipalID == o.PrincipalID && existing.ClientRef == o.ClientRef {
				return ErrDuplicateClientRef
			}
		}
	}
	r.orders[o.OrderID] = cloneOrder(o)
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[orderID]; ok {
		return cloneOrder(o), nil
	}
	return nil, nil
}

func (r *MemoryRepository) GetByClientRef(ctx context.Context, principalID, clientRef string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.PrincipalID == principalID && o.ClientRef == clientRef {
			return cloneOrder(o), nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) ListByPrincipal(ctx context.Context, principalID string) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.orders {
		if o.PrincipalID == principalID {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) SetStatus(ctx context.Context, orderID string, status domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.Status.Terminal() {
		return ErrStatusConflict
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepository) CompleteWithExp(ctx context.Context, orderID, principalID string, expDelta int64) (int64, userdomain.Rank, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.Status.Terminal() {
		return 0, "", ErrStatusConflict
	}
	u, err := r.users.AdjustExp(ctx, principalID, expDelta)
	if err != nil {
		return 0, "", err
	}
	if u == nil {
		return 0, "", errors.New("credit exp: user not found")
	}
	o.Status = domain.StatusSuccess
	o.UpdatedAt = time.Now().UTC()
	return u.Exp, u.Rank, nil
}
