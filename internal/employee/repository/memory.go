package repository

import (
	"context"
	"sync"

	"github.com/ZewK3/Home-sub002/internal/employee/domain"
)

// MemoryRepository is an in-process employee store for tests and local tooling.
type MemoryRepository struct {
	mu        sync.RWMutex
	employees map[string]*domain.Employee
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{employees: make(map[string]*domain.Employee)}
}

func (r *MemoryRepository) GetByID(ctx context.Context, employeeID string) (*domain.Employee, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.employees[employeeID]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (r *MemoryRepository) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.employees {
		if e.Phone == phone {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.employees {
		if e.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) Create(ctx context.Context, e *domain.Employee) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.employees[e.EmployeeID] = &cp
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
