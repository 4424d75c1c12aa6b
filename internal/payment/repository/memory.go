package repository

import (
	"context"
	"sync"

	"github.com/ZewK3/Home-sub002/internal/payment/domain"
)

// MemoryRepository is an in-process payment store for tests and local tooling.
type MemoryRepository struct {
	mu       sync.RWMutex
	payments map[string]*domain.Payment
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{payments: make(map[string]*domain.Payment)}
}

func (r *MemoryRepository) FindByExtractedID(ctx context.Context, extractedID string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.payments[extractedID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r *MemoryRepository) InsertBatch(ctx context.Context, payments []*domain.Payment) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inserted := 0
	for _, p := range payments {
		if _, ok := r.payments[p.ExtractedID]; ok {
			continue
		}
		cp := *p
		r.payments[p.ExtractedID] = &cp
		inserted++
	}
	return inserted, nil
}
