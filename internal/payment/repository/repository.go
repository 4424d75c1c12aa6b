package repository

import (
	"context"

	"github.com/ZewK3/Home-sub002/internal/payment/domain"
)

// Repository defines persistence for ingested payments.
type Repository interface {
	// FindByExtractedID returns the payment or nil if none was ingested.
	FindByExtractedID(ctx context.Context, extractedID string) (*domain.Payment, error)
	// InsertBatch stores payments, skipping extracted ids that already exist. Returns the number inserted.
	InsertBatch(ctx context.Context, payments []*domain.Payment) (int, error)
}
