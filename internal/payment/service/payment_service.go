// Package service answers payment confirmation queries and ingests parsed bank notifications.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZewK3/Home-sub002/internal/payment/domain"
)

// ErrValidation is returned for malformed lookups and ingest batches.
var ErrValidation = errors.New("validation failed")

// Repo is the payment persistence used by the service.
type Repo interface {
	FindByExtractedID(ctx context.Context, extractedID string) (*domain.Payment, error)
	InsertBatch(ctx context.Context, payments []*domain.Payment) (int, error)
}

// CheckResult is the answer to "has this transaction been paid?". Found is false with a
// Message when no payment carries the correlation id.
type CheckResult struct {
	Found       bool
	ID          string
	Amount      int64
	DateTime    *time.Time
	Description string
	Message     string
}

// Service implements payment confirmation lookups and batch ingestion.
type Service struct {
	repo Repo
	log  zerolog.Logger
	nowF func() time.Time
}

// NewService returns a Service backed by repo.
func NewService(repo Repo, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log, nowF: func() time.Time { return time.Now().UTC() }}
}

// Check looks up the payment whose extracted id equals correlationID ("ID<transactionId>").
func (s *Service) Check(ctx context.Context, correlationID string) (*CheckResult, error) {
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return nil, fmt.Errorf("%w: transactionId is required", ErrValidation)
	}
	p, err := s.repo.FindByExtractedID(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return &CheckResult{Message: "transaction not found"}, nil
	}
	return &CheckResult{
		Found:       true,
		ID:          p.ExtractedID,
		Amount:      p.Amount,
		DateTime:    p.DateTime,
		Description: p.Description,
	}, nil
}

// Ingest validates and stores a batch of notifications. Duplicates within the batch and ids that
// were already ingested are skipped. Returns the number of new payments.
func (s *Service) Ingest(ctx context.Context, payments []*domain.Payment) (int, error) {
	if len(payments) == 0 {
		return 0, fmt.Errorf("%w: emails must be a non-empty list", ErrValidation)
	}
	now := s.nowF()
	seen := make(map[string]struct{}, len(payments))
	batch := make([]*domain.Payment, 0, len(payments))
	for i, p := range payments {
		if p == nil {
			return 0, fmt.Errorf("%w: entry %d is empty", ErrValidation, i)
		}
		p.ExtractedID = strings.TrimSpace(p.ExtractedID)
		if err := p.Validate(); err != nil {
			return 0, fmt.Errorf("%w: entry %d: %v", ErrValidation, i, err)
		}
		if _, dup := seen[p.ExtractedID]; dup {
			continue
		}
		seen[p.ExtractedID] = struct{}{}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		batch = append(batch, p)
	}
	n, err := s.repo.InsertBatch(ctx, batch)
	if err != nil {
		return 0, err
	}
	s.log.Info().Int("received", len(payments)).Int("inserted", n).Msg("payments ingested")
	return n, nil
}
