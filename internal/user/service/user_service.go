package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ZewK3/Home-sub002/internal/user/domain"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("user not found")
)

// Repo is the user persistence used by the profile service.
type Repo interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	AdjustExp(ctx context.Context, id string, delta int64) (*domain.User, error)
}

// Service serves customer profiles and manual exp adjustments.
type Service struct {
	repo Repo
	log  zerolog.Logger
}

// NewService returns a profile Service.
func NewService(repo Repo, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Get returns the customer's profile.
func (s *Service) Get(ctx context.Context, userID string) (*domain.User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrValidation)
	}
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

// AdjustExp adds delta (which may be negative) to the customer's exp. The balance is clamped at
// zero and the rank recalculated. actorID is the employee making the change and is only logged.
func (s *Service) AdjustExp(ctx context.Context, actorID, userID string, delta int64) (*domain.User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrValidation)
	}
	if delta == 0 {
		return nil, fmt.Errorf("%w: expChange must be non-zero", ErrValidation)
	}
	u, err := s.repo.AdjustExp(ctx, userID, delta)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	s.log.Info().Str("actor_id", actorID).Str("user_id", userID).Int64("delta", delta).
		Int64("exp", u.Exp).Str("rank", string(u.Rank)).Msg("user exp adjusted")
	return u, nil
}
