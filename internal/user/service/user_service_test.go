package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ZewK3/Home-sub002/internal/user/domain"
	"github.com/ZewK3/Home-sub002/internal/user/repository"
)

func TestAdjustExp(t *testing.T) {
	repo := repository.NewMemoryRepository()
	_ = repo.Create(context.Background(), &domain.User{ID: "u1", Name: "A", Email: "a@b.co", Exp: 900, Rank: domain.RankSilver})
	svc := NewService(repo, zerolog.Nop())
	ctx := context.Background()

	u, err := svc.AdjustExp(ctx, "AD01", "u1", 150)
	if err != nil {
		t.Fatalf("AdjustExp: %v", err)
	}
	if u.Exp != 1050 || u.Rank != domain.RankGold {
		t.Errorf("after +150 = %d/%q, want 1050/%q", u.Exp, u.Rank, domain.RankGold)
	}

	u, err = svc.AdjustExp(ctx, "AD01", "u1", -5000)
	if err != nil {
		t.Fatalf("AdjustExp(negative): %v", err)
	}
	if u.Exp != 0 || u.Rank != domain.RankBronze {
		t.Errorf("after -5000 = %d/%q, want 0/%q", u.Exp, u.Rank, domain.RankBronze)
	}

	if _, err := svc.AdjustExp(ctx, "AD01", "missing", 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing user err = %v, want ErrNotFound", err)
	}
	if _, err := svc.AdjustExp(ctx, "AD01", "u1", 0); !errors.Is(err, ErrValidation) {
		t.Errorf("zero delta err = %v, want ErrValidation", err)
	}
}

func TestGet(t *testing.T) {
	repo := repository.NewMemoryRepository()
	_ = repo.Create(context.Background(), &domain.User{ID: "u1", Name: "A", Email: "a@b.co"})
	svc := NewService(repo, zerolog.Nop())

	u, err := svc.Get(context.Background(), "u1")
	if err != nil || u.Name != "A" {
		t.Fatalf("Get = %+v, %v", u, err)
	}
	if _, err := svc.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := svc.Get(context.Background(), ""); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}
