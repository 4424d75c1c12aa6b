// Package handler serves customer profiles and exp adjustments over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ZewK3/Home-sub002/internal/api"
	"github.com/ZewK3/Home-sub002/internal/platform/httpx"
	"github.com/ZewK3/Home-sub002/internal/server/middleware"
	"github.com/ZewK3/Home-sub002/internal/user/domain"
	"github.com/ZewK3/Home-sub002/internal/user/service"
)

// Users is the profile service surface used by the handler.
type Users interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	AdjustExp(ctx context.Context, actorID, userID string, delta int64) (*domain.User, error)
}

type Handler struct {
	users Users
}

func NewHandler(users Users) *Handler {
	return &Handler{users: users}
}

// Get handles getUser: the calling customer's own profile.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.GetPrincipal(r.Context())
	u, err := h.users.Get(r.Context(), p.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toUser(u))
}

// AdjustExp handles adjustUserExp. The policy restricts it to admin employees.
func (h *Handler) AdjustExp(w http.ResponseWriter, r *http.Request) {
	var req api.AdjustExpRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	actor, _ := middleware.GetPrincipal(r.Context())
	userID := httpx.Param(chi.URLParam(r, "userID"), req.UserID)
	u, err := h.users.AdjustExp(r.Context(), actor.ID, userID, req.ExpChange)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toUser(u))
}

func fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		httpx.Error(w, http.StatusNotFound, err.Error())
	default:
		httpx.Internal(w, r, err)
	}
}

func toUser(u *domain.User) api.UserResponse {
	return api.UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Exp: u.Exp, Rank: string(u.Rank)}
}
