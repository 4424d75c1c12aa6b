// Package handler serves registration, login and session introspection over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ZewK3/Home-sub002/internal/api"
	employeedomain "github.com/ZewK3/Home-sub002/internal/employee/domain"
	"github.com/ZewK3/Home-sub002/internal/identity/service"
	"github.com/ZewK3/Home-sub002/internal/platform/httpx"
	"github.com/ZewK3/Home-sub002/internal/server/middleware"
	"github.com/ZewK3/Home-sub002/internal/telemetry"
	telemetrydomain "github.com/ZewK3/Home-sub002/internal/telemetry/domain"
)

// Status codes the storefront's employee registration page keys its duplicate messages on.
const (
	StatusEmployeeIDTaken    = 209
	StatusPhoneTaken         = 210
	StatusEmployeeEmailTaken = 211
)

// Authenticator is the identity service surface used by the handler.
type Authenticator interface {
	RegisterCustomer(ctx context.Context, name, email, password string) (*service.AuthResult, error)
	LoginCustomer(ctx context.Context, email, password string) (*service.AuthResult, error)
	RegisterEmployee(ctx context.Context, e *employeedomain.Employee, password string) (*service.EmployeeRegistration, error)
	LoginEmployee(ctx context.Context, employeeID, password string) (*service.AuthResult, error)
	Logout(ctx context.Context, token string) error
}

// Handler serves the public identity actions.
type Handler struct {
	auth   Authenticator
	events telemetry.EventEmitter
}

// NewHandler returns a Handler. events may be nil.
func NewHandler(auth Authenticator, events telemetry.EventEmitter) *Handler {
	return &Handler{auth: auth, events: events}
}

// RegisterCustomer handles registerUser.
func (h *Handler) RegisterCustomer(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterCustomerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.auth.RegisterCustomer(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.emit(r.Context(), res, "customer_registered")
	httpx.JSON(w, http.StatusOK, toSession(res))
}

// LoginCustomer handles loginUser.
func (h *Handler) LoginCustomer(w http.ResponseWriter, r *http.Request) {
	var req api.LoginCustomerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.auth.LoginCustomer(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.emit(r.Context(), res, "login_success")
	httpx.JSON(w, http.StatusOK, toSession(res))
}

// RegisterEmployee handles register. Duplicates answer 209 (id), 210 (phone) or 211 (email).
func (h *Handler) RegisterEmployee(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterEmployeeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	e := &employeedomain.Employee{
		EmployeeID: req.EmployeeID,
		FullName:   strings.TrimSpace(req.FullName),
		StoreName:  strings.TrimSpace(req.StoreName),
		Position:   strings.ToUpper(strings.TrimSpace(req.Position)),
		Phone:      req.Phone,
		Email:      req.Email,
	}
	if req.JoinDate != "" {
		d, err := time.Parse(time.DateOnly, req.JoinDate)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "joinDate must be YYYY-MM-DD")
			return
		}
		e.JoinDate = &d
	}
	reg, err := h.auth.RegisterEmployee(r.Context(), e, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	msg := "registration received; awaiting approval"
	if reg.Status == employeedomain.StatusActive {
		msg = "registration complete"
	}
	httpx.JSON(w, http.StatusOK, api.EmployeeRegistrationResponse{
		EmployeeID: reg.EmployeeID,
		Status:     string(reg.Status),
		Message:    msg,
	})
}

// LoginEmployee handles login.
func (h *Handler) LoginEmployee(w http.ResponseWriter, r *http.Request) {
	var req api.LoginEmployeeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.auth.LoginEmployee(r.Context(), req.EmployeeID, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.emit(r.Context(), res, "login_success")
	httpx.JSON(w, http.StatusOK, toSession(res))
}

// Me returns the principal the request's session resolved to.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	httpx.JSON(w, http.StatusOK, api.MeResponse{PrincipalID: p.ID, Kind: string(p.Kind), Role: p.Role})
}

// Logout revokes the session the request authenticated with.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	if err := h.auth.Logout(r.Context(), middleware.ExtractToken(r)); err != nil {
		httpx.Internal(w, r, err)
		return
	}
	telemetry.EmitAsync(r.Context(), h.events, &telemetrydomain.Event{
		PrincipalID:   p.ID,
		PrincipalKind: string(p.Kind),
		EventType:     "logout",
		Source:        "identity",
	})
	httpx.JSON(w, http.StatusOK, api.StatusResponse{Success: true})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		httpx.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrUnknownAccount):
		httpx.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.Error(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrPendingApproval):
		httpx.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrEmployeeIDTaken):
		httpx.Error(w, StatusEmployeeIDTaken, err.Error())
	case errors.Is(err, service.ErrPhoneTaken):
		httpx.Error(w, StatusPhoneTaken, err.Error())
	case errors.Is(err, service.ErrEmployeeEmailTaken):
		httpx.Error(w, StatusEmployeeEmailTaken, err.Error())
	default:
		httpx.Internal(w, r, err)
	}
}

func (h *Handler) emit(ctx context.Context, res *service.AuthResult, eventType string) {
	telemetry.EmitAsync(ctx, h.events, &telemetrydomain.Event{
		PrincipalID:   res.PrincipalID,
		PrincipalKind: string(res.Kind),
		EventType:     eventType,
		Source:        "identity",
	})
}

func toSession(res *service.AuthResult) api.SessionResponse {
	return api.SessionResponse{
		Token:       res.Token,
		PrincipalID: res.PrincipalID,
		Kind:        string(res.Kind),
		Name:        res.Name,
		ExpiresAt:   res.ExpiresAt,
		LastAccess:  res.LastAccess,
	}
}
