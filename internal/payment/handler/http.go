// Package handler serves payment confirmation lookups and bank-mail ingestion over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/ZewK3/Home-sub002/internal/api"
	"github.com/ZewK3/Home-sub002/internal/payment/domain"
	"github.com/ZewK3/Home-sub002/internal/payment/service"
	"github.com/ZewK3/Home-sub002/internal/platform/httpx"
	"github.com/ZewK3/Home-sub002/internal/security"
	"github.com/ZewK3/Home-sub002/internal/server/middleware"
	"github.com/ZewK3/Home-sub002/internal/telemetry"
	telemetrydomain "github.com/ZewK3/Home-sub002/internal/telemetry/domain"
)

// Payments is the payment service surface used by the handler.
type Payments interface {
	Check(ctx context.Context, correlationID string) (*service.CheckResult, error)
	Ingest(ctx context.Context, payments []*domain.Payment) (int, error)
}

// IngestAuthenticator validates the bank-mail bot's bearer token and returns its subject.
type IngestAuthenticator interface {
	Validate(tokenString string) (string, error)
}

type Handler struct {
	payments Payments
	ingest   IngestAuthenticator
	events   telemetry.EventEmitter
}

// NewHandler returns a Handler. events may be nil.
func NewHandler(payments Payments, ingest IngestAuthenticator, events telemetry.EventEmitter) *Handler {
	return &Handler{payments: payments, ingest: ingest, events: events}
}

// Check handles checkTransaction. It is public. An unknown id is not an error: the answer is
// {"success": false, "message": ...} with 200 so pollers can keep polling.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	id := httpx.Param(chi.URLParam(r, "transactionID"), r.URL.Query().Get("transactionId"))
	res, err := h.payments.Check(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			httpx.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		httpx.Internal(w, r, err)
		return
	}
	if !res.Found {
		httpx.JSON(w, http.StatusOK, api.CheckTransactionResponse{Success: false, Message: res.Message})
		return
	}
	httpx.JSON(w, http.StatusOK, api.CheckTransactionResponse{
		Success:     true,
		ID:          res.ID,
		Amount:      res.Amount,
		DateTime:    res.DateTime,
		Description: res.Description,
	})
}

// Ingest handles savePayment. The caller authenticates with an ingest JWT, not a session.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	subject, err := h.ingest.Validate(middleware.ExtractBearer(r))
	if err != nil {
		if errors.Is(err, security.ErrIngestDisabled) {
			httpx.Error(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		httpx.Error(w, http.StatusUnauthorized, "invalid ingest token")
		return
	}
	var req api.IngestRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	batch := make([]*domain.Payment, 0, len(req.Emails))
	for _, n := range req.Emails {
		batch = append(batch, &domain.Payment{
			ExtractedID:    n.ExtractedID,
			Amount:         n.Amount,
			AccountNumber:  n.AccountNumber,
			TransactionRef: n.TransactionRef,
			Description:    n.Description,
			DateTime:       n.DateTime,
		})
	}
	inserted, err := h.payments.Ingest(r.Context(), batch)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			httpx.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		httpx.Internal(w, r, err)
		return
	}
	hlog.FromRequest(r).Info().Str("ingest_subject", subject).Int("inserted", inserted).Msg("payment batch accepted")
	meta, _ := json.Marshal(map[string]int{"received": len(batch), "inserted": inserted})
	telemetry.EmitAsync(r.Context(), h.events, &telemetrydomain.Event{
		PrincipalID:   subject,
		PrincipalKind: "ingest",
		EventType:     "payments_ingested",
		Source:        "payment",
		Metadata:      meta,
	})
	httpx.JSON(w, http.StatusOK, api.IngestResponse{Success: true, Received: len(batch), Inserted: inserted})
}

var _ IngestAuthenticator = (*security.IngestTokens)(nil)
