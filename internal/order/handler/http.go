// Package handler serves the order actions over HTTP. Every route is protected; the principal
// comes from the request context.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ZewK3/Home-sub002/internal/api"
	"github.com/ZewK3/Home-sub002/internal/order/domain"
	"github.com/ZewK3/Home-sub002/internal/order/service"
	"github.com/ZewK3/Home-sub002/internal/platform/httpx"
	"github.com/ZewK3/Home-sub002/internal/server/middleware"
	"github.com/ZewK3/Home-sub002/internal/telemetry"
	telemetrydomain "github.com/ZewK3/Home-sub002/internal/telemetry/domain"
)

// Orders is the order service surface used by the handler.
type Orders interface {
	Save(ctx context.Context, principalID string, in service.SaveInput) (*domain.Order, error)
	Reserve(ctx context.Context, principalID string, in service.SaveInput) (*domain.Order, error)
	UpdateStatus(ctx context.Context, principalID, orderID string, status domain.Status) (*service.StatusResult, error)
	Cancel(ctx context.Context, principalID, orderID string) (*service.StatusResult, error)
	Get(ctx context.Context, principalID, orderID string) (*domain.Order, error)
	List(ctx context.Context, principalID string) ([]*domain.Order, error)
}

type Handler struct {
	orders Orders
	events telemetry.EventEmitter
}

// NewHandler returns a Handler. events may be nil.
func NewHandler(orders Orders, events telemetry.EventEmitter) *Handler {
	return &Handler{orders: orders, events: events}
}

// Save handles saveOrder.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, h.orders.Save, "order saved")
}

// Reserve handles reserveOrder.
func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, h.orders.Reserve, "order reserved; awaiting payment")
}

type createFunc func(ctx context.Context, principalID string, in service.SaveInput) (*domain.Order, error)

func (h *Handler) create(w http.ResponseWriter, r *http.Request, fn createFunc, msg string) {
	principalID := principalOf(r)
	var req api.SaveOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	o, err := fn(r.Context(), principalID, service.SaveInput{
		ClientRef:     req.OrderID,
		Cart:          req.Cart,
		Status:        domain.Status(req.Status),
		Total:         req.Total,
		TransactionID: req.TransactionID,
		Delivery:      req.Delivery,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, api.SaveOrderResponse{
		OrderID: o.OrderID,
		Status:  string(o.Status),
		Total:   o.Total,
		Message: msg,
	})
}

// UpdateStatus handles updateOrderStatus. orderId and status may come from the route, the query
// string or the JSON body, in that order.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body api.UpdateStatusRequest
	if r.Method != http.MethodGet {
		if err := httpx.DecodeJSON(r, &body); err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	q := r.URL.Query()
	orderID := httpx.Param(chi.URLParam(r, "orderID"), q.Get("orderId"), body.OrderID)
	status := domain.Status(strings.ToLower(httpx.Param(q.Get("status"), body.Status)))

	principalID := principalOf(r)
	res, err := h.orders.UpdateStatus(r.Context(), principalID, orderID, status)
	if err != nil {
		fail(w, r, err)
		return
	}
	if res.Status == domain.StatusSuccess && res.GainedExp > 0 {
		h.emitCommitted(r.Context(), principalID, res)
	}
	httpx.JSON(w, http.StatusOK, toStatus(res))
}

// Cancel handles cancelOrder.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID := httpx.Param(chi.URLParam(r, "orderID"), r.URL.Query().Get("orderId"))
	res, err := h.orders.Cancel(r.Context(), principalOf(r), orderID)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toStatus(res))
}

// Get handles getOrderById.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	orderID := httpx.Param(chi.URLParam(r, "orderID"), r.URL.Query().Get("orderId"))
	o, err := h.orders.Get(r.Context(), principalOf(r), orderID)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrder(o))
}

// List handles getOrders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context(), principalOf(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	out := api.OrdersResponse{Orders: make([]api.Order, 0, len(orders))}
	for _, o := range orders {
		out.Orders = append(out.Orders, toOrder(o))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) emitCommitted(ctx context.Context, principalID string, res *service.StatusResult) {
	meta, _ := json.Marshal(map[string]any{
		"order_id":   res.OrderID,
		"gained_exp": res.GainedExp,
		"new_exp":    res.NewExp,
		"new_rank":   res.NewRank,
	})
	telemetry.EmitAsync(ctx, h.events, &telemetrydomain.Event{
		PrincipalID:   principalID,
		PrincipalKind: "customer",
		EventType:     "order_committed",
		Source:        "order",
		Metadata:      meta,
	})
}

func fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		httpx.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		httpx.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrPaymentNotConfirmed):
		httpx.Error(w, http.StatusPaymentRequired, err.Error())
	default:
		httpx.Internal(w, r, err)
	}
}

func principalOf(r *http.Request) string {
	p, _ := middleware.GetPrincipal(r.Context())
	return p.ID
}

func toStatus(res *service.StatusResult) api.StatusResponse {
	return api.StatusResponse{
		Success:   true,
		OrderID:   res.OrderID,
		Status:    string(res.Status),
		GainedExp: res.GainedExp,
		NewExp:    res.NewExp,
		NewRank:   string(res.NewRank),
	}
}

func toOrder(o *domain.Order) api.Order {
	return api.Order{
		OrderID:       o.OrderID,
		ClientRef:     o.ClientRef,
		Cart:          o.Cart,
		Status:        string(o.Status),
		Total:         o.Total,
		TransactionID: o.TransactionID,
		Delivery:      o.Delivery,
		CreatedAt:     o.CreatedAt,
	}
}
