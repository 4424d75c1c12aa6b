package checkout

import (
	"errors"
	"fmt"
	"time"

	"github.com/ZewK3/Home-sub002/internal/api"
	orderdomain "github.com/ZewK3/Home-sub002/internal/order/domain"
)

// PendingOrder is a cart snapshot awaiting payment. It lives only on the client until commit.
type PendingOrder struct {
	OrderID  string
	Cart     api.Cart
	Status   string
	Total    int64
	Delivery *api.Delivery
}

// NewPendingOrder validates cart and snapshots it under a fresh temporary order id with the
// computed total.
func NewPendingOrder(cart api.Cart, delivery *api.Delivery, now time.Time) (*PendingOrder, error) {
	if err := cart.Validate(); err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}
	total := cart.Total()
	if total <= 0 {
		return nil, errors.New("checkout: order total must be positive")
	}
	snapshot := make(api.Cart, len(cart))
	copy(snapshot, cart)
	return &PendingOrder{
		OrderID:  NewOrderID(now),
		Cart:     snapshot,
		Status:   string(orderdomain.StatusPending),
		Total:    total,
		Delivery: delivery,
	}, nil
}

// Request is the save/reserve payload for this order.
func (o *PendingOrder) Request(transactionID string) api.SaveOrderRequest {
	return api.SaveOrderRequest{
		OrderID:       o.OrderID,
		Cart:          o.Cart,
		Status:        o.Status,
		Total:         o.Total,
		TransactionID: transactionID,
		Delivery:      o.Delivery,
	}
}

func pendingFromRequest(req api.SaveOrderRequest) *PendingOrder {
	status := req.Status
	if status == "" {
		status = string(orderdomain.StatusPending)
	}
	return &PendingOrder{
		OrderID:  req.OrderID,
		Cart:     req.Cart,
		Status:   status,
		Total:    req.Total,
		Delivery: req.Delivery,
	}
}
