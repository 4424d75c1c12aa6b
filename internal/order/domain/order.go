package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a persisted order.
type Status string

const (
	StatusPending         Status = "pending"
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusSuccess         Status = "success"
	StatusCanceled        Status = "canceled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAwaitingPayment, StatusSuccess, StatusCanceled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusCanceled
}

// CanTransition reports whether an order may move from s to next. Transitions are monotonic:
// pending and awaiting_payment may become success or canceled, nothing else moves.
func (s Status) CanTransition(next Status) bool {
	if s != StatusPending && s != StatusAwaitingPayment {
		return false
	}
	return next == StatusSuccess || next == StatusCanceled
}

// Option is a priced add-on selected for a line item.
type Option struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// LineItem is one cart row.
type LineItem struct {
	Name     string   `json:"name"`
	Price    int64    `json:"price"`
	Quantity int64    `json:"quantity"`
	Options  []Option `json:"options,omitempty"`
	Note     string   `json:"note,omitempty"`
}

// UnitPrice is the base price plus all selected option prices.
func (li LineItem) UnitPrice() int64 {
	p := li.Price
	for _, o := range li.Options {
		p += o.Price
	}
	return p
}

// Delivery is optional delivery metadata captured at checkout.
type Delivery struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	Note    string `json:"note,omitempty"`
}

// Cart is an ordered list of line items.
type Cart []LineItem

// Total returns Σ (price + Σ option price) × quantity.
func (c Cart) Total() int64 {
	var total int64
	for _, li := range c {
		total += li.UnitPrice() * li.Quantity
	}
	return total
}

// MaxAmount bounds every price, line total and cart total (VND). Carts that pass Validate can
// be summed in int64 without overflow.
const MaxAmount int64 = 1_000_000_000_000

// Validate checks that the cart is non-empty, every item is well formed and no amount exceeds
// MaxAmount.
func (c Cart) Validate() error {
	if len(c) == 0 {
		return errors.New("cart is empty")
	}
	var total int64
	for i, li := range c {
		if strings.TrimSpace(li.Name) == "" {
			return fmt.Errorf("item %d: name is required", i)
		}
		if li.Price < 0 {
			return fmt.Errorf("item %d: price must not be negative", i)
		}
		if li.Quantity <= 0 {
			return fmt.Errorf("item %d: quantity must be positive", i)
		}
		unit := li.Price
		if unit > MaxAmount {
			return fmt.Errorf("item %d: price exceeds %d", i, MaxAmount)
		}
		for _, o := range li.Options {
			if o.Price < 0 {
				return fmt.Errorf("item %d: option %q price must not be negative", i, o.Name)
			}
			if o.Price > MaxAmount-unit {
				return fmt.Errorf("item %d: unit price exceeds %d", i, MaxAmount)
			}
			unit += o.Price
		}
		if unit > 0 && li.Quantity > MaxAmount/unit {
			return fmt.Errorf("item %d: line total exceeds %d", i, MaxAmount)
		}
		total += unit * li.Quantity
		if total > MaxAmount {
			return fmt.Errorf("cart total exceeds %d", MaxAmount)
		}
	}
	return nil
}

// Order is a server-side persisted order. OrderID is always server generated; the client's
// temporary id is kept in ClientRef.
type Order struct {
	OrderID       string
	PrincipalID   string
	ClientRef     string
	Cart          Cart
	Status        Status
	Total         int64
	TransactionID string
	Delivery      *Delivery
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
