// Package service implements order persistence rules: commit after payment, reservation before
// payment, monotonic status transitions and loyalty exp accrual.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ZewK3/Home-sub002/internal/order/domain"
	orderrepo "github.com/ZewK3/Home-sub002/internal/order/repository"
	paymentdomain "github.com/ZewK3/Home-sub002/internal/payment/domain"
	userdomain "github.com/ZewK3/Home-sub002/internal/user/domain"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("order not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrPaymentNotConfirmed = errors.New("payment not confirmed")
)

// OrderRepo is the order persistence used by the service.
type OrderRepo interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, orderID string) (*domain.Order, error)
	GetByClientRef(ctx context.Context, principalID, clientRef string) (*domain.Order, error)
	ListByPrincipal(ctx context.Context, principalID string) ([]*domain.Order, error)
	SetStatus(ctx context.Context, orderID string, status domain.Status) error
	CompleteWithExp(ctx context.Context, orderID, principalID string, expDelta int64) (int64, userdomain.Rank, error)
}

// UserReader loads the customer whose exp is reported on idempotent success flips.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// PaymentLookup finds ingested payments by correlation id.
type PaymentLookup interface {
	FindByExtractedID(ctx context.Context, extractedID string) (*paymentdomain.Payment, error)
}

// SaveInput is a client's order submission. ClientRef is the client's temporary order id.
type SaveInput struct {
	ClientRef     string
	Cart          domain.Cart
	Status        domain.Status
	Total         int64
	TransactionID string
	Delivery      *domain.Delivery
}

// StatusResult is returned by UpdateStatus. Exp fields are set for success flips.
type StatusResult struct {
	OrderID   string
	Status    domain.Status
	GainedExp int64
	NewExp    int64
	NewRank   userdomain.Rank
}

// Service implements order operations for authenticated customers.
type Service struct {
	orders   OrderRepo
	users    UserReader
	payments PaymentLookup
	log      zerolog.Logger
	nowF     func() time.Time
	newID    func() string
}

// NewService returns an order Service.
func NewService(orders OrderRepo, users UserReader, payments PaymentLookup, log zerolog.Logger) *Service {
	return &Service{
		orders:   orders,
		users:    users,
		payments: payments,
		log:      log,
		nowF:     func() time.Time { return time.Now().UTC() },
		newID:    func() string { return "ORDER_" + uuid.NewString() },
	}
}

// Save persists a paid-for cart as a pending order and returns it. A repeated submission of the
// same client ref returns the order created the first time.
func (s *Service) Save(ctx context.Context, principalID string, in SaveInput) (*domain.Order, error) {
	if in.Status == "" {
		in.Status = domain.StatusPending
	}
	if in.Status != domain.StatusPending {
		return nil, fmt.Errorf("%w: status must be %q", ErrValidation, domain.StatusPending)
	}
	return s.create(ctx, principalID, in)
}

// Reserve persists the cart as awaiting_payment bound to a transaction id before the QR code is
// shown, so a confirmed payment only has to flip its status.
func (s *Service) Reserve(ctx context.Context, principalID string, in SaveInput) (*domain.Order, error) {
	in.TransactionID = strings.TrimSpace(in.TransactionID)
	if in.TransactionID == "" {
		return nil, fmt.Errorf("%w: transactionId is required", ErrValidation)
	}
	in.Status = domain.StatusAwaitingPayment
	return s.create(ctx, principalID, in)
}

func (s *Service) create(ctx context.Context, principalID string, in SaveInput) (*domain.Order, error) {
	if err := in.Cart.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if in.Total <= 0 {
		return nil, fmt.Errorf("%w: total must be positive", ErrValidation)
	}
	if want := in.Cart.Total(); in.Total != want {
		return nil, fmt.Errorf("%w: total %d does not match cart total %d", ErrValidation, in.Total, want)
	}
	in.ClientRef = strings.TrimSpace(in.ClientRef)
	if in.ClientRef != "" {
		existing, err := s.orders.GetByClientRef(ctx, principalID, in.ClientRef)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}
	now := s.nowF()
	o := &domain.Order{
		OrderID:       s.newID(),
		PrincipalID:   principalID,
		ClientRef:     in.ClientRef,
		Cart:          in.Cart,
		Status:        in.Status,
		Total:         in.Total,
		TransactionID: in.TransactionID,
		Delivery:      in.Delivery,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		if errors.Is(err, orderrepo.ErrDuplicateClientRef) {
			existing, gerr := s.orders.GetByClientRef(ctx, principalID, in.ClientRef)
			if gerr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}
	s.log.Info().Str("order_id", o.OrderID).Str("principal_id", principalID).Str("status", string(o.Status)).
		Int64("total", o.Total).Msg("order created")
	return o, nil
}

// UpdateStatus moves the principal's order to status. Flipping to success credits
// floor(total/1000) exp in the same transaction. Repeating the current terminal status is a
// no-op that reports the principal's exp, so callers may retry a flip safely.
func (s *Service) UpdateStatus(ctx context.Context, principalID, orderID string, status domain.Status) (*StatusResult, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	o, err := s.Get(ctx, principalID, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == status && status.Terminal() {
		return s.unchanged(ctx, o)
	}
	if !o.Status.CanTransition(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, status)
	}

	if status == domain.StatusCanceled {
		if err := s.orders.SetStatus(ctx, o.OrderID, status); err != nil {
			return nil, s.mapConflict(err)
		}
		return &StatusResult{OrderID: o.OrderID, Status: status}, nil
	}

	if o.Status == domain.StatusAwaitingPayment {
		if err := s.requirePayment(ctx, o); err != nil {
			return nil, err
		}
	}
	gained := userdomain.ExpForTotal(o.Total)
	newExp, rank, err := s.orders.CompleteWithExp(ctx, o.OrderID, principalID, gained)
	if err != nil {
		return nil, s.mapConflict(err)
	}
	s.log.Info().Str("order_id", o.OrderID).Int64("gained_exp", gained).Int64("new_exp", newExp).
		Str("rank", string(rank)).Msg("order completed")
	return &StatusResult{OrderID: o.OrderID, Status: status, GainedExp: gained, NewExp: newExp, NewRank: rank}, nil
}

// Cancel cancels the principal's open order.
func (s *Service) Cancel(ctx context.Context, principalID, orderID string) (*StatusResult, error) {
	return s.UpdateStatus(ctx, principalID, orderID, domain.StatusCanceled)
}

// Get returns the principal's order. Orders of other principals are reported as not found.
func (s *Service) Get(ctx context.Context, principalID, orderID string) (*domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: orderId is required", ErrValidation)
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil || o.PrincipalID != principalID {
		return nil, ErrNotFound
	}
	return o, nil
}

// List returns the principal's orders, newest first.
func (s *Service) List(ctx context.Context, principalID string) ([]*domain.Order, error) {
	return s.orders.ListByPrincipal(ctx, principalID)
}

func (s *Service) requirePayment(ctx context.Context, o *domain.Order) error {
	p, err := s.payments.FindByExtractedID(ctx, paymentdomain.CorrelationID(o.TransactionID))
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: no payment for transaction %s", ErrPaymentNotConfirmed, o.TransactionID)
	}
	if p.Amount != o.Total {
		return fmt.Errorf("%w: paid %d, order total %d", ErrPaymentNotConfirmed, p.Amount, o.Total)
	}
	return nil
}

func (s *Service) unchanged(ctx context.Context, o *domain.Order) (*StatusResult, error) {
	res := &StatusResult{OrderID: o.OrderID, Status: o.Status}
	if o.Status != domain.StatusSuccess || s.users == nil {
		return res, nil
	}
	u, err := s.users.GetByID(ctx, o.PrincipalID)
	if err != nil {
		return nil, err
	}
	if u != nil {
		res.NewExp, res.NewRank = u.Exp, u.Rank
	}
	return res, nil
}

func (s *Service) mapConflict(err error) error {
	if errors.Is(err, orderrepo.ErrStatusConflict) {
		return fmt.Errorf("%w: order was updated concurrently", ErrInvalidTransition)
	}
	return err
}
