// Package checkout tracks client-side QR payments. Each transaction is driven from "QR shown" to
// exactly one terminal outcome by two tickers: a countdown and a confirmation poll.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/ZewK3/Home-sub002/internal/api"
	"github.com/ZewK3/Home-sub002/internal/checkout/cache"
	"github.com/ZewK3/Home-sub002/internal/client"
	orderdomain "github.com/ZewK3/Home-sub002/internal/order/domain"
)

var (
	ErrTransactionExists   = errors.New("checkout: transaction already active")
	ErrOrderInFlight       = errors.New("checkout: order already has an active transaction")
	ErrTransactionNotFound = errors.New("checkout: transaction not found")
	ErrCommitInProgress    = errors.New("checkout: commit in progress")
	ErrOrderNotFound       = errors.New("checkout: pending order not found")
	ErrNoToken             = errors.New("checkout: not logged in")
	ErrAmountMismatch      = errors.New("checkout: paid amount does not match order total")
	ErrExpired             = errors.New("checkout: payment window expired")
	ErrCanceled            = errors.New("checkout: canceled")
)

// State is a transaction's lifecycle state.
type State int32

const (
	StateAwaitingPayment State = iota
	StateCommitting
	StateDone
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateAwaitingPayment:
		return "AWAITING_PAYMENT"
	case StateCommitting:
		return "COMMITTING"
	case StateDone:
		return "DONE"
	case StateTimedOut:
		return "TIMED_OUT"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// StatusChecker asks the payment-status collaborator whether a transfer has arrived.
type StatusChecker interface {
	CheckTransaction(ctx context.Context, correlationID string) (*api.CheckTransactionResponse, error)
}

// OrderAPI is the session-protected order surface the commit uses.
type OrderAPI interface {
	SaveOrder(ctx context.Context, token string, req api.SaveOrderRequest) (*api.SaveOrderResponse, error)
	ReserveOrder(ctx context.Context, token string, req api.SaveOrderRequest) (*api.SaveOrderResponse, error)
	UpdateOrderStatus(ctx context.Context, token, orderID, status string) (*api.StatusResponse, error)
	CancelOrder(ctx context.Context, token, orderID string) (*api.StatusResponse, error)
}

// TokenSource returns the current session token, or "" when logged out.
type TokenSource interface {
	Token() string
}

// Store is the durable record of in-flight transactions, keyed by temporary order id.
type Store interface {
	PutTransaction(orderID string, details cache.TransactionDetails, order api.SaveOrderRequest) error
	DeleteTransaction(orderID string) error
	Pending() ([]cache.Pending, error)
}

var (
	_ StatusChecker = (*client.Client)(nil)
	_ OrderAPI      = (*client.Client)(nil)
	_ TokenSource   = (*cache.File)(nil)
	_ Store         = (*cache.File)(nil)
)

// Config tunes the tracker. Zero values take the defaults noted per field.
type Config struct {
	// Budget is how long the payer has (default 900s).
	Budget time.Duration
	// CountdownInterval is the countdown tick (default 1s).
	CountdownInterval time.Duration
	// PollInterval is the confirmation poll period (default 5s).
	PollInterval time.Duration
	// PollTimeout bounds one status check (default PollInterval).
	PollTimeout time.Duration
	// FailureWarnThreshold is the consecutive poll failures before a warning (default 3).
	FailureWarnThreshold int
	// Reserve persists the order as awaiting_payment before the QR code is shown.
	Reserve bool
	// QRBaseURL is the bank QR image URL prefix.
	QRBaseURL string
	// FlipMaxTries bounds reserve-mode status flip attempts (default 5).
	FlipMaxTries uint
}

func (c Config) withDefaults() Config {
	if c.Budget <= 0 {
		c.Budget = 900 * time.Second
	}
	if c.CountdownInterval <= 0 {
		c.CountdownInterval = time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = c.PollInterval
	}
	if c.FailureWarnThreshold <= 0 {
		c.FailureWarnThreshold = 3
	}
	if c.FlipMaxTries == 0 {
		c.FlipMaxTries = 5
	}
	return c
}

// Deps are the tracker's collaborators. Checker, Orders, Tokens and Store are required.
type Deps struct {
	Checker  StatusChecker
	Orders   OrderAPI
	Tokens   TokenSource
	Store    Store
	Notifier Notifier
	Clock    Clock
	// BackOff builds the retry policy for one reserve-mode flip. Defaults to exponential.
	BackOff func() backoff.BackOff
	Log     zerolog.Logger
}

// Outcome is how a transaction ended.
type Outcome struct {
	TransactionID string
	OrderID       string
	State         State
	ServerOrderID string
	GainedExp     int64
	NewExp        int64
	NewRank       string
	Err           error
}

// Committed reports whether the order was persisted and marked paid.
func (o Outcome) Committed() bool { return o.State == StateDone && o.Err == nil }

// Transaction is one in-flight payment confirmation tied to a pending order.
type Transaction struct {
	ID        string
	OrderID   string
	Amount    int64
	StartedAt time.Time
	EndsAt    time.Time
	QR        QRDescriptor

	serverOrderID string
	order         *PendingOrder
	state         atomic.Int32
	timeLeft      atomic.Int64

	countdown Ticker
	poll      Ticker
	stopOnce  sync.Once
	stopLoop  context.CancelFunc

	// failures is only touched by the loop goroutine.
	failures int
	warned   bool

	finishOnce sync.Once
	done       chan struct{}
	outcome    Outcome
}

// State returns the current state.
func (tx *Transaction) State() State { return State(tx.state.Load()) }

// TimeLeft is the remaining payment window as of the last countdown tick.
func (tx *Transaction) TimeLeft() time.Duration { return time.Duration(tx.timeLeft.Load()) }

// ServerOrderID is the reserved order id in reserve mode, "" otherwise.
func (tx *Transaction) ServerOrderID() string { return tx.serverOrderID }

// Done is closed once the transaction reached a terminal state and was cleaned up.
func (tx *Transaction) Done() <-chan struct{} { return tx.done }

// Outcome is valid after Done is closed.
func (tx *Transaction) Outcome() Outcome {
	<-tx.done
	return tx.outcome
}

// Wait blocks until the transaction ends or ctx is done.
func (tx *Transaction) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-tx.done:
		return tx.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (tx *Transaction) transition(from, to State) bool {
	return tx.state.CompareAndSwap(int32(from), int32(to))
}

func (tx *Transaction) stopTickers() {
	tx.stopOnce.Do(func() {
		tx.countdown.Stop()
		tx.poll.Stop()
	})
}

// Tracker owns every in-flight transaction of one client.
type Tracker struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger

	mu      sync.Mutex
	active  map[string]*Transaction
	pending map[string]*PendingOrder
}

// NewTracker builds a tracker.
func NewTracker(cfg Config, deps Deps) (*Tracker, error) {
	if deps.Checker == nil || deps.Orders == nil || deps.Tokens == nil || deps.Store == nil {
		return nil, errors.New("checkout: checker, orders, tokens and store are required")
	}
	if deps.Notifier == nil {
		deps.Notifier = LogNotifier{Log: deps.Log}
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.BackOff == nil {
		deps.BackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		}
	}
	return &Tracker{
		cfg:     cfg.withDefaults(),
		deps:    deps,
		log:     deps.Log.With().Str("component", "checkout").Logger(),
		active:  make(map[string]*Transaction),
		pending: make(map[string]*PendingOrder),
	}, nil
}

// Get returns the active transaction with id.
func (t *Tracker) Get(transactionID string) (*Transaction, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tx, ok := t.active[transactionID]
	return tx, ok
}

// Active returns a snapshot of the active transactions.
func (t *Tracker) Active() []*Transaction {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Transaction, 0, len(t.active))
	for _, tx := range t.active {
		out = append(out, tx)
	}
	return out
}

// Start begins tracking payment of order under transactionID. The transaction runs until it is
// paid, canceled, expires, or ctx is done (which counts as a cancel while awaiting payment).
func (t *Tracker) Start(ctx context.Context, order *PendingOrder, transactionID string) (*Transaction, error) {
	if order == nil || order.OrderID == "" {
		return nil, ErrOrderNotFound
	}
	if transactionID == "" {
		return nil, errors.New("checkout: transaction id is required")
	}
	if order.Total <= 0 || order.Total != order.Cart.Total() {
		return nil, fmt.Errorf("checkout: order total %d does not match cart total %d", order.Total, order.Cart.Total())
	}
	qr, err := NewQRDescriptor(t.cfg.QRBaseURL, transactionID, order.Total)
	if err != nil {
		return nil, err
	}
	if err := t.checkFree(order.OrderID, transactionID); err != nil {
		return nil, err
	}

	var serverOrderID string
	if t.cfg.Reserve {
		serverOrderID, err = t.reserve(ctx, order, transactionID)
		if err != nil {
			return nil, err
		}
	}

	now := t.deps.Clock.Now()
	tx, err := t.attach(ctx, order, transactionID, serverOrderID, qr, now, now.Add(t.cfg.Budget))
	if err != nil && serverOrderID != "" {
		t.releaseReservation(serverOrderID)
	}
	return tx, err
}

// Cancel ends an awaiting transaction synchronously. Nothing is persisted; a reserve-mode
// reservation is canceled best-effort.
func (t *Tracker) Cancel(transactionID string) error {
	tx, ok := t.Get(transactionID)
	if !ok {
		return ErrTransactionNotFound
	}
	if !tx.transition(StateAwaitingPayment, StateTimedOut) {
		if tx.State() == StateCommitting {
			return ErrCommitInProgress
		}
		return ErrTransactionNotFound
	}
	tx.stopTickers()
	t.finish(tx, Outcome{Err: ErrCanceled}, notification(SeverityInfo, "Checkout canceled. The order was not saved."))
	return nil
}

// Restore re-attaches cached transactions whose payment window is still open and drops the
// expired ones. Transactions already active are left alone.
func (t *Tracker) Restore(ctx context.Context) ([]*Transaction, error) {
	cached, err := t.deps.Store.Pending()
	if err != nil {
		return nil, fmt.Errorf("checkout: load cached transactions: %w", err)
	}
	now := t.deps.Clock.Now()
	var restored []*Transaction
	for _, p := range cached {
		det := p.Details
		if !now.Before(det.EndTime) {
			t.log.Info().Str("order_id", p.OrderID).Str("transaction_id", det.TransactionID).Msg("dropping expired cached transaction")
			if det.ServerOrderID != "" {
				t.releaseReservation(det.ServerOrderID)
			}
			if err := t.deps.Store.DeleteTransaction(p.OrderID); err != nil {
				t.log.Warn().Err(err).Str("order_id", p.OrderID).Msg("delete expired cached transaction")
			}
			continue
		}
		if err := t.checkFree(p.OrderID, det.TransactionID); err != nil {
			continue
		}
		order := pendingFromRequest(p.Order)
		if order.Total != det.Amount {
			t.log.Warn().Str("order_id", p.OrderID).Int64("amount", det.Amount).Int64("total", order.Total).Msg("dropping inconsistent cached transaction")
			if err := t.deps.Store.DeleteTransaction(p.OrderID); err != nil {
				t.log.Warn().Err(err).Str("order_id", p.OrderID).Msg("delete inconsistent cached transaction")
			}
			continue
		}
		qr, err := NewQRDescriptor(t.cfg.QRBaseURL, det.TransactionID, det.Amount)
		if err != nil {
			return restored, err
		}
		tx, err := t.attach(ctx, order, det.TransactionID, det.ServerOrderID, qr, det.StartTime, det.EndTime)
		if err != nil {
			return restored, err
		}
		restored = append(restored, tx)
	}
	return restored, nil
}

func (t *Tracker) checkFree(orderID, transactionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.active[transactionID]; ok {
		return ErrTransactionExists
	}
	if _, ok := t.pending[orderID]; ok {
		return ErrOrderInFlight
	}
	return nil
}

func (t *Tracker) attach(ctx context.Context, order *PendingOrder, transactionID, serverOrderID string, qr QRDescriptor, startedAt, endsAt time.Time) (*Transaction, error) {
	tx := &Transaction{
		ID:            transactionID,
		OrderID:       order.OrderID,
		Amount:        order.Total,
		StartedAt:     startedAt,
		EndsAt:        endsAt,
		QR:            qr,
		serverOrderID: serverOrderID,
		order:         order,
		done:          make(chan struct{}),
	}
	tx.timeLeft.Store(int64(endsAt.Sub(t.deps.Clock.Now())))
	tx.countdown = t.deps.Clock.NewTicker(t.cfg.CountdownInterval)
	tx.poll = t.deps.Clock.NewTicker(t.cfg.PollInterval)
	loopCtx, stop := context.WithCancel(ctx)
	tx.stopLoop = stop

	t.mu.Lock()
	if _, ok := t.active[transactionID]; ok {
		t.mu.Unlock()
		stop()
		tx.stopTickers()
		return nil, ErrTransactionExists
	}
	if _, ok := t.pending[order.OrderID]; ok {
		t.mu.Unlock()
		stop()
		tx.stopTickers()
		return nil, ErrOrderInFlight
	}
	t.active[transactionID] = tx
	t.pending[order.OrderID] = order
	details := cache.TransactionDetails{
		TransactionID: transactionID,
		Amount:        order.Total,
		StartTime:     startedAt,
		EndTime:       endsAt,
		ServerOrderID: serverOrderID,
	}
	// The cache entry is written under the lock so a concurrent Cancel cannot delete it first.
	if err := t.deps.Store.PutTransaction(order.OrderID, details, order.Request(transactionID)); err != nil {
		delete(t.active, transactionID)
		delete(t.pending, order.OrderID)
		t.mu.Unlock()
		stop()
		tx.stopTickers()
		return nil, fmt.Errorf("checkout: cache transaction: %w", err)
	}
	t.mu.Unlock()

	t.log.Info().
		Str("transaction_id", transactionID).
		Str("order_id", order.OrderID).
		Int64("amount", order.Total).
		Time("ends_at", endsAt).
		Msg("tracking payment")
	go t.run(loopCtx, tx)
	return tx, nil
}

func (t *Tracker) run(ctx context.Context, tx *Transaction) {
	defer tx.stopTickers()
	for {
		select {
		case <-ctx.Done():
			if tx.transition(StateAwaitingPayment, StateTimedOut) {
				tx.stopTickers()
				t.finish(tx, Outcome{Err: ErrCanceled}, notification(SeverityInfo, "Checkout interrupted. The order was not saved."))
			}
			return
		case <-tx.poll.C():
			t.poll(ctx, tx)
		case now := <-tx.countdown.C():
			left := tx.EndsAt.Sub(now)
			tx.timeLeft.Store(int64(left))
			if left > 0 {
				continue
			}
			// A poll tick that is already due gets its chance before the window closes.
			select {
			case <-tx.poll.C():
				t.poll(ctx, tx)
			default:
			}
			if tx.transition(StateAwaitingPayment, StateTimedOut) {
				tx.timeLeft.Store(0)
				tx.stopTickers()
				t.finish(tx, Outcome{Err: ErrExpired}, notification(SeverityError, "Payment was not received in time. The order was not saved."))
			}
		}
		if tx.State() != StateAwaitingPayment {
			return
		}
	}
}

// poll performs one status check. Only the loop goroutine calls it.
func (t *Tracker) poll(ctx context.Context, tx *Transaction) {
	if tx.State() != StateAwaitingPayment {
		return
	}
	pollCtx, cancel := context.WithTimeout(ctx, t.cfg.PollTimeout)
	res, err := t.deps.Checker.CheckTransaction(pollCtx, CorrelationID(tx.ID))
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		tx.failures++
		t.log.Debug().Err(err).Str("transaction_id", tx.ID).Int("consecutive_failures", tx.failures).Msg("payment status check failed")
		if tx.failures >= t.cfg.FailureWarnThreshold && !tx.warned {
			tx.warned = true
			t.deps.Notifier.Notify(notification(SeverityWarning,
				fmt.Sprintf("Payment status is unavailable (%d failed checks). Still waiting for your transfer.", tx.failures)))
		}
		return
	}
	tx.failures = 0
	tx.warned = false
	if res == nil || !res.Success {
		return
	}

	if res.Amount != tx.Amount {
		if tx.transition(StateAwaitingPayment, StateTimedOut) {
			tx.stopTickers()
			t.log.Warn().Str("transaction_id", tx.ID).Int64("expected", tx.Amount).Int64("reported", res.Amount).Msg("payment amount mismatch")
			t.finish(tx, Outcome{Err: ErrAmountMismatch}, notification(SeverityError,
				fmt.Sprintf("Received %d but the order total is %d. The order was not saved.", res.Amount, tx.Amount)))
		}
		return
	}
	if !tx.transition(StateAwaitingPayment, StateCommitting) {
		return
	}
	t.commit(context.WithoutCancel(ctx), tx)
}

func (t *Tracker) commit(ctx context.Context, tx *Transaction) {
	tx.stopTickers()
	log := t.log.With().Str("transaction_id", tx.ID).Str("order_id", tx.OrderID).Logger()

	// Not reachable through Start or Restore: checkFree refuses a second pending order with the
	// same id while this one is registered. Kept so a replaced order is never committed.
	t.mu.Lock()
	current := t.pending[tx.OrderID]
	t.mu.Unlock()
	if current != tx.order {
		log.Warn().Msg("pending order changed before commit")
		tx.state.Store(int32(StateDone))
		t.finish(tx, Outcome{Err: ErrOrderNotFound}, notification(SeverityError, "Order not found. Payment was received but nothing was saved."))
		return
	}
	token := t.deps.Tokens.Token()
	if token == "" {
		log.Error().Msg("no session token at commit")
		tx.state.Store(int32(StateDone))
		t.finish(tx, Outcome{Err: ErrNoToken}, notification(SeverityError, "Your session has ended. Payment was received but the order was not saved; please contact the store."))
		return
	}

	serverOrderID := tx.serverOrderID
	var status *api.StatusResponse
	var err error
	if serverOrderID == "" {
		var saved *api.SaveOrderResponse
		saved, err = t.deps.Orders.SaveOrder(ctx, token, tx.order.Request(tx.ID))
		if err == nil {
			serverOrderID = saved.OrderID
			status, err = t.deps.Orders.UpdateOrderStatus(ctx, token, serverOrderID, string(orderdomain.StatusSuccess))
		}
	} else {
		status, err = t.flip(ctx, token, serverOrderID)
	}

	tx.state.Store(int32(StateDone))
	out := Outcome{ServerOrderID: serverOrderID, Err: err}
	if err != nil {
		log.Error().Err(err).Str("server_order_id", serverOrderID).Msg("commit failed")
		msg := "Payment was received but the order could not be saved. Please contact the store."
		if serverOrderID != "" && tx.serverOrderID != "" {
			msg = fmt.Sprintf("Payment was received but order %s could not be confirmed yet. Please contact the store.", serverOrderID)
		}
		t.finish(tx, out, notification(SeverityError, msg))
		return
	}
	out.GainedExp, out.NewExp, out.NewRank = status.GainedExp, status.NewExp, status.NewRank
	log.Info().Str("server_order_id", serverOrderID).Int64("gained_exp", status.GainedExp).Msg("order committed")
	t.finish(tx, out, notification(SeveritySuccess,
		fmt.Sprintf("Payment confirmed. Order %s saved, +%d exp (rank %s).", serverOrderID, status.GainedExp, status.NewRank)))
}

// flip marks a reserved order paid. The server treats a repeated success as a no-op, so transient
// failures are retried; client errors are not.
func (t *Tracker) flip(ctx context.Context, token, serverOrderID string) (*api.StatusResponse, error) {
	op := func() (*api.StatusResponse, error) {
		res, err := t.deps.Orders.UpdateOrderStatus(ctx, token, serverOrderID, string(orderdomain.StatusSuccess))
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			return nil, backoff.Permanent(err)
		}
		return res, err
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(t.deps.BackOff()),
		backoff.WithMaxTries(t.cfg.FlipMaxTries),
		backoff.WithNotify(func(err error, d time.Duration) {
			t.log.Warn().Err(err).Str("server_order_id", serverOrderID).Dur("retry_in", d).Msg("status flip failed")
		}),
	)
}

func (t *Tracker) reserve(ctx context.Context, order *PendingOrder, transactionID string) (string, error) {
	token := t.deps.Tokens.Token()
	if token == "" {
		return "", ErrNoToken
	}
	res, err := t.deps.Orders.ReserveOrder(ctx, token, order.Request(transactionID))
	if err != nil {
		return "", fmt.Errorf("checkout: reserve order: %w", err)
	}
	return res.OrderID, nil
}

func (t *Tracker) releaseReservation(serverOrderID string) {
	token := t.deps.Tokens.Token()
	if token == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := t.deps.Orders.CancelOrder(ctx, token, serverOrderID); err != nil {
		t.log.Warn().Err(err).Str("server_order_id", serverOrderID).Msg("cancel reservation failed")
	}
}

// finish runs the terminal cleanup exactly once: map entries, cache entry, reservation release,
// notification, then Done.
func (t *Tracker) finish(tx *Transaction, out Outcome, n Notification) {
	tx.finishOnce.Do(func() {
		tx.stopTickers()
		if tx.stopLoop != nil {
			tx.stopLoop()
		}

		t.mu.Lock()
		if t.active[tx.ID] == tx {
			delete(t.active, tx.ID)
		}
		if t.pending[tx.OrderID] == tx.order {
			delete(t.pending, tx.OrderID)
		}
		t.mu.Unlock()

		if err := t.deps.Store.DeleteTransaction(tx.OrderID); err != nil {
			t.log.Warn().Err(err).Str("order_id", tx.OrderID).Msg("delete cached transaction")
		}
		if tx.State() == StateTimedOut && tx.serverOrderID != "" {
			t.releaseReservation(tx.serverOrderID)
		}

		out.TransactionID = tx.ID
		out.OrderID = tx.OrderID
		out.State = tx.State()
		tx.outcome = out
		t.deps.Notifier.Notify(n)
		close(tx.done)
	})
}
