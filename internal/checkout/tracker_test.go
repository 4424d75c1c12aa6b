package checkout

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZewK3/Home-sub002/internal/api"
	"github.com/ZewK3/Home-sub002/internal/checkout/cache"
	"github.com/ZewK3/Home-sub002/internal/client"
)

const testQRBase = "https://img.example.test/image/970422-0000000000.png?accountName=STORE"

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeTicker struct {
	d       time.Duration
	c       chan time.Time
	stopped atomic.Bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.c }
func (f *fakeTicker) Stop()               { f.stopped.Store(true) }

// fire delivers one tick unless the ticker was stopped. Reports whether it was delivered.
func (f *fakeTicker) fire(at time.Time) bool {
	if f.stopped.Load() {
		return false
	}
	select {
	case f.c <- at:
		return true
	default:
		return false
	}
}

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	tk := &fakeTicker{d: d, c: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, tk)
	return tk
}

// ticker returns the most recently created ticker with period d.
func (c *fakeClock) ticker(t *testing.T, d time.Duration) *fakeTicker {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.tickers) - 1; i >= 0; i-- {
		if c.tickers[i].d == d {
			return c.tickers[i]
		}
	}
	t.Fatalf("no ticker with period %s", d)
	return nil
}

type checkResult struct {
	res *api.CheckTransactionResponse
	err error
}

type fakeChecker struct {
	mu       sync.Mutex
	results  []checkResult
	fallback checkResult
	gate     chan struct{}
	calls    chan string
}

func newFakeChecker() *fakeChecker {
	return &fakeChecker{calls: make(chan string, 64), fallback: checkResult{res: &api.CheckTransactionResponse{Message: "not found"}}}
}

// push queues responses served before the fallback.
func (f *fakeChecker) push(rs ...checkResult) {
	f.mu.Lock()
	f.results = append(f.results, rs...)
	f.mu.Unlock()
}

func (f *fakeChecker) always(r checkResult) {
	f.mu.Lock()
	f.fallback = r
	f.mu.Unlock()
}

func (f *fakeChecker) CheckTransaction(ctx context.Context, correlationID string) (*api.CheckTransactionResponse, error) {
	f.calls <- correlationID
	f.mu.Lock()
	gate := f.gate
	f.gate = nil
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.fallback
	if len(f.results) > 0 {
		r = f.results[0]
		f.results = f.results[1:]
	}
	return r.res, r.err
}

func paid(amount int64) checkResult {
	return checkResult{res: &api.CheckTransactionResponse{Success: true, Amount: amount}}
}

type fakeOrders struct {
	mu          sync.Mutex
	calls       []string
	totals      map[string]int64
	seq         int
	saveErr     error
	statusErrs  []error
	saveGate    chan struct{}
	saveStarted chan struct{}
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{totals: make(map[string]int64), saveStarted: make(chan struct{}, 1)}
}

func (f *fakeOrders) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeOrders) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeOrders) create(req api.SaveOrderRequest) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("ORDER_%d", f.seq)
	f.totals[id] = req.Total
	return id
}

func (f *fakeOrders) SaveOrder(ctx context.Context, token string, req api.SaveOrderRequest) (*api.SaveOrderResponse, error) {
	f.record("save:" + req.OrderID)
	f.saveStarted <- struct{}{}
	if f.saveGate != nil {
		<-f.saveGate
	}
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	return &api.SaveOrderResponse{OrderID: f.create(req), Status: "pending", Total: req.Total}, nil
}

func (f *fakeOrders) ReserveOrder(ctx context.Context, token string, req api.SaveOrderRequest) (*api.SaveOrderResponse, error) {
	f.record("reserve:" + req.OrderID)
	return &api.SaveOrderResponse{OrderID: f.create(req), Status: "awaiting_payment", Total: req.Total}, nil
}

func (f *fakeOrders) UpdateOrderStatus(ctx context.Context, token, orderID, status string) (*api.StatusResponse, error) {
	f.record("status:" + orderID + ":" + status)
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statusErrs) > 0 {
		err := f.statusErrs[0]
		f.statusErrs = f.statusErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	gained := f.totals[orderID] / 1000
	return &api.StatusResponse{Success: true, OrderID: orderID, Status: status, GainedExp: gained, NewExp: gained, NewRank: "Bronze"}, nil
}

func (f *fakeOrders) CancelOrder(ctx context.Context, token, orderID string) (*api.StatusResponse, error) {
	f.record("cancel:" + orderID)
	return &api.StatusResponse{Success: true, OrderID: orderID, Status: "canceled"}, nil
}

type fakeTokens struct{ v atomic.Value }

func newFakeTokens(tok string) *fakeTokens {
	f := &fakeTokens{}
	f.v.Store(tok)
	return f
}

func (f *fakeTokens) Token() string { return f.v.Load().(string) }

type recordingNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recordingNotifier) Notify(n Notification) {
	r.mu.Lock()
	r.notes = append(r.notes, n)
	r.mu.Unlock()
}

func (r *recordingNotifier) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notes...)
}

func (r *recordingNotifier) count(sev Severity) int {
	n := 0
	for _, note := range r.all() {
		if note.Severity == sev {
			n++
		}
	}
	return n
}

type harness struct {
	tracker *Tracker
	clock   *fakeClock
	checker *fakeChecker
	orders  *fakeOrders
	tokens  *fakeTokens
	store   *cache.File
	notes   *recordingNotifier
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		clock:   &fakeClock{now: epoch},
		checker: newFakeChecker(),
		orders:  newFakeOrders(),
		tokens:  newFakeTokens("session-token"),
		store:   cache.Open(filepath.Join(t.TempDir(), "checkout.json")),
		notes:   &recordingNotifier{},
	}
	cfg.QRBaseURL = testQRBase
	tr, err := NewTracker(cfg, Deps{
		Checker:  h.checker,
		Orders:   h.orders,
		Tokens:   h.tokens,
		Store:    h.store,
		Notifier: h.notes,
		Clock:    h.clock,
		BackOff:  func() backoff.BackOff { return &backoff.ZeroBackOff{} },
		Log:      zerolog.Nop(),
	})
	require.NoError(t, err)
	h.tracker = tr
	return h
}

func (h *harness) pollTicker(t *testing.T) *fakeTicker      { return h.clock.ticker(t, 5*time.Second) }
func (h *harness) countdownTicker(t *testing.T) *fakeTicker { return h.clock.ticker(t, time.Second) }

// pollOnce fires the poll ticker and waits until the checker has been called.
func (h *harness) pollOnce(t *testing.T) {
	t.Helper()
	require.True(t, h.pollTicker(t).fire(h.clock.Now()), "poll tick not delivered")
	select {
	case id := <-h.checker.calls:
		assert.True(t, strings.HasPrefix(id, "ID"), "correlation id %q", id)
	case <-time.After(2 * time.Second):
		t.Fatal("status checker was not called")
	}
}

func (h *harness) cached(t *testing.T, orderID string) bool {
	t.Helper()
	doc, err := h.store.Load()
	require.NoError(t, err)
	_, ok := doc.TransactionDetails[orderID]
	return ok
}

func waitDone(t *testing.T, tx *Transaction) Outcome {
	t.Helper()
	select {
	case <-tx.Done():
		return tx.Outcome()
	case <-time.After(2 * time.Second):
		t.Fatalf("transaction %s did not finish (state %s)", tx.ID, tx.State())
		return Outcome{}
	}
}

func order(id string, price, qty int64) *PendingOrder {
	cart := api.Cart{{Name: "Item", Price: price, Quantity: qty}}
	return &PendingOrder{OrderID: id, Cart: cart, Status: "pending", Total: cart.Total()}
}

func TestTracker_SuccessCommitsInOrder(t *testing.T) {
	h := newHarness(t, Config{})
	cart := api.Cart{
		{Name: "Tra sua", Price: 30000, Quantity: 2, Options: []api.Option{{Name: "Tran chau", Price: 5000}}},
		{Name: "Banh mi", Price: 15000, Quantity: 1},
	}
	po := &PendingOrder{OrderID: "ORDER_X", Cart: cart, Status: "pending", Total: 85000}

	tx, err := h.tracker.Start(context.Background(), po, "T1")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingPayment, tx.State())
	assert.Equal(t, 900*time.Second, tx.TimeLeft())
	assert.Contains(t, tx.QR.URL, "addInfo=IDT1")
	assert.Contains(t, tx.QR.URL, "amount=85000")
	assert.True(t, h.cached(t, "ORDER_X"), "cache entry written on start")
	_, ok := h.tracker.Get("T1")
	assert.True(t, ok)

	h.checker.always(paid(85000))
	h.pollOnce(t)
	out := waitDone(t, tx)

	assert.True(t, out.Committed())
	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, int64(85), out.GainedExp)
	assert.Equal(t, "ORDER_1", out.ServerOrderID)
	assert.Equal(t, []string{"save:ORDER_X", "status:ORDER_1:success"}, h.orders.Calls())
	assert.False(t, h.cached(t, "ORDER_X"), "cache entry removed")
	_, ok = h.tracker.Get("T1")
	assert.False(t, ok)
	assert.Empty(t, h.tracker.Active())

	notes := h.notes.all()
	require.Len(t, notes, 1)
	assert.Equal(t, SeveritySuccess, notes[0].Severity)
	assert.Contains(t, notes[0].Message, "+85 exp")
}

func TestTracker_TickersInertAfterCommit(t *testing.T) {
	h := newHarness(t, Config{})
	tx, err := h.tracker.Start(context.Background(), order("ORDER_X", 20000, 1), "T1")
	require.NoError(t, err)
	h.checker.always(paid(20000))
	h.pollOnce(t)
	waitDone(t, tx)

	h.clock.set(epoch.Add(901 * time.Second))
	assert.False(t, h.countdownTicker(t).fire(h.clock.Now()), "countdown still live after commit")
	assert.False(t, h.pollTicker(t).fire(h.clock.Now()), "poll still live after commit")
	assert.Equal(t, 0, h.notes.count(SeverityError), "no timeout notification after commit")
	assert.Len(t, h.notes.all(), 1)
}

func TestTracker_AmountMatchIsExact(t *testing.T) {
	tests := []struct {
		name     string
		total    int64
		reported int64
		want     State
		wantErr  error
	}{
		{"equal", 150000, 150000, StateDone, nil},
		{"one more", 150000, 150001, StateTimedOut, ErrAmountMismatch},
		{"underpaid", 50000, 40000, StateTimedOut, ErrAmountMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Config{})
			tx, err := h.tracker.Start(context.Background(), order("ORDER_Z", tt.total, 1), "T3")
			require.NoError(t, err)
			h.checker.always(paid(tt.reported))
			h.pollOnce(t)
			out := waitDone(t, tx)

			assert.Equal(t, tt.want, out.State)
			if tt.wantErr != nil {
				assert.ErrorIs(t, out.Err, tt.wantErr)
				assert.Empty(t, h.orders.Calls(), "no commit on mismatch")
				assert.True(t, h.clock.Now().Before(tx.EndsAt), "ended before the countdown")
			} else {
				assert.NoError(t, out.Err)
			}
			assert.False(t, h.cached(t, "ORDER_Z"))
		})
	}
}

func TestTracker_CommitsAtMostOnce(t *testing.T) {
	h := newHarness(t, Config{})
	h.orders.saveGate = make(chan struct{})
	tx, err := h.tracker.Start(context.Background(), order("ORDER_X", 30000, 1), "T1")
	require.NoError(t, err)
	h.checker.always(paid(30000))
	h.pollOnce(t)

	<-h.orders.saveStarted
	assert.Equal(t, StateCommitting, tx.State())
	for i := 0; i < 3; i++ {
		assert.False(t, h.pollTicker(t).fire(h.clock.Now()), "poll ticker stopped once committing")
	}
	close(h.orders.saveGate)
	out := waitDone(t, tx)
	require.True(t, out.Committed())

	// A late callback after the terminal transition does nothing.
	h.tracker.poll(context.Background(), tx)
	assert.Len(t, h.checker.calls, 0)
	assert.Equal(t, []string{"save:ORDER_X", "status:ORDER_1:success"}, h.orders.Calls())
}

func TestTracker_CountdownExpiry(t *testing.T) {
	h := newHarness(t, Config{})
	tx, err := h.tracker.Start(context.Background(), order("ORDER_Y", 50000, 1), "T2")
	require.NoError(t, err)

	require.True(t, h.countdownTicker(t).fire(epoch.Add(10*time.Second)))
	require.Eventually(t, func() bool { return tx.TimeLeft() == 890*time.Second }, 2*time.Second, 5*time.Millisecond)

	h.clock.set(tx.EndsAt)
	require.True(t, h.countdownTicker(t).fire(tx.EndsAt))
	out := waitDone(t, tx)

	assert.Equal(t, StateTimedOut, out.State)
	assert.ErrorIs(t, out.Err, ErrExpired)
	assert.Zero(t, tx.TimeLeft())
	assert.Empty(t, h.orders.Calls(), "nothing persisted on timeout")
	assert.False(t, h.cached(t, "ORDER_Y"))
	assert.Len(t, h.checker.calls, 0)

	notes := h.notes.all()
	require.Len(t, notes, 1)
	assert.Equal(t, SeverityError, notes[0].Severity)
	assert.Contains(t, notes[0].Message, "not saved")
}

func TestTracker_PaymentWinsOverSimultaneousExpiry(t *testing.T) {
	h := newHarness(t, Config{})
	tx, err := h.tracker.Start(context.Background(), order("ORDER_X", 40000, 1), "T1")
	require.NoError(t, err)

	gate := make(chan struct{})
	h.checker.mu.Lock()
	h.checker.gate = gate
	h.checker.mu.Unlock()
	h.checker.push(checkResult{res: &api.CheckTransactionResponse{}})
	h.checker.always(paid(40000))

	h.pollOnce(t) // blocked inside the first check
	h.clock.set(tx.EndsAt)
	require.True(t, h.pollTicker(t).fire(tx.EndsAt))
	require.True(t, h.countdownTicker(t).fire(tx.EndsAt))
	close(gate)

	out := waitDone(t, tx)
	assert.True(t, out.Committed(), "outcome = %+v", out)
	assert.Equal(t, 0, h.notes.count(SeverityError))
}

func TestTracker_Cancel(t *testing.T) {
	h := newHarness(t, Config{})
	tx, err := h.tracker.Start(context.Background(), order("ORDER_C", 25000, 2), "T4")
	require.NoError(t, err)

	require.NoError(t, h.tracker.Cancel("T4"))
	select {
	case <-tx.Done():
	default:
		t.Fatal("Cancel returned before cleanup")
	}
	out := tx.Outcome()
	assert.Equal(t, StateTimedOut, out.State)
	assert.ErrorIs(t, out.Err, ErrCanceled)
	assert.False(t, h.cached(t, "ORDER_C"))
	assert.Empty(t, h.orders.Calls())
	assert.ErrorIs(t, h.tracker.Cancel("T4"), ErrTransactionNotFound)
	assert.ErrorIs(t, h.tracker.Cancel("nope"), ErrTransactionNotFound)
	assert.False(t, h.pollTicker(t).fire(epoch))

	// The order can be checked out again under a new transaction.
	_, err = h.tracker.Start(context.Background(), order("ORDER_C", 25000, 2), "T5")
	assert.NoError(t, err)
}

func TestTracker_CancelDuringCommit(t *testing.T) {
	h := newHarness(t, Config{})
	h.orders.saveGate = make(chan struct{})
	tx, err := h.tracker.Start(context.Background(), order("ORDER_X", 10000, 1), "T1")
	require.NoError(t, err)
	h.checker.always(paid(10000))
	h.pollOnce(t)
	<-h.orders.saveStarted

	assert.ErrorIs(t, h.tracker.Cancel("T1"), ErrCommitInProgress)
	close(h.orders.saveGate)
	assert.True(t, waitDone(t, tx).Committed())
}

func TestTracker_ContextCancelAbandons(t *testing.T) {
	h := newHarness(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	tx, err := h.tracker.Start(ctx, order("ORDER_X", 10000, 1), "T1")
	require.NoError(t, err)
	cancel()
	out := waitDone(t, tx)
	assert.Equal(t, StateTimedOut, out.State)
	assert.ErrorIs(t, out.Err, ErrCanceled)
	assert.False(t, h.cached(t, "ORDER_X"))
}

func TestTracker_StartRejects(t *testing.T) {
	h := newHarness(t, Config{})
	_, err := h.tracker.Start(context.Background(), order("ORDER_A", 10000, 1), "T1")
	require.NoError(t, err)

	_, err = h.tracker.Start(context.Background(), order("ORDER_B", 10000, 1), "T1")
	assert.ErrorIs(t, err, ErrTransactionExists)
	_, err = h.tracker.Start(context.Background(), order("ORDER_A", 10000, 1), "T2")
	assert.ErrorIs(t, err, ErrOrderInFlight)

	bad := order("ORDER_C", 10000, 1)
	bad.Total = 9999
	_, err = h.tracker.Start(context.Background(), bad, "T3")
	assert.Error(t, err)
	_, err = h.tracker.Start(context.Background(), nil, "T4")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	// Several orders can be tracked at once.
	_, err = h.tracker.Start(context.Background(), order("ORDER_D", 10000, 1), "T5")
	assert.NoError(t, err)
	assert.Len(t, h.tracker.Active(), 2)
}

func TestTracker_NoTokenAbandonsCommit(t *testing.T) {
	h := newHarness(t, Config{})
	tx, err := h.tracker.Start(context.Background(), order("ORDER_X", 10000, 1), "T1")
	require.NoError(t, err)
	h.tokens.v.Store("")
	h.checker.always(paid(10000))
	h.pollOnce(t)

	out := waitDone(t, tx)
	assert.Equal(t, StateDone, out.State)
	assert.ErrorIs(t, out.Err, ErrNoToken)
	assert.False(t, out.Committed())
	assert.Empty(t, h.orders.Calls())
	assert.False(t, h.cached(t, "ORDER_X"))
	assert.Equal(t, 1, h.notes.count(SeverityError))
}

func TestTracker_StalePendingOrder(t *testing.T) {
	h := newHarness(t, Config{})
	tx, err := h.tracker.Start(context.Background(), order("ORDER_X", 10000, 1), "T1")
	require.NoError(t, err)
	// Start refuses a second order with this id, so replace it in place.
	h.tracker.mu.Lock()
	h.tracker.pending["ORDER_X"] = order("ORDER_X", 10000, 1)
	h.tracker.mu.Unlock()

	h.checker.always(paid(10000))
	h.pollOnce(t)
	out := waitDone(t, tx)
	assert.ErrorIs(t, out.Err, ErrOrderNotFound)
	assert.Empty(t, h.orders.Calls())
}

func TestTracker_CommitFailureIsNotRetried(t *testing.T) {
	h := newHarness(t, Config{})
	h.orders.saveErr = &client.APIError{Status: http.StatusInternalServerError, Message: "internal error"}
	tx, err := h.tracker.Start(context.Background(), order("ORDER_X", 10000, 1), "T1")
	require.NoError(t, err)
	h.checker.always(paid(10000))
	h.pollOnce(t)

	out := waitDone(t, tx)
	assert.Equal(t, StateDone, out.State)
	assert.True(t, client.IsStatus(out.Err, http.StatusInternalServerError))
	assert.Equal(t, []string{"save:ORDER_X"}, h.orders.Calls())
	assert.False(t, h.cached(t, "ORDER_X"))
	assert.Equal(t, 1, h.notes.count(SeverityError))
}

func TestTracker_PollFailureWarning(t *testing.T) {
	h := newHarness(t, Config{FailureWarnThreshold: 3})
	tx, err := h.tracker.Start(context.Background(), order("ORDER_X", 10000, 1), "T1")
	require.NoError(t, err)
	down := checkResult{err: errors.New("connection refused")}

	h.checker.push(down, down)
	h.pollOnce(t)
	h.pollOnce(t)
	h.checker.push(checkResult{res: &api.CheckTransactionResponse{}})
	h.pollOnce(t) // a healthy answer resets the streak
	h.checker.push(down, down)
	h.pollOnce(t)
	h.pollOnce(t)
	assert.Never(t, func() bool { return h.notes.count(SeverityWarning) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	h.checker.push(down, down, down)
	h.pollOnce(t)
	require.Eventually(t, func() bool { return h.notes.count(SeverityWarning) == 1 }, 2*time.Second, 5*time.Millisecond)
	h.pollOnce(t)
	h.pollOnce(t)
	assert.Never(t, func() bool { return h.notes.count(SeverityWarning) > 1 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, StateAwaitingPayment, tx.State(), "failures never end the transaction")

	h.checker.always(paid(10000))
	h.pollOnce(t)
	assert.True(t, waitDone(t, tx).Committed())
}

func TestTracker_ReserveMode(t *testing.T) {
	h := newHarness(t, Config{Reserve: true})
	h.orders.statusErrs = []error{
		&client.APIError{Status: http.StatusServiceUnavailable, Message: "unavailable"},
		errors.New("connection reset"),
	}
	tx, err := h.tracker.Start(context.Background(), order("ORDER_X", 60000, 1), "T1")
	require.NoError(t, err)
	assert.Equal(t, "ORDER_1", tx.ServerOrderID())

	doc, err := h.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "ORDER_1", doc.TransactionDetails["ORDER_X"].ServerOrderID)

	h.checker.always(paid(60000))
	h.pollOnce(t)
	out := waitDone(t, tx)

	require.True(t, out.Committed(), "outcome = %+v", out)
	assert.Equal(t, int64(60), out.GainedExp)
	assert.Equal(t, []string{
		"reserve:ORDER_X",
		"status:ORDER_1:success",
		"status:ORDER_1:success",
		"status:ORDER_1:success",
	}, h.orders.Calls())
}

func TestTracker_ReserveModeClientErrorIsPermanent(t *testing.T) {
	h := newHarness(t, Config{Reserve: true})
	h.orders.statusErrs = []error{&client.APIError{Status: http.StatusPaymentRequired, Message: "payment not confirmed"}}
	tx, err := h.tracker.Start(context.Background(), order("ORDER_X", 60000, 1), "T1")
	require.NoError(t, err)
	h.checker.always(paid(60000))
	h.pollOnce(t)

	out := waitDone(t, tx)
	assert.True(t, client.IsStatus(out.Err, http.StatusPaymentRequired))
	assert.Equal(t, "ORDER_1", out.ServerOrderID)
	assert.Equal(t, []string{"reserve:ORDER_X", "status:ORDER_1:success"}, h.orders.Calls())
}

func TestTracker_ReserveModeCancelReleases(t *testing.T) {
	h := newHarness(t, Config{Reserve: true})
	_, err := h.tracker.Start(context.Background(), order("ORDER_X", 60000, 1), "T1")
	require.NoError(t, err)
	require.NoError(t, h.tracker.Cancel("T1"))
	assert.Equal(t, []string{"reserve:ORDER_X", "cancel:ORDER_1"}, h.orders.Calls())

	h.tokens.v.Store("")
	_, err = h.tracker.Start(context.Background(), order("ORDER_Y", 60000, 1), "T2")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestTracker_Restore(t *testing.T) {
	h := newHarness(t, Config{})
	live := order("ORDER_LIVE", 45000, 1)
	stale := order("ORDER_OLD", 12000, 1)
	require.NoError(t, h.store.PutTransaction(live.OrderID, cache.TransactionDetails{
		TransactionID: "20250301085500", Amount: 45000,
		StartTime: epoch.Add(-5 * time.Minute), EndTime: epoch.Add(10 * time.Minute),
	}, live.Request("20250301085500")))
	require.NoError(t, h.store.PutTransaction(stale.OrderID, cache.TransactionDetails{
		TransactionID: "20250301080000", Amount: 12000,
		StartTime: epoch.Add(-time.Hour), EndTime: epoch.Add(-45 * time.Minute),
	}, stale.Request("20250301080000")))

	restored, err := h.tracker.Restore(context.Background())
	require.NoError(t, err)
	require.Len(t, restored, 1)
	tx := restored[0]
	assert.Equal(t, "ORDER_LIVE", tx.OrderID)
	assert.Equal(t, epoch.Add(10*time.Minute), tx.EndsAt)
	assert.Equal(t, 10*time.Minute, tx.TimeLeft())
	assert.False(t, h.cached(t, "ORDER_OLD"), "expired entry dropped")
	assert.True(t, h.cached(t, "ORDER_LIVE"))

	again, err := h.tracker.Restore(context.Background())
	require.NoError(t, err)
	assert.Empty(t, again, "active transactions are not attached twice")

	h.checker.always(paid(45000))
	h.pollOnce(t)
	out := waitDone(t, tx)
	assert.True(t, out.Committed())
	assert.Equal(t, []string{"save:ORDER_LIVE", "status:ORDER_1:success"}, h.orders.Calls())
}

type failingDeleteStore struct {
	*cache.File
}

func (failingDeleteStore) DeleteTransaction(string) error { return errors.New("disk full") }

func TestTracker_RestoreLogsCacheDeleteFailure(t *testing.T) {
	var logs bytes.Buffer
	store := failingDeleteStore{cache.Open(filepath.Join(t.TempDir(), "checkout.json"))}
	tr, err := NewTracker(Config{QRBaseURL: testQRBase}, Deps{
		Checker:  newFakeChecker(),
		Orders:   newFakeOrders(),
		Tokens:   newFakeTokens("session-token"),
		Store:    store,
		Notifier: &recordingNotifier{},
		Clock:    &fakeClock{now: epoch},
		Log:      zerolog.New(&logs),
	})
	require.NoError(t, err)

	bad := order("ORDER_BAD", 30000, 1)
	require.NoError(t, store.PutTransaction(bad.OrderID, cache.TransactionDetails{
		TransactionID: "20250301085500", Amount: 25000,
		StartTime: epoch.Add(-time.Minute), EndTime: epoch.Add(10 * time.Minute),
	}, bad.Request("20250301085500")))

	restored, err := tr.Restore(context.Background())
	require.NoError(t, err)
	assert.Empty(t, restored)
	assert.Contains(t, logs.String(), "delete inconsistent cached transaction")
	assert.Contains(t, logs.String(), "disk full")
}

func TestNewTracker_RequiresDeps(t *testing.T) {
	_, err := NewTracker(Config{}, Deps{})
	assert.Error(t, err)
}
