package checkout

import (
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZewK3/Home-sub002/internal/api"
)

func TestNewOrderID(t *testing.T) {
	now := time.UnixMilli(1735732800123)
	id := NewOrderID(now)
	assert.Regexp(t, regexp.MustCompile(`^TEMP_1735732800123_[0-9a-z]{7}$`), id)
	assert.NotEqual(t, id, NewOrderID(now))
}

func TestNewTransactionID(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("ICT", 7*3600))
	assert.Equal(t, "20250101200405", NewTransactionID(at))
	assert.Equal(t, "ID20250101200405", CorrelationID(NewTransactionID(at)))
}

func TestNewQRDescriptor(t *testing.T) {
	qr, err := NewQRDescriptor(testQRBase, "20250101200405", 85000)
	require.NoError(t, err)
	u, err := url.Parse(qr.URL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "STORE", q.Get("accountName"))
	assert.Equal(t, "85000", q.Get("amount"))
	assert.Equal(t, "ID20250101200405", q.Get("addInfo"))
	assert.Equal(t, int64(85000), qr.Amount)

	_, err = NewQRDescriptor("not a url/path", "T", 1)
	assert.Error(t, err)
	_, err = NewQRDescriptor(testQRBase, "", 1)
	assert.Error(t, err)
	_, err = NewQRDescriptor(testQRBase, "T", 0)
	assert.Error(t, err)
}

func TestNewPendingOrder(t *testing.T) {
	cart := api.Cart{
		{Name: "Tra sua", Price: 30000, Quantity: 2, Options: []api.Option{{Name: "Tran chau", Price: 5000}}},
		{Name: "Banh mi", Price: 15000, Quantity: 1},
	}
	po, err := NewPendingOrder(cart, &api.Delivery{Address: "1 Le Loi"}, epoch)
	require.NoError(t, err)
	assert.Equal(t, int64(85000), po.Total)
	assert.Equal(t, "pending", po.Status)
	assert.Regexp(t, `^TEMP_`, po.OrderID)

	cart[0].Quantity = 10
	assert.Equal(t, int64(85000), po.Cart.Total(), "order keeps its own snapshot")

	req := po.Request("T9")
	assert.Equal(t, po.OrderID, req.OrderID)
	assert.Equal(t, "T9", req.TransactionID)
	assert.Equal(t, "1 Le Loi", req.Delivery.Address)

	_, err = NewPendingOrder(api.Cart{}, nil, epoch)
	assert.Error(t, err)
	_, err = NewPendingOrder(api.Cart{{Name: "Free", Price: 0, Quantity: 1}}, nil, epoch)
	assert.Error(t, err)
}
