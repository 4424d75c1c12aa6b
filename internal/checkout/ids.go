package checkout

import (
	"math/rand/v2"
	"strconv"
	"time"
)

const (
	tempOrderPrefix   = "TEMP_"
	correlationPrefix = "ID"
	transactionLayout = "20060102150405"
	base36            = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// NewOrderID returns a temporary client order id, TEMP_<unix ms>_<7 base36 chars>. It never
// collides with server ids, which are prefixed ORDER_.
func NewOrderID(now time.Time) string {
	b := make([]byte, 7)
	for i := range b {
		b[i] = base36[rand.IntN(len(base36))]
	}
	return tempOrderPrefix + strconv.FormatInt(now.UnixMilli(), 10) + "_" + string(b)
}

// NewTransactionID formats now in UTC as YYYYMMDDHHMMSS.
func NewTransactionID(now time.Time) string {
	return now.UTC().Format(transactionLayout)
}

// CorrelationID is the key the payer puts in the transfer description and the status endpoint
// is queried with.
func CorrelationID(transactionID string) string {
	return correlationPrefix + transactionID
}
