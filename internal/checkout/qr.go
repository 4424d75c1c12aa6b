package checkout

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// QRDescriptor is what the payer scans: a bank QR image URL carrying the amount and the
// correlation id.
type QRDescriptor struct {
	TransactionID string `json:"transactionId"`
	Amount        int64  `json:"amount"`
	URL           string `json:"url"`
}

// NewQRDescriptor appends amount and addInfo=ID<transactionID> to base, keeping any query
// parameters base already has.
func NewQRDescriptor(base, transactionID string, amount int64) (QRDescriptor, error) {
	if transactionID == "" {
		return QRDescriptor{}, errors.New("qr: transaction id is required")
	}
	if amount <= 0 {
		return QRDescriptor{}, errors.New("qr: amount must be positive")
	}
	u, err := url.Parse(base)
	if err != nil {
		return QRDescriptor{}, fmt.Errorf("qr: parse base url: %w", err)
	}
	if !u.IsAbs() {
		return QRDescriptor{}, fmt.Errorf("qr: base url %q is not absolute", base)
	}
	q := u.Query()
	q.Set("amount", strconv.FormatInt(amount, 10))
	q.Set("addInfo", CorrelationID(transactionID))
	u.RawQuery = q.Encode()
	return QRDescriptor{TransactionID: transactionID, Amount: amount, URL: u.String()}, nil
}
