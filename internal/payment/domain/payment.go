package domain

import (
	"errors"
	"strings"
	"time"
)

// Payment is a bank transfer notification parsed by the mail bot. ExtractedID is the correlation
// key found in the transfer description ("ID" followed by the checkout transaction id).
type Payment struct {
	ExtractedID    string
	Amount         int64
	AccountNumber  string
	TransactionRef string
	Description    string
	DateTime       *time.Time
	CreatedAt      time.Time
}

// Validate checks the fields required for ingestion.
func (p *Payment) Validate() error {
	if strings.TrimSpace(p.ExtractedID) == "" {
		return errors.New("extractedID is required")
	}
	if p.Amount <= 0 {
		return errors.New("amount must be positive")
	}
	return nil
}

// CorrelationID returns the key a checkout transaction is matched by.
func CorrelationID(transactionID string) string {
	return "ID" + transactionID
}
