// Package cache is the checkout client's durable state: the current session, the in-flight
// transactions and their pending orders, kept in one JSON document on disk.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ZewK3/Home-sub002/internal/api"
)

// Auth is the cached session.
type Auth struct {
	Token       string    `json:"token"`
	PrincipalID string    `json:"principalId"`
	Kind        string    `json:"kind"`
	Name        string    `json:"name,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// TransactionDetails is what is needed to redisplay an outstanding QR code.
type TransactionDetails struct {
	TransactionID string    `json:"transactionId"`
	Amount        int64     `json:"amount"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	// ServerOrderID is set when the order was reserved server-side before the QR was shown.
	ServerOrderID string `json:"serverOrderId,omitempty"`
}

// Document is the on-disk layout. Both maps are keyed by the client's temporary order id.
type Document struct {
	Auth               *Auth                           `json:"auth,omitempty"`
	TransactionDetails map[string]TransactionDetails   `json:"transactionDetails"`
	PendingOrders      map[string]api.SaveOrderRequest `json:"pendingOrders"`
}

// Pending is one cached in-flight checkout.
type Pending struct {
	OrderID string
	Details TransactionDetails
	Order   api.SaveOrderRequest
}

// File is a Document persisted at a path. Every write replaces the file atomically (temp file
// plus rename). A File is safe for concurrent use within one process.
type File struct {
	path string
	mu   sync.Mutex
	nowF func() time.Time
}

// Open returns the cache at path. Nothing is read until first use; a missing file is an empty cache.
func Open(path string) *File {
	return &File{path: path, nowF: time.Now}
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

// Load reads the document.
func (f *File) Load() (*Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

// Update loads the document, applies fn and writes it back if fn returns nil.
func (f *File) Update(fn func(*Document) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return f.save(doc)
}

// SetAuth stores the session.
func (f *File) SetAuth(a Auth) error {
	return f.Update(func(d *Document) error {
		d.Auth = &a
		return nil
	})
}

// ClearAuth forgets the session.
func (f *File) ClearAuth() error {
	return f.Update(func(d *Document) error {
		d.Auth = nil
		return nil
	})
}

// Token returns the cached session token, or "" when there is none or it has expired.
func (f *File) Token() string {
	doc, err := f.Load()
	if err != nil || doc.Auth == nil {
		return ""
	}
	if !doc.Auth.ExpiresAt.IsZero() && !f.nowF().Before(doc.Auth.ExpiresAt) {
		return ""
	}
	return doc.Auth.Token
}

// PutTransaction records an in-flight checkout under orderID.
func (f *File) PutTransaction(orderID string, details TransactionDetails, order api.SaveOrderRequest) error {
	return f.Update(func(d *Document) error {
		d.TransactionDetails[orderID] = details
		d.PendingOrders[orderID] = order
		return nil
	})
}

// DeleteTransaction forgets the checkout recorded under orderID. Unknown ids are not an error.
func (f *File) DeleteTransaction(orderID string) error {
	return f.Update(func(d *Document) error {
		delete(d.TransactionDetails, orderID)
		delete(d.PendingOrders, orderID)
		return nil
	})
}

// Pending returns every cached checkout ordered by start time. Entries whose pending order is
// missing are skipped.
func (f *File) Pending() ([]Pending, error) {
	doc, err := f.Load()
	if err != nil {
		return nil, err
	}
	out := make([]Pending, 0, len(doc.TransactionDetails))
	for id, det := range doc.TransactionDetails {
		o, ok := doc.PendingOrders[id]
		if !ok {
			continue
		}
		out = append(out, Pending{OrderID: id, Details: det, Order: o})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Details.StartTime.Before(out[j].Details.StartTime) })
	return out, nil
}

func (f *File) load() (*Document, error) {
	doc := &Document{}
	raw, err := os.ReadFile(f.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("cache: read %s: %w", f.path, err)
	case len(raw) > 0:
		if err := json.Unmarshal(raw, doc); err != nil {
			return nil, fmt.Errorf("cache: decode %s: %w", f.path, err)
		}
	}
	if doc.TransactionDetails == nil {
		doc.TransactionDetails = make(map[string]TransactionDetails)
	}
	if doc.PendingOrders == nil {
		doc.PendingOrders = make(map[string]api.SaveOrderRequest)
	}
	return doc, nil
}

func (f *File) save(doc *Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: encode: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("cache: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".checkout-*.tmp")
	if err != nil {
		return fmt.Errorf("cache: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("cache: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("cache: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("cache: replace %s: %w", f.path, err)
	}
	return nil
}
