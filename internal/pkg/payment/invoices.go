package payment

import (
	"errors"
	"sync"
)

// ErrInvoicePending is returned when a user already has an outstanding
// invoice. This is an expected user path, not an anomaly.
var ErrInvoicePending = errors.New("payment: an invoice is already pending")

// PendingInvoices guards against duplicate concurrent purchase attempts.
// It lives for the process lifetime only: after a restart it is empty by
// design, because the payment provider stays the source of truth for
// completed payments.
type PendingInvoices struct {
	mu     sync.Mutex
	byUser map[int64]int
}

// NewPendingInvoices creates an empty pending-invoice store.
func NewPendingInvoices() *PendingInvoices {
	return &PendingInvoices{byUser: make(map[int64]int)}
}

// Add records a pending invoice message for the user. At most one invoice
// may be pending per user at any time.
func (p *PendingInvoices) Add(userID int64, messageID int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byUser[userID]; ok {
		return ErrInvoicePending
	}
	p.byUser[userID] = messageID
	return nil
}

// Has reports whether the user has a pending invoice.
func (p *PendingInvoices) Has(userID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.byUser[userID]
	return ok
}

// Pop removes and returns the pending invoice message id for the user.
func (p *PendingInvoices) Pop(userID int64) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	messageID, ok := p.byUser[userID]
	if ok {
		delete(p.byUser, userID)
	}
	return messageID, ok
}
