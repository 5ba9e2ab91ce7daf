package payment

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/startunnel/StarTunnel/internal/pkg/subscription"
)

// Intake validates and deduplicates completed-payment events and turns them
// into lifecycle transitions.
type Intake struct {
	engine   *subscription.Engine
	invoices *PendingInvoices
}

// NewIntake creates a payment intake over the lifecycle engine.
func NewIntake(engine *subscription.Engine, invoices *PendingInvoices) *Intake {
	return &Intake{engine: engine, invoices: invoices}
}

// Invoices exposes the pending-invoice guard to the transport.
func (in *Intake) Invoices() *PendingInvoices {
	return in.invoices
}

// HandleSuccessfulPayment processes a completed payment: decode the payload,
// cross-check the captured amount against the price table, run the
// purchase-confirmed transition and clear any pending invoice. The returned
// time is the new subscription expiry.
func (in *Intake) HandleSuccessfulPayment(userID int64, displayName, payload string, amount int, now time.Time) (time.Time, error) {
	months, price, err := ParsePayload(payload)
	if err != nil {
		// Funds are captured already; keep a trail for manual follow-up.
		log.Errorf("[Payment] user %d: rejected payment payload %q (amount %d): %v", userID, payload, amount, err)
		return time.Time{}, err
	}

	if amount != price {
		err := errors.Join(ErrPriceMismatch, errors.New("captured amount differs from price table"))
		log.Errorf("[Payment] user %d: captured %d stars but table price for %d months is %d", userID, amount, months, price)
		return time.Time{}, err
	}

	expiry, err := in.engine.ConfirmPurchase(userID, displayName, months, now)
	if err != nil {
		return time.Time{}, err
	}

	in.invoices.Pop(userID)
	log.Infof("[Payment] user %d: subscription extended by %d months until %s", userID, months, expiry.UTC().Format(time.RFC3339))
	return expiry, nil
}
