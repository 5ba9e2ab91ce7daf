package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/startunnel/StarTunnel/app/models"
	"github.com/startunnel/StarTunnel/app/repository"
	"github.com/startunnel/StarTunnel/internal/pkg/outline"
)

// ErrNoSubscription is returned when a user without a subscription record
// asks for access.
var ErrNoSubscription = errors.New("subscription: purchase required")

// ErrSubscriptionExpired is returned when the subscription lapsed; the
// lapse cleanup has already run by the time the caller sees it.
var ErrSubscriptionExpired = errors.New("subscription: expired")

// ErrTemporarilyUnavailable is returned when provisioning fails. The ledger
// is left untouched so the next access request retries cleanly.
var ErrTemporarilyUnavailable = errors.New("subscription: access temporarily unavailable")

// Access is the result of a successful access request.
type Access struct {
	Credential *outline.Credential
	ExpiresAt  time.Time
}

// Engine drives the subscription lifecycle: activation, extension, expiry
// and the credential that hangs off it. Every transition re-reads ledger
// state before deciding; nothing is cached between calls.
type Engine struct {
	repo        repository.UserAccountRepository
	provisioner outline.Provisioner
}

// NewEngine creates a lifecycle engine over the given ledger and provisioner.
func NewEngine(repo repository.UserAccountRepository, provisioner outline.Provisioner) *Engine {
	return &Engine{repo: repo, provisioner: provisioner}
}

// AddMonths advances t by the given number of calendar months, clamping an
// overflowing day-of-month to the last day of the target month
// (Jan 31 + 1 month = Feb 28, or Feb 29 in a leap year).
func AddMonths(t time.Time, months int) time.Time {
	month := int(t.Month()) - 1 + months
	year := t.Year() + month/12
	month = month%12 + 1

	day := t.Day()
	if last := daysInMonth(year, time.Month(month)); day > last {
		day = last
	}
	return time.Date(year, time.Month(month), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	// Day zero of the following month normalizes to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ConfirmPurchase applies the purchase-confirmed transition for a paid
// duration in months and returns the new expiry. An active subscription is
// extended from its current expiry, never from now, so paid time is never
// lost; anything else starts from now.
func (e *Engine) ConfirmPurchase(userID int64, displayName string, months int, now time.Time) (time.Time, error) {
	if err := e.repo.CreateIfAbsent(userID, displayName); err != nil {
		return time.Time{}, err
	}

	account, err := e.repo.GetByUserID(userID)
	if err != nil {
		return time.Time{}, err
	}

	base := now
	if account.IsActiveAt(now) {
		base = *account.SubscriptionExpiry
	}

	newExpiry := AddMonths(base, months)
	if err := e.repo.SetExpiry(userID, &newExpiry); err != nil {
		return time.Time{}, err
	}
	return newExpiry, nil
}

// RequestAccess returns the user's credential, provisioning one on demand.
// A lapsed subscription is cleaned up on the spot before the request is
// rejected.
func (e *Engine) RequestAccess(ctx context.Context, userID int64, now time.Time) (*Access, error) {
	account, err := e.repo.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoSubscription
		}
		return nil, err
	}

	switch account.StateAt(now) {
	case models.SUBSCRIPTION_NONE:
		return nil, ErrNoSubscription
	case models.SUBSCRIPTION_LAPSED:
		if err := e.Lapse(ctx, account); err != nil {
			return nil, err
		}
		return nil, ErrSubscriptionExpired
	}

	expiry := *account.SubscriptionExpiry

	if account.HasCredential() {
		cred, err := outline.ParseCredential(*account.CredentialRef)
		if err == nil {
			return &Access{Credential: cred, ExpiresAt: expiry}, nil
		}
		// An unreadable blob is treated as no credential at all.
		log.Warnf("[Subscription] user %d holds an unreadable credential blob, reprovisioning: %v", userID, err)
	}

	cred, err := e.provisioner.Provision(ctx)
	if err != nil {
		log.Errorf("[Subscription] provisioning for user %d failed: %v", userID, err)
		return nil, ErrTemporarilyUnavailable
	}

	ref := cred.Ref()
	if err := e.repo.SetCredential(userID, &ref); err != nil {
		// The key exists but the ledger does not know it. Revoke it
		// best-effort so the failed write does not leak a live key.
		if revokeErr := e.provisioner.Revoke(ctx, cred); revokeErr != nil {
			log.Errorf("[Subscription] orphaned key %s for user %d after ledger write failure: %v", cred.ID, userID, revokeErr)
		}
		return nil, err
	}

	return &Access{Credential: cred, ExpiresAt: expiry}, nil
}

// Lapse performs the lapse transition: revoke the held credential
// best-effort, clear the credential, then clear the expiry. A revoke failure
// never blocks the transition; the orphaned key is logged and accepted.
func (e *Engine) Lapse(ctx context.Context, account *models.UserAccount) error {
	if account.HasCredential() {
		cred, err := outline.ParseCredential(*account.CredentialRef)
		if err != nil {
			log.Warnf("[Subscription] user %d lapse: dropping unreadable credential blob: %v", account.UserID, err)
		} else if err := e.provisioner.Revoke(ctx, cred); err != nil {
			log.Errorf("[Subscription] user %d lapse: revoke of key %s failed, key orphaned: %v", account.UserID, cred.ID, err)
		}
		if err := e.repo.SetCredential(account.UserID, nil); err != nil {
			return err
		}
	}
	return e.repo.SetExpiry(account.UserID, nil)
}
