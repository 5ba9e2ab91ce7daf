package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	SUBSCRIPTION_NONE   = "none"
	SUBSCRIPTION_ACTIVE = "active"
	SUBSCRIPTION_LAPSED = "lapsed"
)

// UserAccount is the ledger row for a single Telegram user. The subscription
// state is never stored; it is derived from SubscriptionExpiry at read time.
type UserAccount struct {
	UserID             int64      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	DisplayName        string     `gorm:"type:varchar(150)" json:"display_name" validate:"max=150"`
	CredentialRef      *string    `gorm:"type:text;default:null" json:"-"`
	SubscriptionExpiry *time.Time `gorm:"type:timestamp;default:null" json:"subscription_expiry"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *UserAccount) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// StateAt derives the subscription state at the given instant.
// A held credential does not influence the state; it is cleaned up by the
// lapse transition once the state is observed as lapsed.
func (u *UserAccount) StateAt(now time.Time) string {
	if u == nil || u.SubscriptionExpiry == nil {
		return SUBSCRIPTION_NONE
	}
	if u.SubscriptionExpiry.After(now) {
		return SUBSCRIPTION_ACTIVE
	}
	return SUBSCRIPTION_LAPSED
}

// IsActiveAt reports whether the subscription is paid up at the given instant.
func (u *UserAccount) IsActiveAt(now time.Time) bool {
	return u.StateAt(now) == SUBSCRIPTION_ACTIVE
}

// HasCredential reports whether the ledger holds a credential blob.
func (u *UserAccount) HasCredential() bool {
	return u != nil && u.CredentialRef != nil && *u.CredentialRef != ""
}
