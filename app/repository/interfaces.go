package repository

import (
	"time"

	"github.com/startunnel/StarTunnel/app/models"
	"gorm.io/gorm"
)

// UserAccountRepository defines the ledger operations for user accounts.
// Every write is a single-row update; per-user state is independent so no
// multi-row transactions are needed.
type UserAccountRepository interface {
	GetByUserID(userID int64) (*models.UserAccount, error)
	// CreateIfAbsent inserts a fresh row with a null credential and expiry.
	// Inserting an existing user id is a no-op, so duplicate payment
	// callbacks cannot fail on row creation.
	CreateIfAbsent(userID int64, displayName string) error
	SetCredential(userID int64, credentialRef *string) error
	SetExpiry(userID int64, expiry *time.Time) error
	// ListWithExpiry returns only rows that have a subscription record.
	ListWithExpiry() ([]models.UserAccount, error)
	ListAll() ([]models.UserAccount, error)
	Count() (int64, error)
	CountActive(now time.Time) (int64, error)
}

// Repositories holds all repository instances
type Repositories struct {
	UserAccount UserAccountRepository
}

// NewRepositories creates all repositories with the given database connection
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		UserAccount: NewUserAccountRepository(db),
	}
}
