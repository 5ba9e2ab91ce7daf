package repository

import (
	"time"

	"github.com/startunnel/StarTunnel/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// userAccountRepository implements the UserAccountRepository interface
type userAccountRepository struct {
	db *gorm.DB
}

// NewUserAccountRepository creates a new user account repository instance
func NewUserAccountRepository(db *gorm.DB) UserAccountRepository {
	return &userAccountRepository{db: db}
}

// GetByUserID retrieves a ledger row by Telegram user id
func (r *userAccountRepository) GetByUserID(userID int64) (*models.UserAccount, error) {
	var account models.UserAccount
	err := r.db.Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// CreateIfAbsent inserts a new row, leaving existing rows untouched
func (r *userAccountRepository) CreateIfAbsent(userID int64, displayName string) error {
	account := &models.UserAccount{
		UserID:      userID,
		DisplayName: displayName,
	}
	if err := account.Validate(); err != nil {
		return err
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(account).Error
}

// SetCredential stores or clears the serialized credential blob
func (r *userAccountRepository) SetCredential(userID int64, credentialRef *string) error {
	return r.db.Model(&models.UserAccount{}).
		Where("user_id = ?", userID).
		Update("credential_ref", credentialRef).Error
}

// SetExpiry stores or clears the subscription expiry timestamp
func (r *userAccountRepository) SetExpiry(userID int64, expiry *time.Time) error {
	return r.db.Model(&models.UserAccount{}).
		Where("user_id = ?", userID).
		Update("subscription_expiry", expiry).Error
}

// ListWithExpiry returns all rows holding a subscription record
func (r *userAccountRepository) ListWithExpiry() ([]models.UserAccount, error) {
	var accounts []models.UserAccount
	err := r.db.Where("subscription_expiry IS NOT NULL").Find(&accounts).Error
	return accounts, err
}

// ListAll returns every ledger row
func (r *userAccountRepository) ListAll() ([]models.UserAccount, error) {
	var accounts []models.UserAccount
	err := r.db.Find(&accounts).Error
	return accounts, err
}

// Count returns the total number of users
func (r *userAccountRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.UserAccount{}).Count(&count).Error
	return count, err
}

// CountActive returns the number of users with an unexpired subscription
func (r *userAccountRepository) CountActive(now time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.UserAccount{}).
		Where("subscription_expiry > ?", now).
		Count(&count).Error
	return count, err
}
