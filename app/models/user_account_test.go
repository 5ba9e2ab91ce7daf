package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserAccountStateAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(48 * time.Hour)
	past := now.Add(-48 * time.Hour)

	tests := []struct {
		name    string
		account *UserAccount
		want    string
	}{
		{"nil account", nil, SUBSCRIPTION_NONE},
		{"no expiry", &UserAccount{UserID: 1}, SUBSCRIPTION_NONE},
		{"future expiry", &UserAccount{UserID: 1, SubscriptionExpiry: &future}, SUBSCRIPTION_ACTIVE},
		{"past expiry", &UserAccount{UserID: 1, SubscriptionExpiry: &past}, SUBSCRIPTION_LAPSED},
		{"expiry equals now", &UserAccount{UserID: 1, SubscriptionExpiry: &now}, SUBSCRIPTION_LAPSED},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.account.StateAt(now))
		})
	}
}

func TestUserAccountHasCredential(t *testing.T) {
	blob := `{"id":"7","accessUrl":"ss://example"}`
	empty := ""

	assert.False(t, (&UserAccount{UserID: 1}).HasCredential())
	assert.False(t, (&UserAccount{UserID: 1, CredentialRef: &empty}).HasCredential())
	assert.True(t, (&UserAccount{UserID: 1, CredentialRef: &blob}).HasCredential())
}
