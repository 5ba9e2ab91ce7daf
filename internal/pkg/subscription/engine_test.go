package subscription

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/startunnel/StarTunnel/app/models"
	"github.com/startunnel/StarTunnel/internal/pkg/outline"
)

// fakeLedger is an in-memory UserAccountRepository for engine tests.
type fakeLedger struct {
	accounts      map[int64]*models.UserAccount
	failCredWrite bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{accounts: make(map[int64]*models.UserAccount)}
}

func (l *fakeLedger) GetByUserID(userID int64) (*models.UserAccount, error) {
	account, ok := l.accounts[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *account
	return &copied, nil
}

func (l *fakeLedger) CreateIfAbsent(userID int64, displayName string) error {
	if _, ok := l.accounts[userID]; ok {
		return nil
	}
	l.accounts[userID] = &models.UserAccount{
		UserID:      userID,
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	}
	return nil
}

func (l *fakeLedger) SetCredential(userID int64, credentialRef *string) error {
	if l.failCredWrite {
		return errors.New("disk full")
	}
	if account, ok := l.accounts[userID]; ok {
		account.CredentialRef = credentialRef
	}
	return nil
}

func (l *fakeLedger) SetExpiry(userID int64, expiry *time.Time) error {
	if account, ok := l.accounts[userID]; ok {
		account.SubscriptionExpiry = expiry
	}
	return nil
}

func (l *fakeLedger) ListWithExpiry() ([]models.UserAccount, error) {
	var rows []models.UserAccount
	for _, account := range l.accounts {
		if account.SubscriptionExpiry != nil {
			rows = append(rows, *account)
		}
	}
	return rows, nil
}

func (l *fakeLedger) ListAll() ([]models.UserAccount, error) {
	var rows []models.UserAccount
	for _, account := range l.accounts {
		rows = append(rows, *account)
	}
	return rows, nil
}

func (l *fakeLedger) Count() (int64, error) {
	return int64(len(l.accounts)), nil
}

func (l *fakeLedger) CountActive(now time.Time) (int64, error) {
	var n int64
	for _, account := range l.accounts {
		if account.IsActiveAt(now) {
			n++
		}
	}
	return n, nil
}

// fakeProvisioner counts calls and hands out sequential keys.
type fakeProvisioner struct {
	provisions int
	revoked    []string
	failCreate bool
	failRevoke bool
}

func (p *fakeProvisioner) Provision(ctx context.Context) (*outline.Credential, error) {
	p.provisions++
	if p.failCreate {
		return nil, outline.ErrProvisionFailed
	}
	blob := fmt.Sprintf(`{"id":"%d","accessUrl":"ss://key-%d"}`, p.provisions, p.provisions)
	return outline.ParseCredential(blob)
}

func (p *fakeProvisioner) Revoke(ctx context.Context, cred *outline.Credential) error {
	if p.failRevoke {
		return outline.ErrRevokeFailed
	}
	p.revoked = append(p.revoked, cred.ID)
	return nil
}

var t0 = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name   string
		start  time.Time
		months int
		want   time.Time
	}{
		{
			"plain month",
			time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC), 1,
			time.Date(2025, 4, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			"leap year clamp",
			time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), 1,
			time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			"non leap year clamp",
			time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC), 1,
			time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			"year rollover",
			time.Date(2025, 11, 30, 0, 0, 0, 0, time.UTC), 3,
			time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			"twelve months",
			time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), 12,
			time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddMonths(tt.start, tt.months))
		})
	}
}

func TestConfirmPurchaseNewUser(t *testing.T) {
	ledger := newFakeLedger()
	engine := NewEngine(ledger, &fakeProvisioner{})

	expiry, err := engine.ConfirmPurchase(1, "alice", 3, t0)
	require.NoError(t, err)
	assert.Equal(t, AddMonths(t0, 3), expiry)

	account, err := ledger.GetByUserID(1)
	require.NoError(t, err)
	assert.True(t, account.IsActiveAt(t0))
	assert.False(t, account.HasCredential())
}

func TestConfirmPurchaseExtendsActiveFromCurrentExpiry(t *testing.T) {
	ledger := newFakeLedger()
	engine := NewEngine(ledger, &fakeProvisioner{})

	require.NoError(t, ledger.CreateIfAbsent(1, "alice"))
	current := t0.Add(10 * 24 * time.Hour)
	require.NoError(t, ledger.SetExpiry(1, &current))

	expiry, err := engine.ConfirmPurchase(1, "alice", 6, t0)
	require.NoError(t, err)
	// Never AddMonths(now, d) while still active: paid time is preserved.
	assert.Equal(t, AddMonths(current, 6), expiry)
}

func TestConfirmPurchaseLapsedStartsFromNow(t *testing.T) {
	ledger := newFakeLedger()
	engine := NewEngine(ledger, &fakeProvisioner{})

	require.NoError(t, ledger.CreateIfAbsent(1, "alice"))
	stale := t0.Add(-24 * time.Hour)
	require.NoError(t, ledger.SetExpiry(1, &stale))

	expiry, err := engine.ConfirmPurchase(1, "alice", 1, t0)
	require.NoError(t, err)
	assert.Equal(t, AddMonths(t0, 1), expiry)
}

func TestRequestAccessWithoutPurchase(t *testing.T) {
	ledger := newFakeLedger()
	engine := NewEngine(ledger, &fakeProvisioner{})

	_, err := engine.RequestAccess(context.Background(), 1, t0)
	assert.ErrorIs(t, err, ErrNoSubscription)

	// A row without a subscription record is rejected the same way.
	require.NoError(t, ledger.CreateIfAbsent(1, "alice"))
	_, err = engine.RequestAccess(context.Background(), 1, t0)
	assert.ErrorIs(t, err, ErrNoSubscription)
}

func TestRequestAccessProvisionsOnceAcrossCalls(t *testing.T) {
	ledger := newFakeLedger()
	provisioner := &fakeProvisioner{}
	engine := NewEngine(ledger, provisioner)

	_, err := engine.ConfirmPurchase(1, "alice", 1, t0)
	require.NoError(t, err)

	first, err := engine.RequestAccess(context.Background(), 1, t0)
	require.NoError(t, err)
	second, err := engine.RequestAccess(context.Background(), 1, t0.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 1, provisioner.provisions)
	assert.Equal(t, first.Credential.ID, second.Credential.ID)
	assert.Equal(t, first.Credential.Ref(), second.Credential.Ref())
}

func TestRequestAccessLapsedCleansUp(t *testing.T) {
	ledger := newFakeLedger()
	provisioner := &fakeProvisioner{}
	engine := NewEngine(ledger, provisioner)

	require.NoError(t, ledger.CreateIfAbsent(1, "alice"))
	stale := t0.Add(-24 * time.Hour)
	require.NoError(t, ledger.SetExpiry(1, &stale))
	blob := `{"id":"9","accessUrl":"ss://old"}`
	require.NoError(t, ledger.SetCredential(1, &blob))

	_, err := engine.RequestAccess(context.Background(), 1, t0)
	assert.ErrorIs(t, err, ErrSubscriptionExpired)

	assert.Equal(t, []string{"9"}, provisioner.revoked)
	account, err := ledger.GetByUserID(1)
	require.NoError(t, err)
	assert.Nil(t, account.CredentialRef)
	assert.Nil(t, account.SubscriptionExpiry)
}

func TestRequestAccessRevokeFailureStillClearsLedger(t *testing.T) {
	ledger := newFakeLedger()
	provisioner := &fakeProvisioner{failRevoke: true}
	engine := NewEngine(ledger, provisioner)

	require.NoError(t, ledger.CreateIfAbsent(1, "alice"))
	stale := t0.Add(-time.Hour)
	require.NoError(t, ledger.SetExpiry(1, &stale))
	blob := `{"id":"9","accessUrl":"ss://old"}`
	require.NoError(t, ledger.SetCredential(1, &blob))

	_, err := engine.RequestAccess(context.Background(), 1, t0)
	assert.ErrorIs(t, err, ErrSubscriptionExpired)

	// Ledger state advances even though the external revoke failed.
	account, err := ledger.GetByUserID(1)
	require.NoError(t, err)
	assert.Nil(t, account.CredentialRef)
	assert.Nil(t, account.SubscriptionExpiry)
}

func TestRequestAccessProvisionFailureLeavesLedgerUntouched(t *testing.T) {
	ledger := newFakeLedger()
	provisioner := &fakeProvisioner{failCreate: true}
	engine := NewEngine(ledger, provisioner)

	_, err := engine.ConfirmPurchase(1, "alice", 1, t0)
	require.NoError(t, err)

	_, err = engine.RequestAccess(context.Background(), 1, t0)
	assert.ErrorIs(t, err, ErrTemporarilyUnavailable)

	account, err := ledger.GetByUserID(1)
	require.NoError(t, err)
	assert.False(t, account.HasCredential())
	assert.True(t, account.IsActiveAt(t0))

	// The next attempt succeeds once the provisioner recovers.
	provisioner.failCreate = false
	access, err := engine.RequestAccess(context.Background(), 1, t0)
	require.NoError(t, err)
	assert.NotEmpty(t, access.Credential.AccessURL)
}

func TestRequestAccessReprovisionsOnUnreadableBlob(t *testing.T) {
	ledger := newFakeLedger()
	provisioner := &fakeProvisioner{}
	engine := NewEngine(ledger, provisioner)

	_, err := engine.ConfirmPurchase(1, "alice", 1, t0)
	require.NoError(t, err)
	garbage := `{not-json`
	require.NoError(t, ledger.SetCredential(1, &garbage))

	access, err := engine.RequestAccess(context.Background(), 1, t0)
	require.NoError(t, err)
	assert.Equal(t, 1, provisioner.provisions)
	assert.Equal(t, "1", access.Credential.ID)

	account, err := ledger.GetByUserID(1)
	require.NoError(t, err)
	require.NotNil(t, account.CredentialRef)
	assert.Equal(t, access.Credential.Ref(), *account.CredentialRef)
}

func TestRequestAccessCredentialWriteFailureRevokesFreshKey(t *testing.T) {
	ledger := newFakeLedger()
	provisioner := &fakeProvisioner{}
	engine := NewEngine(ledger, provisioner)

	_, err := engine.ConfirmPurchase(1, "alice", 1, t0)
	require.NoError(t, err)
	ledger.failCredWrite = true

	_, err = engine.RequestAccess(context.Background(), 1, t0)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTemporarilyUnavailable)
	assert.Equal(t, []string{"1"}, provisioner.revoked)
}
