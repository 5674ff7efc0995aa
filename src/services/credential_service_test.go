package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradevault/tradevault-server/src/config"
	"github.com/tradevault/tradevault-server/src/models"
	"github.com/tradevault/tradevault-server/src/repositories/mock"
)

// scriptedBroker returns a fixed account or error
type scriptedBroker struct {
	account *models.BrokerAccount
	err     error
	calls   int
	lastKey string
}

func (s *scriptedBroker) GetAccount(_ context.Context, _, apiKey, _ string) (*models.BrokerAccount, error) {
	s.calls++
	s.lastKey = apiKey
	if s.err != nil {
		return nil, s.err
	}
	return s.account, nil
}

func newTestCredentialService(key string) (*CredentialService, *mock.CredentialRepository, *scriptedBroker) {
	repo := mock.NewCredentialRepository()
	provider := NewEncryptorProvider(func() string { return key })
	registry := config.BrokerRegistry{
		"alpaca": {BaseURL: "https://api.example.test", DisplayName: "Alpaca"},
	}
	broker := &scriptedBroker{
		account: &models.BrokerAccount{AccountNumber: "PA12345", Status: "ACTIVE", Currency: "USD"},
	}
	return NewCredentialService(repo, provider, registry, broker), repo, broker
}

func TestCredentialService_Store(t *testing.T) {
	svc, repo, _ := newTestCredentialService(accessorTestKey)
	ownerID := uuid.New()

	meta, err := svc.Store(context.Background(), ownerID, "alpaca", "PKSTOREKEY123", "storesecret")
	require.NoError(t, err)

	assert.Equal(t, "alpaca", meta.BrokerType)
	assert.True(t, meta.IsActive)
	assert.NotEqual(t, uuid.Nil, meta.ID)

	stored, err := repo.GetByID(context.Background(), ownerID, meta.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "PKSTOREKEY123", stored.EncryptedAPIKey)
	assert.NotEqual(t, "storesecret", stored.EncryptedAPISecret)
}

func TestCredentialService_Store_Validation(t *testing.T) {
	svc, _, _ := newTestCredentialService(accessorTestKey)
	ownerID := uuid.New()

	_, err := svc.Store(context.Background(), ownerID, "", "k", "s")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Store(context.Background(), ownerID, "unknown_broker", "k", "s")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Store(context.Background(), ownerID, "alpaca", "", "s")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Store(context.Background(), ownerID, "alpaca", "k", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCredentialService_Store_Duplicate(t *testing.T) {
	svc, _, _ := newTestCredentialService(accessorTestKey)
	ownerID := uuid.New()

	_, err := svc.Store(context.Background(), ownerID, "alpaca", "k1", "s1")
	require.NoError(t, err)

	_, err = svc.Store(context.Background(), ownerID, "alpaca", "k2", "s2")
	assert.ErrorIs(t, err, ErrDuplicateCredential)

	// A different owner is free to use the same broker
	_, err = svc.Store(context.Background(), uuid.New(), "alpaca", "k3", "s3")
	assert.NoError(t, err)
}

func TestCredentialService_Store_MissingKey(t *testing.T) {
	svc, repo, _ := newTestCredentialService("")

	_, err := svc.Store(context.Background(), uuid.New(), "alpaca", "k", "s")
	assert.ErrorIs(t, err, ErrEncryptionKeyMissing)
	assert.Zero(t, repo.Calls["Insert"], "nothing may be written without a key")
}

func TestCredentialService_ListAndGet(t *testing.T) {
	svc, _, _ := newTestCredentialService(accessorTestKey)
	ownerID := uuid.New()
	otherOwner := uuid.New()

	stored, err := svc.Store(context.Background(), ownerID, "alpaca", "k", "s")
	require.NoError(t, err)

	list, err := svc.List(context.Background(), ownerID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	otherList, err := svc.List(context.Background(), otherOwner)
	require.NoError(t, err)
	assert.Empty(t, otherList)

	got, err := svc.Get(context.Background(), ownerID, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, got.ID)

	_, err = svc.Get(context.Background(), otherOwner, stored.ID)
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestCredentialService_Update(t *testing.T) {
	svc, repo, _ := newTestCredentialService(accessorTestKey)
	ownerID := uuid.New()

	stored, err := svc.Store(context.Background(), ownerID, "alpaca", "oldkey", "oldsecret")
	require.NoError(t, err)
	before, err := repo.GetByID(context.Background(), ownerID, stored.ID)
	require.NoError(t, err)

	newKey := "newkey"
	meta, err := svc.Update(context.Background(), ownerID, stored.ID, CredentialUpdateRequest{APIKey: &newKey})
	require.NoError(t, err)
	assert.True(t, meta.IsActive)

	after, err := repo.GetByID(context.Background(), ownerID, stored.ID)
	require.NoError(t, err)
	assert.NotEqual(t, before.EncryptedAPIKey, after.EncryptedAPIKey)
	assert.Equal(t, before.EncryptedAPISecret, after.EncryptedAPISecret)
}

func TestCredentialService_Update_Validation(t *testing.T) {
	svc, _, _ := newTestCredentialService(accessorTestKey)
	ownerID := uuid.New()

	stored, err := svc.Store(context.Background(), ownerID, "alpaca", "k", "s")
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), ownerID, stored.ID, CredentialUpdateRequest{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	empty := ""
	_, err = svc.Update(context.Background(), ownerID, stored.ID, CredentialUpdateRequest{APIKey: &empty})
	assert.ErrorIs(t, err, ErrInvalidInput)

	inactive := false
	_, err = svc.Update(context.Background(), uuid.New(), stored.ID, CredentialUpdateRequest{IsActive: &inactive})
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestCredentialService_Update_ReactivateConflict(t *testing.T) {
	svc, _, _ := newTestCredentialService(accessorTestKey)
	ownerID := uuid.New()

	first, err := svc.Store(context.Background(), ownerID, "alpaca", "k1", "s1")
	require.NoError(t, err)

	inactive := false
	_, err = svc.Update(context.Background(), ownerID, first.ID, CredentialUpdateRequest{IsActive: &inactive})
	require.NoError(t, err)

	// With the first deactivated a second active credential is allowed
	_, err = svc.Store(context.Background(), ownerID, "alpaca", "k2", "s2")
	require.NoError(t, err)

	// Reactivating the first would break single-active-per-broker
	active := true
	_, err = svc.Update(context.Background(), ownerID, first.ID, CredentialUpdateRequest{IsActive: &active})
	assert.ErrorIs(t, err, ErrDuplicateCredential)
}

func TestCredentialService_Delete(t *testing.T) {
	svc, _, _ := newTestCredentialService(accessorTestKey)
	ownerID := uuid.New()

	stored, err := svc.Store(context.Background(), ownerID, "alpaca", "k", "s")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), ownerID, stored.ID))
	assert.ErrorIs(t, svc.Delete(context.Background(), ownerID, stored.ID), ErrCredentialNotFound)
}

func TestCredentialService_Delete_WrongOwner(t *testing.T) {
	svc, _, _ := newTestCredentialService(accessorTestKey)
	ownerID := uuid.New()

	stored, err := svc.Store(context.Background(), ownerID, "alpaca", "k", "s")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(context.Background(), uuid.New(), stored.ID), ErrCredentialNotFound)

	// Still retrievable by the real owner
	_, err = svc.Get(context.Background(), ownerID, stored.ID)
	assert.NoError(t, err)
}

func TestCredentialService_Validate_Success(t *testing.T) {
	svc, _, broker := newTestCredentialService(accessorTestKey)
	ownerID := uuid.New()

	stored, err := svc.Store(context.Background(), ownerID, "alpaca", "PKVALIDATEKEY", "s")
	require.NoError(t, err)

	result, err := svc.Validate(context.Background(), ownerID, stored.ID)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Reason)
	require.NotNil(t, result.Account)
	assert.Equal(t, "PA12345", result.Account.AccountNumber)
	assert.Equal(t, "PKVALIDATEKEY", broker.lastKey, "broker must receive the decrypted key")
}

func TestCredentialService_Validate_AuthRejected(t *testing.T) {
	svc, _, broker := newTestCredentialService(accessorTestKey)
	ownerID := uuid.New()
	broker.err = ErrBrokerAuthRejected

	stored, err := svc.Store(context.Background(), ownerID, "alpaca", "k", "s")
	require.NoError(t, err)

	result, err := svc.Validate(context.Background(), ownerID, stored.ID)
	require.NoError(t, err, "a rejected credential is a result, not an error")
	assert.False(t, result.Valid)
	assert.Equal(t, models.ReasonInvalidCredentials, result.Reason)
	assert.Nil(t, result.Account)
}

func TestCredentialService_Validate_BrokerUnreachable(t *testing.T) {
	svc, _, broker := newTestCredentialService(accessorTestKey)
	ownerID := uuid.New()
	broker.err = ErrBrokerUnavailable

	stored, err := svc.Store(context.Background(), ownerID, "alpaca", "k", "s")
	require.NoError(t, err)

	result, err := svc.Validate(context.Background(), ownerID, stored.ID)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, models.ReasonBrokerUnreachable, result.Reason)
}

func TestCredentialService_Validate_Inactive(t *testing.T) {
	svc, _, broker := newTestCredentialService(accessorTestKey)
	ownerID := uuid.New()

	stored, err := svc.Store(context.Background(), ownerID, "alpaca", "k", "s")
	require.NoError(t, err)

	inactive := false
	_, err = svc.Update(context.Background(), ownerID, stored.ID, CredentialUpdateRequest{IsActive: &inactive})
	require.NoError(t, err)

	_, err = svc.Validate(context.Background(), ownerID, stored.ID)
	assert.ErrorIs(t, err, ErrCredentialInactive)
	assert.Zero(t, broker.calls, "inactive credential must not reach the broker")
}

func TestCredentialService_Validate_UnknownBroker(t *testing.T) {
	// A broker can disappear from the registry after its credential was
	// stored (config change across restarts)
	svc, repo, broker := newTestCredentialService(accessorTestKey)
	ownerID := uuid.New()

	stored, err := svc.Store(context.Background(), ownerID, "alpaca", "k", "s")
	require.NoError(t, err)

	provider := NewEncryptorProvider(func() string { return accessorTestKey })
	trimmed := NewCredentialService(repo, provider, config.BrokerRegistry{}, broker)

	result, err := trimmed.Validate(context.Background(), ownerID, stored.ID)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, models.ReasonUnknownBroker, result.Reason)
	assert.Zero(t, broker.calls)
}

func TestCredentialService_Validate_NotFound(t *testing.T) {
	svc, _, broker := newTestCredentialService(accessorTestKey)

	_, err := svc.Validate(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrCredentialNotFound)
	assert.Zero(t, broker.calls)
}
