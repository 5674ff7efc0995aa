package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradevault/tradevault-server/src/models"
	"github.com/tradevault/tradevault-server/src/repositories"
	"github.com/tradevault/tradevault-server/src/repositories/mock"
)

// base64 of a fixed 32-byte key, test use only
const accessorTestKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="

func newTestAccessor(t *testing.T, key string) (*CredentialAccessor, *mock.CredentialRepository, *EncryptorProvider) {
	t.Helper()
	repo := mock.NewCredentialRepository()
	provider := NewEncryptorProvider(func() string { return key })
	return NewCredentialAccessor(repo, provider), repo, provider
}

func insertEncrypted(t *testing.T, repo *mock.CredentialRepository, provider *EncryptorProvider, ownerID uuid.UUID, apiKey, apiSecret string, active bool) *models.BrokerCredential {
	t.Helper()
	enc, err := provider.Get()
	require.NoError(t, err)

	encKey, err := enc.Encrypt(apiKey)
	require.NoError(t, err)
	encSecret, err := enc.Encrypt(apiSecret)
	require.NoError(t, err)

	stored, err := repo.Insert(context.Background(), &models.BrokerCredential{
		OwnerID:            ownerID,
		BrokerType:         "alpaca",
		EncryptedAPIKey:    encKey,
		EncryptedAPISecret: encSecret,
		IsActive:           active,
	})
	require.NoError(t, err)
	return stored
}

func TestWithPlaintext_RoundTrip(t *testing.T) {
	accessor, repo, provider := newTestAccessor(t, accessorTestKey)
	ownerID := uuid.New()
	stored := insertEncrypted(t, repo, provider, ownerID, "PKLIVEKEY123456", "livesecretvalue", true)

	var called bool
	err := accessor.WithPlaintext(context.Background(), ownerID, stored.ID, func(_ context.Context, meta models.CredentialMetadata, apiKey, apiSecret string) error {
		called = true
		assert.Equal(t, stored.ID, meta.ID)
		assert.Equal(t, "alpaca", meta.BrokerType)
		assert.Equal(t, "PKLIVEKEY123456", apiKey)
		assert.Equal(t, "livesecretvalue", apiSecret)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestWithPlaintext_NotFound(t *testing.T) {
	accessor, _, _ := newTestAccessor(t, accessorTestKey)

	err := accessor.WithPlaintext(context.Background(), uuid.New(), uuid.New(), func(context.Context, models.CredentialMetadata, string, string) error {
		t.Fatal("callback must not run for a missing credential")
		return nil
	})
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestWithPlaintext_WrongOwner(t *testing.T) {
	accessor, repo, provider := newTestAccessor(t, accessorTestKey)
	stored := insertEncrypted(t, repo, provider, uuid.New(), "key", "secret", true)

	err := accessor.WithPlaintext(context.Background(), uuid.New(), stored.ID, func(context.Context, models.CredentialMetadata, string, string) error {
		t.Fatal("callback must not run for another owner's credential")
		return nil
	})
	// Ownership mismatch is reported exactly like a missing record
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestWithPlaintext_Inactive(t *testing.T) {
	accessor, repo, provider := newTestAccessor(t, accessorTestKey)
	ownerID := uuid.New()
	stored := insertEncrypted(t, repo, provider, ownerID, "key", "secret", false)

	err := accessor.WithPlaintext(context.Background(), ownerID, stored.ID, func(context.Context, models.CredentialMetadata, string, string) error {
		t.Fatal("callback must not run for an inactive credential")
		return nil
	})
	assert.ErrorIs(t, err, ErrCredentialInactive)
}

func TestWithPlaintext_MissingKey(t *testing.T) {
	// Build the record with a working provider, then read it back through an
	// accessor whose provider has no key
	repo := mock.NewCredentialRepository()
	goodProvider := NewEncryptorProvider(func() string { return accessorTestKey })
	ownerID := uuid.New()
	stored := insertEncrypted(t, repo, goodProvider, ownerID, "key", "secret", true)

	accessor := NewCredentialAccessor(repo, NewEncryptorProvider(func() string { return "" }))
	err := accessor.WithPlaintext(context.Background(), ownerID, stored.ID, func(context.Context, models.CredentialMetadata, string, string) error {
		t.Fatal("callback must not run without an encryption key")
		return nil
	})
	assert.ErrorIs(t, err, ErrEncryptionKeyMissing)
}

func TestWithPlaintext_TamperedCiphertext(t *testing.T) {
	accessor, repo, provider := newTestAccessor(t, accessorTestKey)
	ownerID := uuid.New()
	stored := insertEncrypted(t, repo, provider, ownerID, "key", "secret", true)

	corrupted := stored.EncryptedAPIKey[:len(stored.EncryptedAPIKey)-4] + "AAAA"
	_, err := repo.Update(context.Background(), ownerID, stored.ID, repositories.CredentialUpdate{EncryptedAPIKey: &corrupted})
	require.NoError(t, err)

	err = accessor.WithPlaintext(context.Background(), ownerID, stored.ID, func(context.Context, models.CredentialMetadata, string, string) error {
		t.Fatal("callback must not run with undecryptable data")
		return nil
	})
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestWithPlaintext_CallbackErrorPropagated(t *testing.T) {
	accessor, repo, provider := newTestAccessor(t, accessorTestKey)
	ownerID := uuid.New()
	stored := insertEncrypted(t, repo, provider, ownerID, "key", "secret", true)

	sentinel := errors.New("callback failure")
	err := accessor.WithPlaintext(context.Background(), ownerID, stored.ID, func(context.Context, models.CredentialMetadata, string, string) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}
