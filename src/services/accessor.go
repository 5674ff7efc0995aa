package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tradevault/tradevault-server/src/models"
	"github.com/tradevault/tradevault-server/src/repositories"
)

// PlaintextFunc is a unit of work that receives decrypted credentials.
// The apiKey/apiSecret values are valid only for the duration of the call;
// implementations must not store them anywhere that outlives it.
type PlaintextFunc func(ctx context.Context, meta models.CredentialMetadata, apiKey, apiSecret string) error

// CredentialAccessor is the only component allowed to turn a stored
// credential back into plaintext. It scopes the exposure to a single
// callback: lookup, ownership and active checks, decrypt, invoke, discard.
type CredentialAccessor struct {
	repo      repositories.CredentialRepository
	encryptor *EncryptorProvider
}

// NewCredentialAccessor creates an accessor over a credential store
func NewCredentialAccessor(repo repositories.CredentialRepository, encryptor *EncryptorProvider) *CredentialAccessor {
	return &CredentialAccessor{repo: repo, encryptor: encryptor}
}

// WithPlaintext decrypts the credential's secret fields and hands them to fn.
// The decrypted buffers are zeroed in a deferred cleanup, so they are wiped
// on normal return, on error, and on panic alike. There is no cache:
// concurrent calls for the same credential each decrypt independently
// (decryption is cheap; a cache would only widen the exposure window).
//
// Failure modes: ErrCredentialNotFound (missing row or ownership mismatch,
// indistinguishable by design), ErrCredentialInactive, ErrDecryptionFailed,
// and the key-configuration errors. All occur before fn runs; fn's own error
// is propagated unchanged.
func (a *CredentialAccessor) WithPlaintext(ctx context.Context, ownerID, credentialID uuid.UUID, fn PlaintextFunc) error {
	cred, err := a.repo.GetByID(ctx, ownerID, credentialID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrCredentialNotFound
		}
		return fmt.Errorf("credential lookup failed: %w", err)
	}

	if !cred.IsActive {
		return ErrCredentialInactive
	}

	enc, err := a.encryptor.Get()
	if err != nil {
		return err
	}

	apiKey, err := enc.DecryptBytes(cred.EncryptedAPIKey)
	if err != nil {
		return fmt.Errorf("credential %s: %w", credentialID, err)
	}
	defer zeroBytes(apiKey)

	apiSecret, err := enc.DecryptBytes(cred.EncryptedAPISecret)
	if err != nil {
		return fmt.Errorf("credential %s: %w", credentialID, err)
	}
	defer zeroBytes(apiSecret)

	// String views are built at the last possible moment and no reference
	// to them is kept here once fn returns
	return fn(ctx, cred.Metadata(), string(apiKey), string(apiSecret))
}

// zeroBytes overwrites a plaintext buffer
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
