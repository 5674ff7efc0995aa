package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tradevault/tradevault-server/src/config"
	"github.com/tradevault/tradevault-server/src/models"
	"github.com/tradevault/tradevault-server/src/repositories"
)

// CredentialUpdateRequest carries a partial credential update.
// Nil fields are left untouched; supplied secret fields are re-encrypted.
type CredentialUpdateRequest struct {
	APIKey    *string
	APISecret *string
	IsActive  *bool
}

// CredentialService implements the credential lifecycle: store, list,
// validate against the brokerage, update, delete. Responses carry metadata
// only; plaintext secrets exist solely inside the accessor's scope during
// Validate.
type CredentialService struct {
	repo      repositories.CredentialRepository
	encryptor *EncryptorProvider
	accessor  *CredentialAccessor
	brokers   config.BrokerRegistry
	broker    BrokerAPI
}

// NewCredentialService creates the credential lifecycle service
func NewCredentialService(repo repositories.CredentialRepository, encryptor *EncryptorProvider, brokers config.BrokerRegistry, broker BrokerAPI) *CredentialService {
	return &CredentialService{
		repo:      repo,
		encryptor: encryptor,
		accessor:  NewCredentialAccessor(repo, encryptor),
		brokers:   brokers,
		broker:    broker,
	}
}

// Store encrypts and persists a new credential, returning its metadata
func (cs *CredentialService) Store(ctx context.Context, ownerID uuid.UUID, brokerType, apiKey, apiSecret string) (*models.CredentialMetadata, error) {
	brokerType = strings.TrimSpace(brokerType)
	if brokerType == "" {
		return nil, fmt.Errorf("%w: broker_type is required", ErrInvalidInput)
	}
	if _, ok := cs.brokers.Lookup(brokerType); !ok {
		return nil, fmt.Errorf("%w: unknown broker_type %q", ErrInvalidInput, brokerType)
	}
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("%w: api_key and api_secret are required", ErrInvalidInput)
	}

	enc, err := cs.encryptor.Get()
	if err != nil {
		log.Error().Err(err).Str("operation", "store").Msg("encryption unavailable")
		return nil, err
	}

	encKey, err := enc.Encrypt(apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt api key: %w", err)
	}
	encSecret, err := enc.Encrypt(apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt api secret: %w", err)
	}

	created, err := cs.repo.Insert(ctx, &models.BrokerCredential{
		OwnerID:            ownerID,
		BrokerType:         brokerType,
		EncryptedAPIKey:    encKey,
		EncryptedAPISecret: encSecret,
		IsActive:           true,
	})
	if err != nil {
		return nil, mapRepoError(err)
	}

	meta := created.Metadata()
	return &meta, nil
}

// List returns metadata for all of the owner's credentials
func (cs *CredentialService) List(ctx context.Context, ownerID uuid.UUID) ([]models.CredentialMetadata, error) {
	creds, err := cs.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	metas := make([]models.CredentialMetadata, 0, len(creds))
	for i := range creds {
		metas = append(metas, creds[i].Metadata())
	}
	return metas, nil
}

// Get returns metadata for one credential
func (cs *CredentialService) Get(ctx context.Context, ownerID, id uuid.UUID) (*models.CredentialMetadata, error) {
	cred, err := cs.repo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	meta := cred.Metadata()
	return &meta, nil
}

// Update applies a partial update, re-encrypting only the supplied secret
// fields, and returns the updated metadata
func (cs *CredentialService) Update(ctx context.Context, ownerID, id uuid.UUID, req CredentialUpdateRequest) (*models.CredentialMetadata, error) {
	if req.APIKey == nil && req.APISecret == nil && req.IsActive == nil {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if req.APIKey != nil && *req.APIKey == "" {
		return nil, fmt.Errorf("%w: api_key cannot be empty", ErrInvalidInput)
	}
	if req.APISecret != nil && *req.APISecret == "" {
		return nil, fmt.Errorf("%w: api_secret cannot be empty", ErrInvalidInput)
	}

	upd := repositories.CredentialUpdate{IsActive: req.IsActive}

	if req.APIKey != nil || req.APISecret != nil {
		enc, err := cs.encryptor.Get()
		if err != nil {
			log.Error().Err(err).Str("operation", "update").Msg("encryption unavailable")
			return nil, err
		}
		if req.APIKey != nil {
			encKey, err := enc.Encrypt(*req.APIKey)
			if err != nil {
				return nil, fmt.Errorf("failed to encrypt api key: %w", err)
			}
			upd.EncryptedAPIKey = &encKey
		}
		if req.APISecret != nil {
			encSecret, err := enc.Encrypt(*req.APISecret)
			if err != nil {
				return nil, fmt.Errorf("failed to encrypt api secret: %w", err)
			}
			upd.EncryptedAPISecret = &encSecret
		}
	}

	updated, err := cs.repo.Update(ctx, ownerID, id, upd)
	if err != nil {
		return nil, mapRepoError(err)
	}

	meta := updated.Metadata()
	return &meta, nil
}

// Delete hard-deletes a credential
func (cs *CredentialService) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if err := cs.repo.Delete(ctx, ownerID, id); err != nil {
		return mapRepoError(err)
	}
	return nil
}

// Validate checks the credential against its brokerage and returns a
// structured result. External-service failures (timeout, rejection,
// network) are reported inside the result, never as an error, so a bad
// credential is a handled outcome rather than an exception path that could
// drag plaintext into a trace. Errors are reserved for NotFound, Inactive,
// decryption and key-configuration failures.
func (cs *CredentialService) Validate(ctx context.Context, ownerID, id uuid.UUID) (*models.ValidationResult, error) {
	result := &models.ValidationResult{}

	err := cs.accessor.WithPlaintext(ctx, ownerID, id, func(ctx context.Context, meta models.CredentialMetadata, apiKey, apiSecret string) error {
		broker, ok := cs.brokers.Lookup(meta.BrokerType)
		if !ok {
			result.Reason = models.ReasonUnknownBroker
			return nil
		}

		account, err := cs.broker.GetAccount(ctx, broker.BaseURL, apiKey, apiSecret)
		switch {
		case errors.Is(err, ErrBrokerAuthRejected):
			result.Reason = models.ReasonInvalidCredentials
			return nil
		case errors.Is(err, ErrBrokerUnavailable):
			log.Warn().
				Err(err).
				Str("credential_id", meta.ID.String()).
				Str("broker_type", meta.BrokerType).
				Msg("broker API unreachable during validation")
			result.Reason = models.ReasonBrokerUnreachable
			return nil
		case err != nil:
			return err
		}

		result.Valid = true
		result.Account = account
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDecryptionFailed) {
			log.Error().
				Str("credential_id", id.String()).
				Str("operation", "validate").
				Msg("stored ciphertext failed authentication")
		}
		return nil, err
	}

	return result, nil
}

// mapRepoError translates storage sentinels into the service taxonomy
func mapRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return ErrCredentialNotFound
	case errors.Is(err, repositories.ErrDuplicate):
		return ErrDuplicateCredential
	default:
		return err
	}
}
