package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/tradevault/tradevault-server/src/models"
)

// Storage-level sentinel errors. The service layer maps these onto its own
// taxonomy before they reach a handler.
var (
	// ErrNotFound covers both a missing row and an ownership mismatch;
	// the two are deliberately indistinguishable
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate indicates a uniqueness violation
	ErrDuplicate = errors.New("record already exists")
)

// CredentialUpdate carries a partial update; nil fields are left untouched
type CredentialUpdate struct {
	EncryptedAPIKey    *string
	EncryptedAPISecret *string
	IsActive           *bool
}

// CredentialRepository defines the data-access boundary for broker
// credentials. Every method takes the requesting owner and binds it to the
// storage session before any query runs, so a row belonging to a different
// owner is structurally unreachable, not just filtered out.
type CredentialRepository interface {
	Insert(ctx context.Context, cred *models.BrokerCredential) (*models.BrokerCredential, error)
	GetByID(ctx context.Context, ownerID, id uuid.UUID) (*models.BrokerCredential, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.BrokerCredential, error)
	Update(ctx context.Context, ownerID, id uuid.UUID, upd CredentialUpdate) (*models.BrokerCredential, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, userID uuid.UUID) error
}
