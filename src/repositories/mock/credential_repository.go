package mock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tradevault/tradevault-server/src/models"
	"github.com/tradevault/tradevault-server/src/repositories"
)

// CredentialRepository is an in-memory implementation of
// repositories.CredentialRepository with the same ownership semantics as the
// PostgreSQL store: a lookup under the wrong owner is indistinguishable from
// a missing record.
type CredentialRepository struct {
	mu    sync.RWMutex
	creds map[uuid.UUID]models.BrokerCredential

	// Call tracking
	Calls map[string]int
}

// NewCredentialRepository creates an empty in-memory credential repository
func NewCredentialRepository() *CredentialRepository {
	return &CredentialRepository{
		creds: make(map[uuid.UUID]models.BrokerCredential),
		Calls: make(map[string]int),
	}
}

func (m *CredentialRepository) track(method string) {
	m.Calls[method]++
}

func (m *CredentialRepository) Insert(_ context.Context, cred *models.BrokerCredential) (*models.BrokerCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("Insert")

	if cred.IsActive {
		for _, existing := range m.creds {
			if existing.OwnerID == cred.OwnerID && existing.BrokerType == cred.BrokerType && existing.IsActive {
				return nil, repositories.ErrDuplicate
			}
		}
	}

	stored := *cred
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.creds[stored.ID] = stored

	out := stored
	return &out, nil
}

func (m *CredentialRepository) GetByID(_ context.Context, ownerID, id uuid.UUID) (*models.BrokerCredential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.track("GetByID")

	cred, ok := m.creds[id]
	if !ok || cred.OwnerID != ownerID {
		return nil, repositories.ErrNotFound
	}
	out := cred
	return &out, nil
}

func (m *CredentialRepository) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]models.BrokerCredential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.track("ListByOwner")

	var out []models.BrokerCredential
	for _, cred := range m.creds {
		if cred.OwnerID == ownerID {
			out = append(out, cred)
		}
	}
	return out, nil
}

func (m *CredentialRepository) Update(_ context.Context, ownerID, id uuid.UUID, upd repositories.CredentialUpdate) (*models.BrokerCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("Update")

	cred, ok := m.creds[id]
	if !ok || cred.OwnerID != ownerID {
		return nil, repositories.ErrNotFound
	}

	if upd.IsActive != nil && *upd.IsActive && !cred.IsActive {
		for otherID, other := range m.creds {
			if otherID != id && other.OwnerID == ownerID && other.BrokerType == cred.BrokerType && other.IsActive {
				return nil, repositories.ErrDuplicate
			}
		}
	}

	if upd.EncryptedAPIKey != nil {
		cred.EncryptedAPIKey = *upd.EncryptedAPIKey
	}
	if upd.EncryptedAPISecret != nil {
		cred.EncryptedAPISecret = *upd.EncryptedAPISecret
	}
	if upd.IsActive != nil {
		cred.IsActive = *upd.IsActive
	}
	cred.UpdatedAt = time.Now()
	m.creds[id] = cred

	out := cred
	return &out, nil
}

func (m *CredentialRepository) Delete(_ context.Context, ownerID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("Delete")

	cred, ok := m.creds[id]
	if !ok || cred.OwnerID != ownerID {
		return repositories.ErrNotFound
	}
	delete(m.creds, id)
	return nil
}

// Ensure CredentialRepository implements the interface
var _ repositories.CredentialRepository = (*CredentialRepository)(nil)
