package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tradevault/tradevault-server/src/models"
	"github.com/tradevault/tradevault-server/src/repositories"
)

// UserRepository is an in-memory implementation of
// repositories.UserRepository for unit tests
type UserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*models.User
	Calls map[string]int
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users: make(map[uuid.UUID]*models.User),
		Calls: make(map[string]int),
	}
}

func (m *UserRepository) track(method string) {
	m.Calls[method]++
}

func (m *UserRepository) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("Create")

	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return repositories.ErrDuplicate
		}
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *UserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.track("GetByEmail")

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *UserRepository) UpdateLastLogin(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("UpdateLastLogin")

	u, ok := m.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	now := time.Now()
	u.LastLogin = &now
	return nil
}
