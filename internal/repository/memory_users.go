package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/bus-seat-booking/internal/model"
	"github.com/iliyamo/bus-seat-booking/internal/utils"
)

// MemoryUsers is the in-process counterpart of UserRepo used with
// APP_STORE=memory.
type MemoryUsers struct {
	mu     sync.RWMutex
	byID   map[uint64]model.User
	nextID uint64
}

// NewMemoryUsers returns an empty user set.
func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{byID: map[uint64]model.User{}, nextID: 1}
}

// Create mirrors UserRepo.Create, including ErrEmailExists.
func (m *MemoryUsers) Create(_ context.Context, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			return 0, ErrEmailExists
		}
	}
	id := m.nextID
	m.nextID++
	m.byID[id] = model.User{ID: id, Email: email, PasswordHash: hash, Role: role, CreatedAt: time.Now().UTC()}
	return id, nil
}

// GetByEmail fetches a user by normalized email.
func (m *MemoryUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

// GetByID fetches a user by ID.
func (m *MemoryUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}
