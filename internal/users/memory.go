package users

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tewahedanswers/answers/backend/go-services/internal/models"
)

// MemoryUserRepository is an in-memory UserRepository used when MongoDB is
// not configured (development) and in unit tests. The mutex makes the
// guarded demotion a genuine check-then-write critical section.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	store map[string]*models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{store: make(map[string]*models.User)}
}

func copyUser(u *models.User) *models.User {
	out := *u
	return &out
}

func (m *MemoryUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.store[id]; ok {
		return copyUser(u), nil
	}
	return nil, nil
}

func (m *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findByEmailLocked(email), nil
}

func (m *MemoryUserRepository) findByEmailLocked(email string) *models.User {
	lower := strings.ToLower(email)
	for _, u := range m.store {
		if u.EmailLower == lower {
			return copyUser(u)
		}
	}
	return nil
}

func (m *MemoryUserRepository) Upsert(ctx context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	u.EmailLower = strings.ToLower(u.Email)

	existing, ok := m.store[u.ID]
	if !ok && u.Email != "" {
		if byEmail := m.findByEmailLocked(u.Email); byEmail != nil {
			existing = m.store[byEmail.ID]
		}
	}

	if existing == nil {
		u.CreatedAt = now
		u.UpdatedAt = now
		m.store[u.ID] = copyUser(u)
		return copyUser(u), nil
	}

	existing.Email = u.Email
	existing.EmailLower = u.EmailLower
	if u.DisplayName != "" {
		existing.DisplayName = u.DisplayName
	}
	if u.PhotoURL != "" {
		existing.PhotoURL = u.PhotoURL
	}
	existing.IsAdmin = existing.IsAdmin || u.IsAdmin
	existing.UpdatedAt = now
	return copyUser(existing), nil
}

func (m *MemoryUserRepository) SetAdmin(ctx context.Context, id string, isAdmin bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.IsAdmin = isAdmin
	u.UpdatedAt = time.Now().UTC()
	return copyUser(u), nil
}

func (m *MemoryUserRepository) DemoteAdminGuarded(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	others := 0
	for _, u := range m.store {
		if u.IsAdmin && u.ID != id {
			others++
		}
	}
	if others == 0 {
		return nil, ErrLastAdmin
	}
	target.IsAdmin = false
	target.UpdatedAt = time.Now().UTC()
	return copyUser(target), nil
}

func (m *MemoryUserRepository) SetPhotoURL(ctx context.Context, id, photoURL string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.PhotoURL = photoURL
	u.UpdatedAt = time.Now().UTC()
	return copyUser(u), nil
}

func (m *MemoryUserRepository) List(ctx context.Context) ([]*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.User, 0, len(m.store))
	for _, u := range m.store {
		out = append(out, copyUser(u))
	}
	return out, nil
}
