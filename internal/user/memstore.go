package user

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nexusmfg/traveler/model"
)

// MemoryStore is an in-memory user Store for testing and single-instance
// deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]model.User
}

// NewMemoryStore creates a new in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, users: make(map[int64]model.User)}
}

// Create inserts a new user.
func (s *MemoryStore) Create(_ context.Context, u model.User) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return model.User{}, model.NewConflictError(
				fmt.Sprintf("user with username %q or email %q already exists", u.Username, u.Email),
			)
		}
	}

	u.ID = s.nextID
	s.nextID++
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	s.users[u.ID] = u
	return u, nil
}

// Get retrieves a user by ID.
func (s *MemoryStore) Get(_ context.Context, id int64) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, model.NewNotFoundError(fmt.Sprintf("user %d not found", id))
	}
	return u, nil
}

// GetByUsername retrieves a user by username.
func (s *MemoryStore) GetByUsername(_ context.Context, username string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, model.NewNotFoundError(fmt.Sprintf("user %q not found", username))
}

// List returns all users ordered by ID.
func (s *MemoryStore) List(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Update persists changes to an existing user.
func (s *MemoryStore) Update(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; !ok {
		return model.NewNotFoundError(fmt.Sprintf("user %d not found", u.ID))
	}
	u.UpdatedAt = time.Now().UTC()
	s.users[u.ID] = u
	return nil
}
