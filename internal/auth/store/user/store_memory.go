package user

import (
	"context"
	"strings"
	"sync"

	"bureau/internal/auth/models"
)

// InMemoryStore keeps users in process memory, keyed by lowercased email.
type InMemoryStore struct {
	mu      sync.RWMutex
	byEmail map[string]models.User
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byEmail: make(map[string]models.User),
	}
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	copied := user
	return &copied, nil
}

func (s *InMemoryStore) Save(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byEmail[strings.ToLower(user.Email)] = *user
	return nil
}
