package jti

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"bureau/internal/auth/models"
)

// InMemoryStore keeps the registry in a map. Used in tests and when
// the server runs without persistent storage configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]models.JTIRecord
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[uuid.UUID]models.JTIRecord)}
}

func (s *InMemoryStore) Save(_ context.Context, record models.JTIRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.JTI] = record
	return nil
}

func (s *InMemoryStore) Has(_ context.Context, jti uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[jti]
	return ok, nil
}

func (s *InMemoryStore) Delete(_ context.Context, jti uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, jti)
	return nil
}

func (s *InMemoryStore) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for jti, record := range s.records {
		if record.CreatedAt.Before(cutoff) {
			delete(s.records, jti)
			deleted++
		}
	}
	return deleted, nil
}
