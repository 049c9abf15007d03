package store

import (
	"context"
	"sync"
	"time"

	"bureau/internal/ratelimit/models"
)

// InMemoryStore keeps failed attempts and blocks in process memory.
// Suitable for single-instance deployments and tests; the Postgres
// store covers multi-process setups.
type InMemoryStore struct {
	mu       sync.RWMutex
	attempts []models.FailedLoginAttempt
	blocks   map[string]models.LoginBlock // keyed by scope:value
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		blocks: make(map[string]models.LoginBlock),
	}
}

func blockKey(scope models.BlockScope, value string) string {
	return string(scope) + ":" + value
}

func (s *InMemoryStore) RecordAttempt(_ context.Context, attempt models.FailedLoginAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts = append(s.attempts, attempt)
	return nil
}

func (s *InMemoryStore) CountAttemptsByUsername(_ context.Context, username string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, a := range s.attempts {
		if a.Username == username && !a.OccurredAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) CountAttemptsByIP(_ context.Context, ip string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, a := range s.attempts {
		if a.IP == ip && !a.OccurredAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// SaveBlock upserts a block for the scope/value pair. An existing block
// is extended rather than duplicated.
func (s *InMemoryStore) SaveBlock(_ context.Context, block models.LoginBlock) error {
	if err := block.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := blockKey(block.Scope, block.Value)
	if existing, ok := s.blocks[key]; ok && existing.ExpiresAt.After(block.ExpiresAt) {
		return nil
	}
	s.blocks[key] = block
	return nil
}

// FindActiveBlock returns the block for scope/value when it has not yet
// expired, or nil.
func (s *InMemoryStore) FindActiveBlock(_ context.Context, scope models.BlockScope, value string, now time.Time) (*models.LoginBlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	block, ok := s.blocks[blockKey(scope, value)]
	if !ok || !block.Active(now) {
		return nil, nil
	}
	copied := block
	return &copied, nil
}

// ClearAttempts removes attempt rows matching the username or the ip.
func (s *InMemoryStore) ClearAttempts(_ context.Context, username, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.attempts[:0]
	for _, a := range s.attempts {
		if (username != "" && a.Username == username) || (ip != "" && a.IP == ip) {
			continue
		}
		kept = append(kept, a)
	}
	s.attempts = kept
	return nil
}

// DeleteAttemptsBefore removes attempt rows older than the cutoff and
// returns how many were deleted.
func (s *InMemoryStore) DeleteAttemptsBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.attempts[:0]
	deleted := 0
	for _, a := range s.attempts {
		if a.OccurredAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, a)
	}
	s.attempts = kept
	return deleted, nil
}

// DeleteExpiredBlocks removes blocks whose expiry has passed and returns
// how many were deleted. Blocks expiring exactly at now are kept: a
// block is active iff now < ExpiresAt, so deletion requires ExpiresAt < now.
func (s *InMemoryStore) DeleteExpiredBlocks(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key, block := range s.blocks {
		if block.ExpiresAt.Before(now) {
			delete(s.blocks, key)
			deleted++
		}
	}
	return deleted, nil
}
