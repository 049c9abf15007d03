package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bureau/internal/ratelimit/models"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) record(at time.Time, username, ip string) {
	s.Require().NoError(s.store.RecordAttempt(context.Background(), models.FailedLoginAttempt{
		OccurredAt: at,
		IP:         ip,
		Username:   username,
	}))
}

func (s *InMemoryStoreSuite) TestCountAttempts() {
	ctx := context.Background()
	s.record(s.now.Add(-20*time.Minute), "a@example.com", "192.0.2.1")
	s.record(s.now.Add(-10*time.Minute), "a@example.com", "192.0.2.1")
	s.record(s.now.Add(-5*time.Minute), "b@example.com", "192.0.2.1")
	since := s.now.Add(-15 * time.Minute)

	s.Run("by username", func() {
		count, err := s.store.CountAttemptsByUsername(ctx, "a@example.com", since)
		s.Require().NoError(err)
		s.Equal(1, count)
	})

	s.Run("by ip counts across usernames", func() {
		count, err := s.store.CountAttemptsByIP(ctx, "192.0.2.1", since)
		s.Require().NoError(err)
		s.Equal(2, count)
	})

	s.Run("attempt exactly at the window start counts", func() {
		s.record(since, "c@example.com", "198.51.100.9")
		count, err := s.store.CountAttemptsByUsername(ctx, "c@example.com", since)
		s.Require().NoError(err)
		s.Equal(1, count)
	})
}

func (s *InMemoryStoreSuite) TestSaveBlockUpserts() {
	ctx := context.Background()
	block := models.LoginBlock{
		Scope:     models.ScopeUsername,
		Value:     "a@example.com",
		BlockedAt: s.now,
		ExpiresAt: s.now.Add(15 * time.Minute),
	}
	s.Require().NoError(s.store.SaveBlock(ctx, block))

	s.Run("later expiry replaces the stored one", func() {
		extended := block
		extended.ExpiresAt = s.now.Add(30 * time.Minute)
		s.Require().NoError(s.store.SaveBlock(ctx, extended))

		found, err := s.store.FindActiveBlock(ctx, models.ScopeUsername, "a@example.com", s.now)
		s.Require().NoError(err)
		s.Require().NotNil(found)
		s.Equal(extended.ExpiresAt, found.ExpiresAt)
	})

	s.Run("earlier expiry never shortens a block", func() {
		shorter := block
		shorter.ExpiresAt = s.now.Add(5 * time.Minute)
		s.Require().NoError(s.store.SaveBlock(ctx, shorter))

		found, err := s.store.FindActiveBlock(ctx, models.ScopeUsername, "a@example.com", s.now)
		s.Require().NoError(err)
		s.Require().NotNil(found)
		s.Equal(s.now.Add(30*time.Minute), found.ExpiresAt)
	})
}

func (s *InMemoryStoreSuite) TestFindActiveBlock() {
	ctx := context.Background()
	expiry := s.now.Add(15 * time.Minute)
	s.Require().NoError(s.store.SaveBlock(ctx, models.LoginBlock{
		Scope:     models.ScopeIP,
		Value:     "192.0.2.1",
		BlockedAt: s.now,
		ExpiresAt: expiry,
	}))

	s.Run("found while active", func() {
		found, err := s.store.FindActiveBlock(ctx, models.ScopeIP, "192.0.2.1", s.now)
		s.Require().NoError(err)
		s.NotNil(found)
	})

	s.Run("scopes do not bleed into each other", func() {
		found, err := s.store.FindActiveBlock(ctx, models.ScopeUsername, "192.0.2.1", s.now)
		s.Require().NoError(err)
		s.Nil(found)
	})

	s.Run("nil exactly at expiry", func() {
		found, err := s.store.FindActiveBlock(ctx, models.ScopeIP, "192.0.2.1", expiry)
		s.Require().NoError(err)
		s.Nil(found)
	})
}

func (s *InMemoryStoreSuite) TestClearAttempts() {
	ctx := context.Background()
	s.record(s.now, "a@example.com", "192.0.2.1")
	s.record(s.now, "b@example.com", "198.51.100.9")

	s.Require().NoError(s.store.ClearAttempts(ctx, "a@example.com", "192.0.2.1"))

	count, err := s.store.CountAttemptsByUsername(ctx, "a@example.com", s.now.Add(-time.Hour))
	s.Require().NoError(err)
	s.Zero(count)

	count, err = s.store.CountAttemptsByUsername(ctx, "b@example.com", s.now.Add(-time.Hour))
	s.Require().NoError(err)
	s.Equal(1, count, "other identities keep their history")
}

func (s *InMemoryStoreSuite) TestDeletes() {
	ctx := context.Background()
	s.record(s.now.Add(-2*time.Hour), "a@example.com", "192.0.2.1")
	s.record(s.now, "a@example.com", "192.0.2.1")
	s.Require().NoError(s.store.SaveBlock(ctx, models.LoginBlock{
		Scope:     models.ScopeUsername,
		Value:     "a@example.com",
		BlockedAt: s.now.Add(-time.Hour),
		ExpiresAt: s.now.Add(-30 * time.Minute),
	}))

	s.Run("stale attempts", func() {
		deleted, err := s.store.DeleteAttemptsBefore(ctx, s.now.Add(-time.Hour))
		s.Require().NoError(err)
		s.Equal(1, deleted)
	})

	s.Run("expired blocks", func() {
		deleted, err := s.store.DeleteExpiredBlocks(ctx, s.now)
		s.Require().NoError(err)
		s.Equal(1, deleted)
	})
}
