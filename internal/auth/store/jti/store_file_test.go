package jti

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"bureau/internal/auth/models"
	dErrors "bureau/pkg/domain-errors"
)

type FileStoreSuite struct {
	suite.Suite
	store *FileStore
	path  string
}

func TestFileStoreSuite(t *testing.T) {
	suite.Run(t, new(FileStoreSuite))
}

func (s *FileStoreSuite) SetupTest() {
	s.path = filepath.Join(s.T().TempDir(), "jti.records")
	store, err := NewFile(s.path)
	s.Require().NoError(err)
	s.store = store
}

func (s *FileStoreSuite) record() models.JTIRecord {
	return models.JTIRecord{
		JTI:       uuid.New(),
		UserID:    uuid.New(),
		CreatedAt: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
}

func (s *FileStoreSuite) TestNewFile() {
	s.Run("creates missing parent directories", func() {
		nested := filepath.Join(s.T().TempDir(), "a", "b", "jti.records")
		_, err := NewFile(nested)
		s.NoError(err)
	})

	s.Run("fails with a storage error when the path is a directory", func() {
		_, err := NewFile(s.T().TempDir())
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeStorageFailure))
	})
}

func (s *FileStoreSuite) TestSaveAndHas() {
	ctx := context.Background()

	s.Run("saved jti is found", func() {
		rec := s.record()
		s.Require().NoError(s.store.Save(ctx, rec))

		found, err := s.store.Has(ctx, rec.JTI)
		s.NoError(err)
		s.True(found)
	})

	s.Run("unknown jti is not found", func() {
		found, err := s.store.Has(ctx, uuid.New())
		s.NoError(err)
		s.False(found)
	})

	s.Run("records survive reopening the store", func() {
		rec := s.record()
		s.Require().NoError(s.store.Save(ctx, rec))

		reopened, err := NewFile(s.path)
		s.Require().NoError(err)
		found, err := reopened.Has(ctx, rec.JTI)
		s.NoError(err)
		s.True(found)
	})
}

func (s *FileStoreSuite) TestDelete() {
	ctx := context.Background()

	s.Run("deleted jti is gone, others are untouched", func() {
		victim := s.record()
		survivor := s.record()
		s.Require().NoError(s.store.Save(ctx, victim))
		s.Require().NoError(s.store.Save(ctx, survivor))

		s.Require().NoError(s.store.Delete(ctx, victim.JTI))

		found, err := s.store.Has(ctx, victim.JTI)
		s.NoError(err)
		s.False(found)

		found, err = s.store.Has(ctx, survivor.JTI)
		s.NoError(err)
		s.True(found, "delete must not remove unrelated records")
	})

	s.Run("deleting an absent jti is a no-op", func() {
		s.NoError(s.store.Delete(ctx, uuid.New()))
	})
}

func (s *FileStoreSuite) TestDeleteExpiredBefore() {
	ctx := context.Background()
	cutoff := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	old := s.record()
	old.CreatedAt = cutoff.Add(-time.Hour)
	fresh := s.record()
	fresh.CreatedAt = cutoff.Add(time.Hour)
	boundary := s.record()
	boundary.CreatedAt = cutoff

	s.Require().NoError(s.store.Save(ctx, old))
	s.Require().NoError(s.store.Save(ctx, fresh))
	s.Require().NoError(s.store.Save(ctx, boundary))

	deleted, err := s.store.DeleteExpiredBefore(ctx, cutoff)
	s.Require().NoError(err)
	s.Equal(1, deleted, "only records strictly older than the cutoff are swept")

	found, _ := s.store.Has(ctx, old.JTI)
	s.False(found)
	found, _ = s.store.Has(ctx, fresh.JTI)
	s.True(found)
	found, _ = s.store.Has(ctx, boundary.JTI)
	s.True(found)
}

func (s *FileStoreSuite) TestCorruptStoreSurfacesStorageFailure() {
	ctx := context.Background()
	s.Require().NoError(os.WriteFile(s.path, []byte("not,a\n"), 0o640))

	_, err := s.store.Has(ctx, uuid.New())
	s.Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeStorageFailure))
}
