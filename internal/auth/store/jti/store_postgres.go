package jti

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"bureau/internal/auth/models"
	dErrors "bureau/pkg/domain-errors"
)

// PostgresStore persists JTI records in a keyed table with the same
// save/has/delete semantics as the flat-file layout.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed JTI registry.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, record models.JTIRecord) error {
	query := `INSERT INTO jti_records (jti, user_id, created_at) VALUES ($1, $2, $3)`
	if _, err := s.db.ExecContext(ctx, query, record.JTI, record.UserID, record.CreatedAt); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to save jti record")
	}
	return nil
}

func (s *PostgresStore) Has(ctx context.Context, jti uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM jti_records WHERE jti = $1)`
	if err := s.db.QueryRowContext(ctx, query, jti).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to check jti record")
	}
	return exists, nil
}

func (s *PostgresStore) Delete(ctx context.Context, jti uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM jti_records WHERE jti = $1`, jti); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to delete jti record")
	}
	return nil
}

func (s *PostgresStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jti_records WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to sweep jti records")
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to count swept jti records")
	}
	return int(deleted), nil
}
