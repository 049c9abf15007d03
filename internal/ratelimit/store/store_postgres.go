package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bureau/internal/ratelimit/models"
)

// PostgresStore persists failed attempts and login blocks in PostgreSQL.
// This store is pure I/O; window arithmetic and threshold decisions
// belong in the service. Row-level statements keep concurrent request
// handlers safe without cross-row transactions.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed rate-limit store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) RecordAttempt(ctx context.Context, attempt models.FailedLoginAttempt) error {
	query := `
		INSERT INTO failed_login_attempts (occurred_at, ip, username)
		VALUES ($1, $2, NULLIF($3, ''))
	`
	if _, err := s.db.ExecContext(ctx, query, attempt.OccurredAt, attempt.IP, attempt.Username); err != nil {
		return fmt.Errorf("record failed login attempt: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountAttemptsByUsername(ctx context.Context, username string, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM failed_login_attempts WHERE username = $1 AND occurred_at >= $2`
	if err := s.db.QueryRowContext(ctx, query, username, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count attempts by username: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CountAttemptsByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM failed_login_attempts WHERE ip = $1 AND occurred_at >= $2`
	if err := s.db.QueryRowContext(ctx, query, ip, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count attempts by ip: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) SaveBlock(ctx context.Context, block models.LoginBlock) error {
	if err := block.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO login_blocks (scope, value, blocked_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (scope, value) DO UPDATE SET
			blocked_at = EXCLUDED.blocked_at,
			expires_at = GREATEST(login_blocks.expires_at, EXCLUDED.expires_at)
	`
	if _, err := s.db.ExecContext(ctx, query, block.Scope, block.Value, block.BlockedAt, block.ExpiresAt); err != nil {
		return fmt.Errorf("save login block: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindActiveBlock(ctx context.Context, scope models.BlockScope, value string, now time.Time) (*models.LoginBlock, error) {
	query := `
		SELECT scope, value, blocked_at, expires_at
		FROM login_blocks
		WHERE scope = $1 AND value = $2 AND expires_at > $3
	`
	var block models.LoginBlock
	err := s.db.QueryRowContext(ctx, query, scope, value, now).
		Scan(&block.Scope, &block.Value, &block.BlockedAt, &block.ExpiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find active login block: %w", err)
	}
	return &block, nil
}

func (s *PostgresStore) ClearAttempts(ctx context.Context, username, ip string) error {
	query := `
		DELETE FROM failed_login_attempts
		WHERE (NULLIF($1, '') IS NOT NULL AND username = $1)
		   OR (NULLIF($2, '') IS NOT NULL AND ip = $2)
	`
	if _, err := s.db.ExecContext(ctx, query, username, ip); err != nil {
		return fmt.Errorf("clear login attempts: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM failed_login_attempts WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale login attempts: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted login attempts: %w", err)
	}
	return int(deleted), nil
}

func (s *PostgresStore) DeleteExpiredBlocks(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM login_blocks WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired login blocks: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted login blocks: %w", err)
	}
	return int(deleted), nil
}
