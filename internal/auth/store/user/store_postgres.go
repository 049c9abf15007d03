package user

import (
	"context"
	"database/sql"
	"fmt"

	"bureau/internal/auth/models"
)

// PostgresStore persists user accounts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed user store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, COALESCE(totp_secret, '')
		FROM users
		WHERE lower(email) = lower($1)
	`
	var user models.User
	err := s.db.QueryRowContext(ctx, query, email).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &user.TOTPSecret)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

func (s *PostgresStore) Save(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, totp_secret)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			totp_secret = EXCLUDED.totp_secret
	`
	if _, err := s.db.ExecContext(ctx, query, user.ID, user.Email, user.PasswordHash, user.TOTPSecret); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}
