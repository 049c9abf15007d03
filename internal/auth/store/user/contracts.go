package user

import (
	"context"
	"errors"

	"bureau/internal/auth/models"
)

// ErrNotFound is returned by lookups when no user matches.
var ErrNotFound = errors.New("user not found")

// Store is the read-mostly persistence contract for user accounts.
// The login flow only reads; Save exists for seeding and tests.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
}
