// Package jti implements the whitelist registry of outstanding
// long-lived token IDs. A cli or remember_me token only verifies while
// its JTI is present here, which makes revocation a row delete instead
// of a re-signing exercise.
package jti

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bureau/internal/auth/models"
)

// Store is the registry contract. Save does not deduplicate: callers
// guarantee uniqueness by generating UUIDs. Delete of an absent JTI is
// a no-op, not an error.
type Store interface {
	Save(ctx context.Context, record models.JTIRecord) error
	Has(ctx context.Context, jti uuid.UUID) (bool, error)
	Delete(ctx context.Context, jti uuid.UUID) error
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int, error)
}
