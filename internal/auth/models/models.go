package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "bureau/pkg/domain-errors"
)

// This file contains pure domain models for authentication: entities
// that should not depend on transport or HTTP-specific concerns.

// User is the read-only account view the login flow consumes. The user
// repository owns its lifecycle.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string

	// TOTPSecret is the Base32-encoded enrolled secret; empty when the
	// user has no second factor.
	TOTPSecret string
}

// TOTPEnrolled reports whether login must be accompanied by a one-time code.
func (u *User) TOTPEnrolled() bool {
	return u.TOTPSecret != ""
}

// LoginRequest carries one login attempt.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	TOTPCode   string `json:"totp_code,omitempty"`
	RememberMe bool   `json:"remember_me,omitempty"`
}

// Validate normalizes and checks the request shape. The email is
// lowercased so rate-limit tracking and lookups agree on one form.
func (r *LoginRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Email == "" || !strings.Contains(r.Email, "@") {
		return dErrors.New(dErrors.CodeInvalidInput, "a valid email is required")
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "password is required")
	}
	return nil
}

// TokenResponse is returned to the caller on successful login. It is
// never persisted.
type TokenResponse struct {
	Token     string     `json:"token"`
	Type      string     `json:"type"` // always "Bearer"
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// JTIRecord is one row of the long-lived token registry: one record per
// outstanding cli/remember_me token.
type JTIRecord struct {
	JTI       uuid.UUID
	UserID    uuid.UUID
	CreatedAt time.Time
}
