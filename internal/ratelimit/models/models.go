package models

import (
	"time"

	dErrors "bureau/pkg/domain-errors"
)

// FailedLoginAttempt is one append-only log row. Username is empty when
// the attempt did not carry a recognizable account name.
type FailedLoginAttempt struct {
	OccurredAt time.Time
	IP         string
	Username   string
}

// BlockScope names which identifier a block applies to.
type BlockScope string

const (
	ScopeUsername BlockScope = "username"
	ScopeIP       BlockScope = "ip"
)

// LoginBlock is a temporary ban created when failure thresholds are
// crossed within the rolling window. Exactly one of Username/IP is set
// per row; a block is active iff now < ExpiresAt.
type LoginBlock struct {
	Scope     BlockScope
	Value     string
	BlockedAt time.Time
	ExpiresAt time.Time
}

// Validate enforces the scope invariant on a block row.
func (b *LoginBlock) Validate() error {
	if b.Value == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "login block requires a username or ip value")
	}
	if b.Scope != ScopeUsername && b.Scope != ScopeIP {
		return dErrors.New(dErrors.CodeInvalidInput, "login block scope must be username or ip")
	}
	if !b.ExpiresAt.After(b.BlockedAt) {
		return dErrors.New(dErrors.CodeInvalidInput, "login block must expire after it starts")
	}
	return nil
}

// Active reports whether the block still applies at the given instant.
func (b *LoginBlock) Active(now time.Time) bool {
	return now.Before(b.ExpiresAt)
}

// CheckResult is the outcome of a rate-limit check for one login attempt.
type CheckResult struct {
	Allowed bool

	// Set when not allowed. Both may be set when username and ip are
	// blocked simultaneously; ExpiresAt then carries the later expiry.
	BlockedUsername string
	BlockedIP       string
	ExpiresAt       time.Time
	RetryAfter      int // seconds until the attempt may be retried
}
