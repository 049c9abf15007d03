package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bureau/internal/platform/config"
	"bureau/internal/ratelimit/metrics"
	"bureau/internal/ratelimit/models"
	dErrors "bureau/pkg/domain-errors"
	"bureau/pkg/platform/middleware/requesttime"
)

// Store is the persistence contract for failed attempts and blocks.
// Implementations must keep row-level writes atomic; the service never
// requires cross-row transactions.
type Store interface {
	RecordAttempt(ctx context.Context, attempt models.FailedLoginAttempt) error
	CountAttemptsByUsername(ctx context.Context, username string, since time.Time) (int, error)
	CountAttemptsByIP(ctx context.Context, ip string, since time.Time) (int, error)
	SaveBlock(ctx context.Context, block models.LoginBlock) error
	FindActiveBlock(ctx context.Context, scope models.BlockScope, value string, now time.Time) (*models.LoginBlock, error)
	ClearAttempts(ctx context.Context, username, ip string) error
	DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int, error)
	DeleteExpiredBlocks(ctx context.Context, now time.Time) (int, error)
}

// Service decides whether login attempts are allowed, records failures,
// and creates username- and ip-scoped blocks. Scoping the two
// separately stops credential stuffing from one source without letting
// a single targeted account lock out a whole shared IP.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	config  config.RateLimit
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithConfig(cfg config.RateLimit) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("rate limit store is required")
	}

	svc := &Service{
		store:  store,
		logger: slog.Default(),
		config: config.RateLimit{
			MaxAttempts:   5,
			Window:        15 * time.Minute,
			BlockDuration: 15 * time.Minute,
			Retention:     24 * time.Hour,
		},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CheckAllowed reads active blocks for the username and the ip. When
// either is blocked the result carries the affected scope(s) and a
// retry-after derived from the later expiry. This check runs before any
// password hashing so blocked attackers cost nearly nothing.
func (s *Service) CheckAllowed(ctx context.Context, username, ip string) (*models.CheckResult, error) {
	now := requesttime.Now(ctx)
	result := &models.CheckResult{Allowed: true}

	if username != "" {
		block, err := s.store.FindActiveBlock(ctx, models.ScopeUsername, username, now)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to read username block")
		}
		if block != nil {
			result.Allowed = false
			result.BlockedUsername = username
			result.ExpiresAt = block.ExpiresAt
			if s.metrics != nil {
				s.metrics.IncrementCheckDenied(string(models.ScopeUsername))
			}
		}
	}

	block, err := s.store.FindActiveBlock(ctx, models.ScopeIP, ip, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to read ip block")
	}
	if block != nil {
		result.Allowed = false
		result.BlockedIP = ip
		if block.ExpiresAt.After(result.ExpiresAt) {
			result.ExpiresAt = block.ExpiresAt
		}
		if s.metrics != nil {
			s.metrics.IncrementCheckDenied(string(models.ScopeIP))
		}
	}

	if !result.Allowed {
		result.RetryAfter = retryAfterSeconds(now, result.ExpiresAt)
		s.logAudit(ctx, "login_attempt_blocked",
			"username", username,
			"ip", ip,
			"expires_at", result.ExpiresAt,
			"retry_after", result.RetryAfter,
		)
	}
	return result, nil
}

// RecordFailure appends a failed attempt and evaluates the username and
// ip thresholds independently, creating or extending blocks as needed.
func (s *Service) RecordFailure(ctx context.Context, username, ip string) error {
	now := requesttime.Now(ctx)
	attempt := models.FailedLoginAttempt{
		OccurredAt: now,
		IP:         ip,
		Username:   username,
	}
	if err := s.store.RecordAttempt(ctx, attempt); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to record login attempt")
	}
	if s.metrics != nil {
		s.metrics.IncrementFailuresRecorded()
	}

	windowStart := now.Add(-s.config.Window)

	if username != "" {
		count, err := s.store.CountAttemptsByUsername(ctx, username, windowStart)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to count username attempts")
		}
		if count >= s.config.MaxAttempts {
			if err := s.createBlock(ctx, models.ScopeUsername, username, now); err != nil {
				return err
			}
		}
	}

	count, err := s.store.CountAttemptsByIP(ctx, ip, windowStart)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to count ip attempts")
	}
	if count >= s.config.MaxAttempts {
		if err := s.createBlock(ctx, models.ScopeIP, ip, now); err != nil {
			return err
		}
	}
	return nil
}

// RecordSuccess optionally clears the scope's failure history. The
// default keeps the attempt log intact; a successful login only stops
// contributing new failures.
func (s *Service) RecordSuccess(ctx context.Context, username, ip string) error {
	if !s.config.ResetOnSuccess {
		return nil
	}
	if err := s.store.ClearAttempts(ctx, username, ip); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to clear login attempts")
	}
	return nil
}

// Cleanup deletes attempt rows older than the retention window and
// blocks whose expiry has passed, returning the total rows removed.
// Deletes are filtered by predicate, so concurrent runs stay safe and
// idempotent.
func (s *Service) Cleanup(ctx context.Context) (int, error) {
	now := requesttime.Now(ctx)

	attempts, err := s.store.DeleteAttemptsBefore(ctx, now.Add(-s.config.Retention))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to delete stale attempts")
	}
	blocks, err := s.store.DeleteExpiredBlocks(ctx, now)
	if err != nil {
		return attempts, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to delete expired blocks")
	}
	return attempts + blocks, nil
}

func (s *Service) createBlock(ctx context.Context, scope models.BlockScope, value string, now time.Time) error {
	block := models.LoginBlock{
		Scope:     scope,
		Value:     value,
		BlockedAt: now,
		ExpiresAt: now.Add(s.config.BlockDuration),
	}
	if err := s.store.SaveBlock(ctx, block); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to save login block")
	}
	if s.metrics != nil {
		s.metrics.IncrementBlocksCreated(string(scope))
	}
	s.logAudit(ctx, "login_block_created",
		"scope", string(scope),
		"value", value,
		"expires_at", block.ExpiresAt,
	)
	return nil
}

func retryAfterSeconds(now, expiresAt time.Time) int {
	secs := int(expiresAt.Sub(now).Seconds())
	if secs < 0 {
		return 0
	}
	return secs
}

func (s *Service) logAudit(ctx context.Context, event string, attrs ...any) {
	args := append(attrs, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
