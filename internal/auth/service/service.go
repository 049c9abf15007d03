package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"bureau/internal/auth/metrics"
	"bureau/internal/auth/models"
	"bureau/internal/auth/store/user"
	jwttoken "bureau/internal/jwt_token"
	rlmodels "bureau/internal/ratelimit/models"
	dErrors "bureau/pkg/domain-errors"
	"bureau/pkg/platform/middleware/requesttime"
)

// UserStore is the account lookup the login flow needs.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// RateLimiter gates attempts and records their outcomes. The check runs
// before any credential work; failures are recorded exactly once per
// rejected attempt.
type RateLimiter interface {
	CheckAllowed(ctx context.Context, username, ip string) (*rlmodels.CheckResult, error)
	RecordFailure(ctx context.Context, username, ip string) error
	RecordSuccess(ctx context.Context, username, ip string) error
}

// JTIRegistry tracks outstanding long-lived token IDs.
type JTIRegistry interface {
	Save(ctx context.Context, record models.JTIRecord) error
	Has(ctx context.Context, jti uuid.UUID) (bool, error)
	Delete(ctx context.Context, jti uuid.UUID) error
}

// TokenCodec signs and verifies tokens without consulting the registry.
type TokenCodec interface {
	Issue(ctx context.Context, userID uuid.UUID, tokenType jwttoken.TokenType) (string, *jwttoken.Claims, error)
	Verify(ctx context.Context, tokenString string) (*jwttoken.Claims, error)
}

// CodeVerifier checks a one-time code against an enrolled secret.
type CodeVerifier interface {
	Verify(secret, code string, at time.Time) bool
}

// RateLimitedError is the terminal outcome of a blocked attempt. It
// carries the wait the transport layer surfaces as a Retry-After
// header, and unwraps to a rate-limit domain error so code-based
// mapping still applies.
type RateLimitedError struct {
	RetryAfter int
	ExpiresAt  time.Time
}

func (e *RateLimitedError) Error() string { return "too many failed login attempts" }

func (e *RateLimitedError) Unwrap() error {
	return dErrors.New(dErrors.CodeRateLimitExceeded, e.Error())
}

// Service drives the login state machine: rate-limit check, password
// check, optional second factor, then token issuance. Every terminal
// failure of a credential check records exactly one rate-limit failure;
// asking for a missing second factor records none, because the password
// was correct.
type Service struct {
	users    UserStore
	limiter  RateLimiter
	registry JTIRegistry
	codec    TokenCodec
	totp     CodeVerifier

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
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

func New(users UserStore, limiter RateLimiter, registry JTIRegistry, codec TokenCodec, totp CodeVerifier, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("jti registry is required")
	}
	if codec == nil {
		return nil, fmt.Errorf("token codec is required")
	}
	if totp == nil {
		return nil, fmt.Errorf("totp verifier is required")
	}

	svc := &Service{
		users:    users,
		limiter:  limiter,
		registry: registry,
		codec:    codec,
		totp:     totp,
		logger:   slog.Default(),
		tracer:   otel.Tracer("bureau/auth"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Login runs one attempt through the state machine. The returned error
// is a *RateLimitedError when a block applies, a totp_required domain
// error when the password was right but the second factor is missing,
// and an invalid_credentials domain error for every other rejection.
// Unknown accounts and wrong passwords are indistinguishable to the
// caller.
func (s *Service) Login(ctx context.Context, req models.LoginRequest, ip string) (*models.TokenResponse, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer span.End()

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveLoginDuration(time.Since(start).Seconds())
		}
	}()

	if err := req.Validate(); err != nil {
		s.countLogin("invalid_input")
		return nil, err
	}
	span.SetAttributes(attribute.String("auth.username", req.Email))

	check, err := s.limiter.CheckAllowed(ctx, req.Email, ip)
	if err != nil {
		s.countLogin("error")
		return nil, err
	}
	if !check.Allowed {
		s.countLogin("rate_limited")
		return nil, &RateLimitedError{RetryAfter: check.RetryAfter, ExpiresAt: check.ExpiresAt}
	}

	account, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, s.failAttempt(ctx, req.Email, ip, "unknown_user")
		}
		s.countLogin("error")
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to look up user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return nil, s.failAttempt(ctx, req.Email, ip, "bad_password")
	}

	if account.TOTPEnrolled() {
		if req.TOTPCode == "" {
			// The password was right, so this is a challenge, not a
			// failure. Recording it would let someone who knows the
			// password lock the account through repeated challenges.
			s.countLogin("totp_required")
			return nil, dErrors.New(dErrors.CodeTOTPRequired, "a one-time code is required")
		}
		if !s.totp.Verify(account.TOTPSecret, req.TOTPCode, requesttime.Now(ctx)) {
			return nil, s.failAttempt(ctx, req.Email, ip, "bad_totp")
		}
	}

	if err := s.limiter.RecordSuccess(ctx, req.Email, ip); err != nil {
		s.logger.WarnContext(ctx, "failed to record login success", "error", err)
	}

	tokenType := jwttoken.TypeSession
	if req.RememberMe {
		tokenType = jwttoken.TypeRememberMe
	}
	resp, err := s.issue(ctx, account.ID, tokenType)
	if err != nil {
		s.countLogin("error")
		return nil, err
	}

	s.countLogin("success")
	s.logAudit(ctx, "login_succeeded",
		"user_id", account.ID.String(),
		"ip", ip,
		"token_type", string(tokenType),
	)
	return resp, nil
}

// VerifyToken validates a bearer token and, for revocable types, checks
// its JTI is still registered. A verified token whose JTI has been
// deleted is rejected the same way a forged one is.
func (s *Service) VerifyToken(ctx context.Context, tokenString string) (*jwttoken.Claims, error) {
	ctx, span := s.tracer.Start(ctx, "auth.VerifyToken")
	defer span.End()

	claims, err := s.codec.Verify(ctx, tokenString)
	if err != nil {
		s.countVerify("rejected")
		return nil, err
	}

	if claims.Type().RequiresJTI() {
		jti, err := uuid.Parse(claims.ID)
		if err != nil {
			s.countVerify("rejected")
			return nil, dErrors.New(dErrors.CodeInvalidToken, "malformed jti")
		}
		registered, err := s.registry.Has(ctx, jti)
		if err != nil {
			s.countVerify("error")
			return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to check token registry")
		}
		if !registered {
			s.countVerify("revoked")
			return nil, dErrors.New(dErrors.CodeInvalidToken, "token has been revoked")
		}
	}

	s.countVerify("ok")
	return claims, nil
}

// Logout revokes the presented token. Session tokens carry no JTI and
// simply age out; revoking one is still a successful logout.
func (s *Service) Logout(ctx context.Context, tokenString string) error {
	ctx, span := s.tracer.Start(ctx, "auth.Logout")
	defer span.End()

	claims, err := s.codec.Verify(ctx, tokenString)
	if err != nil {
		return err
	}

	if claims.Type().RequiresJTI() {
		jti, err := uuid.Parse(claims.ID)
		if err != nil {
			return dErrors.New(dErrors.CodeInvalidToken, "malformed jti")
		}
		if err := s.registry.Delete(ctx, jti); err != nil {
			return dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to revoke token")
		}
	}

	if s.metrics != nil {
		s.metrics.IncrementLogouts()
	}
	s.logAudit(ctx, "logout",
		"user_id", claims.UserID,
		"token_type", claims.TokenType,
	)
	return nil
}

// IssueCLIToken mints a non-expiring token for the user and registers
// its JTI. Meant for operator tooling; there is no credential check
// here, callers must have authenticated already.
func (s *Service) IssueCLIToken(ctx context.Context, userID uuid.UUID) (*models.TokenResponse, error) {
	ctx, span := s.tracer.Start(ctx, "auth.IssueCLIToken")
	defer span.End()

	resp, err := s.issue(ctx, userID, jwttoken.TypeCLI)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "cli_token_issued", "user_id", userID.String())
	return resp, nil
}

func (s *Service) issue(ctx context.Context, userID uuid.UUID, tokenType jwttoken.TokenType) (*models.TokenResponse, error) {
	signed, claims, err := s.codec.Issue(ctx, userID, tokenType)
	if err != nil {
		return nil, err
	}

	if tokenType.RequiresJTI() {
		jti, err := uuid.Parse(claims.ID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "issued token carries a malformed jti")
		}
		record := models.JTIRecord{
			JTI:       jti,
			UserID:    userID,
			CreatedAt: requesttime.Now(ctx),
		}
		if err := s.registry.Save(ctx, record); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to register token")
		}
	}

	if s.metrics != nil {
		s.metrics.IncrementTokensIssued(string(tokenType))
	}

	resp := &models.TokenResponse{Token: signed, Type: "Bearer"}
	if claims.ExpiresAt != nil {
		expires := claims.ExpiresAt.Time
		resp.ExpiresAt = &expires
	}
	return resp, nil
}

// failAttempt records exactly one rate-limit failure and returns the
// uniform invalid-credentials error. A recording error is logged, not
// surfaced: the caller must still see a credential rejection.
func (s *Service) failAttempt(ctx context.Context, username, ip, reason string) error {
	if err := s.limiter.RecordFailure(ctx, username, ip); err != nil {
		s.logger.ErrorContext(ctx, "failed to record login failure", "error", err, "username", username, "ip", ip)
	}
	s.countLogin(reason)
	s.logAudit(ctx, "login_failed",
		"username", username,
		"ip", ip,
		"reason", reason,
	)
	return dErrors.New(dErrors.CodeInvalidCredentials, "invalid credentials")
}

func (s *Service) countLogin(result string) {
	if s.metrics != nil {
		s.metrics.IncrementLoginAttempts(result)
	}
}

func (s *Service) countVerify(result string) {
	if s.metrics != nil {
		s.metrics.IncrementTokensVerified(result)
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attrs ...any) {
	args := append(attrs, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
