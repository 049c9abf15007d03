package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	totplib "github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"bureau/internal/auth/models"
	"bureau/internal/auth/store/jti"
	"bureau/internal/auth/store/user"
	"bureau/internal/auth/totp"
	jwttoken "bureau/internal/jwt_token"
	rlmodels "bureau/internal/ratelimit/models"
	dErrors "bureau/pkg/domain-errors"
	"bureau/pkg/platform/middleware/requesttime"
)

const (
	testPassword = "correct horse battery staple"
	testIP       = "203.0.113.7"
)

// spyLimiter records how the state machine drives the rate limiter so
// tests can assert on exactly-once failure accounting.
type spyLimiter struct {
	denyResult *rlmodels.CheckResult

	checks    int
	failures  int
	successes int
}

func (l *spyLimiter) CheckAllowed(context.Context, string, string) (*rlmodels.CheckResult, error) {
	l.checks++
	if l.denyResult != nil {
		return l.denyResult, nil
	}
	return &rlmodels.CheckResult{Allowed: true}, nil
}

func (l *spyLimiter) RecordFailure(context.Context, string, string) error {
	l.failures++
	return nil
}

func (l *spyLimiter) RecordSuccess(context.Context, string, string) error {
	l.successes++
	return nil
}

type ServiceSuite struct {
	suite.Suite

	users    *user.InMemoryStore
	limiter  *spyLimiter
	registry *jti.InMemoryStore
	codec    *jwttoken.Codec
	service  *Service

	now time.Time
	ctx context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.users = user.NewInMemory()
	s.limiter = &spyLimiter{}
	s.registry = jti.NewInMemory()
	s.codec = jwttoken.NewCodec("test-signing-key", "bureau-test", time.Hour, 30*24*time.Hour)

	svc, err := New(s.users, s.limiter, s.registry, s.codec, totp.NewVerifier())
	s.Require().NoError(err)
	s.service = svc

	s.now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	s.ctx = requesttime.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) seedUser(totpSecret string) *models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	s.Require().NoError(err)

	u := &models.User{
		ID:           uuid.New(),
		Email:        "reader@example.com",
		PasswordHash: string(hash),
		TOTPSecret:   totpSecret,
	}
	s.Require().NoError(s.users.Save(context.Background(), u))
	return u
}

func (s *ServiceSuite) totpSecret() string {
	key, err := totplib.Generate(totplib.GenerateOpts{Issuer: "bureau-test", AccountName: "reader@example.com"})
	s.Require().NoError(err)
	return key.Secret()
}

func (s *ServiceSuite) login(req models.LoginRequest) (*models.TokenResponse, error) {
	return s.service.Login(s.ctx, req, testIP)
}

func (s *ServiceSuite) TestLoginSuccess() {
	u := s.seedUser("")

	s.Run("session token by default", func() {
		resp, err := s.login(models.LoginRequest{Email: u.Email, Password: testPassword})
		s.Require().NoError(err)
		s.Equal("Bearer", resp.Type)
		s.Require().NotNil(resp.ExpiresAt)
		s.Equal(s.now.Add(time.Hour), *resp.ExpiresAt)

		claims, err := s.service.VerifyToken(s.ctx, resp.Token)
		s.Require().NoError(err)
		s.Equal(u.ID.String(), claims.UserID)
		s.Equal(jwttoken.TypeSession, claims.Type())
	})

	s.Run("no failures recorded on success", func() {
		s.Zero(s.limiter.failures)
	})

	s.Run("email is case-insensitive", func() {
		_, err := s.login(models.LoginRequest{Email: "Reader@Example.COM", Password: testPassword})
		s.NoError(err)
	})
}

func (s *ServiceSuite) TestLoginRememberMe() {
	u := s.seedUser("")

	resp, err := s.login(models.LoginRequest{Email: u.Email, Password: testPassword, RememberMe: true})
	s.Require().NoError(err)

	claims, err := s.service.VerifyToken(s.ctx, resp.Token)
	s.Require().NoError(err)
	s.Equal(jwttoken.TypeRememberMe, claims.Type())

	s.Run("jti is registered on issue", func() {
		jtiID, err := uuid.Parse(claims.ID)
		s.Require().NoError(err)
		registered, err := s.registry.Has(context.Background(), jtiID)
		s.Require().NoError(err)
		s.True(registered)
	})

	s.Run("logout revokes the token", func() {
		s.Require().NoError(s.service.Logout(s.ctx, resp.Token))

		_, err := s.service.VerifyToken(s.ctx, resp.Token)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidToken))
	})
}

func (s *ServiceSuite) TestLoginRejections() {
	u := s.seedUser("")

	s.Run("unknown user records one failure and yields the generic error", func() {
		before := s.limiter.failures
		_, err := s.login(models.LoginRequest{Email: "nobody@example.com", Password: testPassword})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
		s.Equal(before+1, s.limiter.failures)
	})

	s.Run("wrong password records one failure and yields the same error", func() {
		before := s.limiter.failures
		_, err := s.login(models.LoginRequest{Email: u.Email, Password: "wrong"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
		s.Equal(before+1, s.limiter.failures)
	})

	s.Run("invalid input is rejected before the limiter is consulted", func() {
		before := s.limiter.checks
		_, err := s.login(models.LoginRequest{Email: "not-an-email", Password: testPassword})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
		s.Equal(before, s.limiter.checks)
	})
}

func (s *ServiceSuite) TestLoginRateLimited() {
	u := s.seedUser("")
	s.limiter.denyResult = &rlmodels.CheckResult{
		Allowed:         false,
		BlockedUsername: u.Email,
		ExpiresAt:       s.now.Add(10 * time.Minute),
		RetryAfter:      600,
	}

	_, err := s.login(models.LoginRequest{Email: u.Email, Password: testPassword})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeRateLimitExceeded))

	var limited *RateLimitedError
	s.Require().ErrorAs(err, &limited)
	s.Equal(600, limited.RetryAfter)

	s.Run("a blocked attempt records no additional failure", func() {
		s.Zero(s.limiter.failures)
	})
}

func (s *ServiceSuite) TestLoginTOTP() {
	secret := s.totpSecret()
	u := s.seedUser(secret)

	s.Run("missing code yields totp_required without recording a failure", func() {
		_, err := s.login(models.LoginRequest{Email: u.Email, Password: testPassword})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeTOTPRequired))
		s.Zero(s.limiter.failures)
	})

	s.Run("wrong code records one failure", func() {
		_, err := s.login(models.LoginRequest{Email: u.Email, Password: testPassword, TOTPCode: "000000"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
		s.Equal(1, s.limiter.failures)
	})

	s.Run("missing code with a wrong password is a password failure", func() {
		before := s.limiter.failures
		_, err := s.login(models.LoginRequest{Email: u.Email, Password: "wrong"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
		s.Equal(before+1, s.limiter.failures)
	})

	s.Run("correct code within clock skew logs in", func() {
		code, err := totplib.GenerateCodeCustom(secret, s.now.Add(-30*time.Second), totplib.ValidateOpts{
			Period: 30,
			Digits: 6,
		})
		s.Require().NoError(err)

		resp, err := s.login(models.LoginRequest{Email: u.Email, Password: testPassword, TOTPCode: code})
		s.Require().NoError(err)
		s.NotEmpty(resp.Token)
	})
}

func (s *ServiceSuite) TestIssueCLIToken() {
	u := s.seedUser("")

	resp, err := s.service.IssueCLIToken(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Nil(resp.ExpiresAt, "cli tokens never expire")

	claims, err := s.service.VerifyToken(s.ctx, resp.Token)
	s.Require().NoError(err)
	s.Equal(jwttoken.TypeCLI, claims.Type())

	s.Run("still valid far in the future", func() {
		later := requesttime.WithTime(context.Background(), s.now.AddDate(10, 0, 0))
		_, err := s.service.VerifyToken(later, resp.Token)
		s.NoError(err)
	})

	s.Run("rejected after its jti is deleted", func() {
		jtiID, err := uuid.Parse(claims.ID)
		s.Require().NoError(err)
		s.Require().NoError(s.registry.Delete(context.Background(), jtiID))

		_, err = s.service.VerifyToken(s.ctx, resp.Token)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidToken))
	})
}

func (s *ServiceSuite) TestVerifyTokenRejectsGarbage() {
	_, err := s.service.VerifyToken(s.ctx, "not-a-token")
	s.Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidToken))
}
