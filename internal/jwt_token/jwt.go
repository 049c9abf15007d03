package jwttoken

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "bureau/pkg/domain-errors"
	"bureau/pkg/platform/middleware/requesttime"
)

// TokenType distinguishes the three token lifetimes the service issues.
type TokenType string

const (
	// TypeSession is the short-lived browser token.
	TypeSession TokenType = "session"
	// TypeCLI is a non-expiring token for command-line use; revocable via
	// its JTI.
	TypeCLI TokenType = "cli"
	// TypeRememberMe is a long-lived browser token; revocable via its JTI.
	TypeRememberMe TokenType = "remember_me"
)

func (t TokenType) IsValid() bool {
	switch t {
	case TypeSession, TypeCLI, TypeRememberMe:
		return true
	}
	return false
}

// RequiresJTI reports whether tokens of this type carry a registry-backed
// JWT ID. Long-lived tokens must be revocable without re-signing.
func (t TokenType) RequiresJTI() bool {
	return t == TypeCLI || t == TypeRememberMe
}

// Claims are the JWT claims carried by every Bookmark Bureau token.
type Claims struct {
	UserID    string `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Type returns the typed token type of the claims.
func (c *Claims) Type() TokenType {
	return TokenType(c.TokenType)
}

// Codec signs and verifies HS256 tokens. Verification never consults the
// JTI registry; that check is layered by callers for revocable types.
type Codec struct {
	signingKey    []byte
	issuer        string
	sessionTTL    time.Duration
	rememberMeTTL time.Duration
}

func NewCodec(signingKey, issuer string, sessionTTL, rememberMeTTL time.Duration) *Codec {
	return &Codec{
		signingKey:    []byte(signingKey),
		issuer:        issuer,
		sessionTTL:    sessionTTL,
		rememberMeTTL: rememberMeTTL,
	}
}

// Issue signs a token for the user. Session tokens get the short TTL,
// remember-me tokens the long one, and CLI tokens never expire. CLI and
// remember-me tokens receive a fresh JTI; registering it with the
// registry is the caller's responsibility.
func (c *Codec) Issue(ctx context.Context, userID uuid.UUID, tokenType TokenType) (string, *Claims, error) {
	if !tokenType.IsValid() {
		return "", nil, dErrors.New(dErrors.CodeInvalidInput, "unknown token type")
	}

	// Second-granularity timestamps: expiry comparisons are defined on
	// UTC epoch seconds.
	now := requesttime.Now(ctx).Truncate(time.Second)

	claims := &Claims{
		UserID:    userID.String(),
		TokenType: string(tokenType),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   c.issuer,
		},
	}

	switch tokenType {
	case TypeSession:
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.sessionTTL))
	case TypeRememberMe:
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.rememberMeTTL))
	case TypeCLI:
		// no expiry; revocation happens through the JTI registry
	}

	if tokenType.RequiresJTI() {
		claims.ID = uuid.NewString()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.signingKey)
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signed, claims, nil
}

// Verify checks signature, format, and expiry, returning the claims.
// The expired predicate is exclusive: a token whose expiry equals the
// current second is still valid; only now > expiresAt rejects it.
func (c *Codec) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "empty token")
	}

	claims := new(Claims)
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, dErrors.New(dErrors.CodeInvalidToken, "unexpected signing algorithm")
		}
		return c.signingKey, nil
	},
		// Expiry is validated below with the exclusive predicate; the
		// library treats equality as expired.
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrSignatureInvalid) {
			return nil, dErrors.New(dErrors.CodeInvalidToken, "invalid token signature")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidToken, "malformed token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "invalid token")
	}

	if claims.Issuer != c.issuer {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "invalid token issuer")
	}
	if !claims.Type().IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "unknown token type")
	}
	if claims.Type().RequiresJTI() && claims.ID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "token missing jti")
	}

	if claims.ExpiresAt != nil {
		now := requesttime.Now(ctx).Truncate(time.Second)
		if now.After(claims.ExpiresAt.Time) {
			return nil, dErrors.New(dErrors.CodeInvalidToken, "token expired")
		}
	}

	return claims, nil
}
