package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Server captures process-level configuration for the auth service.
type Server struct {
	Addr string

	// DatabaseURL selects the Postgres-backed stores when set; the
	// in-process stores are used otherwise.
	DatabaseURL string

	// JTIStorePath locates the flat-file JTI registry used when no
	// database is configured.
	JTIStorePath string

	JWTSigningKey  string
	Issuer         string
	SessionTTL     time.Duration
	RememberMeTTL  time.Duration
	RequestTimeout time.Duration

	// JTIRetention, when positive, makes the cleanup sweep drop registry
	// rows older than this. Dropping a row revokes its token, so this
	// stays off by default: cli tokens are meant to live until logout.
	JTIRetention time.Duration

	RateLimit RateLimit
	TOTP      TOTP
}

// RateLimit holds the failed-login blocking thresholds.
type RateLimit struct {
	// MaxAttempts failures per scope (username or ip) within Window
	// trigger a block lasting BlockDuration.
	MaxAttempts   int
	Window        time.Duration
	BlockDuration time.Duration

	// Retention bounds how long failed-attempt rows are kept before the
	// cleanup sweep removes them.
	Retention       time.Duration
	CleanupInterval time.Duration

	// ResetOnSuccess clears a scope's failure history after a successful
	// login instead of letting the window age it out.
	ResetOnSuccess bool
}

// TOTP holds the one-time-code parameters (RFC 6238).
type TOTP struct {
	Digits int
	Period time.Duration
	// Skew is the number of adjacent time steps accepted on either side
	// of the current one, tolerating client clock drift.
	Skew uint
}

// Load reads an optional .env file and then builds the config from the
// environment. Missing .env is not an error.
func Load() Server {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:           envString("BUREAU_ADDR", ":8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JTIStorePath:   envString("JTI_STORE_PATH", "data/jti.records"),
		JWTSigningKey:  envString("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Issuer:         envString("JWT_ISSUER", "bookmark-bureau"),
		SessionTTL:     envDuration("SESSION_TOKEN_TTL", 2*time.Hour),
		RememberMeTTL:  envDuration("REMEMBER_ME_TOKEN_TTL", 30*24*time.Hour),
		RequestTimeout: envDuration("REQUEST_TIMEOUT", 30*time.Second),
		JTIRetention:   envDuration("JTI_RETENTION", 0),
		RateLimit: RateLimit{
			MaxAttempts:     envInt("RATE_LIMIT_MAX_ATTEMPTS", 5),
			Window:          envDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
			BlockDuration:   envDuration("RATE_LIMIT_BLOCK_DURATION", 15*time.Minute),
			Retention:       envDuration("RATE_LIMIT_RETENTION", 24*time.Hour),
			CleanupInterval: envDuration("RATE_LIMIT_CLEANUP_INTERVAL", 15*time.Minute),
			ResetOnSuccess:  os.Getenv("RATE_LIMIT_RESET_ON_SUCCESS") == "true",
		},
		TOTP: TOTP{
			Digits: envInt("TOTP_DIGITS", 6),
			Period: envDuration("TOTP_PERIOD", 30*time.Second),
			Skew:   1,
		},
	}
	return cfg
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
