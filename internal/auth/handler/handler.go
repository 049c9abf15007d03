package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"bureau/internal/auth/models"
	"bureau/internal/auth/service"
	jwttoken "bureau/internal/jwt_token"
	"bureau/internal/platform/middleware"
	"bureau/internal/transport/httputil"
	dErrors "bureau/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/auth-mocks.go -package=mocks Service

// Service defines the authentication operations the transport needs.
type Service interface {
	Login(ctx context.Context, req models.LoginRequest, ip string) (*models.TokenResponse, error)
	VerifyToken(ctx context.Context, tokenString string) (*jwttoken.Claims, error)
	Logout(ctx context.Context, tokenString string) error
}

// Handler exposes login, logout, and the current-session endpoint.
type Handler struct {
	auth   Service
	logger *slog.Logger
}

func New(auth Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{auth: auth, logger: logger}
}

// Register mounts the auth routes. /auth/me is wrapped in RequireAuth
// here; login and logout carry their own token handling.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
	r.Post("/auth/logout", h.HandleLogout)
	r.With(h.RequireAuth).Get("/auth/me", h.HandleMe)
}

// HandleLogin implements POST /auth/login.
//
// Input: { "email": "...", "password": "...", "totp_code": "...", "remember_me": false }
// Output: { "token": "...", "type": "Bearer", "expires_at": "..." }
//
// A blocked attempt answers 429 with a Retry-After header; a correct
// password on a TOTP-enrolled account without a code answers 400 with
// error "totp_required".
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode login request",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid JSON in request body"))
		return
	}

	ip := middleware.ClientIP(r)
	resp, err := h.auth.Login(ctx, req, ip)
	if err != nil {
		var limited *service.RateLimitedError
		if errors.As(err, &limited) {
			w.Header().Set("Retry-After", strconv.Itoa(limited.RetryAfter))
		}
		h.logger.WarnContext(ctx, "login rejected",
			"error", err,
			"request_id", requestID,
			"ip", ip,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleLogout implements POST /auth/logout. The presented bearer token
// is revoked; revoking an already-invalid token answers 401.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token, err := bearerToken(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.auth.Logout(ctx, token); err != nil {
		h.logger.WarnContext(ctx, "logout rejected",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// HandleMe implements GET /auth/me, echoing the verified session.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing credentials"))
		return
	}

	resp := struct {
		UserID    string     `json:"user_id"`
		TokenType string     `json:"token_type"`
		ExpiresAt *time.Time `json:"expires_at,omitempty"`
	}{
		UserID:    claims.UserID,
		TokenType: claims.TokenType,
	}
	if claims.ExpiresAt != nil {
		expires := claims.ExpiresAt.Time
		resp.ExpiresAt = &expires
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type claimsKey struct{}

// ClaimsFromContext returns the verified claims stored by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*jwttoken.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*jwttoken.Claims)
	return claims, ok
}

// RequireAuth verifies the bearer token on every request before the
// wrapped handler runs. Missing, malformed, expired, and revoked tokens
// all answer 401.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}

		claims, err := h.auth.VerifyToken(r.Context(), token)
		if err != nil {
			h.logger.WarnContext(r.Context(), "token rejected",
				"error", err,
				"request_id", middleware.GetRequestID(r.Context()),
			)
			httputil.WriteError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "missing authorization header")
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "authorization header must be a bearer token")
	}
	return strings.TrimSpace(token), nil
}
