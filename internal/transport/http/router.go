// Package httptransport wires the HTTP surface: middleware stack,
// domain handlers, health probes, and the metrics endpoint.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authhandler "bureau/internal/auth/handler"
	"bureau/internal/platform/health"
	"bureau/internal/platform/middleware"
	"bureau/pkg/platform/middleware/requesttime"
)

// Options bundles the dependencies the router mounts.
type Options struct {
	Auth           *authhandler.Handler
	Health         *health.Handler
	Logger         *slog.Logger
	RequestTimeout time.Duration
}

// NewRouter builds the chi router. Every request flows through the
// same middleware stack; one request-scoped timestamp feeds all
// time-sensitive checks so a login is judged against a single instant.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.BodyLimit(64 << 10)) // login payloads are tiny
	r.Use(middleware.ContentTypeJSON)
	r.Use(requesttime.Middleware)

	if opts.Auth != nil {
		opts.Auth.Register(r)
	}
	if opts.Health != nil {
		opts.Health.Register(r)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
