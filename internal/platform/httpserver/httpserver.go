// Package httpserver wraps http.Server with the timeouts and shutdown
// behavior shared by every binary in this repo.
package httpserver

import (
	"context"
	"net/http"
	"time"
)

// New builds an http.Server with hardened timeouts.
func New(addr string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Server is a thin lifecycle wrapper around http.Server.
type Server struct {
	srv *http.Server
}

// ListenAndServe blocks serving requests until Shutdown or failure.
func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests until the context expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
