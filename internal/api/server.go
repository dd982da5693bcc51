// Package api provides the JSON HTTP surface for the reasoning engine.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pensiv/pensiv/internal/reasoning"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger     *slog.Logger
	Engine     *reasoning.Engine // Required
	Pool       *pgxpool.Pool     // Optional: nil reports primary as disabled in /ready
	TrustProxy bool              // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst  int               // Rate limiter burst size per IP (0 = default 60)
	RateRefill float64           // Rate limiter tokens per second per IP (0 = default 1)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates an API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rh := &reasoningHandler{engine: cfg.Engine, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/reasoning", rh.listSessions)
	mux.HandleFunc("GET /api/v1/reasoning/{session}", rh.getChain)
	mux.HandleFunc("DELETE /api/v1/reasoning/{session}", rh.deleteChain)
	mux.HandleFunc("POST /api/v1/reasoning/{session}/thoughts", rh.postThought)

	limiters := newIPLimiters(cfg.RateRefill, cfg.RateBurst)

	// Middleware stack (outermost first):
	//   Recovery → RequestID → Logging → RateLimit → Routes
	// RequestID must precede Logging so request_id is available in log
	// attributes.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(limiters, cfg.TrustProxy, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
