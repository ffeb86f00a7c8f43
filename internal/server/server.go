package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"deskhub/internal/auth"
	"deskhub/internal/config"
	"deskhub/internal/engine"
	"deskhub/internal/keyset"
	"deskhub/internal/session"
	"deskhub/pkg/logging"
)

// Server owns the HTTP surface: the tool endpoint behind the auth gate and
// middleware chain, plus the unauthenticated health endpoint.
type Server struct {
	cfg        config.Config
	handler    *mcpHandler
	httpServer *http.Server
}

// New wires the full request path from configuration: key resolver, token
// verifier, policy gate, mode-specific dispatch, and the middleware stack.
func New(cfg config.Config) (*Server, error) {
	resolver := keyset.NewResolver(cfg.Auth.DerivedKeySetURLs(), nil)

	audiences := []string{cfg.Auth.Audience}
	if cfg.Auth.SecondaryAudience != "" {
		audiences = append(audiences, cfg.Auth.SecondaryAudience)
	}
	verifier := auth.NewVerifier(auth.VerifierConfig{
		Issuers:   cfg.Auth.DerivedIssuers(),
		Audiences: audiences,
	}, resolver)
	policy := auth.NewPolicy(cfg.Policy.AllowedRoles, cfg.Policy.AllowedScopes)
	gate := auth.NewGate(verifier, policy)

	handler := newMCPHandler(cfg.Server.Mode, func() session.Engine { return engine.New() })

	s := &Server{
		cfg:     cfg,
		handler: handler,
	}
	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, fmt.Sprintf("%d", cfg.Server.Port)),
		Handler:           s.buildMux(gate),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// buildMux assembles the route table. Order on /mcp matters: panics are
// caught outermost, preflight and throttling resolve before any token work,
// and the gate is the last thing before dispatch.
func (s *Server) buildMux(gate *auth.Gate) http.Handler {
	limiter := newRateLimiter(s.cfg.Server.RateLimit)

	mcp := http.Handler(s.handler)
	mcp = gate.Middleware(mcp)
	mcp = limiter.middleware(mcp)
	mcp = corsMiddleware(s.cfg.Server.CORSOrigins, mcp)

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp)
	mux.HandleFunc("/health", healthHandler)

	return recoverMiddleware(securityHeaders(mux))
}

// Handler returns the fully assembled root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully: in-flight
// requests get shutdownGrace to finish and registered sessions are drained.
func (s *Server) Start(ctx context.Context) error {
	const shutdownGrace = 10 * time.Second

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Server", "Listening on %s (mode %s)", s.httpServer.Addr, s.cfg.Server.Mode)
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info("Server", "Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	var errs []error
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if registry := s.handler.Registry(); registry != nil {
		if err := registry.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("session drain: %w", err))
		}
	}
	if err := <-errCh; err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
