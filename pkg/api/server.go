package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/filemill/filemill/internal/logger"
	"github.com/filemill/filemill/pkg/api/auth"
	"github.com/filemill/filemill/pkg/config"
)

// Server carries the FileMill REST API over HTTP: registration and login,
// uploads, file and job queries, downloads and the health probes, with the
// routing assembled by NewRouter.
type Server struct {
	server       *http.Server
	config       config.ServerConfig
	tokens       *auth.Service
	shutdownOnce sync.Once
}

// NewServer builds the server in a stopped state; Start serves. The token
// service is created here, so authCfg.SecretKey must be at least 32
// characters.
func NewServer(cfg config.ServerConfig, authCfg config.AuthConfig, deps Deps) (*Server, error) {
	tokens, err := auth.NewService(auth.Config{
		Secret:          authCfg.SecretKey,
		AccessTokenTTL:  authCfg.AccessTokenTTL(),
		RefreshTokenTTL: authCfg.RefreshTokenTTL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}

	router := NewRouter(deps, tokens)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: router,
		// WriteTimeout stays unset: downloads stream bodies of arbitrary
		// size. ReadTimeout still bounds slow uploads.
		ReadTimeout: cfg.ReadTimeout,
	}

	return &Server{
		server: server,
		config: cfg,
		tokens: tokens,
	}, nil
}

// Start serves until ctx is cancelled, then drains in-flight requests
// within the configured shutdown timeout. A listener failure surfaces
// immediately.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		// Fresh context for the drain: the triggering one is already
		// cancelled and would abort the shutdown immediately.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop shuts the server down. Safe to call more than once, also
// concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown: %w", err)
		} else {
			logger.Info("API server stopped")
		}
	})
	return shutdownErr
}
