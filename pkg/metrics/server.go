package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/filemill/filemill/internal/logger"
)

// Server is a standalone exposition listener for worker processes, which
// have no API server to mount /metrics on.
type Server struct {
	server       *http.Server
	listen       string
	shutdownOnce sync.Once
}

// NewServer creates the listener in a stopped state. Call Start to serve.
func NewServer(listen string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return &Server{
		server: &http.Server{
			Addr:              listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		listen: listen,
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("Metrics listener started", "listen", s.listen)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("metrics listener failed: %w", err)
	}
}

// Stop shuts the listener down. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("metrics listener shutdown: %w", err)
		} else {
			logger.Info("Metrics listener stopped")
		}
	})
	return shutdownErr
}
