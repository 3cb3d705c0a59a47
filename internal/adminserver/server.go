// Package adminserver serves the operational HTTP endpoints of labgate:
// health probes and Prometheus metrics.
package adminserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/labgate/internal/logger"
)

// Server is the admin HTTP listener.
type Server struct {
	server       *http.Server
	port         int
	shutdownOnce sync.Once
}

// New returns a stopped server for port. Call Start to serve.
func New(port int, health HealthChecker) *Server {
	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           NewRouter(health),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		port: port,
	}
}

// Start serves until ctx is cancelled or the listener fails. On
// cancellation it shuts down gracefully and returns nil.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("admin server listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("Admin server listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// The cancelled ctx would abort the shutdown immediately.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("admin server failed: %w", err)
	}
}

// Stop shuts the server down. It is safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("admin server shutdown: %w", err)
			logger.Error("Admin server shutdown error", logger.Err(err))
			return
		}
		logger.Info("Admin server stopped")
	})
	return shutdownErr
}

// Port returns the configured TCP port.
func (s *Server) Port() int {
	return s.port
}
