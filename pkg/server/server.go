// Package server implements the linechat server: the TCP listener, one
// Session per connection, and the Registry that routes messages between
// logged-in users.
package server

import (
	"context"
	"net"
	"sync"

	"github.com/NicolasHaas/linechat/pkg/directory"
)

// Dependencies holds external dependencies for the server.
type Dependencies struct {
	Directory directory.Authenticator
}

// Server is the main linechat server.
type Server struct {
	cfg      Config
	dir      directory.Authenticator
	registry *Registry
	metrics  *Metrics

	mu       sync.Mutex
	listener net.Listener

	sessions sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a new Server instance. Non-positive queue and line limits
// fall back to DefaultConfig values.
func New(cfg Config, deps Dependencies) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:      cfg.withLimitDefaults(),
		dir:      deps.Directory,
		registry: NewRegistry(),
		metrics:  NewMetrics(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Registry returns the session registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Addr returns the bound listener address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Done is closed once Shutdown has been called.
func (s *Server) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Wait blocks until every session goroutine has exited.
func (s *Server) Wait() {
	s.sessions.Wait()
}
