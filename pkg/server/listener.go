package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"
)

const maxAcceptBackoff = time.Second

// Listen binds the configured TCP address. A bind failure is fatal to
// startup and is returned to the caller.
func (s *Server) Listen() (net.Listener, error) {
	if s.dir == nil {
		return nil, errors.New("server: missing directory dependency")
	}
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return nil, fmt.Errorf("server: listen: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	slog.Info("chat listener bound", "addr", ln.Addr().String())
	return ln, nil
}

// Serve accepts connections on ln until ln is closed, starting one session
// per connection. Other accept errors are logged and accepting continues.
// It returns nil once the listener is closed.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			backoff = nextBackoff(backoff)
			slog.Error("accept error", "err", err, "retry_in", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0
		s.startSession(conn)
	}
}

// Shutdown stops accepting connections. Sessions already running are left
// to end on their own.
func (s *Server) Shutdown() {
	s.cancel()
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		if err := ln.Close(); err != nil && !isClosedErr(err) {
			slog.Warn("close listener", "err", err)
		}
	}
}

func (s *Server) startSession(conn net.Conn) *Session {
	sess := newSession(s, conn)
	s.registry.Add(sess)
	s.metrics.TotalConnections.Add(1)
	s.metrics.ActiveConnections.Add(1)
	sess.log.Debug("new connection")

	s.sessions.Add(2)
	go func() {
		defer s.sessions.Done()
		sess.writeLoop()
	}()
	go func() {
		defer s.sessions.Done()
		sess.readLoop()
	}()
	return sess
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > maxAcceptBackoff {
		d = maxAcceptBackoff
	}
	return d
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
