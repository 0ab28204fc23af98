package server

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/NicolasHaas/linechat/pkg/protocol"
)

// Session is the server side of one client connection.
//
// A session starts unauthenticated, becomes authenticated at most once, and
// ends closed. One goroutine reads and dispatches lines (readLoop); a second
// drains the outbound queue to the socket (writeLoop), which keeps writes to
// one socket serialized and in order.
type Session struct {
	id     uuid.UUID
	srv    *Server
	conn   net.Conn
	remote string
	log    *slog.Logger

	out       chan string
	done      chan struct{}
	wdone     chan struct{} // closed when writeLoop returns
	closeOnce sync.Once

	// Guarded by Registry.mu. Only this session's read goroutine writes
	// them (through Registry.Login), so it may read them without the lock.
	username      string
	authenticated bool
}

func newSession(srv *Server, conn net.Conn) *Session {
	id := uuid.New()
	remote := conn.RemoteAddr().String()
	return &Session{
		id:     id,
		srv:    srv,
		conn:   conn,
		remote: remote,
		log:    slog.With("session", id.String(), "remote", remote),
		out:    make(chan string, srv.cfg.Limits.SendQueueSize),
		done:   make(chan struct{}),
		wdone:  make(chan struct{}),
	}
}

// ID returns the session's random identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Closed reports whether Close has run.
func (s *Session) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Send queues one line for the peer and reports whether it was accepted.
// It never blocks. A full queue means the peer is not keeping up; the
// connection is then dropped, which ends the read loop and runs the normal
// removal path. Once the writer has stopped nothing more is queued.
func (s *Session) Send(line string) bool {
	select {
	case <-s.done:
		return false
	case <-s.wdone:
		return false
	default:
	}
	select {
	case s.out <- line:
		return true
	default:
		select {
		case <-s.wdone:
			// The writer failed while the queue filled; not a slow peer.
			return false
		default:
		}
		s.srv.metrics.SlowConsumers.Add(1)
		s.log.Warn("send queue full, dropping connection", "user", s.username)
		_ = s.conn.Close()
		return false
	}
}

// Close tears the session down. Safe to call more than once; only the first
// call closes the socket and removes the session from the registry.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if err := s.conn.Close(); err != nil && !isClosedErr(err) {
			s.log.Debug("close connection", "err", err)
		}
		s.srv.registry.Remove(s)
		s.srv.metrics.ActiveConnections.Add(-1)
		s.srv.metrics.TotalDisconnects.Add(1)
		if s.authenticated {
			s.log.Info("user disconnected", "user", s.username)
		} else {
			s.log.Debug("connection closed")
		}
	})
}

// readLoop reads lines until the peer goes away or an I/O error occurs.
func (s *Session) readLoop() {
	defer s.Close()

	idle := s.srv.cfg.Limits.IdleTimeout
	sc := protocol.NewScanner(s.conn, s.srv.cfg.Limits.MaxLineLength)
	for {
		if idle > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(idle))
		}
		if !sc.Scan() {
			break
		}
		s.handleLine(sc.Text())
	}

	switch err := sc.Err(); {
	case err == nil, errors.Is(err, io.EOF), isClosedErr(err):
		s.log.Debug("peer disconnected")
	case errors.Is(err, protocol.ErrLineTooLong):
		s.log.Warn("line too long, dropping connection", "limit", s.srv.cfg.Limits.MaxLineLength)
	default:
		s.log.Warn("read error", "err", err)
	}
}

// writeLoop drains the outbound queue until the session closes or a write
// fails.
func (s *Session) writeLoop() {
	defer close(s.wdone)

	timeout := s.srv.cfg.Limits.WriteTimeout
	for {
		select {
		case <-s.done:
			return
		case line := <-s.out:
			if timeout > 0 {
				_ = s.conn.SetWriteDeadline(time.Now().Add(timeout))
			}
			if err := protocol.WriteLine(s.conn, line); err != nil {
				if !isClosedErr(err) {
					s.log.Warn("write error", "err", err)
				}
				_ = s.conn.Close()
				return
			}
		}
	}
}

// handleLine dispatches one inbound line.
func (s *Session) handleLine(line string) {
	cmd := protocol.Parse(line)
	if !s.authenticated {
		s.handleLogin(cmd)
		return
	}

	switch cmd.Kind {
	case protocol.KindEmpty:
		return
	case protocol.KindPrivate:
		if cmd.Malformed {
			s.log.Debug("dropping malformed private message", "user", s.username)
			return
		}
		text := sanitizeText(cmd.Body)
		if text == "" {
			return
		}
		if s.srv.registry.RoutePrivate(text, cmd.Target, s) {
			s.srv.metrics.PrivateMessages.Add(1)
		} else {
			s.srv.metrics.PrivateMisses.Add(1)
		}
	default:
		// Everything else is chat, a repeated LOGIN line included.
		text := sanitizeText(line)
		if text == "" {
			return
		}
		s.srv.registry.Broadcast(protocol.Chat(s.username, text), s)
		s.srv.metrics.ChatMessages.Add(1)
	}
}

// handleLogin processes a line received before authentication. Anything
// other than a LOGIN command is ignored.
func (s *Session) handleLogin(cmd protocol.Command) {
	if cmd.Kind != protocol.KindLogin {
		return
	}
	if cmd.Malformed {
		s.srv.metrics.FailedAuths.Add(1)
		s.Send(protocol.LoginFailed(protocol.ReasonMalformedLogin))
		return
	}

	username, secret := cmd.Target, cmd.Body
	if !s.srv.dir.Authenticate(username, secret) {
		s.srv.metrics.FailedAuths.Add(1)
		s.log.Info("login failed", "user", username)
		s.Send(protocol.LoginFailed(protocol.ReasonInvalidCredentials))
		return
	}

	switch err := s.srv.registry.Login(s, username); {
	case errors.Is(err, ErrAlreadyOnline):
		s.srv.metrics.DuplicateLogins.Add(1)
		s.log.Info("login rejected, user already online", "user", username)
		s.Send(protocol.LoginFailed(protocol.ReasonAlreadyOnline))
	case err != nil:
		s.log.Debug("login after removal", "user", username, "err", err)
	default:
		s.srv.metrics.SuccessfulAuths.Add(1)
		s.log.Info("user logged in", "user", username)
	}
}

// sanitizeText strips control characters other than tab from user-supplied
// text to prevent terminal escape injection on the receiving side.
func sanitizeText(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
