package server

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/NicolasHaas/linechat/pkg/client"
	"github.com/NicolasHaas/linechat/pkg/crypto"
	"github.com/NicolasHaas/linechat/pkg/directory"
	"github.com/NicolasHaas/linechat/pkg/protocol"
)

const (
	testSecret  = "password123"
	testTimeout = 5 * time.Second
	sentinel    = "-- sentinel --"
)

func newTestServer(t *testing.T, mutate ...func(*Config)) *Server {
	t.Helper()
	dir, err := directory.Default(directory.WithParams(crypto.Params{Time: 1, Memory: 1024, Threads: 1}))
	if err != nil {
		t.Fatalf("directory.Default: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Metrics.LogInterval = 0
	for _, m := range mutate {
		m(&cfg)
	}
	return New(cfg, Dependencies{Directory: dir})
}

// peer is the far end of a piped session.
type peer struct {
	t    *testing.T
	name string
	conn net.Conn
	sc   *bufio.Scanner
}

func (p *peer) next() string {
	p.t.Helper()
	_ = p.conn.SetReadDeadline(time.Now().Add(testTimeout))
	if !p.sc.Scan() {
		p.t.Fatalf("%s: read failed: %v", p.name, p.sc.Err())
	}
	return p.sc.Text()
}

func (p *peer) expect(want ...string) {
	p.t.Helper()
	for _, w := range want {
		if got := p.next(); got != w {
			p.t.Fatalf("%s: got %q, want %q", p.name, got, w)
		}
	}
}

// pipeSession registers a session backed by net.Pipe with its writer
// running. The test goroutine plays the session's read loop by calling
// handleLine directly.
func pipeSession(t *testing.T, srv *Server, name string) (*Session, *peer) {
	t.Helper()
	serverEnd, clientEnd := net.Pipe()
	sess := newSession(srv, serverEnd)
	srv.registry.Add(sess)
	srv.metrics.ActiveConnections.Add(1)
	go sess.writeLoop()
	t.Cleanup(func() {
		sess.Close()
		_ = clientEnd.Close()
	})
	return sess, &peer{t: t, name: name, conn: clientEnd, sc: protocol.NewScanner(clientEnd, 0)}
}

// quiet asserts a peer has nothing queued ahead of a sentinel line.
func quiet(t *testing.T, sess *Session, p *peer) {
	t.Helper()
	if !sess.Send(sentinel) {
		t.Fatalf("%s: sentinel not accepted", p.name)
	}
	p.expect(sentinel)
}

type piped struct {
	sess *Session
	peer *peer
}

// loginPiped logs the users in one after another and consumes every
// announcement and roster line that produces, checking each.
func loginPiped(t *testing.T, srv *Server, names ...string) []piped {
	t.Helper()
	var out []piped
	for i, name := range names {
		sess, p := pipeSession(t, srv, name)
		sess.handleLine(protocol.Login(name, testSecret))
		roster := protocol.OnlineUsers(names[:i+1])
		p.expect(protocol.LoginSuccess(), roster)
		for _, prev := range out {
			prev.peer.expect(protocol.Joined(name), roster)
		}
		out = append(out, piped{sess: sess, peer: p})
	}
	return out
}

// startServer serves on a loopback port until the test ends.
func startServer(t *testing.T, mutate ...func(*Config)) *Server {
	t.Helper()
	srv := newTestServer(t, mutate...)
	ln, err := srv.Listen()
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()
	t.Cleanup(func() {
		srv.Shutdown()
		if err := <-done; err != nil {
			t.Errorf("Serve: %v", err)
		}
	})
	return srv
}

// tcpPeer is a real client connection used by end-to-end tests.
type tcpPeer struct {
	t    *testing.T
	name string
	*client.Client
}

func dial(t *testing.T, srv *Server, name string) *tcpPeer {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	c, err := client.Dial(ctx, srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	_ = c.SetReadDeadline(time.Now().Add(testTimeout))
	t.Cleanup(func() { _ = c.Close() })
	return &tcpPeer{t: t, name: name, Client: c}
}

func (p *tcpPeer) expect(want ...string) {
	p.t.Helper()
	for _, w := range want {
		got, err := p.ReadLine()
		if err != nil {
			p.t.Fatalf("%s: read: %v (want %q)", p.name, err, w)
		}
		if got != w {
			p.t.Fatalf("%s: got %q, want %q", p.name, got, w)
		}
	}
}

// loginTCP dials and logs in each user in turn, consuming the join and
// roster lines every earlier user receives.
func loginTCP(t *testing.T, srv *Server, names ...string) []*tcpPeer {
	t.Helper()
	var out []*tcpPeer
	for i, name := range names {
		p := dial(t, srv, name)
		if err := p.Login(name, testSecret); err != nil {
			t.Fatalf("Login(%s): %v", name, err)
		}
		roster := protocol.OnlineUsers(names[:i+1])
		p.expect(roster)
		for _, prev := range out {
			prev.expect(protocol.Joined(name), roster)
		}
		out = append(out, p)
	}
	return out
}

// eventually polls cond until it holds or the test timeout passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
