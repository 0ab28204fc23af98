// Package client is a minimal linechat client: it dials the server, logs in,
// and exchanges protocol lines.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/NicolasHaas/linechat/pkg/protocol"
)

// LoginError is returned by Login when the server rejects the credentials.
type LoginError struct {
	Reason string
}

func (e *LoginError) Error() string {
	return "client: login failed: " + e.Reason
}

// Client is one connection to a linechat server. ReadLine must be called
// from a single goroutine; the send methods are safe for concurrent use.
type Client struct {
	conn net.Conn
	sc   *bufio.Scanner

	mu sync.Mutex // serializes writes
}

// Dial connects to addr over TCP.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: connect: %w", err)
	}
	return New(conn), nil
}

// New wraps an established connection.
func New(conn net.Conn) *Client {
	return &Client{
		conn: conn,
		sc:   protocol.NewScanner(conn, 0),
	}
}

// Login sends a LOGIN command and waits for the verdict. A rejection is
// reported as *LoginError; the connection stays usable for another attempt.
func (c *Client) Login(username, secret string) error {
	if err := c.Send(protocol.Login(username, secret)); err != nil {
		return err
	}
	line, err := c.ReadLine()
	if err != nil {
		return fmt.Errorf("client: read login response: %w", err)
	}
	switch {
	case line == protocol.MsgLoginSuccess:
		return nil
	case strings.HasPrefix(line, protocol.PrefixLoginFailed):
		return &LoginError{Reason: strings.TrimPrefix(line, protocol.PrefixLoginFailed)}
	default:
		return fmt.Errorf("client: unexpected login response %q", line)
	}
}

// Say broadcasts text to every other logged-in user.
func (c *Client) Say(text string) error {
	return c.Send(text)
}

// Whisper sends text privately to one user.
func (c *Client) Whisper(to, text string) error {
	return c.Send(protocol.PrivateTo(to, text))
}

// Send writes one raw protocol line.
func (c *Client) Send(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := protocol.WriteLine(c.conn, line); err != nil {
		return fmt.Errorf("client: send: %w", err)
	}
	return nil
}

// ReadLine returns the next line from the server, or io.EOF once the server
// has closed the connection.
func (c *Client) ReadLine() (string, error) {
	if c.sc.Scan() {
		return c.sc.Text(), nil
	}
	if err := c.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// SetReadDeadline bounds the next ReadLine calls.
func (c *Client) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Close closes the connection.
func (c *Client) Close() error {
	if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// ParseRoster decodes an ONLINE_USERS line. ok is false for any other line.
func ParseRoster(line string) (users []string, ok bool) {
	rest, ok := strings.CutPrefix(line, protocol.PrefixOnlineUsers)
	if !ok {
		return nil, false
	}
	if rest == "" {
		return []string{}, true
	}
	return strings.Split(rest, ","), true
}
