package client

import (
	"bufio"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// fakeServer answers each line read from the pipe with the scripted reply.
func fakeServer(t *testing.T, replies map[string]string) *Client {
	t.Helper()
	clientEnd, serverEnd := net.Pipe()
	t.Cleanup(func() {
		_ = clientEnd.Close()
		_ = serverEnd.Close()
	})

	go func() {
		sc := bufio.NewScanner(serverEnd)
		for sc.Scan() {
			reply, ok := replies[sc.Text()]
			if !ok {
				continue
			}
			if _, err := io.WriteString(serverEnd, reply+"\n"); err != nil {
				return
			}
		}
	}()

	c := New(clientEnd)
	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
	return c
}

func TestLogin(t *testing.T) {
	c := fakeServer(t, map[string]string{
		"LOGIN:anant:password123": "LOGIN_SUCCESS",
		"LOGIN:ghost:wrongpass":   "LOGIN_FAILED:Invalid username or password",
		"LOGIN:odd:reply":         "ONLINE_USERS:anant",
	})

	err := c.Login("ghost", "wrongpass")
	var loginErr *LoginError
	if !errors.As(err, &loginErr) {
		t.Fatalf("Login(ghost): got %v, want *LoginError", err)
	}
	if loginErr.Reason != "Invalid username or password" {
		t.Errorf("Reason = %q", loginErr.Reason)
	}

	if err := c.Login("odd", "reply"); err == nil || errors.As(err, &loginErr) {
		t.Errorf("Login(odd): got %v, want unexpected-response error", err)
	}

	if err := c.Login("anant", "password123"); err != nil {
		t.Fatalf("Login(anant): %v", err)
	}
}

func TestWhisperAndSay(t *testing.T) {
	clientEnd, serverEnd := net.Pipe()
	defer clientEnd.Close()
	defer serverEnd.Close()

	c := New(clientEnd)
	got := make(chan string, 2)
	go func() {
		sc := bufio.NewScanner(serverEnd)
		for sc.Scan() {
			got <- sc.Text()
		}
	}()

	if err := c.Whisper("aman", "meet at 10:30"); err != nil {
		t.Fatalf("Whisper: %v", err)
	}
	if err := c.Say("hello all"); err != nil {
		t.Fatalf("Say: %v", err)
	}
	for _, want := range []string{"PRIVATE:aman:meet at 10:30", "hello all"} {
		select {
		case line := <-got:
			if line != want {
				t.Errorf("server read %q, want %q", line, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestReadLineEOF(t *testing.T) {
	clientEnd, serverEnd := net.Pipe()
	c := New(clientEnd)
	go func() {
		_, _ = io.WriteString(serverEnd, "aman has left the chat.\n")
		_ = serverEnd.Close()
	}()

	line, err := c.ReadLine()
	if err != nil || line != "aman has left the chat." {
		t.Fatalf("ReadLine = %q, %v", line, err)
	}
	if _, err := c.ReadLine(); !errors.Is(err, io.EOF) {
		t.Fatalf("ReadLine after close: got %v, want io.EOF", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestParseRoster(t *testing.T) {
	tests := map[string]struct {
		line   string
		want   []string
		wantOK bool
	}{
		"three":  {"ONLINE_USERS:anant,rohan,aman", []string{"anant", "rohan", "aman"}, true},
		"one":    {"ONLINE_USERS:anant", []string{"anant"}, true},
		"empty":  {"ONLINE_USERS:", []string{}, true},
		"other":  {"anant: ONLINE_USERS:x", nil, false},
		"prefix": {"ONLINE_USERS", nil, false},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, ok := ParseRoster(tc.line)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ParseRoster mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
