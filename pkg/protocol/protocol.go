// Package protocol implements the newline-delimited text protocol spoken
// between chat clients and the server.
//
// Client to server:
//
//	LOGIN:<username>:<secret>
//	PRIVATE:<recipient>:<message>
//	<anything else>                  broadcast chat line
//
// Server to client:
//
//	LOGIN_SUCCESS
//	LOGIN_FAILED:<reason>
//	ONLINE_USERS:<user>,<user>,...
//	<user>: <message>
//	(Private from <user>): <message>
//	<user> has joined the chat.
//	<user> has left the chat.
//	User '<user>' is not online.
package protocol

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const (
	// DefaultMaxLineLength bounds a single inbound line, terminator included.
	DefaultMaxLineLength = 4096

	PrefixLogin       = "LOGIN:"
	PrefixPrivate     = "PRIVATE:"
	PrefixLoginFailed = "LOGIN_FAILED:"
	PrefixOnlineUsers = "ONLINE_USERS:"

	MsgLoginSuccess = "LOGIN_SUCCESS"

	ReasonInvalidCredentials = "Invalid username or password"
	ReasonMalformedLogin     = "Malformed login command"
	ReasonAlreadyOnline      = "User already logged in"
)

// ErrLineTooLong is returned by a Scanner when a line exceeds its limit.
var ErrLineTooLong = bufio.ErrTooLong

// Kind classifies an inbound line.
type Kind int

const (
	KindEmpty Kind = iota
	KindChat
	KindLogin
	KindPrivate
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindChat:
		return "chat"
	case KindLogin:
		return "login"
	case KindPrivate:
		return "private"
	default:
		return "unknown"
	}
}

// Command is one parsed inbound line.
//
// For KindLogin, Target is the username and Body the secret. For KindPrivate,
// Target is the recipient and Body the message. For KindChat, Body is the
// whole line. Malformed is set on login and private lines that do not split
// into three colon-separated parts.
type Command struct {
	Kind      Kind
	Target    string
	Body      string
	Malformed bool
}

// Parse classifies line. It never fails; malformed commands are flagged.
func Parse(line string) Command {
	switch {
	case line == "":
		return Command{Kind: KindEmpty}
	case strings.HasPrefix(line, PrefixLogin):
		return splitCommand(KindLogin, line)
	case strings.HasPrefix(line, PrefixPrivate):
		return splitCommand(KindPrivate, line)
	default:
		return Command{Kind: KindChat, Body: line}
	}
}

func splitCommand(kind Kind, line string) Command {
	parts := strings.SplitN(line, ":", 3)
	if len(parts) != 3 {
		return Command{Kind: kind, Body: line, Malformed: true}
	}
	return Command{Kind: kind, Target: parts[1], Body: parts[2]}
}

// LoginSuccess acknowledges a successful login.
func LoginSuccess() string { return MsgLoginSuccess }

// LoginFailed rejects a login with a human-readable reason.
func LoginFailed(reason string) string { return PrefixLoginFailed + reason }

// OnlineUsers is a full roster snapshot.
func OnlineUsers(names []string) string {
	return PrefixOnlineUsers + strings.Join(names, ",")
}

// Chat tags a broadcast line with its sender.
func Chat(user, text string) string { return user + ": " + text }

// Private tags a private message with its sender.
func Private(from, text string) string {
	return "(Private from " + from + "): " + text
}

// Joined announces a login.
func Joined(user string) string { return user + " has joined the chat." }

// Left announces a disconnect.
func Left(user string) string { return user + " has left the chat." }

// NotOnline tells a sender that a private message went nowhere.
func NotOnline(user string) string { return fmt.Sprintf("User '%s' is not online.", user) }

// Login builds a client login line.
func Login(user, secret string) string { return PrefixLogin + user + ":" + secret }

// PrivateTo builds a client private-message line.
func PrivateTo(user, text string) string { return PrefixPrivate + user + ":" + text }

// NewScanner returns a line scanner over r that strips "\n" and "\r\n"
// terminators and fails with ErrLineTooLong once a line exceeds maxLen bytes.
// A non-positive maxLen selects DefaultMaxLineLength.
func NewScanner(r io.Reader, maxLen int) *bufio.Scanner {
	if maxLen <= 0 {
		maxLen = DefaultMaxLineLength
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, min(maxLen, 4096)), maxLen)
	return sc
}

// WriteLine writes line plus a newline in a single Write call.
func WriteLine(w io.Writer, line string) error {
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("protocol: write line: %w", err)
	}
	return nil
}
