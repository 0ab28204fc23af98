package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/NicolasHaas/linechat/pkg/client"
	"github.com/NicolasHaas/linechat/pkg/logging"
)

func main() {
	addr := flag.String("addr", "localhost:8888", "server address")
	user := flag.String("user", "", "username")
	secret := flag.String("secret", "", "password")
	flag.Parse()

	// Default to "warn" so log lines do not interleave with chat; override
	// with LINECHAT_LOG_LEVEL (debug, info, warn, error).
	level := "warn"
	if v := os.Getenv("LINECHAT_LOG_LEVEL"); v != "" {
		level = v
	}
	_ = logging.Setup(logging.Options{Level: level, Output: os.Stderr})

	if *user == "" || *secret == "" {
		fmt.Fprintln(os.Stderr, "usage: client -user NAME -secret PASSWORD [-addr HOST:PORT]")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	c, err := client.Dial(ctx, *addr)
	cancel()
	if err != nil {
		slog.Error("connect", "addr", *addr, "err", err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	if err := c.Login(*user, *secret); err != nil {
		var loginErr *client.LoginError
		if errors.As(err, &loginErr) {
			fmt.Fprintf(os.Stderr, "login failed: %s\n", loginErr.Reason)
		} else {
			slog.Error("login", "err", err)
		}
		os.Exit(1)
	}
	fmt.Printf("logged in as %s. Type /w <user> <text> to whisper, /quit to leave.\n", *user)

	go printIncoming(c)

	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		line := in.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := dispatch(c, line); err != nil {
			if errors.Is(err, errQuit) {
				return
			}
			slog.Error("send", "err", err)
			return
		}
	}
}

var errQuit = errors.New("quit")

func dispatch(c *client.Client, line string) error {
	switch {
	case line == "/quit":
		return errQuit
	case strings.HasPrefix(line, "/w "):
		to, text, ok := strings.Cut(strings.TrimPrefix(line, "/w "), " ")
		if !ok || to == "" {
			fmt.Println("usage: /w <user> <text>")
			return nil
		}
		if err := c.Whisper(to, text); err != nil {
			return err
		}
		fmt.Printf("(Private to %s): %s\n", to, text)
		return nil
	default:
		return c.Say(line)
	}
}

func printIncoming(c *client.Client) {
	for {
		line, err := c.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("read", "err", err)
			}
			fmt.Println("disconnected from server")
			os.Exit(0)
		}
		if users, ok := client.ParseRoster(line); ok {
			fmt.Printf("* online: %s\n", strings.Join(users, ", "))
			continue
		}
		fmt.Println(line)
	}
}
