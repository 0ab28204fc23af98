package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/NicolasHaas/linechat/pkg/logging"
	"github.com/NicolasHaas/linechat/pkg/server"
	"github.com/NicolasHaas/linechat/pkg/version"
)

func main() {
	defaults := server.DefaultConfig()

	configFile := flag.String("config", "", "TOML config file (flags given explicitly override it)")
	addr := flag.String("addr", defaults.Server.Addr, "TCP bind address for chat clients")
	usersFile := flag.String("users", "", "YAML users file (built-in demo users if empty)")
	metricsAddr := flag.String("metrics", "", "HTTP bind address for Prometheus /metrics (empty to disable)")
	logLevel := flag.String("log-level", defaults.Logging.Level, "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", defaults.Logging.Format, "Log format: text or json")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Full())
		return
	}

	cfg := defaults
	if *configFile != "" {
		if err := server.LoadConfigFile(*configFile, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Server.Addr = *addr
		case "users":
			cfg.Server.UsersFile = *usersFile
		case "metrics":
			cfg.Metrics.Addr = *metricsAddr
		case "log-level":
			cfg.Logging.Level = *logLevel
		case "log-format":
			cfg.Logging.Format = *logFormat
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if err := logging.Setup(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}
	slog.Info("linechat server starting", version.LogAttrs()...)

	dir, err := cfg.LoadDirectory()
	if err != nil {
		slog.Error("load users", "err", err)
		os.Exit(1)
	}
	slog.Info("credential directory loaded", "users", dir.Usernames())

	srv := server.New(cfg, server.Dependencies{Directory: dir})
	if err := srv.Run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
