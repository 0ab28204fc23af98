package server

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/NicolasHaas/linechat/pkg/directory"
	"github.com/NicolasHaas/linechat/pkg/logging"
	"github.com/NicolasHaas/linechat/pkg/protocol"
)

// Config holds server configuration. It can be loaded from a TOML file and
// overridden from the command line.
type Config struct {
	Server  ListenConfig  `toml:"server"`
	Limits  LimitsConfig  `toml:"limits"`
	Metrics MetricsConfig `toml:"metrics"`
	Logging LoggingConfig `toml:"logging"`
}

type ListenConfig struct {
	Addr      string `toml:"addr"`       // TCP bind address (e.g. ":8888")
	UsersFile string `toml:"users_file"` // YAML credentials file; empty = built-in demo users
}

type LimitsConfig struct {
	MaxLineLength int           `toml:"max_line_length"` // longest accepted inbound line, in bytes
	SendQueueSize int           `toml:"send_queue_size"` // outbound lines buffered per session
	WriteTimeout  time.Duration `toml:"write_timeout"`   // per-line write deadline; 0 = none
	IdleTimeout   time.Duration `toml:"idle_timeout"`    // read deadline between lines; 0 = none
}

type MetricsConfig struct {
	Addr        string        `toml:"addr"`         // HTTP bind address for /metrics (empty = disabled)
	LogInterval time.Duration `toml:"log_interval"` // periodic metrics log; 0 = disabled
}

type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Server: ListenConfig{
			Addr: ":8888",
		},
		Limits: LimitsConfig{
			MaxLineLength: protocol.DefaultMaxLineLength,
			SendQueueSize: 256,
			WriteTimeout:  10 * time.Second,
		},
		Metrics: MetricsConfig{
			LogInterval: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfigFile decodes a TOML file on top of cfg. Keys absent from the
// file keep their current values; unknown keys are an error.
func LoadConfigFile(path string, cfg *Config) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("server: load config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return fmt.Errorf("server: load config: unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if c.Limits.MaxLineLength < 64 {
		errs = append(errs, fmt.Errorf("limits.max_line_length must be at least 64, got %d", c.Limits.MaxLineLength))
	}
	if c.Limits.SendQueueSize < 1 {
		errs = append(errs, fmt.Errorf("limits.send_queue_size must be positive, got %d", c.Limits.SendQueueSize))
	}
	if c.Limits.WriteTimeout < 0 || c.Limits.IdleTimeout < 0 {
		errs = append(errs, errors.New("limits timeouts must not be negative"))
	}
	if c.Metrics.LogInterval < 0 {
		errs = append(errs, errors.New("metrics.log_interval must not be negative"))
	}
	if err := logging.Validate(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if err := logging.ValidateFormat(c.Logging.Format); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("server: invalid config: %w", err)
	}
	return nil
}

// withLimitDefaults replaces non-positive queue and line limits with the
// defaults.
func (c Config) withLimitDefaults() Config {
	def := DefaultConfig().Limits
	if c.Limits.SendQueueSize < 1 {
		c.Limits.SendQueueSize = def.SendQueueSize
	}
	if c.Limits.MaxLineLength < 1 {
		c.Limits.MaxLineLength = def.MaxLineLength
	}
	return c
}

// LoadDirectory builds the credential directory named by the config: the
// users file when set, the built-in demo users otherwise.
func (c Config) LoadDirectory(opts ...directory.Option) (*directory.Static, error) {
	if c.Server.UsersFile == "" {
		return directory.Default(opts...)
	}
	return directory.LoadYAML(c.Server.UsersFile, opts...)
}
