// Package config resolves server settings from defaults, an optional YAML
// file, LINECHAT_* environment variables and command-line flags, in that
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	BackendFile = "file"
	BackendDB   = "db"
)

// RateLimitConfig bounds how many lines one connection may send.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Credentials is "file" (UsersFile) or "db" (users table in Database).
	Credentials string `yaml:"credentials"`
	UsersFile   string `yaml:"users_file"`
	Database    string `yaml:"database"`

	// AdminAddr enables the HTTP admin API when non-empty.
	AdminAddr   string   `yaml:"admin_addr"`
	AdminSecret string   `yaml:"-"`
	AdminUsers  []string `yaml:"admin_users"`

	MaxLineLength int             `yaml:"max_line_length"`
	WriteTimeout  time.Duration   `yaml:"write_timeout"`
	IdleTimeout   time.Duration   `yaml:"idle_timeout"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func Default() Config {
	return Config{
		Host:          "0.0.0.0",
		Port:          9000,
		Credentials:   BackendFile,
		UsersFile:     "users.json",
		Database:      "linechat.db",
		MaxLineLength: 1024,
		WriteTimeout:  10 * time.Second,
		RateLimit: RateLimitConfig{
			PerSecond: 10,
			Burst:     20,
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Addr is the chat listener address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// IsAdmin reports whether username may use the admin API. An empty list
// admits nobody.
func (c Config) IsAdmin(username string) bool {
	for _, admin := range c.AdminUsers {
		if admin == username {
			return true
		}
	}
	return false
}

func (c Config) Validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("host must not be empty"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch c.Credentials {
	case BackendFile:
		if c.UsersFile == "" {
			errs = append(errs, errors.New("users_file is required for the file backend"))
		}
	case BackendDB:
		if c.Database == "" {
			errs = append(errs, errors.New("database is required for the db backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown credentials backend %q", c.Credentials))
	}
	if c.AdminAddr != "" {
		if c.AdminSecret == "" {
			errs = append(errs, errors.New("APP_SECRET must be set when the admin API is enabled"))
		}
		if c.Database == "" {
			errs = append(errs, errors.New("database is required when the admin API is enabled"))
		}
		if len(c.AdminUsers) == 0 {
			errs = append(errs, errors.New("admin_users is required when the admin API is enabled"))
		}
	}
	if c.MaxLineLength <= 0 {
		errs = append(errs, errors.New("max_line_length must be positive"))
	}
	if c.WriteTimeout <= 0 {
		errs = append(errs, errors.New("write_timeout must be positive"))
	}
	if c.IdleTimeout < 0 {
		errs = append(errs, errors.New("idle_timeout must not be negative"))
	}
	if c.RateLimit.PerSecond <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("rate_limit per_second and burst must be positive"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown log_format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// LoadFile overlays the YAML file at path onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays LINECHAT_* variables and APP_SECRET onto c. Unparseable
// values are reported rather than ignored.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("LINECHAT_HOST", &c.Host)
	integer("LINECHAT_PORT", &c.Port)
	str("LINECHAT_CREDENTIALS", &c.Credentials)
	str("LINECHAT_USERS_FILE", &c.UsersFile)
	str("LINECHAT_DATABASE", &c.Database)
	str("LINECHAT_ADMIN_ADDR", &c.AdminAddr)
	str("APP_SECRET", &c.AdminSecret)
	if v := getenv("LINECHAT_ADMIN_USERS"); v != "" {
		c.AdminUsers = splitList(v)
	}
	integer("LINECHAT_MAX_LINE_LENGTH", &c.MaxLineLength)
	duration("LINECHAT_WRITE_TIMEOUT", &c.WriteTimeout)
	duration("LINECHAT_IDLE_TIMEOUT", &c.IdleTimeout)
	if v := getenv("LINECHAT_RATE_LIMIT"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("LINECHAT_RATE_LIMIT: %w", err))
		} else {
			c.RateLimit.PerSecond = n
		}
	}
	integer("LINECHAT_RATE_BURST", &c.RateLimit.Burst)
	str("LINECHAT_LOG_LEVEL", &c.LogLevel)
	str("LINECHAT_LOG_FORMAT", &c.LogFormat)
	return errors.Join(errs...)
}

// BindFlags registers one flag per setting, defaulting to the current
// values of c, so parsing fs after LoadFile and ApplyEnv gives flags the
// last word.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Host, "host", c.Host, "chat listener host")
	fs.IntVarP(&c.Port, "port", "p", c.Port, "chat listener port")
	fs.StringVar(&c.Credentials, "credentials", c.Credentials, "credential backend: file or db")
	fs.StringVar(&c.UsersFile, "users", c.UsersFile, "users file (JSON, JSONC or YAML) for the file backend")
	fs.StringVar(&c.Database, "db", c.Database, "sqlite database for the db backend and the audit trail")
	fs.StringVar(&c.AdminAddr, "admin-addr", c.AdminAddr, "admin HTTP API address, empty to disable")
	fs.StringSliceVar(&c.AdminUsers, "admin-users", c.AdminUsers, "users allowed on the admin API, required with --admin-addr")
	fs.IntVar(&c.MaxLineLength, "max-line", c.MaxLineLength, "maximum accepted line length in bytes")
	fs.DurationVar(&c.WriteTimeout, "write-timeout", c.WriteTimeout, "per-line write deadline")
	fs.DurationVar(&c.IdleTimeout, "idle-timeout", c.IdleTimeout, "disconnect silent clients after this long, 0 to disable")
	fs.Float64Var(&c.RateLimit.PerSecond, "rate", c.RateLimit.PerSecond, "lines per second allowed per connection")
	fs.IntVar(&c.RateLimit.Burst, "burst", c.RateLimit.Burst, "line burst allowed per connection")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "text or json")
}

// Load resolves the full precedence chain for args. A --config flag, or
// LINECHAT_CONFIG, names the YAML file.
func Load(args []string, getenv func(string) string) (Config, error) {
	cfg := Default()

	configPath := getenv("LINECHAT_CONFIG")
	if path, ok := configFlag(args); ok {
		configPath = path
	}
	if configPath != "" {
		if err := cfg.LoadFile(configPath); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return cfg, err
	}

	fs := pflag.NewFlagSet("linechat", pflag.ContinueOnError)
	fs.StringP("config", "c", configPath, "YAML config file")
	cfg.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// configFlag finds --config/-c ahead of full flag parsing, since the file
// it names supplies the defaults the other flags are registered with.
func configFlag(args []string) (string, bool) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		for _, name := range []string{"--config", "-c"} {
			if arg == name && i+1 < len(args) {
				return args[i+1], true
			}
			if v, ok := strings.CutPrefix(arg, name+"="); ok {
				return v, true
			}
		}
	}
	return "", false
}

func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("unknown log_level %q", s)
	}
	return level, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
