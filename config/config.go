/*
Package config builds the server configuration.

Configuration is an explicit value constructed once in main and passed to
whatever needs it. There is no global config instance.

SOURCES (highest priority first):
  1. Command-line flags
  2. Environment variables
  3. Defaults

  Flag             Env                       Default
  -port            NESTEGG_PORT              8080
  -db              NESTEGG_DB                nestegg.db   (":memory:" allowed)
  -log-level       NESTEGG_LOG_LEVEL         info
  -async-persist   NESTEGG_ASYNC_PERSIST     true
  -origins         NESTEGG_ALLOWED_ORIGINS   http://localhost:5173,http://localhost:8080
  -shutdown        NESTEGG_SHUTDOWN_TIMEOUT  30s
  -reevaluate      NESTEGG_REEVALUATE_EVERY  1h           (0 disables)
*/
package config

import (
	"flag"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds server settings.
type Config struct {
	Port            int           `validate:"min=1,max=65535"`
	DBPath          string        `validate:"required"`
	LogLevel        string        `validate:"oneof=debug info warn error"`
	AsyncPersist    bool
	AllowedOrigins  []string      `validate:"dive,required"`
	ShutdownTimeout time.Duration `validate:"min=1s"`
	ReevaluateEvery time.Duration `validate:"min=0"`
}

var validate = validator.New()

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:            8080,
		DBPath:          "nestegg.db",
		LogLevel:        "info",
		AsyncPersist:    true,
		AllowedOrigins:  []string{"http://localhost:5173", "http://localhost:8080"},
		ShutdownTimeout: 30 * time.Second,
		ReevaluateEvery: time.Hour,
	}
}

// Load parses args (without the program name) on top of the environment and
// validates the result. lookup is usually os.LookupEnv.
func Load(args []string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("nestegg", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path (\":memory:\" for in-memory)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.BoolVar(&cfg.AsyncPersist, "async-persist", cfg.AsyncPersist, "write unlocked achievements in the background")
	origins := fs.String("origins", strings.Join(cfg.AllowedOrigins, ","), "comma-separated CORS origins")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown", cfg.ShutdownTimeout, "graceful shutdown timeout")
	fs.DurationVar(&cfg.ReevaluateEvery, "reevaluate", cfg.ReevaluateEvery, "periodic achievement re-evaluation interval (0 disables)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.AllowedOrigins = splitList(*origins)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog.Level.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(name)
		if !ok || v == "" {
			return "", false
		}
		return v, true
	}

	if v, ok := get("NESTEGG_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NESTEGG_PORT: %w", err)
		}
		cfg.Port = port
	}
	if v, ok := get("NESTEGG_DB"); ok {
		cfg.DBPath = v
	}
	if v, ok := get("NESTEGG_LOG_LEVEL"); ok {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v, ok := get("NESTEGG_ASYNC_PERSIST"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("NESTEGG_ASYNC_PERSIST: %w", err)
		}
		cfg.AsyncPersist = b
	}
	if v, ok := get("NESTEGG_ALLOWED_ORIGINS"); ok {
		cfg.AllowedOrigins = splitList(v)
	}
	if v, ok := get("NESTEGG_SHUTDOWN_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("NESTEGG_SHUTDOWN_TIMEOUT: %w", err)
		}
		cfg.ShutdownTimeout = d
	}
	if v, ok := get("NESTEGG_REEVALUATE_EVERY"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("NESTEGG_REEVALUATE_EVERY: %w", err)
		}
		cfg.ReevaluateEvery = d
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
