package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

type Config struct {
	Port            int
	LogLevel        string
	LogFormat       string
	AllowedOrigins  []string
	StaticDir       string
	DatabaseURL     string
	WSReadTimeout   time.Duration
	WSWriteTimeout  time.Duration
	WSReadLimit     int64
	OutboxSize      int
	ShutdownTimeout time.Duration
}

func Default() Config {
	return Config{
		Port:            3001,
		LogLevel:        "info",
		LogFormat:       "json",
		WSReadTimeout:   60 * time.Second,
		WSWriteTimeout:  3 * time.Second,
		WSReadLimit:     64 << 10,
		OutboxSize:      32,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load reads .env (if present) and then the process environment on top of
// the defaults. Every malformed value is reported, not just the first.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	p := parser{lookup: lookup}

	p.int("PORT", &cfg.Port)
	p.string("LOG_LEVEL", &cfg.LogLevel)
	p.string("LOG_FORMAT", &cfg.LogFormat)
	p.list("ALLOWED_ORIGINS", &cfg.AllowedOrigins)
	p.string("STATIC_DIR", &cfg.StaticDir)
	p.string("DATABASE_URL", &cfg.DatabaseURL)
	p.duration("WS_READ_TIMEOUT", &cfg.WSReadTimeout)
	p.duration("WS_WRITE_TIMEOUT", &cfg.WSWriteTimeout)
	p.int64("WS_READ_LIMIT", &cfg.WSReadLimit)
	p.int("OUTBOX_SIZE", &cfg.OutboxSize)
	p.duration("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)

	if p.err != nil {
		return Config{}, p.err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var err error
	if c.Port <= 0 || c.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("PORT %d out of range", c.Port))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		err = multierr.Append(err, fmt.Errorf("LOG_LEVEL %q: want debug, info, warn or error", c.LogLevel))
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		err = multierr.Append(err, fmt.Errorf("LOG_FORMAT %q: want json or console", c.LogFormat))
	}
	if c.WSReadTimeout < time.Second {
		err = multierr.Append(err, errors.New("WS_READ_TIMEOUT must be at least 1s"))
	}
	if c.WSWriteTimeout <= 0 {
		err = multierr.Append(err, errors.New("WS_WRITE_TIMEOUT must be positive"))
	}
	if c.WSReadLimit < 1024 {
		err = multierr.Append(err, errors.New("WS_READ_LIMIT must be at least 1024 bytes"))
	}
	if c.OutboxSize <= 0 {
		err = multierr.Append(err, errors.New("OUTBOX_SIZE must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		err = multierr.Append(err, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	return err
}

func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

type parser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *parser) raw(key string) (string, bool) {
	v, ok := p.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (p *parser) string(key string, dst *string) {
	if v, ok := p.raw(key); ok {
		*dst = v
	}
}

func (p *parser) list(key string, dst *[]string) {
	v, ok := p.raw(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func (p *parser) int(key string, dst *int) {
	v, ok := p.raw(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.err = multierr.Append(p.err, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

func (p *parser) int64(key string, dst *int64) {
	v, ok := p.raw(key)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.err = multierr.Append(p.err, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

func (p *parser) duration(key string, dst *time.Duration) {
	v, ok := p.raw(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.err = multierr.Append(p.err, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = d
}
