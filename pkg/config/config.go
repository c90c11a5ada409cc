// Package config loads the relay configuration from defaults, an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultSessionID is the single shared board.
const DefaultSessionID = "00000000-0000-0000-0000-000000000001"

type Config struct {
	Addr      string  `yaml:"addr" validate:"required"`
	SessionID string  `yaml:"session_id" validate:"required"`
	LogLevel  string  `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string  `yaml:"log_format" validate:"oneof=text json"`
	Store     Store   `yaml:"store"`
	Bus       Bus     `yaml:"bus"`
	Socket    Socket  `yaml:"socket"`
	Metrics   Metrics `yaml:"metrics"`
	Render    Render  `yaml:"render"`
}

type Store struct {
	Driver  string        `yaml:"driver" validate:"oneof=sqlite memory"`
	Path    string        `yaml:"path" validate:"required_if=Driver sqlite"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
	Breaker Breaker       `yaml:"breaker"`
}

type Breaker struct {
	MaxRequests  uint32        `yaml:"max_requests"`
	Interval     time.Duration `yaml:"interval"`
	Timeout      time.Duration `yaml:"timeout"`
	FailureRatio float64       `yaml:"failure_ratio" validate:"gt=0,lte=1"`
	MinRequests  uint32        `yaml:"min_requests"`
}

type Bus struct {
	Driver   string `yaml:"driver" validate:"oneof=local redis"`
	RedisURL string `yaml:"redis_url" validate:"required_if=Driver redis"`
	Channel  string `yaml:"channel" validate:"required"`
	Buffer   int    `yaml:"buffer" validate:"gte=1"`
}

type Socket struct {
	WriteWait       time.Duration `yaml:"write_wait" validate:"gt=0"`
	PongWait        time.Duration `yaml:"pong_wait" validate:"gt=0"`
	PingPeriod      time.Duration `yaml:"ping_period" validate:"gt=0,ltfield=PongWait"`
	MaxMessageBytes int64         `yaml:"max_message_bytes" validate:"gte=1024"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type Metrics struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace" validate:"required"`
}

type Render struct {
	OnShutdown bool `yaml:"on_shutdown"`
	Width      int  `yaml:"width" validate:"gte=1"`
	Height     int  `yaml:"height" validate:"gte=1"`
}

func Default() *Config {
	return &Config{
		Addr:      "localhost:8080",
		SessionID: DefaultSessionID,
		LogLevel:  "info",
		LogFormat: "text",
		Store: Store{
			Driver:  "sqlite",
			Path:    "ink.sqlite3",
			Timeout: 5 * time.Second,
			Breaker: Breaker{
				MaxRequests:  5,
				Interval:     30 * time.Second,
				Timeout:      30 * time.Second,
				FailureRatio: 0.8,
				MinRequests:  5,
			},
		},
		Bus: Bus{
			Driver:  "local",
			Channel: "ink-events",
			Buffer:  256,
		},
		Socket: Socket{
			WriteWait:       10 * time.Second,
			PongWait:        60 * time.Second,
			PingPeriod:      54 * time.Second,
			MaxMessageBytes: 512 * 1024,
		},
		Metrics: Metrics{
			Enabled:   true,
			Namespace: "ink",
		},
		Render: Render{
			OnShutdown: true,
			Width:      1920,
			Height:     1080,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if path is not empty), then
// environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"INK_ADDR":       &c.Addr,
		"INK_SESSION_ID": &c.SessionID,
		"INK_LOG_LEVEL":  &c.LogLevel,
		"INK_LOG_FORMAT": &c.LogFormat,
		"INK_DB_DRIVER":  &c.Store.Driver,
		"INK_DB_PATH":    &c.Store.Path,
		"INK_BUS_DRIVER": &c.Bus.Driver,
		"INK_CHANNEL":    &c.Bus.Channel,
		"REDIS_URL":      &c.Bus.RedisURL,
	}
	for key, target := range str {
		if v, ok := lookup(key); ok {
			*target = v
		}
	}
	if v, ok := lookup("INK_METRICS_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid INK_METRICS_ENABLED %q: %w", v, err)
		}
		c.Metrics.Enabled = b
	}
	if v, ok := lookup("INK_ALLOWED_ORIGINS"); ok {
		c.Socket.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Socket.AllowedOrigins = append(c.Socket.AllowedOrigins, o)
			}
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// NewLogger builds the process logger described by the configuration.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
