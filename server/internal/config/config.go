package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. AICEBREAKER_HTTP_PORT.
const EnvPrefix = "AICEBREAKER_"

// Default values for the server configuration.
const (
	DefaultHTTPPort        = 8000
	DefaultGRPCPort        = 50051
	DefaultLogLevel        = "info"
	DefaultSendBuffer      = 64
	DefaultWriteTimeout    = 10 * time.Second
	DefaultPongWait        = 60 * time.Second
	DefaultReadLimit       = 8 << 20
	DefaultInboundRate     = 20.0
	DefaultInboundBurst    = 40
	DefaultCountdownTick   = time.Second
	DefaultCountdownMax    = 300
	DefaultStartingBalance = 100.0
)

// Config holds the configuration parsed from the `server:` section of config.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API, metrics and WebSocket endpoints listen on.
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`

	// GRPCPort is the port of the gRPC health probe. Zero disables the probe.
	GRPCPort int `yaml:"grpc_port" env:"GRPC_PORT"`

	// FrontendAddr is the origin allowed by the API's CORS headers.
	// Empty disables CORS headers.
	FrontendAddr string `yaml:"frontend_addr" env:"FRONTEND_ADDR"`

	// LogLevel is one of: debug | info | warn | error. Reloaded without restart.
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	WS        WSConfig        `yaml:"ws" envPrefix:"WS_"`
	Countdown CountdownConfig `yaml:"countdown" envPrefix:"COUNTDOWN_"`
	Ledger    LedgerConfig    `yaml:"ledger" envPrefix:"LEDGER_"`
}

// WSConfig tunes the participant and observer sockets.
type WSConfig struct {
	SendBuffer   int           `yaml:"send_buffer" env:"SEND_BUFFER"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	PongWait     time.Duration `yaml:"pong_wait" env:"PONG_WAIT"`
	ReadLimit    int64         `yaml:"read_limit" env:"READ_LIMIT"`

	// InboundRate is messages per second per participant; 0 disables limiting.
	InboundRate  float64 `yaml:"inbound_rate" env:"INBOUND_RATE"`
	InboundBurst int     `yaml:"inbound_burst" env:"INBOUND_BURST"`
}

// CountdownConfig controls the countdown scheduler.
type CountdownConfig struct {
	// Tick is the delay between two countdown broadcasts.
	Tick time.Duration `yaml:"tick" env:"TICK"`

	// MaxDuration is the largest accepted countdown, in ticks.
	MaxDuration int `yaml:"max_duration" env:"MAX_DURATION"`
}

// LedgerConfig configures the local wallet issuer.
type LedgerConfig struct {
	StartingBalance float64 `yaml:"starting_balance" env:"STARTING_BALANCE"`
}

// SlogLevel maps LogLevel to a slog.Level. Unknown values map to Info.
func (s ServerConfig) SlogLevel() slog.Level {
	switch strings.ToLower(s.LogLevel) {
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

// Load reads and parses the config file at path, applies AICEBREAKER_*
// environment overrides and validates the result. An empty path skips the
// file and uses defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("server config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("server config: parse yaml: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg.Server, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("server config: parse env: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			GRPCPort: DefaultGRPCPort,
			LogLevel: DefaultLogLevel,
			WS: WSConfig{
				SendBuffer:   DefaultSendBuffer,
				WriteTimeout: DefaultWriteTimeout,
				PongWait:     DefaultPongWait,
				ReadLimit:    DefaultReadLimit,
				InboundRate:  DefaultInboundRate,
				InboundBurst: DefaultInboundBurst,
			},
			Countdown: CountdownConfig{
				Tick:        DefaultCountdownTick,
				MaxDuration: DefaultCountdownMax,
			},
			Ledger: LedgerConfig{
				StartingBalance: DefaultStartingBalance,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	if s.GRPCPort < 0 || s.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [0, 65535]", s.GRPCPort)
	}
	if s.GRPCPort != 0 && s.GRPCPort == s.HTTPPort {
		return fmt.Errorf("server.grpc_port and server.http_port must differ (both %d)", s.HTTPPort)
	}
	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log_level %q unknown: want debug|info|warn|error", s.LogLevel)
	}
	if s.WS.SendBuffer <= 0 {
		return fmt.Errorf("server.ws.send_buffer must be positive")
	}
	if s.WS.WriteTimeout <= 0 || s.WS.PongWait <= 0 {
		return fmt.Errorf("server.ws.write_timeout and server.ws.pong_wait must be positive")
	}
	if s.WS.ReadLimit <= 0 {
		return fmt.Errorf("server.ws.read_limit must be positive")
	}
	if s.WS.InboundRate < 0 {
		return fmt.Errorf("server.ws.inbound_rate must not be negative")
	}
	if s.WS.InboundRate > 0 && s.WS.InboundBurst <= 0 {
		return fmt.Errorf("server.ws.inbound_burst must be positive when inbound_rate is set")
	}
	if s.Countdown.Tick <= 0 {
		return fmt.Errorf("server.countdown.tick must be positive")
	}
	if s.Countdown.MaxDuration < 0 {
		return fmt.Errorf("server.countdown.max_duration must not be negative")
	}
	if s.Ledger.StartingBalance < 0 {
		return fmt.Errorf("server.ledger.starting_balance must not be negative")
	}
	return nil
}
