package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all orchestrator configuration.
type Config struct {
	Server    ServerConfig
	Broker    BrokerConfig
	Sandbox   SandboxConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8900"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// BrokerConfig holds message broker configuration.
type BrokerConfig struct {
	MaxPending     int           `envconfig:"BROKER_MAX_PENDING" default:"100"`
	DefaultTimeout time.Duration `envconfig:"BROKER_DEFAULT_TIMEOUT" default:"30s"`
	SweepInterval  time.Duration `envconfig:"BROKER_SWEEP_INTERVAL" default:"10s"`
	ExpiryGrace    time.Duration `envconfig:"BROKER_EXPIRY_GRACE" default:"5s"`
}

// SandboxConfig holds sandbox lifecycle configuration.
type SandboxConfig struct {
	MaxCount       int           `envconfig:"SANDBOX_MAX_COUNT" default:"50"`
	IdleTimeout    time.Duration `envconfig:"SANDBOX_IDLE_TIMEOUT" default:"5m"`
	SweepInterval  time.Duration `envconfig:"SANDBOX_SWEEP_INTERVAL" default:"30s"`
	SampleInterval time.Duration `envconfig:"SANDBOX_SAMPLE_INTERVAL" default:"1m"`
	MemoryAlertMB  int           `envconfig:"SANDBOX_MEMORY_ALERT_MB" default:"1024"`
	CountAlert     int           `envconfig:"SANDBOX_COUNT_ALERT" default:"40"`
}

// DatabaseConfig holds the capability database backend configuration.
type DatabaseConfig struct {
	Path string `envconfig:"DATABASE_PATH" default:"file:orchestrator.db?cache=shared"`
}

// StorageConfig holds the file capability storage root.
type StorageConfig struct {
	Root string `envconfig:"STORAGE_ROOT" default:"/tmp/isolate-storage"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds HTTP edge rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8900",
			Host: "0.0.0.0",
		},
		Broker: BrokerConfig{
			MaxPending:     100,
			DefaultTimeout: 30 * time.Second,
			SweepInterval:  10 * time.Second,
			ExpiryGrace:    5 * time.Second,
		},
		Sandbox: SandboxConfig{
			MaxCount:       50,
			IdleTimeout:    5 * time.Minute,
			SweepInterval:  30 * time.Second,
			SampleInterval: time.Minute,
			MemoryAlertMB:  1024,
			CountAlert:     40,
		},
		Database: DatabaseConfig{
			Path: "file:orchestrator.db?cache=shared",
		},
		Storage: StorageConfig{
			Root: "/tmp/isolate-storage",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
