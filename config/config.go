// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/absmach/liveassist/ownership"
	"github.com/absmach/liveassist/ratelimit"
)

// Config holds all configuration for the realtime gateway.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Gateway   GatewayConfig    `yaml:"gateway"`
	Auth      AuthConfig       `yaml:"auth"`
	Ownership OwnershipConfig  `yaml:"ownership"`
	RateLimit ratelimit.Config `yaml:"ratelimit"`
	Log       LogConfig        `yaml:"log"`
}

// ServerConfig holds listener configuration.
type ServerConfig struct {
	WSAddr          string        `yaml:"ws_addr"`
	WSPath          string        `yaml:"ws_path"`
	APIAddr         string        `yaml:"api_addr"`
	APIEnabled      bool          `yaml:"api_enabled"`
	HealthAddr      string        `yaml:"health_addr"`
	HealthEnabled   bool          `yaml:"health_enabled"`
	MetricsAddr     string        `yaml:"metrics_addr"` // OTLP endpoint
	MetricsEnabled  bool          `yaml:"metrics_enabled"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Maximum inbound frame size in bytes.
	MaxFrameSize int64 `yaml:"max_frame_size"`

	// Write deadline applied to each outbound frame.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// OpenTelemetry configuration
	OtelServiceName     string  `yaml:"otel_service_name"`
	OtelServiceVersion  string  `yaml:"otel_service_version"`
	OtelTracesEnabled   bool    `yaml:"otel_traces_enabled"`
	OtelMetricsEnabled  bool    `yaml:"otel_metrics_enabled"`
	OtelTraceSampleRate float64 `yaml:"otel_trace_sample_rate"` // 0.0 to 1.0
}

// GatewayConfig holds connection management settings.
type GatewayConfig struct {
	// Liveness sweep period. A silent connection survives one interval and
	// is evicted during the next, so worst-case detection is two intervals.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// Failed authentication attempts tolerated on one connection before it
	// is closed. 0 disables the cap (unlimited retries).
	AuthFailureLimit int `yaml:"auth_failure_limit"`
}

// AuthConfig holds credential verification settings.
type AuthConfig struct {
	// HMAC secret for bearer token verification.
	TokenSecret string `yaml:"token_secret"`
}

// OwnershipConfig holds ownership oracle configuration.
type OwnershipConfig struct {
	Type string `yaml:"type"` // memory, badger

	// BadgerDB settings
	BadgerDir  string `yaml:"badger_dir"`
	SyncWrites bool   `yaml:"sync_writes"`

	Breaker ownership.BreakerConfig `yaml:"breaker"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			WSAddr:          ":8083",
			WSPath:          "/ws",
			APIAddr:         ":8082",
			APIEnabled:      true,
			HealthAddr:      ":8081",
			HealthEnabled:   true,
			MetricsAddr:     "localhost:4317",
			MetricsEnabled:  false,
			ShutdownTimeout: 30 * time.Second,
			MaxFrameSize:    64 * 1024,
			WriteTimeout:    10 * time.Second,

			OtelServiceName:     "liveassist-gateway",
			OtelServiceVersion:  "0.1.0",
			OtelMetricsEnabled:  true,
			OtelTracesEnabled:   false,
			OtelTraceSampleRate: 0.1,
		},
		Gateway: GatewayConfig{
			HeartbeatInterval: 30 * time.Second,
			AuthFailureLimit:  0,
		},
		Auth: AuthConfig{
			TokenSecret: "",
		},
		Ownership: OwnershipConfig{
			Type:      "memory",
			BadgerDir: "/tmp/liveassist/grants",
			Breaker: ownership.BreakerConfig{
				FailureThreshold: 5,
				ResetTimeout:     60 * time.Second,
			},
		},
		RateLimit: ratelimit.Config{
			Enabled:         false,
			Rate:            5,
			Burst:           10,
			CleanupInterval: time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
// If the file doesn't exist, returns default configuration.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.WSAddr == "" {
		return fmt.Errorf("server.ws_addr cannot be empty")
	}
	if c.Server.WSPath == "" {
		return fmt.Errorf("server.ws_path cannot be empty")
	}
	if c.Server.APIEnabled && c.Server.APIAddr == "" {
		return fmt.Errorf("server.api_addr required when API is enabled")
	}
	if c.Server.HealthEnabled && c.Server.HealthAddr == "" {
		return fmt.Errorf("server.health_addr required when health is enabled")
	}
	if c.Server.MaxFrameSize < 1024 {
		return fmt.Errorf("server.max_frame_size must be at least 1KB")
	}

	if c.Gateway.HeartbeatInterval < time.Second {
		return fmt.Errorf("gateway.heartbeat_interval must be at least 1 second")
	}
	if c.Gateway.AuthFailureLimit < 0 {
		return fmt.Errorf("gateway.auth_failure_limit cannot be negative")
	}

	if c.Auth.TokenSecret == "" {
		return fmt.Errorf("auth.token_secret cannot be empty")
	}

	validOwnership := map[string]bool{"memory": true, "badger": true}
	if !validOwnership[c.Ownership.Type] {
		return fmt.Errorf("ownership.type must be one of: memory, badger")
	}
	if c.Ownership.Type == "badger" && c.Ownership.BadgerDir == "" {
		return fmt.Errorf("ownership.badger_dir required when type is badger")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Rate <= 0 {
			return fmt.Errorf("ratelimit.rate must be positive")
		}
		if c.RateLimit.Burst < 1 {
			return fmt.Errorf("ratelimit.burst must be at least 1")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("log.format must be one of: text, json")
	}

	if c.Server.MetricsEnabled {
		if c.Server.OtelServiceName == "" {
			return fmt.Errorf("server.otel_service_name cannot be empty when metrics enabled")
		}
		if c.Server.OtelTraceSampleRate < 0.0 || c.Server.OtelTraceSampleRate > 1.0 {
			return fmt.Errorf("server.otel_trace_sample_rate must be between 0.0 and 1.0")
		}
	}

	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
