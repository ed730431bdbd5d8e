// Package config provides configuration loading and validation for the
// service. Configuration is loaded from YAML files with environment
// variable overrides using a layered system:
// base.yaml -> {profile}.yaml -> env vars.
package config

import "time"

// Config holds all configuration for the service.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Storage   StorageConfig   `koanf:"storage"`
	Bus       BusConfig       `koanf:"bus"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds settings for the operational HTTP server
// (liveness/readiness probes).
type ServerConfig struct {
	Host         string        `koanf:"host"`
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// StorageConfig holds document store settings. ConnectTimeout bounds both
// pool establishment and, via the DSN, individual statement execution;
// the pipeline itself never adds timeouts on top.
type StorageConfig struct {
	DSN            string        `koanf:"dsn"`
	MaxConns       int           `koanf:"max_conns"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	Breaker        BreakerConfig `koanf:"breaker"`
}

// BreakerConfig holds circuit breaker settings for store access.
type BreakerConfig struct {
	MaxFailures   int           `koanf:"max_failures"`
	Timeout       time.Duration `koanf:"timeout"`
	HalfOpenLimit int           `koanf:"half_open_limit"`
}

// BusConfig holds message bus settings. The commands topic is consumed
// with the given group id so exactly one replica in the group handles each
// command; the events topic is additionally consumed for inbound event
// hooks.
type BusConfig struct {
	Brokers       []string `koanf:"brokers"`
	CommandsTopic string   `koanf:"commands_topic"`
	EventsTopic   string   `koanf:"events_topic"`
	GroupID       string   `koanf:"group_id"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Exporter    string `koanf:"exporter"`
	Endpoint    string `koanf:"endpoint"`
	ServiceName string `koanf:"service_name"`
}
