package config

import (
	"errors"
	"fmt"
)

// Validate checks all configuration values and returns aggregated errors.
func (c *Config) Validate() error {
	return errors.Join(
		c.Server.validate(),
		c.Log.validate(),
		c.Storage.validate(),
		c.Bus.validate(),
		c.Telemetry.validate(),
	)
}

func (s *ServerConfig) validate() error {
	var errs []error

	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", s.Port))
	}
	if s.ReadTimeout <= 0 {
		errs = append(errs, errors.New("server.read_timeout must be positive"))
	}
	if s.WriteTimeout <= 0 {
		errs = append(errs, errors.New("server.write_timeout must be positive"))
	}

	return errors.Join(errs...)
}

func (l *LogConfig) validate() error {
	var errs []error

	switch l.Level {
	case "debug", "info", "warn", "error":
		// Valid levels.
	default:
		errs = append(errs, fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", l.Level))
	}

	switch l.Format {
	case "json", "text":
		// Valid formats.
	default:
		errs = append(errs, fmt.Errorf("log.format must be one of: json, text; got %q", l.Format))
	}

	return errors.Join(errs...)
}

func (s *StorageConfig) validate() error {
	var errs []error

	if s.DSN == "" {
		errs = append(errs, errors.New("storage.dsn must not be empty"))
	}
	if s.MaxConns < 1 {
		errs = append(errs, fmt.Errorf("storage.max_conns must be >= 1, got %d", s.MaxConns))
	}
	if s.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("storage.connect_timeout must be positive"))
	}
	if s.Breaker.MaxFailures < 1 {
		errs = append(errs, fmt.Errorf("storage.breaker.max_failures must be >= 1, got %d", s.Breaker.MaxFailures))
	}
	if s.Breaker.Timeout <= 0 {
		errs = append(errs, errors.New("storage.breaker.timeout must be positive"))
	}

	return errors.Join(errs...)
}

func (b *BusConfig) validate() error {
	var errs []error

	if len(b.Brokers) == 0 {
		errs = append(errs, errors.New("bus.brokers must not be empty"))
	}
	if b.CommandsTopic == "" {
		errs = append(errs, errors.New("bus.commands_topic must not be empty"))
	}
	if b.EventsTopic == "" {
		errs = append(errs, errors.New("bus.events_topic must not be empty"))
	}
	if b.GroupID == "" {
		errs = append(errs, errors.New("bus.group_id must not be empty"))
	}

	return errors.Join(errs...)
}

func (t *TelemetryConfig) validate() error {
	if !t.Enabled {
		return nil
	}

	var errs []error

	switch t.Exporter {
	case "stdout", "otlp":
		// Valid exporters.
	default:
		errs = append(errs, fmt.Errorf("telemetry.exporter must be one of: stdout, otlp; got %q", t.Exporter))
	}

	if t.Exporter == "otlp" && t.Endpoint == "" {
		errs = append(errs, errors.New("telemetry.endpoint must not be empty when exporter is otlp"))
	}

	return errors.Join(errs...)
}
