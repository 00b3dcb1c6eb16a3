// Package config provides configuration loading for projectd.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	NATS          NATSConfig          `koanf:"nats"`
	Pipeline      PipelineConfig      `koanf:"pipeline"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// NATSConfig configures the event-publishing connection.
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
}

// PipelineConfig bounds the completion wait and names the marker.
type PipelineConfig struct {
	MarkerName   string        `koanf:"marker_name"`
	PollMaxWait  time.Duration `koanf:"poll_max_wait"`
	PollInterval time.Duration `koanf:"poll_interval"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ObservabilityConfig names the service for logs and metrics.
type ObservabilityConfig struct {
	ServiceName string `koanf:"service_name"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9280
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}

	if cfg.Pipeline.MarkerName == "" {
		cfg.Pipeline.MarkerName = ".projectd-scaffold-done"
	}
	if cfg.Pipeline.PollMaxWait == 0 {
		cfg.Pipeline.PollMaxWait = 5 * time.Minute
	}
	if cfg.Pipeline.PollInterval == 0 {
		cfg.Pipeline.PollInterval = 500 * time.Millisecond
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "projectd"
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Pipeline.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.Pipeline.PollInterval)
	}
	if c.Pipeline.PollMaxWait < c.Pipeline.PollInterval {
		return fmt.Errorf("poll max wait %s is shorter than poll interval %s",
			c.Pipeline.PollMaxWait, c.Pipeline.PollInterval)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging format %q", c.Logging.Format)
	}
	return nil
}
