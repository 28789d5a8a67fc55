package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the optional YAML configuration document. Values left zero fall
// back to built-in defaults; command-line flags that were set explicitly win
// over the document.
type Config struct {
	// Bind and Port locate the memcached TCP listener.
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`

	// CommitLog is the path of the append-only commit log. Defaults to the
	// database path with a ".log" suffix.
	CommitLog string `yaml:"commit_log"`

	// FlushIntervalSeconds is the checkpoint cadence.
	FlushIntervalSeconds int `yaml:"flush_interval"`

	// MetricsAddr serves Prometheus metrics when non-empty.
	MetricsAddr string `yaml:"metrics_addr"`

	// StatusAddr serves the HTTP inspection endpoints when non-empty.
	StatusAddr string `yaml:"status_addr"`
}

// FlushInterval returns the configured cadence, or zero when unset.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalSeconds) * time.Second
}

// Load reads the configuration document at path. An empty path yields an
// empty config; a named path that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
