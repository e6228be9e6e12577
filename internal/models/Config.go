// Package models defines the core data structures for the StatsD to Coralogix
// backend. It includes the configuration model and the per-interval snapshot
// handed over by the StatsD aggregator on every flush.
package models

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Default values applied by SetDefaults.
const (
	DefaultTotalsAccumulatorTTLSeconds = 3600
	DefaultPercentThreshold            = 90
	DefaultFlushInterval               = "10s"
	DefaultStatsdAddress               = ":8125"
	DefaultLogName                     = "statsd_coralogix.log"
)

// Config represents the complete application configuration.
// It includes settings for the status server, the StatsD listener, the
// Coralogix remote-write target and OpenTelemetry tracing.
type Config struct {
	Server struct {
		Port    string `yaml:"port"`
		Host    string `yaml:"host"`
		LogName string `yaml:"logName"`
	} `yaml:"server"`

	Statsd struct {
		Address          string  `yaml:"address"`
		FlushInterval    string  `yaml:"flushInterval"`
		PercentThreshold float64 `yaml:"percentThreshold"`
	} `yaml:"statsd"`

	Hostname string `yaml:"hostname"`
	Debug    bool   `yaml:"debug"`

	Coralogix CoralogixConfig `yaml:"coralogix"`

	OpenTelemetry struct {
		Enabled      bool    `yaml:"enabled"`
		Endpoint     string  `yaml:"endpoint"`
		Insecure     bool    `yaml:"insecure"`
		SamplingRate float64 `yaml:"samplingRate"`
	} `yaml:"opentelemetry"`
}

// CoralogixConfig holds the remote-write target and the transformation
// settings applied on every flush.
type CoralogixConfig struct {
	PrivateKey      string `yaml:"privateKey"`
	APIHost         string `yaml:"apiHost"`
	Prefix          string `yaml:"prefix"`
	ApplicationName string `yaml:"applicationName"`
	SubsystemName   string `yaml:"subsystemName"`

	// TotalsAccumulatorTTLSeconds bounds how long a counter total is kept
	// without receiving updates.
	TotalsAccumulatorTTLSeconds int64 `yaml:"totalsAccumulatorTtlSeconds"`

	Mappings map[string]Mapping `yaml:"mappings"`
}

// SetDefaults sets default values for optional configuration fields.
// This method is called automatically by Validate() before validation checks.
func (c *Config) SetDefaults() {
	if c.Server.LogName == "" {
		c.Server.LogName = DefaultLogName
	}
	if c.Statsd.Address == "" {
		c.Statsd.Address = DefaultStatsdAddress
	}
	if c.Statsd.FlushInterval == "" {
		c.Statsd.FlushInterval = DefaultFlushInterval
	}
	if c.Statsd.PercentThreshold == 0 {
		c.Statsd.PercentThreshold = DefaultPercentThreshold
	}
	if c.Coralogix.TotalsAccumulatorTTLSeconds <= 0 {
		c.Coralogix.TotalsAccumulatorTTLSeconds = DefaultTotalsAccumulatorTTLSeconds
	}
}

// Validate checks if the configuration is valid and returns an error if not.
// It performs validation of:
//   - Status server settings (port range when a port is given)
//   - StatsD listener settings (flush interval, percent threshold)
//   - Coralogix settings (private key, endpoint URL, application/subsystem names)
//   - Histogram bucket ordering for every mapping
//   - OpenTelemetry sampling rate
//
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	c.SetDefaults()

	if c.Server.Port != "" {
		if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid server port: %s", c.Server.Port)
		}
	}

	interval, err := time.ParseDuration(c.Statsd.FlushInterval)
	if err != nil {
		return fmt.Errorf("invalid flush interval: %w", err)
	}
	if interval <= 0 {
		return fmt.Errorf("invalid flush interval: %s (must be positive)", c.Statsd.FlushInterval)
	}
	if c.Statsd.PercentThreshold <= 0 || c.Statsd.PercentThreshold > 100 {
		return fmt.Errorf("invalid percent threshold: %v (must be in (0, 100])", c.Statsd.PercentThreshold)
	}

	if c.Coralogix.PrivateKey == "" {
		return errors.New("coralogix private key is required")
	}
	if c.Coralogix.APIHost == "" {
		return errors.New("coralogix API host is required")
	}
	u, err := url.Parse(c.Coralogix.APIHost)
	if err != nil {
		return fmt.Errorf("invalid coralogix API host: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid coralogix API host scheme: %s (must be http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid coralogix API host: %s (missing host)", c.Coralogix.APIHost)
	}
	if c.Coralogix.ApplicationName == "" {
		return errors.New("coralogix application name is required")
	}
	if c.Coralogix.SubsystemName == "" {
		return errors.New("coralogix subsystem name is required")
	}

	for name, mapping := range c.Coralogix.Mappings {
		if err := mapping.Validate(); err != nil {
			return fmt.Errorf("invalid mapping %q: %w", name, err)
		}
	}

	if c.OpenTelemetry.Enabled {
		if c.OpenTelemetry.Endpoint == "" {
			return errors.New("OpenTelemetry endpoint is required when tracing is enabled")
		}
		if c.OpenTelemetry.SamplingRate < 0 || c.OpenTelemetry.SamplingRate > 1 {
			return fmt.Errorf("invalid OpenTelemetry sampling rate: %v (must be between 0.0 and 1.0)", c.OpenTelemetry.SamplingRate)
		}
	}

	return nil
}

// GetServerAddress returns the status server bind address.
// Format: host:port
//
// Example: "0.0.0.0:9102"
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// HasStatusServer reports whether the HTTP status server should be started.
func (c *Config) HasStatusServer() bool {
	return c.Server.Port != ""
}

// GetFlushInterval parses and returns the flush interval as a time.Duration.
//
// Example: "10s" -> 10 * time.Second
func (c *Config) GetFlushInterval() (time.Duration, error) {
	return time.ParseDuration(c.Statsd.FlushInterval)
}

// ResolveHostname returns the configured hostname, falling back to the
// operating system hostname.
func (c *Config) ResolveHostname() string {
	if c.Hostname != "" {
		return c.Hostname
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

// IsOTelEnabled reports whether OpenTelemetry tracing is configured.
func (c *Config) IsOTelEnabled() bool {
	return c.OpenTelemetry.Enabled
}

// MaskPrivateKey returns a masked version of the private key for safe logging.
// Shows the first 4 and last 4 characters with asterisks in between.
//
// Example: "abcd1234efgh5678" -> "abcd****5678"
//
// For keys of 8 characters or fewer, returns "****".
func (c *Config) MaskPrivateKey() string {
	key := c.Coralogix.PrivateKey
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// Mapping returns the per-metric configuration for a base metric name.
func (c *CoralogixConfig) Mapping(name string) (Mapping, bool) {
	m, ok := c.Mappings[name]
	return m, ok
}
