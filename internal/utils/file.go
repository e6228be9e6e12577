// Package utils provides file helpers for loading the backend configuration.
package utils

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fjacquet/statsd_coralogix/internal/models"
	"gopkg.in/yaml.v2"
)

// FileExists checks if the given file exists.
func FileExists(filename string) bool {
	_, err := os.Stat(filename)
	return !os.IsNotExist(err)
}

// ReadFile reads the configuration from the specified YAML file.
// It returns an error if the file cannot be opened or parsed.
func ReadFile(cfg *models.Config, filepath string) error {
	f, err := os.Open(filepath)
	if err != nil {
		return fmt.Errorf("failed to open config file %s: %w", filepath, err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("config file %s is empty", filepath)
		}
		return fmt.Errorf("failed to decode config file %s: %w", filepath, err)
	}

	return nil
}

// LoadConfig reads and validates the configuration file. Defaults are
// applied to the returned config.
func LoadConfig(filepath string) (*models.Config, error) {
	if !FileExists(filepath) {
		return nil, fmt.Errorf("config file not found: %s", filepath)
	}

	var cfg models.Config
	if err := ReadFile(&cfg, filepath); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
