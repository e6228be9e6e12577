package models

import (
	"fmt"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// SafeConfig provides thread-safe access to configuration.
// It uses RWMutex to allow concurrent reads while serializing writes.
//
// SafeConfig enables configuration reload without restarting the backend:
//   - Operators can rotate the private key or add mappings via SIGHUP
//   - File watchers can trigger automatic reload when the config file changes
//   - Invalid configurations are rejected without affecting the running config
//
// The flush path reads the current config once per flush, so a reload takes
// effect on the next flush. Counter totals are kept across reloads.
//
// Usage:
//
//	safeCfg := NewSafeConfig(cfg)
//	current := safeCfg.Get()
//	changed, err := safeCfg.ReloadConfig("/path/to/config.yaml")
type SafeConfig struct {
	mu sync.RWMutex
	C  *Config
}

// NewSafeConfig creates a new SafeConfig with the provided initial config.
// The config is stored by reference; the caller should not modify it after
// passing it to NewSafeConfig.
func NewSafeConfig(cfg *Config) *SafeConfig {
	return &SafeConfig{
		C: cfg,
	}
}

// Get returns the current configuration (read-locked).
// The returned pointer is safe to use until the next reload.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.C
}

// ReloadConfig loads and validates a new configuration from the file.
// Validation happens before acquiring the write lock, so invalid
// configurations never affect the running backend.
//
// Returns:
//   - targetChanged: true if the remote-write endpoint changed
//   - err: error if the file cannot be read or validation fails
func (sc *SafeConfig) ReloadConfig(configPath string) (targetChanged bool, err error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return false, fmt.Errorf("config file not found: %s", configPath)
	}

	f, err := os.Open(configPath)
	if err != nil {
		return false, fmt.Errorf("failed to open config: %w", err)
	}
	defer func() { _ = f.Close() }()

	var newCfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&newCfg); err != nil {
		return false, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := newCfg.Validate(); err != nil {
		return false, fmt.Errorf("config validation failed: %w", err)
	}

	sc.mu.Lock()
	oldHost := sc.C.Coralogix.APIHost
	sc.C = &newCfg
	sc.mu.Unlock()

	targetChanged = oldHost != newCfg.Coralogix.APIHost

	log.Info("Configuration reloaded successfully")
	if targetChanged {
		log.Infof("Remote write endpoint changed to %s", newCfg.Coralogix.APIHost)
	}

	return targetChanged, nil
}
