// Package exporter provides shared test constants and utilities.
// This file contains common constants used across multiple test files
// to avoid duplication and ensure consistency.
package exporter

import (
	"github.com/fjacquet/statsd_coralogix/internal/models"
	"github.com/fjacquet/statsd_coralogix/internal/testutil"
)

// Shared test constants - aliased from testutil
const (
	testPrivateKey      = testutil.TestPrivateKey
	testApplicationName = testutil.TestApplicationName
	testSubsystemName   = testutil.TestSubsystemName
	testHostname        = testutil.TestHostname
	testPrefix          = testutil.TestPrefix

	// Flush timestamp shared by transformer tests (seconds)
	testFlushTs int64 = 1700000000
)

// newTestCoralogixConfig returns a Coralogix section without prefix or
// mappings.
func newTestCoralogixConfig() *models.CoralogixConfig {
	return &models.CoralogixConfig{
		PrivateKey:                  testPrivateKey,
		APIHost:                     "http://127.0.0.1:1" + testutil.TestPathRemoteWrite,
		ApplicationName:             testApplicationName,
		SubsystemName:               testSubsystemName,
		TotalsAccumulatorTTLSeconds: models.DefaultTotalsAccumulatorTTLSeconds,
	}
}

// newTestSafeConfig returns a validated configuration pointing at apiHost.
func newTestSafeConfig(apiHost string) *models.SafeConfig {
	cfg := &models.Config{}
	cfg.Hostname = testHostname
	cfg.Coralogix = *newTestCoralogixConfig()
	cfg.Coralogix.APIHost = apiHost
	cfg.SetDefaults()
	return models.NewSafeConfig(cfg)
}
