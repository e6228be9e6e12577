// Package exporter provides health check functionality for the Coralogix backend.
package exporter

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"
)

// healthCheckTimeout is the default timeout for connectivity tests.
const healthCheckTimeout = 5 * time.Second

// IsHealthy returns true if the most recent send succeeded, or if nothing
// has been sent yet. This is a quick check without contacting Coralogix.
func (e *Exporter) IsHealthy() bool {
	return e.ExportStatus().Healthy()
}

// TestConnectivity verifies that the configured remote-write host accepts TCP
// connections. It does not send data, so it cannot detect a bad private key.
// Returns nil if the dial succeeds.
//
// Example:
//
//	if err := exp.TestConnectivity(ctx); err != nil {
//	    log.Warnf("Coralogix connectivity failed: %v", err)
//	}
func (e *Exporter) TestConnectivity(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, healthCheckTimeout)
		defer cancel()
	}

	cfg := e.cfg.Get()
	u, err := url.Parse(cfg.Coralogix.APIHost)
	if err != nil {
		return fmt.Errorf("invalid remote-write URL: %w", err)
	}
	addr := u.Host
	if u.Port() == "" {
		port := "443"
		if u.Scheme == "http" {
			port = "80"
		}
		addr = net.JoinHostPort(u.Hostname(), port)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("Coralogix connectivity test failed: %w", err)
	}
	return conn.Close()
}
