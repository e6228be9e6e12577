package telemetry

// This file defines error message templates for common failure scenarios.
// Templates provide consistent, actionable error messages with troubleshooting steps.
//
// Usage:
//
//	if resp.StatusCode() == http.StatusUnauthorized {
//	    logging.LogError(fmt.Sprintf(telemetry.ErrAuthenticationFailedTemplate,
//	        resp.StatusCode(), url))
//	}

// Error message templates for common scenarios
const (
	// ErrAuthenticationFailedTemplate is logged when Coralogix rejects the private key
	ErrAuthenticationFailedTemplate = `Coralogix rejected the remote-write request (HTTP %d).

This usually indicates:
1. The 'privateKey' in config.yaml is wrong or has been revoked
2. The key belongs to a different Coralogix region than 'apiHost'

Troubleshooting steps:
1. Copy the "Send Your Data" API key from the Coralogix console again
2. Check that 'apiHost' matches your account's region, for example:
     coralogix:
       apiHost: "https://prometheus-gateway.coralogix.com/prometheus/api/v1/write"

Request URL: %s`

	// ErrRemoteWriteRejectedTemplate is logged when the endpoint rejects the payload
	ErrRemoteWriteRejectedTemplate = `Coralogix rejected the remote-write payload (HTTP %d).

The request reached the endpoint but the payload was not accepted. The batch is
dropped; counters keep accumulating and will be resent on the next flush.

Request URL: %s
Response preview: %s`
)
