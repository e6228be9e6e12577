// Package testutil provides shared testing utilities and constants for the
// StatsD to Coralogix backend.
//
// # Key Components
//
// Constants: Shared test values (private key, endpoint path, names) defined in constants.go
//
// RemoteWriteServerBuilder: Fluent interface for creating mock remote-write
// endpoints that decode and record the snappy-compressed protobuf payloads
//
// Helper Functions: Config file writers and assertion helpers for cleaner test code
//
// # Usage Examples
//
// Creating a mock remote-write endpoint:
//
//	rw := testutil.NewRemoteWriteServer().
//	    WithStatus(http.StatusNoContent).
//	    Build()
//	defer rw.Close()
//
//	// ... flush ...
//	series := rw.Series()
package testutil

// HTTP headers
const (
	AuthorizationHeader   = "Authorization"
	ContentEncodingHeader = "Content-Encoding"
	ContentTypeHeader     = "Content-Type"
	RemoteWriteVersionHdr = "X-Prometheus-Remote-Write-Version"
)

// Common test values
const (
	TestPrivateKey      = "test-private-key-0123456789"
	TestBearerHeader    = "Bearer " + TestPrivateKey
	TestApplicationName = "test_application"
	TestSubsystemName   = "test_subsystem"
	TestHostname        = "test-host"
	TestPrefix          = "test_prefix"
)

// Test endpoints and paths
const (
	TestPathRemoteWrite = "/prometheus/api/v1/write"
	TestOTELEndpoint    = "localhost:4317"
	TestServiceName     = "statsd-coralogix-test"
	TestServiceVersion  = "1.0.0-test"
	TestLogName         = "test.log"
)
