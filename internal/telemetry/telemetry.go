// Package telemetry owns the OpenTelemetry TracerProvider of the backend.
//
// Manager exports the flush and remote-write spans over OTLP gRPC. When
// tracing is disabled or the exporter cannot be created, TracerProvider
// returns nil and the exporter falls back to a noop tracer.
//
// attributes.go holds the span attribute keys; errors.go holds the log
// templates for rejected remote writes.
package telemetry
