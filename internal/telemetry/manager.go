package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/fjacquet/statsd_coralogix/internal/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials/insecure"
)

// Manager owns the TracerProvider for the lifetime of the process.
type Manager struct {
	enabled        bool
	tracerProvider *sdktrace.TracerProvider
	config         Config
}

// Config holds OpenTelemetry settings for the manager.
type Config struct {
	// Enabled indicates whether OpenTelemetry tracing is active
	Enabled bool

	// Endpoint is the OTLP gRPC collector endpoint (e.g., "localhost:4317")
	Endpoint string

	// Insecure disables TLS towards the collector
	Insecure bool

	// SamplingRate is the fraction of traces kept (0.0 to 1.0)
	SamplingRate float64

	// ServiceName and ServiceVersion populate the resource attributes
	ServiceName    string
	ServiceVersion string

	// RemoteWriteHost is the Coralogix endpoint host, recorded as peer.service
	RemoteWriteHost string
}

// ConfigFromModel builds the telemetry settings from the application
// configuration.
func ConfigFromModel(cfg *models.Config, serviceName, serviceVersion string) Config {
	host := ""
	if u, err := url.Parse(cfg.Coralogix.APIHost); err == nil {
		host = u.Hostname()
	}
	return Config{
		Enabled:         cfg.OpenTelemetry.Enabled,
		Endpoint:        cfg.OpenTelemetry.Endpoint,
		Insecure:        cfg.OpenTelemetry.Insecure,
		SamplingRate:    cfg.OpenTelemetry.SamplingRate,
		ServiceName:     serviceName,
		ServiceVersion:  serviceVersion,
		RemoteWriteHost: host,
	}
}

// NewManager creates a manager. Nothing is started until Initialize.
func NewManager(cfg Config) *Manager {
	return &Manager{
		enabled: cfg.Enabled,
		config:  cfg,
	}
}

// Initialize creates the OTLP gRPC exporter and registers a batching
// TracerProvider and the W3C propagator globally.
//
// A failure disables tracing and is logged as a warning; Initialize itself
// returns nil so that startup continues without telemetry.
func (m *Manager) Initialize(ctx context.Context) error {
	if !m.config.Enabled {
		logrus.Debug("OpenTelemetry is disabled in configuration")
		return nil
	}

	exporter, err := m.newSpanExporter(ctx)
	if err != nil {
		logrus.Warnf("Failed to initialize OpenTelemetry: %v. Continuing without tracing.", err)
		m.enabled = false
		return nil
	}

	res, err := m.createResource()
	if err != nil {
		logrus.Warnf("Failed to create OpenTelemetry resource: %v. Continuing without tracing.", err)
		m.enabled = false
		return nil
	}

	m.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(m.createSampler()),
	)
	otel.SetTracerProvider(m.tracerProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logrus.Infof("OpenTelemetry initialized (endpoint: %s, sampling: %.2f)",
		m.config.Endpoint, m.config.SamplingRate)
	return nil
}

func (m *Manager) newSpanExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(m.config.Endpoint),
	}
	if m.config.Insecure {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	return exporter, nil
}

// createResource describes this process: service name and version, host and
// the remote-write peer.
func (m *Manager) createResource() (*resource.Resource, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	attrs := []resource.Option{
		resource.WithAttributes(
			semconv.ServiceNameKey.String(m.config.ServiceName),
			semconv.ServiceVersionKey.String(m.config.ServiceVersion),
			semconv.HostNameKey.String(hostname),
		),
	}
	if m.config.RemoteWriteHost != "" {
		attrs = append(attrs, resource.WithAttributes(
			semconv.PeerServiceKey.String(m.config.RemoteWriteHost),
		))
	}

	return resource.New(context.Background(), attrs...)
}

// createSampler samples everything at rate >= 1 and by trace ID ratio below.
func (m *Manager) createSampler() sdktrace.Sampler {
	if m.config.SamplingRate >= 1.0 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.TraceIDRatioBased(m.config.SamplingRate)
}

// Shutdown flushes pending spans. It is a no-op when tracing is disabled.
func (m *Manager) Shutdown(ctx context.Context) error {
	if !m.enabled || m.tracerProvider == nil {
		logrus.Debug("OpenTelemetry shutdown skipped (not enabled or not initialized)")
		return nil
	}

	logrus.Info("Shutting down OpenTelemetry TracerProvider...")
	if err := m.tracerProvider.Shutdown(ctx); err != nil {
		logrus.Errorf("Error during OpenTelemetry shutdown: %v", err)
		return fmt.Errorf("failed to shutdown TracerProvider: %w", err)
	}
	return nil
}

// IsEnabled reports whether tracing is operational. It turns false when
// Initialize failed.
func (m *Manager) IsEnabled() bool {
	return m.enabled
}

// TracerProvider returns the provider for explicit injection, or nil when
// tracing is disabled. Pass it to exporter.WithTracerProvider; a nil value
// selects the noop provider there.
func (m *Manager) TracerProvider() trace.TracerProvider {
	if m.tracerProvider == nil {
		return nil
	}
	return m.tracerProvider
}
