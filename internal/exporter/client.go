// Package exporter turns aggregated StatsD snapshots into Prometheus
// remote-write requests and delivers them to Coralogix. It handles label
// construction, counter accumulation, payload encoding and HTTP transport.
package exporter

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fjacquet/statsd_coralogix/internal/logging"
	"github.com/fjacquet/statsd_coralogix/internal/telemetry"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultTimeout = 10 * time.Second // Per-request timeout; there are no retries

	// Connection pool configuration
	maxIdleConns        = 10               // A single endpoint is ever contacted
	maxIdleConnsPerHost = 10               // Keep every idle connection to that endpoint
	idleConnTimeout     = 90 * time.Second // Timeout for idle connections

	bodyPreviewLimit = 200 // Bytes of an error response kept in errors and logs
)

// HTTP header names and values of a remote-write request.
const (
	HeaderAuthorization      = "Authorization"
	HeaderContentEncoding    = "Content-Encoding"
	HeaderContentType        = "Content-Type"
	HeaderUserAgent          = "User-Agent"
	HeaderRemoteWriteVersion = "X-Prometheus-Remote-Write-Version"

	ContentEncodingSnappy = "snappy"
	ContentTypeProtobuf   = "application/x-protobuf"
	RemoteWriteVersion    = "0.1.0"
	UserAgent             = "statsd-coralogix-backend"
)

// ErrClientClosed is returned by Send after Close.
var ErrClientClosed = errors.New("client is closed")

// RemoteWriteError is returned when the endpoint answers with a non-2xx status.
type RemoteWriteError struct {
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("remote write rejected: url=%s, status=%d (%s), body=%s", e.URL, e.StatusCode, e.Status, e.Body)
}

// ClientOption configures optional RemoteWriteClient settings.
type ClientOption func(*clientOptions)

type clientOptions struct {
	tracerProvider trace.TracerProvider
	timeout        time.Duration
}

func defaultClientOptions() clientOptions {
	return clientOptions{
		tracerProvider: nil, // Will use noop via TracerWrapper
		timeout:        defaultTimeout,
	}
}

// WithClientTracerProvider sets the TracerProvider for distributed tracing.
// If not provided, tracing operations use a noop provider (no overhead).
func WithClientTracerProvider(tp trace.TracerProvider) ClientOption {
	return func(o *clientOptions) {
		o.tracerProvider = tp
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// RemoteWriteClient posts encoded payloads to a Prometheus remote-write
// endpoint. Each Send is a single attempt; a failed batch is not retried.
type RemoteWriteClient struct {
	client  *resty.Client  // HTTP client with TLS configuration
	tracing *TracerWrapper // OpenTelemetry tracer wrapper for nil-safe distributed tracing

	mu     sync.RWMutex
	closed bool
}

// NewRemoteWriteClient creates a client with a 10 second timeout and retries
// disabled.
//
// Example:
//
//	client := NewRemoteWriteClient()                                  // Without tracing
//	client := NewRemoteWriteClient(WithClientTracerProvider(tp))      // With tracing
func NewRemoteWriteClient(opts ...ClientOption) *RemoteWriteClient {
	options := defaultClientOptions()
	for _, opt := range opts {
		opt(&options)
	}

	client := resty.New().
		SetTimeout(options.timeout).
		SetRetryCount(0)

	httpClient := client.GetClient()
	httpClient.Transport = &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12, // Enforce TLS 1.2 minimum
		},
	}

	return &RemoteWriteClient{
		client:  client,
		tracing: NewTracerWrapper(options.tracerProvider, "statsd-coralogix/http-client"),
	}
}

// getHeaders returns the headers of a remote-write request.
//
// SECURITY: The private key is included in the Authorization header. This
// value should never be logged or included in error messages.
func getHeaders(privateKey string) map[string]string {
	return map[string]string{
		HeaderAuthorization:      "Bearer " + privateKey,
		HeaderContentEncoding:    ContentEncodingSnappy,
		HeaderContentType:        ContentTypeProtobuf,
		HeaderUserAgent:          UserAgent,
		HeaderRemoteWriteVersion: RemoteWriteVersion,
	}
}

// Send posts payload to target.URL.
//
// Returns an error if:
//   - The client has been closed
//   - The HTTP request fails (network error, timeout)
//   - The server returns a non-2xx status (as *RemoteWriteError)
func (c *RemoteWriteClient) Send(ctx context.Context, target Target, payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}

	ctx, span := c.tracing.StartSpan(ctx, "http.request", trace.SpanKindClient)
	defer span.End()

	startTime := time.Now()
	headers := c.injectTraceContext(ctx, getHeaders(target.PrivateKey))

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(payload).
		Post(target.URL)

	duration := time.Since(startTime)

	if err != nil {
		err = fmt.Errorf("HTTP request to %s failed: %w", target.URL, err)
		recordError(span, err)
		return err
	}

	recordHTTPAttributes(span, http.MethodPost, target.URL, resp.StatusCode(),
		int64(len(payload)), int64(len(resp.Body())), duration)

	if resp.IsError() {
		rwErr := &RemoteWriteError{
			URL:        target.URL,
			StatusCode: resp.StatusCode(),
			Status:     resp.Status(),
			Body:       bodyPreview(resp.Body()),
		}
		switch resp.StatusCode() {
		case http.StatusUnauthorized, http.StatusForbidden:
			logging.LogError(fmt.Sprintf(telemetry.ErrAuthenticationFailedTemplate, rwErr.StatusCode, target.URL))
		default:
			if rwErr.StatusCode < http.StatusInternalServerError {
				logging.LogError(fmt.Sprintf(telemetry.ErrRemoteWriteRejectedTemplate, rwErr.StatusCode, target.URL, rwErr.Body))
			}
		}
		recordError(span, rwErr)
		return rwErr
	}

	span.SetStatus(codes.Ok, "Request completed successfully")
	return nil
}

func bodyPreview(body []byte) string {
	preview := string(body)
	if len(preview) > bodyPreviewLimit {
		preview = preview[:bodyPreviewLimit] + "..."
	}
	return preview
}

// recordHTTPAttributes records HTTP semantic convention attributes on the span.
func recordHTTPAttributes(span trace.Span, method, url string, statusCode int, requestSize, responseSize int64, duration time.Duration) {
	span.SetAttributes(
		attribute.String(telemetry.AttrHTTPMethod, method),
		attribute.String(telemetry.AttrHTTPURL, url),
		attribute.Int(telemetry.AttrHTTPStatusCode, statusCode),
		attribute.Int64(telemetry.AttrHTTPRequestContentLength, requestSize),
		attribute.Int64(telemetry.AttrHTTPResponseContentLength, responseSize),
		attribute.Float64(telemetry.AttrHTTPDurationMS, float64(duration.Milliseconds())),
	)
}

// recordError records an error on the span and sets the span status to error.
func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String(telemetry.AttrError, err.Error()))
}

// injectTraceContext injects W3C trace context into the request headers.
// TracerWrapper ensures this is always safe to call (uses noop if tracing disabled).
func (c *RemoteWriteClient) injectTraceContext(ctx context.Context, headers map[string]string) map[string]string {
	carrier := propagation.MapCarrier(headers)
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier
}

// Close releases idle connections. Sends still in progress finish first,
// since Close waits for the write lock.
//
// Returns an error if the client is already closed.
func (c *RemoteWriteClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("client already closed")
	}
	c.closed = true
	c.client.GetClient().CloseIdleConnections()
	return nil
}
