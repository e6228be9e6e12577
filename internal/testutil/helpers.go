// Package testutil provides shared test utilities and helper functions.
// This file contains fluent builders and common test helpers to reduce
// duplication across test files and improve test maintainability.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/golang/snappy"
	"github.com/prometheus/prometheus/prompb"
)

// RecordedWrite is one remote-write request received by the mock server.
type RecordedWrite struct {
	Header  http.Header
	Request prompb.WriteRequest
}

// RemoteWriteServer is a running mock remote-write endpoint.
type RemoteWriteServer struct {
	*httptest.Server

	path   string
	mu     sync.Mutex
	writes []RecordedWrite
	errs   []error
}

// RemoteWriteServerBuilder provides a fluent interface for creating mock
// remote-write servers.
//
// Example usage:
//
//	rw := testutil.NewRemoteWriteServer().
//	    WithStatus(http.StatusBadRequest).
//	    Build()
//	defer rw.Close()
type RemoteWriteServerBuilder struct {
	path    string
	status  int
	handler http.HandlerFunc
}

// NewRemoteWriteServer creates a new RemoteWriteServerBuilder answering 204 on
// TestPathRemoteWrite.
func NewRemoteWriteServer() *RemoteWriteServerBuilder {
	return &RemoteWriteServerBuilder{
		path:   TestPathRemoteWrite,
		status: http.StatusNoContent,
	}
}

// WithPath sets the path the server accepts writes on.
func (b *RemoteWriteServerBuilder) WithPath(path string) *RemoteWriteServerBuilder {
	b.path = path
	return b
}

// WithStatus sets the HTTP status returned after a write is recorded.
func (b *RemoteWriteServerBuilder) WithStatus(status int) *RemoteWriteServerBuilder {
	b.status = status
	return b
}

// WithHandler replaces the response logic. The write is still recorded first.
func (b *RemoteWriteServerBuilder) WithHandler(handler http.HandlerFunc) *RemoteWriteServerBuilder {
	b.handler = handler
	return b
}

// Build creates and starts the configured HTTP test server.
func (b *RemoteWriteServerBuilder) Build() *RemoteWriteServer {
	rw := &RemoteWriteServer{path: b.path}
	rw.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != b.path {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		rw.record(r)
		if b.handler != nil {
			b.handler(w, r)
			return
		}
		w.WriteHeader(b.status)
	}))
	return rw
}

// WriteURL returns the full remote-write URL of the server.
func (rw *RemoteWriteServer) WriteURL() string {
	return rw.Server.URL + rw.path
}

// Writes returns a copy of the recorded requests.
func (rw *RemoteWriteServer) Writes() []RecordedWrite {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	out := make([]RecordedWrite, len(rw.writes))
	copy(out, rw.writes)
	return out
}

// Series returns every time series received so far, across all requests.
func (rw *RemoteWriteServer) Series() []prompb.TimeSeries {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	var out []prompb.TimeSeries
	for _, w := range rw.writes {
		out = append(out, w.Request.Timeseries...)
	}
	return out
}

// DecodeErrors returns the payload decoding failures seen by the server.
func (rw *RemoteWriteServer) DecodeErrors() []error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return append([]error(nil), rw.errs...)
}

func (rw *RemoteWriteServer) record(r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err == nil {
		var req prompb.WriteRequest
		var raw []byte
		if raw, err = snappy.Decode(nil, body); err == nil {
			if err = req.Unmarshal(raw); err == nil {
				rw.mu.Lock()
				rw.writes = append(rw.writes, RecordedWrite{Header: r.Header.Clone(), Request: req})
				rw.mu.Unlock()
				return
			}
		}
	}
	rw.mu.Lock()
	rw.errs = append(rw.errs, err)
	rw.mu.Unlock()
}

// LabelValue returns the value of a label on a series, or "".
func LabelValue(ts prompb.TimeSeries, name string) string {
	for _, l := range ts.Labels {
		if l.Name == name {
			return l.Value
		}
	}
	return ""
}

// WriteConfigFile writes content to config.yaml in a fresh temp directory
// and returns its path.
func WriteConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file %s: %v", path, err)
	}
	return path
}

// ValidConfigYAML returns a minimal valid configuration pointing at apiHost.
func ValidConfigYAML(apiHost string) string {
	return `statsd:
  address: "127.0.0.1:0"
  flushInterval: "10s"
  percentThreshold: 90
hostname: "` + TestHostname + `"
coralogix:
  privateKey: "` + TestPrivateKey + `"
  apiHost: "` + apiHost + `"
  applicationName: "` + TestApplicationName + `"
  subsystemName: "` + TestSubsystemName + `"
`
}

// AssertContains is a helper that fails the test if the string doesn't contain the substring.
func AssertContains(t *testing.T, s, substr string, msgAndArgs ...interface{}) {
	t.Helper()
	if !strings.Contains(s, substr) {
		if len(msgAndArgs) > 0 {
			format := msgAndArgs[0].(string)
			t.Fatalf(format, msgAndArgs[1:]...)
		} else {
			t.Fatalf("String %q does not contain %q", s, substr)
		}
	}
}
