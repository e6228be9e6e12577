package main

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fjacquet/statsd_coralogix/internal/models"
	"github.com/fjacquet/statsd_coralogix/internal/testutil"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestServer runs a Server against a mock remote-write endpoint, without
// the status HTTP listener.
func startTestServer(t *testing.T, rw *testutil.RemoteWriteServer) (*Server, string) {
	t.Helper()
	path := testutil.WriteConfigFile(t, testutil.ValidConfigYAML(rw.WriteURL()))
	cfg, err := validateConfig(path)
	require.NoError(t, err)

	s := NewServer(cfg, path)
	require.NoError(t, s.Start())
	return s, path
}

func findFamily(t *testing.T, s *Server, name string) *dto.MetricFamily {
	t.Helper()
	families, err := s.registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric family %s not found", name)
	return nil
}

func TestValidateConfig(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := testutil.WriteConfigFile(t, testutil.ValidConfigYAML("https://example.com"+testutil.TestPathRemoteWrite))
		cfg, err := validateConfig(path)
		require.NoError(t, err)
		assert.Equal(t, testutil.TestHostname, cfg.Hostname)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := validateConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorContains(t, err, "config file not found")
	})
}

func TestSetupLogging(t *testing.T) {
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetLevel(log.InfoLevel)
	})

	var cfg models.Config
	cfg.Server.LogName = filepath.Join(t.TempDir(), testutil.TestLogName)
	cfg.Debug = true

	require.NoError(t, setupLogging(&cfg, false))
	assert.FileExists(t, cfg.Server.LogName)
	assert.Equal(t, log.DebugLevel, log.GetLevel())
}

func TestSetupLoggingInvalidPath(t *testing.T) {
	var cfg models.Config
	cfg.Server.LogName = filepath.Join(t.TempDir(), "missing", "dir.log")

	assert.ErrorContains(t, setupLogging(&cfg, false), "failed to initialize logging")
}

func TestServerForwardsStatsdToRemoteWrite(t *testing.T) {
	rw := testutil.NewRemoteWriteServer().Build()
	defer rw.Close()

	s, _ := startTestServer(t, rw)

	conn, err := net.Dial("udp", s.listener.Addr().String())
	require.NoError(t, err)
	_, err = conn.Write([]byte("hits:3|c\nload:1.5|g\nnot a metric"))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return s.aggregator.Received()+s.aggregator.BadLines() == 3
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Shutdown())

	series := rw.Series()
	require.Len(t, series, 2)
	assert.Equal(t, "hits_total", testutil.LabelValue(series[0], "__name__"))
	assert.Equal(t, float64(3), series[0].Samples[0].Value)
	assert.Equal(t, "load", testutil.LabelValue(series[1], "__name__"))
	assert.Equal(t, testutil.TestHostname, testutil.LabelValue(series[1], "host"))

	writes := rw.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, testutil.TestBearerHeader, writes[0].Header.Get(testutil.AuthorizationHeader))

	bad := findFamily(t, s, "statsd_coralogix_statsd_bad_lines_total")
	assert.Equal(t, float64(1), bad.GetMetric()[0].GetCounter().GetValue())
}

func TestServerRoutes(t *testing.T) {
	rw := testutil.NewRemoteWriteServer().Build()
	defer rw.Close()

	s, _ := startTestServer(t, rw)
	defer func() { _ = s.Shutdown() }()

	handler := s.routes()

	tests := []struct {
		path        string
		contentType string
		contains    []string
	}{
		{path: "/health", contains: []string{"OK"}},
		{path: "/status", contentType: "application/json", contains: []string{`"last_flush":`, `"healthy":true`}},
		{path: "/metrics", contains: []string{
			"statsd_coralogix_last_flush_timestamp_seconds",
			"statsd_coralogix_statsd_lines_received_total 0",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			if tt.contentType != "" {
				assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			}
			for _, want := range tt.contains {
				assert.Contains(t, rec.Body.String(), want)
			}
		})
	}
}

func TestServerStatusReflectsFailure(t *testing.T) {
	rw := testutil.NewRemoteWriteServer().WithStatus(http.StatusUnauthorized).Build()
	defer rw.Close()

	s, _ := startTestServer(t, rw)
	defer func() { _ = s.Shutdown() }()

	s.aggregator.AddPacket([]byte("hits:1|c"))
	s.exporter.Flush(t.Context(), time.Now().Unix(), s.aggregator.Snapshot())
	s.exporter.Wait()

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	var body statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, s.startup.Unix(), body.LastFlush, "last_flush keeps its startup value")
	assert.GreaterOrEqual(t, body.LastException, s.startup.Unix())
	assert.Len(t, rw.Writes(), 1)
}

func TestServerReload(t *testing.T) {
	rw := testutil.NewRemoteWriteServer().Build()
	defer rw.Close()

	s, path := startTestServer(t, rw)
	defer func() { _ = s.Shutdown() }()

	updated := testutil.ValidConfigYAML(rw.WriteURL()) + "  prefix: \"reloaded\"\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0644))

	require.NoError(t, s.reload(path))
	assert.Equal(t, "reloaded", s.cfg.Get().Coralogix.Prefix)
}

func TestServerReloadRejectsInvalidConfig(t *testing.T) {
	rw := testutil.NewRemoteWriteServer().Build()
	defer rw.Close()

	s, path := startTestServer(t, rw)
	defer func() { _ = s.Shutdown() }()

	require.NoError(t, os.WriteFile(path, []byte("coralogix: {}\n"), 0644))

	assert.Error(t, s.reload(path))
	assert.Equal(t, rw.WriteURL(), s.cfg.Get().Coralogix.APIHost)
}

func TestStartFailsOnBusyAddress(t *testing.T) {
	busy, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	path := testutil.WriteConfigFile(t, testutil.ValidConfigYAML("https://example.com"+testutil.TestPathRemoteWrite))
	cfg, err := validateConfig(path)
	require.NoError(t, err)
	cfg.Statsd.Address = busy.LocalAddr().String()

	s := NewServer(cfg, "")
	require.Error(t, s.Start())

	assert.Nil(t, s.listener)
	assert.NoError(t, s.Shutdown(), "a failed start can still be shut down")
}

func TestShutdownAfterFailedStartStopsTelemetry(t *testing.T) {
	busy, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	path := testutil.WriteConfigFile(t, testutil.ValidConfigYAML("https://example.com"+testutil.TestPathRemoteWrite))
	cfg, err := validateConfig(path)
	require.NoError(t, err)
	cfg.Statsd.Address = busy.LocalAddr().String()
	cfg.OpenTelemetry.Enabled = true
	cfg.OpenTelemetry.Endpoint = testutil.TestOTELEndpoint
	cfg.OpenTelemetry.Insecure = true
	cfg.OpenTelemetry.SamplingRate = 1

	s := NewServer(cfg, "")
	require.NotNil(t, s.telemetryManager)
	require.Error(t, s.Start())
	require.True(t, s.telemetryManager.IsEnabled())

	tp := s.telemetryManager.TracerProvider()
	_ = s.Shutdown()

	// Sampling is 1.0, so a live provider would record this span.
	_, after := tp.Tracer("test").Start(t.Context(), "after")
	defer after.End()
	assert.False(t, after.IsRecording(), "provider is shut down after a failed start")
}

func TestWaitForShutdownReturnsServerError(t *testing.T) {
	errCh := make(chan error, 1)
	errCh <- errors.New("bind failed")

	assert.EqualError(t, waitForShutdown(errCh), "bind failed")
}
