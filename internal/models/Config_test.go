package models

import (
	"os"
	"testing"
	"time"

	"github.com/fjacquet/statsd_coralogix/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	var c Config
	c.Server.Port = "9102"
	c.Coralogix.PrivateKey = testutil.TestPrivateKey
	c.Coralogix.APIHost = "https://ingress.coralogix.com" + testutil.TestPathRemoteWrite
	c.Coralogix.ApplicationName = testutil.TestApplicationName
	c.Coralogix.SubsystemName = testutil.TestSubsystemName
	return c
}

func TestConfig_SetDefaults(t *testing.T) {
	var c Config
	c.SetDefaults()

	assert.Equal(t, DefaultLogName, c.Server.LogName)
	assert.Equal(t, DefaultStatsdAddress, c.Statsd.Address)
	assert.Equal(t, DefaultFlushInterval, c.Statsd.FlushInterval)
	assert.Equal(t, float64(DefaultPercentThreshold), c.Statsd.PercentThreshold)
	assert.Equal(t, int64(DefaultTotalsAccumulatorTTLSeconds), c.Coralogix.TotalsAccumulatorTTLSeconds)
}

func TestConfig_SetDefaultsPreservesValues(t *testing.T) {
	var c Config
	c.Statsd.FlushInterval = "30s"
	c.Statsd.PercentThreshold = 95
	c.Coralogix.TotalsAccumulatorTTLSeconds = 60
	c.SetDefaults()

	assert.Equal(t, "30s", c.Statsd.FlushInterval)
	assert.Equal(t, float64(95), c.Statsd.PercentThreshold)
	assert.Equal(t, int64(60), c.Coralogix.TotalsAccumulatorTTLSeconds)
}

func TestConfig_SetDefaultsNegativeTTL(t *testing.T) {
	var c Config
	c.Coralogix.TotalsAccumulatorTTLSeconds = -5
	c.SetDefaults()

	assert.Equal(t, int64(DefaultTotalsAccumulatorTTLSeconds), c.Coralogix.TotalsAccumulatorTTLSeconds)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid configuration", mutate: func(c *Config) {}},
		{name: "no status server port", mutate: func(c *Config) { c.Server.Port = "" }},
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = "99999" }, wantErr: "invalid server port"},
		{name: "non-numeric port", mutate: func(c *Config) { c.Server.Port = "http" }, wantErr: "invalid server port"},
		{name: "bad flush interval", mutate: func(c *Config) { c.Statsd.FlushInterval = "soon" }, wantErr: "invalid flush interval"},
		{name: "negative flush interval", mutate: func(c *Config) { c.Statsd.FlushInterval = "-1s" }, wantErr: "must be positive"},
		{name: "percent threshold above 100", mutate: func(c *Config) { c.Statsd.PercentThreshold = 101 }, wantErr: "invalid percent threshold"},
		{name: "missing private key", mutate: func(c *Config) { c.Coralogix.PrivateKey = "" }, wantErr: "private key is required"},
		{name: "missing API host", mutate: func(c *Config) { c.Coralogix.APIHost = "" }, wantErr: "API host is required"},
		{name: "unsupported scheme", mutate: func(c *Config) { c.Coralogix.APIHost = "ftp://example.com/write" }, wantErr: "must be http or https"},
		{name: "API host without host", mutate: func(c *Config) { c.Coralogix.APIHost = "https:///write" }, wantErr: "missing host"},
		{name: "missing application name", mutate: func(c *Config) { c.Coralogix.ApplicationName = "" }, wantErr: "application name is required"},
		{name: "missing subsystem name", mutate: func(c *Config) { c.Coralogix.SubsystemName = "" }, wantErr: "subsystem name is required"},
		{
			name: "unordered buckets",
			mutate: func(c *Config) {
				c.Coralogix.Mappings = map[string]Mapping{
					"latency": {HistogramOptions: &HistogramOptions{Buckets: []float64{10, 5}}},
				}
			},
			wantErr: `invalid mapping "latency"`,
		},
		{
			name: "tracing without endpoint",
			mutate: func(c *Config) {
				c.OpenTelemetry.Enabled = true
			},
			wantErr: "OpenTelemetry endpoint is required",
		},
		{
			name: "tracing sampling rate out of range",
			mutate: func(c *Config) {
				c.OpenTelemetry.Enabled = true
				c.OpenTelemetry.Endpoint = testutil.TestOTELEndpoint
				c.OpenTelemetry.SamplingRate = 1.5
			},
			wantErr: "invalid OpenTelemetry sampling rate",
		},
		{
			name: "sampling rate ignored when tracing disabled",
			mutate: func(c *Config) {
				c.OpenTelemetry.SamplingRate = 7
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)

			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_GetFlushInterval(t *testing.T) {
	c := validConfig()
	c.Statsd.FlushInterval = "15s"

	d, err := c.GetFlushInterval()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, d)
}

func TestConfig_GetServerAddress(t *testing.T) {
	c := validConfig()
	c.Server.Host = "0.0.0.0"

	assert.Equal(t, "0.0.0.0:9102", c.GetServerAddress())
	assert.True(t, c.HasStatusServer())

	c.Server.Port = ""
	assert.False(t, c.HasStatusServer())
}

func TestConfig_ResolveHostname(t *testing.T) {
	c := validConfig()
	c.Hostname = testutil.TestHostname
	assert.Equal(t, testutil.TestHostname, c.ResolveHostname())

	c.Hostname = ""
	osHost, err := os.Hostname()
	require.NoError(t, err)
	assert.Equal(t, osHost, c.ResolveHostname())
}

func TestConfig_MaskPrivateKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{key: "abcd1234efgh5678", want: "abcd****5678"},
		{key: "short", want: "****"},
		{key: "12345678", want: "****"},
		{key: "", want: "****"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			var c Config
			c.Coralogix.PrivateKey = tt.key
			assert.Equal(t, tt.want, c.MaskPrivateKey())
		})
	}
}

func TestCoralogixConfig_Mapping(t *testing.T) {
	cc := CoralogixConfig{Mappings: map[string]Mapping{
		"hits": {Labels: LabelPairs{{Name: "team", Value: "core"}}},
	}}

	m, ok := cc.Mapping("hits")
	require.True(t, ok)
	assert.Equal(t, "core", m.Labels[0].Value)

	_, ok = cc.Mapping("misses")
	assert.False(t, ok)
}
