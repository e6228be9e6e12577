package exporter

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/fjacquet/statsd_coralogix/internal/models"
	"github.com/fjacquet/statsd_coralogix/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockSender is a testify mock of Sender.
type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, target Target, payload []byte) error {
	args := m.Called(ctx, target, payload)
	return args.Error(0)
}

func (m *mockSender) Close() error {
	return m.Called().Error(0)
}

// failingEncoder always fails.
type failingEncoder struct{}

func (failingEncoder) Encode([]Series) ([]byte, error) {
	return nil, errors.New("encode failed")
}

// steppingClock returns a strictly increasing sequence of times.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func TestExporterFlushSendsToRemoteWrite(t *testing.T) {
	rw := testutil.NewRemoteWriteServer().Build()
	defer rw.Close()

	exp := NewExporter(newTestSafeConfig(rw.WriteURL()), time.Unix(1000, 0))
	defer func() { _ = exp.Close() }()

	snap := models.NewSnapshot(90)
	snap.Counters["requests;code=200"] = 2
	snap.Gauges["queue"] = 7
	exp.Flush(context.Background(), testFlushTs, snap)
	exp.Wait()

	series := rw.Series()
	require.Len(t, series, 2)
	assert.Equal(t, "requests_total", testutil.LabelValue(series[0], "__name__"))
	assert.Equal(t, "200", testutil.LabelValue(series[0], "code"))
	assert.Equal(t, testApplicationName, testutil.LabelValue(series[0], "__meta_applicationname"))
	assert.Equal(t, testSubsystemName, testutil.LabelValue(series[0], "__meta_subsystem"))
	assert.Equal(t, testHostname, testutil.LabelValue(series[0], "host"))
	assert.Equal(t, testFlushTs*1000, series[0].Samples[0].Timestamp)
	assert.Equal(t, "queue", testutil.LabelValue(series[1], "__name__"))

	status := exp.ExportStatus()
	assert.Greater(t, status.LastFlush, int64(1000))
	assert.Equal(t, int64(1000), status.LastException)
	assert.True(t, exp.IsHealthy())
	assert.Equal(t, 1, exp.AccumulatorLen())
}

func TestExporterFlushEncodeFailure(t *testing.T) {
	sender := &mockSender{}
	sender.On("Close").Return(nil)

	clock := &steppingClock{now: time.Unix(2000, 0)}
	exp := NewExporter(newTestSafeConfig("http://127.0.0.1:1/write"), time.Unix(1000, 0),
		WithEncoder(failingEncoder{}), WithSender(sender), WithNow(clock.Now))

	snap := models.NewSnapshot(90)
	snap.Gauges["queue"] = 1
	exp.Flush(context.Background(), testFlushTs, snap)
	exp.Wait()

	status := exp.ExportStatus()
	assert.Equal(t, int64(1000), status.LastFlush, "last_flush must not move on failure")
	assert.Equal(t, int64(2001), status.LastException)
	assert.False(t, exp.IsHealthy())
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)

	require.NoError(t, exp.Close())
	sender.AssertExpectations(t)
}

func TestExporterFlushSendFailure(t *testing.T) {
	rw := testutil.NewRemoteWriteServer().WithStatus(http.StatusUnauthorized).Build()
	defer rw.Close()

	clock := &steppingClock{now: time.Unix(2000, 0)}
	exp := NewExporter(newTestSafeConfig(rw.WriteURL()), time.Unix(1000, 0), WithNow(clock.Now))
	defer func() { _ = exp.Close() }()

	exp.Flush(context.Background(), testFlushTs, models.NewSnapshot(90))
	exp.Wait()

	status := exp.ExportStatus()
	assert.Equal(t, int64(1000), status.LastFlush)
	assert.Equal(t, int64(2001), status.LastException)
}

func TestExporterFlushUsesSenderTarget(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, Target{URL: "http://example.invalid/write", PrivateKey: testPrivateKey}, mock.Anything).
		Return(nil).Once()

	exp := NewExporter(newTestSafeConfig("http://example.invalid/write"), time.Unix(1000, 0), WithSender(sender))

	exp.Flush(context.Background(), testFlushTs, models.NewSnapshot(90))
	exp.Wait()

	sender.AssertExpectations(t)
}

func TestExporterFlushCancelledContextStillSends(t *testing.T) {
	rw := testutil.NewRemoteWriteServer().Build()
	defer rw.Close()

	exp := NewExporter(newTestSafeConfig(rw.WriteURL()), time.Unix(1000, 0))
	defer func() { _ = exp.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exp.Flush(ctx, testFlushTs, models.NewSnapshot(90))
	exp.Wait()

	assert.Len(t, rw.Writes(), 1)
}

func TestExporterCounterTotalsAcrossFlushes(t *testing.T) {
	rw := testutil.NewRemoteWriteServer().Build()
	defer rw.Close()

	exp := NewExporter(newTestSafeConfig(rw.WriteURL()), time.Unix(1000, 0))
	defer func() { _ = exp.Close() }()

	for i, delta := range []float64{5, 3, 2} {
		snap := models.NewSnapshot(90)
		snap.Counters["requests"] = delta
		exp.Flush(context.Background(), testFlushTs+int64(i*10), snap)
	}
	exp.Wait()

	var totals []float64
	for _, s := range rw.Series() {
		totals = append(totals, s.Samples[0].Value)
	}
	assert.ElementsMatch(t, []float64{5, 8, 10}, totals)
}

func TestExporterStatusCallback(t *testing.T) {
	exp := NewExporter(newTestSafeConfig("http://127.0.0.1:1/write"), time.Unix(1234, 0), WithSender(&mockSender{}))

	assert.Equal(t, []reportedStat{
		{backend: BackendName, stat: StatLastFlush, value: 1234},
		{backend: BackendName, stat: StatLastException, value: 1234},
	}, collectStatus(exp.Status))
}

func TestExporterReloadedConfigAppliesOnNextFlush(t *testing.T) {
	first := testutil.NewRemoteWriteServer().Build()
	defer first.Close()
	second := testutil.NewRemoteWriteServer().Build()
	defer second.Close()

	safeCfg := newTestSafeConfig(first.WriteURL())
	exp := NewExporter(safeCfg, time.Unix(1000, 0))
	defer func() { _ = exp.Close() }()

	exp.Flush(context.Background(), testFlushTs, models.NewSnapshot(90))
	exp.Wait()

	path := testutil.WriteConfigFile(t, testutil.ValidConfigYAML(second.WriteURL()))
	changed, err := safeCfg.ReloadConfig(path)
	require.NoError(t, err)
	assert.True(t, changed)

	exp.Flush(context.Background(), testFlushTs+10, models.NewSnapshot(90))
	exp.Wait()

	assert.Len(t, first.Writes(), 1)
	assert.Len(t, second.Writes(), 1)
}
