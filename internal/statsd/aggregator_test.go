package statsd

import (
	"sync"
	"testing"

	"github.com/fjacquet/statsd_coralogix/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestAggregatorSnapshot(t *testing.T) {
	agg := NewAggregator(90)
	bad := agg.AddPacket([]byte(
		"hits:1|c\nhits:1|c|@0.5\n" +
			"queue:10|g\nqueue:+5|g\nqueue:-2|g\n" +
			"latency:3|ms\nlatency:1|ms|@0.5\n" +
			"users:bob|s\nusers:alice|s\nusers:bob|s\n" +
			"oops\n"))

	assert.Equal(t, 1, bad)
	assert.Equal(t, uint64(1), agg.BadLines())
	assert.Equal(t, uint64(10), agg.Received())

	snap := agg.Snapshot()
	assert.Equal(t, 90.0, snap.PctThreshold)
	assert.Equal(t, map[string]float64{"hits": 3}, snap.Counters)
	assert.Equal(t, map[string]float64{"queue": 13}, snap.Gauges)
	assert.Equal(t, map[string][]string{"users": {"alice", "bob"}}, snap.Sets)
	assert.Equal(t, map[string][]float64{"latency": {3, 1}}, snap.Timers)
	assert.Equal(t, models.TimerData{Count: 3, Sum: 4}, snap.TimerData["latency"])
}

func TestAggregatorSnapshotResetsInterval(t *testing.T) {
	agg := NewAggregator(90)
	agg.AddPacket([]byte("hits:1|c\nqueue:7|g\nlatency:1|ms\nusers:a|s"))
	agg.Snapshot()

	snap := agg.Snapshot()
	assert.Empty(t, snap.Counters)
	assert.Empty(t, snap.Timers)
	assert.Empty(t, snap.TimerData)
	assert.Empty(t, snap.Sets)
	assert.Equal(t, map[string]float64{"queue": 7}, snap.Gauges, "gauges persist across intervals")
}

func TestAggregatorSetPercentThreshold(t *testing.T) {
	agg := NewAggregator(90)
	agg.SetPercentThreshold(95)

	assert.Equal(t, 95.0, agg.Snapshot().PctThreshold)
}

func TestAggregatorConcurrentAdd(t *testing.T) {
	agg := NewAggregator(90)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				agg.Add(Metric{Key: "hits", Type: TypeCounter, Value: 1, SampleRate: 1})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000.0, agg.Snapshot().Counters["hits"])
}

func TestAggregatorCountsMalformedTagsAsBadLines(t *testing.T) {
	agg := NewAggregator(90)

	bad := agg.AddPacket([]byte("queue;:1|g\nqueue;depth=3:2|g\nqueue:1|g|#:v"))

	assert.Equal(t, 2, bad)
	assert.Equal(t, uint64(2), agg.BadLines())
	assert.Equal(t, map[string]float64{"queue;depth=3": 2}, agg.Snapshot().Gauges)
}
