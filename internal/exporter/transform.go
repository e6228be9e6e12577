package exporter

import (
	"maps"
	"math"
	"slices"
	"sort"
	"strconv"

	"github.com/fjacquet/statsd_coralogix/internal/models"
	log "github.com/sirupsen/logrus"
)

const (
	suffixTotal  = "_total"
	suffixSum    = "_sum"
	suffixCount  = "_count"
	suffixBucket = "_bucket"
	infBound     = "+Inf"
)

// Transformer converts a snapshot into remote-write series. Counter totals
// survive across flushes in the accumulator.
type Transformer struct {
	accumulator *TotalsAccumulator
}

// NewTransformer returns a transformer backed by the given accumulator.
func NewTransformer(acc *TotalsAccumulator) *Transformer {
	return &Transformer{accumulator: acc}
}

// flushContext holds the per-flush values every series needs.
type flushContext struct {
	builder     LabelBuilder
	cfg         *models.CoralogixConfig
	flushTs     int64
	timestampMs int64
	ttlSeconds  int64
}

// Transform builds all series for one flush, in the order counters, gauges,
// sets, timers. Keys within a class are emitted in sorted order so that the
// payload is deterministic.
//
// Counter deltas are folded into the accumulator as a side effect. Expired
// accumulator entries are not pruned here; call Prune once the batch has been
// handed off.
func (t *Transformer) Transform(flushTs int64, snap models.Snapshot, cfg *models.CoralogixConfig, host string) []Series {
	fc := flushContext{
		builder:     NewLabelBuilder(cfg, host),
		cfg:         cfg,
		flushTs:     flushTs,
		timestampMs: flushTs * 1000,
		ttlSeconds:  cfg.TotalsAccumulatorTTLSeconds,
	}
	if fc.ttlSeconds <= 0 {
		fc.ttlSeconds = models.DefaultTotalsAccumulatorTTLSeconds
	}

	series := make([]Series, 0, snap.Len())
	series = t.appendCounters(series, fc, snap.Counters)
	series = appendGauges(series, fc, snap.Gauges)
	series = appendSets(series, fc, snap.Sets)
	series = appendTimers(series, fc, snap)
	return series
}

// Prune drops accumulator entries that expired at flushTs.
func (t *Transformer) Prune(flushTs int64) int {
	return t.accumulator.Prune(flushTs)
}

func (t *Transformer) appendCounters(series []Series, fc flushContext, counters map[string]float64) []Series {
	for _, key := range sortedKeys(counters) {
		name, tags, accKey := parseCounterKey(key)
		total := t.accumulator.Update(accKey, counters[key], fc.flushTs, fc.ttlSeconds)

		labels := fc.builder.Build(staticLabels(fc.cfg, name), fc.builder.SeriesName(name)+suffixTotal)
		series = append(series, newSeries(appendTags(labels, tags), fc.timestampMs, total))
	}
	return series
}

func appendGauges(series []Series, fc flushContext, gauges map[string]float64) []Series {
	for _, key := range sortedKeys(gauges) {
		name, tags := ParseKey(key)
		labels := fc.builder.Build(staticLabels(fc.cfg, name), fc.builder.SeriesName(name))
		series = append(series, newSeries(appendTags(labels, tags), fc.timestampMs, gauges[key]))
	}
	return series
}

// appendSets emits one series per set key with value 1; the members
// themselves are not exported.
func appendSets(series []Series, fc flushContext, sets map[string][]string) []Series {
	for _, key := range sortedKeys(sets) {
		name, tags := ParseKey(key)
		labels := fc.builder.Build(staticLabels(fc.cfg, name), fc.builder.SeriesName(name))
		series = append(series, newSeries(appendTags(labels, tags), fc.timestampMs, 1))
	}
	return series
}

func appendTimers(series []Series, fc flushContext, snap models.Snapshot) []Series {
	for _, key := range sortedKeys(snap.Timers) {
		if len(snap.Timers[key]) == 0 {
			continue
		}
		name, tags := ParseKey(key)
		values := slices.Clone(snap.Timers[key])
		slices.Sort(values)

		data, ok := snap.TimerData[key]
		if !ok {
			data = models.TimerData{Count: float64(len(values)), Sum: sum(values)}
		}
		if data.Count > 1 {
			if mean, ok := thresholdMean(values, data.Count, snap.PctThreshold); ok {
				log.Debugf("Timer %s: mean of lower %v%% is %v", key, snap.PctThreshold, mean)
			}
		}

		static := staticLabels(fc.cfg, name)
		sumLabels := fc.builder.Build(static, fc.builder.SeriesName(name+suffixSum))
		series = append(series, newSeries(appendTags(sumLabels, tags), fc.timestampMs, data.Sum))
		countLabels := fc.builder.Build(static, fc.builder.SeriesName(name+suffixCount))
		series = append(series, newSeries(appendTags(countLabels, tags), fc.timestampMs, data.Count))

		mapping, _ := fc.cfg.Mapping(name)
		if buckets := mapping.Buckets(); len(buckets) > 0 {
			series = appendBuckets(series, fc, name, static, tags, values, buckets, data.Count)
		}
	}
	return series
}

// appendBuckets emits cumulative "le" buckets followed by "+Inf" carrying
// the timer count. values must be sorted ascending.
func appendBuckets(series []Series, fc flushContext, name string, static models.LabelPairs, tags []Tag,
	values, buckets []float64, count float64) []Series {
	bucketName := fc.builder.SeriesName(name) + suffixBucket
	for _, bound := range buckets {
		labels := appendTags(fc.builder.Build(static, bucketName), tags)
		labels = append(labels, Label{Name: LabelBucketBound, Value: formatBound(bound)})
		series = append(series, newSeries(labels, fc.timestampMs, float64(countAtMost(values, bound))))
	}
	labels := appendTags(fc.builder.Build(static, bucketName), tags)
	labels = append(labels, Label{Name: LabelBucketBound, Value: infBound})
	return append(series, newSeries(labels, fc.timestampMs, count))
}

// thresholdMean returns the mean of the lowest values kept by the percentile
// threshold, or false when no value falls under it.
func thresholdMean(values []float64, count, pct float64) (float64, bool) {
	thresholdIndex := math.Round((100 - pct) / 100 * count)
	n := int(count - thresholdIndex)
	if n > len(values) {
		n = len(values)
	}
	if n <= 0 {
		return 0, false
	}
	return sum(values[:n]) / float64(n), true
}

// countAtMost returns how many of the sorted values are <= bound.
func countAtMost(values []float64, bound float64) int {
	return sort.Search(len(values), func(i int) bool { return values[i] > bound })
}

func staticLabels(cfg *models.CoralogixConfig, name string) models.LabelPairs {
	mapping, _ := cfg.Mapping(name)
	return mapping.Labels
}

func formatBound(b float64) string {
	return strconv.FormatFloat(b, 'f', -1, 64)
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
