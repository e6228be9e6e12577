package statsd

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/fjacquet/statsd_coralogix/internal/models"
)

// Aggregator accumulates parsed samples for the current flush interval.
//
// Counters, timers and sets are cleared by every Snapshot. Gauges keep their
// last value until the process restarts, matching StatsD.
//
// Thread-safety: All methods are safe for concurrent use.
type Aggregator struct {
	mu           sync.Mutex
	pctThreshold float64
	counters     map[string]float64
	gauges       map[string]float64
	sets         map[string]map[string]struct{}
	timers       map[string][]float64
	timerCounts  map[string]float64

	received atomic.Uint64
	badLines atomic.Uint64
}

// NewAggregator creates an empty aggregator.
func NewAggregator(pctThreshold float64) *Aggregator {
	a := &Aggregator{
		pctThreshold: pctThreshold,
		gauges:       make(map[string]float64),
	}
	a.resetInterval()
	return a
}

func (a *Aggregator) resetInterval() {
	a.counters = make(map[string]float64)
	a.sets = make(map[string]map[string]struct{})
	a.timers = make(map[string][]float64)
	a.timerCounts = make(map[string]float64)
}

// Add records one sample.
func (a *Aggregator) Add(m Metric) {
	a.received.Add(1)

	a.mu.Lock()
	defer a.mu.Unlock()

	switch m.Type {
	case TypeCounter:
		a.counters[m.Key] += m.Value / m.SampleRate
	case TypeGauge:
		if m.GaugeDelta {
			a.gauges[m.Key] += m.Value
		} else {
			a.gauges[m.Key] = m.Value
		}
	case TypeTimer, TypeHistogram:
		a.timers[m.Key] = append(a.timers[m.Key], m.Value)
		a.timerCounts[m.Key] += 1 / m.SampleRate
	case TypeSet:
		members, ok := a.sets[m.Key]
		if !ok {
			members = make(map[string]struct{})
			a.sets[m.Key] = members
		}
		members[m.SetMember] = struct{}{}
	}
}

// AddPacket parses a datagram and records its samples. It returns the number
// of lines that could not be parsed.
func (a *Aggregator) AddPacket(packet []byte) int {
	metrics, errs := ParsePacket(packet)
	for _, m := range metrics {
		a.Add(m)
	}
	if len(errs) > 0 {
		a.badLines.Add(uint64(len(errs)))
	}
	return len(errs)
}

// SetPercentThreshold changes the threshold reported in later snapshots.
func (a *Aggregator) SetPercentThreshold(pct float64) {
	a.mu.Lock()
	a.pctThreshold = pct
	a.mu.Unlock()
}

// Snapshot returns the interval's aggregated state and starts a new interval.
func (a *Aggregator) Snapshot() models.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := models.NewSnapshot(a.pctThreshold)
	for k, v := range a.counters {
		snap.Counters[k] = v
	}
	for k, v := range a.gauges {
		snap.Gauges[k] = v
	}
	for k, members := range a.sets {
		list := make([]string, 0, len(members))
		for m := range members {
			list = append(list, m)
		}
		slices.Sort(list)
		snap.Sets[k] = list
	}
	for k, values := range a.timers {
		var sum float64
		for _, v := range values {
			sum += v
		}
		snap.Timers[k] = values
		snap.TimerData[k] = models.TimerData{Count: a.timerCounts[k], Sum: sum}
	}

	a.resetInterval()
	return snap
}

// Received returns the number of samples recorded since startup.
func (a *Aggregator) Received() uint64 {
	return a.received.Load()
}

// BadLines returns the number of unparseable lines seen since startup.
func (a *Aggregator) BadLines() uint64 {
	return a.badLines.Load()
}
