package models

// TimerData holds the precomputed statistics of one timer for an interval.
// Count is adjusted for sample rates, so it can differ from the number of
// recorded values.
type TimerData struct {
	Count float64
	Sum   float64
}

// Snapshot is the aggregated state of one flush interval.
//
// Keys are composite metric keys ("name;tag=value;bare"). Counters carry the
// interval delta, not a running total.
type Snapshot struct {
	Counters     map[string]float64
	Gauges       map[string]float64
	Sets         map[string][]string
	Timers       map[string][]float64
	TimerData    map[string]TimerData
	PctThreshold float64
}

// NewSnapshot returns an empty snapshot with all maps allocated.
func NewSnapshot(pctThreshold float64) Snapshot {
	return Snapshot{
		Counters:     make(map[string]float64),
		Gauges:       make(map[string]float64),
		Sets:         make(map[string][]string),
		Timers:       make(map[string][]float64),
		TimerData:    make(map[string]TimerData),
		PctThreshold: pctThreshold,
	}
}

// Len returns the number of distinct keys across all metric classes.
func (s Snapshot) Len() int {
	return len(s.Counters) + len(s.Gauges) + len(s.Sets) + len(s.Timers)
}
