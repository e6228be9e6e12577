package exporter

import (
	"errors"
	"fmt"

	"github.com/prometheus/common/model"
)

// ErrInvalidSeries marks a batch rejected before encoding.
var ErrInvalidSeries = errors.New("invalid series")

// Sample is one timestamped value.
type Sample struct {
	TimestampMs int64
	Value       float64
}

// Series is a label set with exactly one sample.
type Series struct {
	Labels  LabelSet
	Samples []Sample
}

func newSeries(labels LabelSet, timestampMs int64, value float64) Series {
	return Series{
		Labels:  labels,
		Samples: []Sample{{TimestampMs: timestampMs, Value: value}},
	}
}

// Name returns the __name__ label of the series.
func (s Series) Name() string {
	name, _ := s.Labels.Get(LabelMetricName)
	return name
}

// Value returns the value of the single sample.
func (s Series) Value() float64 {
	if len(s.Samples) == 0 {
		return 0
	}
	return s.Samples[0].Value
}

// ValidateSeries checks the structure the wire format relies on: one sample
// per series, non-empty label names and UTF-8 label names and values.
// It does not validate label name character sets.
func ValidateSeries(series []Series) error {
	for i, s := range series {
		if len(s.Samples) != 1 {
			return fmt.Errorf("%w: series %d (%s) has %d samples, want 1", ErrInvalidSeries, i, s.Name(), len(s.Samples))
		}
		for _, l := range s.Labels {
			if l.Name == "" {
				return fmt.Errorf("%w: series %d (%s) has an empty label name", ErrInvalidSeries, i, s.Name())
			}
			if !model.LabelValue(l.Name).IsValid() {
				return fmt.Errorf("%w: series %d has a label name that is not valid UTF-8: %q", ErrInvalidSeries, i, l.Name)
			}
			if !model.LabelValue(l.Value).IsValid() {
				return fmt.Errorf("%w: series %d label %s has a value that is not valid UTF-8: %q", ErrInvalidSeries, i, l.Name, l.Value)
			}
		}
	}
	return nil
}
