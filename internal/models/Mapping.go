package models

import (
	"fmt"

	"gopkg.in/yaml.v2"
)

// Mapping is the per-metric-name configuration: extra static labels and
// optional histogram buckets for timers.
type Mapping struct {
	Labels           LabelPairs        `yaml:"labels"`
	HistogramOptions *HistogramOptions `yaml:"histogram_options"`
}

// HistogramOptions configures cumulative bucket emission for timers.
type HistogramOptions struct {
	Buckets []float64 `yaml:"buckets"`
}

// LabelPair is a single static label.
type LabelPair struct {
	Name  string
	Value string
}

// LabelPairs keeps static labels in the order they appear in the YAML file.
type LabelPairs []LabelPair

// UnmarshalYAML decodes a YAML mapping while preserving key order.
func (p *LabelPairs) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var items yaml.MapSlice
	if err := unmarshal(&items); err != nil {
		return err
	}

	pairs := make(LabelPairs, 0, len(items))
	for _, item := range items {
		pairs = append(pairs, LabelPair{
			Name:  fmt.Sprint(item.Key),
			Value: fmt.Sprint(item.Value),
		})
	}
	*p = pairs
	return nil
}

// Buckets returns the configured histogram boundaries, or nil.
func (m Mapping) Buckets() []float64 {
	if m.HistogramOptions == nil {
		return nil
	}
	return m.HistogramOptions.Buckets
}

// Validate checks that bucket boundaries are strictly ascending.
func (m Mapping) Validate() error {
	buckets := m.Buckets()
	for i := 1; i < len(buckets); i++ {
		if buckets[i] <= buckets[i-1] {
			return fmt.Errorf("histogram buckets must be strictly ascending, got %v after %v", buckets[i], buckets[i-1])
		}
	}
	return nil
}
