package exporter

import (
	"strings"

	"github.com/fjacquet/statsd_coralogix/internal/models"
)

// Well-known label names attached to every series.
const (
	LabelMetricName      = "__name__"
	LabelApplicationName = "__meta_applicationname"
	LabelSubsystemName   = "__meta_subsystem"
	LabelHost            = "host"
	LabelBucketBound     = "le"
)

// Label is a single name/value pair of a series.
type Label struct {
	Name  string
	Value string
}

// LabelSet is an ordered list of labels. Order is significant and duplicates
// are not removed.
type LabelSet []Label

// Get returns the value of the first label with the given name.
func (ls LabelSet) Get(name string) (string, bool) {
	for _, l := range ls {
		if l.Name == name {
			return l.Value, true
		}
	}
	return "", false
}

// LabelBuilder builds the label set of a series from the fixed metadata of
// one flush.
type LabelBuilder struct {
	ApplicationName string
	SubsystemName   string
	Host            string
	Prefix          string
}

// NewLabelBuilder returns a builder for the given Coralogix settings and host.
func NewLabelBuilder(cfg *models.CoralogixConfig, host string) LabelBuilder {
	return LabelBuilder{
		ApplicationName: cfg.ApplicationName,
		SubsystemName:   cfg.SubsystemName,
		Host:            host,
		Prefix:          cfg.Prefix,
	}
}

// Build returns __name__, application, subsystem and host labels followed by
// the static labels in configuration order. Callers append tag labels.
func (b LabelBuilder) Build(static models.LabelPairs, name string) LabelSet {
	labels := make(LabelSet, 0, 4+len(static))
	labels = append(labels,
		Label{Name: LabelMetricName, Value: name},
		Label{Name: LabelApplicationName, Value: b.ApplicationName},
		Label{Name: LabelSubsystemName, Value: b.SubsystemName},
		Label{Name: LabelHost, Value: b.Host},
	)
	for _, p := range static {
		labels = append(labels, Label{Name: p.Name, Value: p.Value})
	}
	return labels
}

// SeriesName applies the configured prefix. With a prefix, dots anywhere in
// the result become underscores; without one the key is returned untouched.
func (b LabelBuilder) SeriesName(key string) string {
	if b.Prefix == "" {
		return key
	}
	return strings.ReplaceAll(b.Prefix+"_"+key, ".", "_")
}

func appendTags(labels LabelSet, tags []Tag) LabelSet {
	for _, t := range tags {
		labels = append(labels, Label{Name: t.Key, Value: t.Value})
	}
	return labels
}
