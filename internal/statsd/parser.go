// Package statsd implements the ingest side of the backend: the StatsD line
// protocol, per-interval aggregation and the flush scheduler that hands each
// interval's snapshot to the exporter.
package statsd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MetricType is the StatsD type suffix of a sample.
type MetricType string

// Supported metric types. Histograms are recorded as timers.
const (
	TypeCounter   MetricType = "c"
	TypeGauge     MetricType = "g"
	TypeTimer     MetricType = "ms"
	TypeHistogram MetricType = "h"
	TypeSet       MetricType = "s"
)

// ErrInvalidLine is wrapped by every parse failure.
var ErrInvalidLine = errors.New("invalid statsd line")

// Metric is one parsed sample.
type Metric struct {
	Key        string
	Type       MetricType
	Value      float64
	SetMember  string  // raw value of a set sample
	SampleRate float64 // in (0, 1]
	GaugeDelta bool    // gauge value carried an explicit sign
}

// ParsePacket parses a datagram of newline-separated lines. Empty lines are
// skipped; invalid lines are reported and do not stop parsing.
func ParsePacket(packet []byte) ([]Metric, []error) {
	var metrics []Metric
	var errs []error
	for _, line := range strings.Split(string(packet), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m, err := ParseLine(line)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		metrics = append(metrics, m)
	}
	return metrics, errs
}

// ParseLine parses "key:value|type[|@rate][|#tag:v,tag]".
//
// DogStatsD tags are folded into the key as ";tag=v" so that they travel
// through the same path as Graphite-style tags.
func ParseLine(line string) (Metric, error) {
	rawKey, rest, ok := strings.Cut(line, ":")
	if !ok || rawKey == "" {
		return Metric{}, fmt.Errorf("%w: missing key or value: %q", ErrInvalidLine, line)
	}

	fields := strings.Split(rest, "|")
	if len(fields) < 2 {
		return Metric{}, fmt.Errorf("%w: missing type: %q", ErrInvalidLine, line)
	}

	m := Metric{
		Key:        sanitizeKey(rawKey),
		Type:       MetricType(fields[1]),
		SampleRate: 1,
	}
	if m.Key == "" {
		return Metric{}, fmt.Errorf("%w: empty key after sanitizing: %q", ErrInvalidLine, line)
	}

	for _, f := range fields[2:] {
		switch {
		case strings.HasPrefix(f, "@"):
			rate, err := strconv.ParseFloat(f[1:], 64)
			if err != nil || rate <= 0 || rate > 1 {
				return Metric{}, fmt.Errorf("%w: bad sample rate %q", ErrInvalidLine, f)
			}
			m.SampleRate = rate
		case strings.HasPrefix(f, "#"):
			m.Key += dogTagsToKey(f[1:])
		}
	}

	if err := validateKey(m.Key); err != nil {
		return Metric{}, fmt.Errorf("%w: %v: %q", ErrInvalidLine, err, line)
	}

	raw := fields[0]
	switch m.Type {
	case TypeSet:
		m.SetMember = raw
		return m, nil
	case TypeCounter, TypeGauge, TypeTimer, TypeHistogram:
	default:
		return Metric{}, fmt.Errorf("%w: unknown type %q", ErrInvalidLine, fields[1])
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Metric{}, fmt.Errorf("%w: bad value %q", ErrInvalidLine, raw)
	}
	m.Value = v
	if m.Type == TypeGauge && (strings.HasPrefix(raw, "+") || strings.HasPrefix(raw, "-")) {
		m.GaugeDelta = true
	}
	return m, nil
}

// sanitizeKey applies the StatsD key rules: whitespace runs become "_", "/"
// becomes "-", and anything outside [A-Za-z0-9_.;=-] is dropped.
func sanitizeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	inSpace := false
	for _, r := range key {
		switch {
		case r == ' ' || r == '\t':
			if !inSpace {
				b.WriteByte('_')
			}
			inSpace = true
			continue
		case r == '/':
			b.WriteByte('-')
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '_', r == '-', r == '.', r == ';', r == '=':
			b.WriteRune(r)
		}
		inSpace = false
	}
	return b.String()
}

// validateKey rejects keys whose tags would produce an empty label name:
// "name;" or "name;;x" (empty tag) and "name;=v" (empty tag name).
func validateKey(key string) error {
	name, tags, _ := strings.Cut(key, ";")
	if name == "" {
		return errors.New("empty metric name")
	}
	if !strings.Contains(key, ";") {
		return nil
	}
	for _, tag := range strings.Split(tags, ";") {
		if tag == "" {
			return errors.New("empty tag")
		}
		if tag[0] == '=' {
			return errors.New("empty tag name")
		}
	}
	return nil
}

// dogTagsToKey converts "a:1,b" to ";a=1;b".
func dogTagsToKey(tags string) string {
	var b strings.Builder
	for _, tag := range strings.Split(tags, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		k, v, found := strings.Cut(tag, ":")
		b.WriteString(";")
		b.WriteString(sanitizeKey(k))
		if found {
			b.WriteString("=")
			b.WriteString(sanitizeKey(v))
		}
	}
	return b.String()
}
