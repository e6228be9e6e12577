package exporter

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "statsd_coralogix"

// exporterMetrics are the counters updated by sends.
type exporterMetrics struct {
	sends  *prometheus.CounterVec
	series prometheus.Counter
}

func newExporterMetrics() *exporterMetrics {
	return &exporterMetrics{
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "remote_write_requests_total",
			Help:      "Remote-write requests by result",
		}, []string{"result"}),
		series: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "remote_write_series_total",
			Help:      "Series delivered to the remote-write endpoint",
		}),
	}
}

// Collector implements the Prometheus Collector interface for the
// exporter's own health. It is served on the local /metrics endpoint and is
// independent of the series pushed to Coralogix.
//
// The collector exposes:
//   - statsd_coralogix_last_flush_timestamp_seconds
//   - statsd_coralogix_last_exception_timestamp_seconds
//   - statsd_coralogix_accumulator_entries
//   - statsd_coralogix_remote_write_requests_total{result}
//   - statsd_coralogix_remote_write_series_total
type Collector struct {
	exporter           *Exporter
	lastFlush          *prometheus.Desc
	lastException      *prometheus.Desc
	accumulatorEntries *prometheus.Desc
}

// NewCollector creates a collector reading from exp.
//
// Example:
//
//	registry.MustRegister(exporter.NewCollector(exp))
func NewCollector(exp *Exporter) *Collector {
	return &Collector{
		exporter: exp,
		lastFlush: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "last_flush_timestamp_seconds"),
			"Unix time of the last successful remote write",
			nil, nil,
		),
		lastException: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "last_exception_timestamp_seconds"),
			"Unix time of the last failed remote write",
			nil, nil,
		),
		accumulatorEntries: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "accumulator_entries"),
			"Counter series whose running total is being kept",
			nil, nil,
		),
	}
}

// Describe sends the descriptors of each metric to the provided channel.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.lastFlush
	ch <- c.lastException
	ch <- c.accumulatorEntries
	c.exporter.metrics.sends.Describe(ch)
	c.exporter.metrics.series.Describe(ch)
}

// Collect reads the current status and counters. It never blocks on a send.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	status := c.exporter.ExportStatus()
	ch <- prometheus.MustNewConstMetric(c.lastFlush, prometheus.GaugeValue, float64(status.LastFlush))
	ch <- prometheus.MustNewConstMetric(c.lastException, prometheus.GaugeValue, float64(status.LastException))
	ch <- prometheus.MustNewConstMetric(c.accumulatorEntries, prometheus.GaugeValue, float64(c.exporter.AccumulatorLen()))
	c.exporter.metrics.sends.Collect(ch)
	c.exporter.metrics.series.Collect(ch)
}
