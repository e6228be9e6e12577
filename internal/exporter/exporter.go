package exporter

import (
	"context"
	"time"

	"github.com/fjacquet/statsd_coralogix/internal/models"
	"github.com/fjacquet/statsd_coralogix/internal/telemetry"
	log "github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Send results used for the flush counter.
const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// Option configures optional Exporter settings.
type Option func(*options)

type options struct {
	tracerProvider trace.TracerProvider
	encoder        Encoder
	sender         Sender
	now            func() time.Time
}

func defaultOptions() options {
	return options{
		encoder: SnappyProtobufEncoder{},
		now:     time.Now,
	}
}

// WithTracerProvider sets the TracerProvider for the exporter and its default
// sender. If not provided, tracing operations use a noop provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithEncoder replaces the snappy/protobuf encoder.
func WithEncoder(e Encoder) Option {
	return func(o *options) {
		o.encoder = e
	}
}

// WithSender replaces the HTTP remote-write client.
func WithSender(s Sender) Option {
	return func(o *options) {
		o.sender = s
	}
}

// WithNow replaces the clock used for status timestamps.
func WithNow(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Exporter is the Coralogix backend. On every flush it converts the snapshot
// to series, hands the batch to an asynchronous send and prunes expired
// counter totals.
//
// Flush is meant to be called from a single goroutine; sends run
// concurrently with later flushes.
type Exporter struct {
	cfg         *models.SafeConfig
	accumulator *TotalsAccumulator
	transformer *Transformer
	encoder     Encoder
	sender      Sender
	status      *ExportStatus
	metrics     *exporterMetrics
	tracing     *TracerWrapper
	now         func() time.Time

	inflight conc.WaitGroup
}

// NewExporter creates the backend. Both status timestamps start at startup.
//
// Example:
//
//	exp := exporter.NewExporter(safeCfg, time.Now(), exporter.WithTracerProvider(tp))
//	defer exp.Close()
func NewExporter(cfg *models.SafeConfig, startup time.Time, opts ...Option) *Exporter {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.sender == nil {
		o.sender = NewRemoteWriteClient(WithClientTracerProvider(o.tracerProvider))
	}

	acc := NewTotalsAccumulator()
	return &Exporter{
		cfg:         cfg,
		accumulator: acc,
		transformer: NewTransformer(acc),
		encoder:     o.encoder,
		sender:      o.sender,
		status:      NewExportStatus(startup),
		metrics:     newExporterMetrics(),
		tracing:     NewTracerWrapper(o.tracerProvider, "statsd-coralogix/exporter"),
		now:         o.now,
	}
}

// Flush transforms snap, dispatches the batch without waiting for the HTTP
// response and then prunes expired accumulator entries. flushTs is in Unix
// seconds.
//
// Failures are logged and recorded in the status; Flush never returns an
// error.
func (e *Exporter) Flush(ctx context.Context, flushTs int64, snap models.Snapshot) {
	cfg := e.cfg.Get()

	ctx, span := e.tracing.StartSpan(ctx, "statsd.flush", trace.SpanKindInternal,
		attribute.Int64(telemetry.AttrFlushTimestamp, flushTs),
		attribute.Int(telemetry.AttrFlushCounters, len(snap.Counters)),
		attribute.Int(telemetry.AttrFlushGauges, len(snap.Gauges)),
		attribute.Int(telemetry.AttrFlushSets, len(snap.Sets)),
		attribute.Int(telemetry.AttrFlushTimers, len(snap.Timers)),
	)
	defer span.End()

	series := e.transformer.Transform(flushTs, snap, &cfg.Coralogix, cfg.ResolveHostname())
	target := Target{URL: cfg.Coralogix.APIHost, PrivateKey: cfg.Coralogix.PrivateKey}

	// The send outlives the flush; keep the trace but not the cancellation.
	sendCtx := context.WithoutCancel(ctx)
	e.inflight.Go(func() {
		e.send(sendCtx, target, series)
	})

	pruned := e.transformer.Prune(flushTs)
	span.SetAttributes(
		attribute.Int(telemetry.AttrRemoteWriteSeries, len(series)),
		attribute.Int(telemetry.AttrFlushAccumulatorSize, e.accumulator.Len()),
		attribute.Int(telemetry.AttrFlushAccumulatorPruned, pruned),
	)
	log.Debugf("Flush %d: %d series dispatched, %d accumulator entries pruned", flushTs, len(series), pruned)
}

// send encodes and posts one batch. It runs on its own goroutine.
func (e *Exporter) send(ctx context.Context, target Target, series []Series) {
	ctx, span := e.tracing.StartSpan(ctx, "remote_write.send", trace.SpanKindClient,
		attribute.String(telemetry.AttrRemoteWriteEndpoint, target.URL),
		attribute.Int(telemetry.AttrRemoteWriteSeries, len(series)),
	)
	defer span.End()

	payload, err := e.encoder.Encode(series)
	if err == nil {
		span.SetAttributes(attribute.Int(telemetry.AttrRemoteWritePayloadSize, len(payload)))
		err = e.sender.Send(ctx, target, payload)
	}

	if err != nil {
		e.status.RecordFailure(e.now())
		e.metrics.sends.WithLabelValues(resultFailure).Inc()
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(telemetry.AttrFlushStatus, resultFailure))
		log.Errorf("Failed to send %d series to %s: %v", len(series), target.URL, err)
		return
	}

	e.status.RecordSuccess(e.now())
	e.metrics.sends.WithLabelValues(resultSuccess).Inc()
	e.metrics.series.Add(float64(len(series)))
	span.SetStatus(codes.Ok, "")
	span.SetAttributes(attribute.String(telemetry.AttrFlushStatus, resultSuccess))
	log.Debugf("Sent %d series to %s", len(series), target.URL)
}

// Wait blocks until every dispatched send has finished.
func (e *Exporter) Wait() {
	e.inflight.Wait()
}

// Status reports last_flush and last_exception through write.
func (e *Exporter) Status(write StatusWriter) {
	e.status.Report(write)
}

// ExportStatus returns a copy of the current status.
func (e *Exporter) ExportStatus() StatusSnapshot {
	return e.status.Snapshot()
}

// AccumulatorLen returns the number of counter totals being tracked.
func (e *Exporter) AccumulatorLen() int {
	return e.accumulator.Len()
}

// Close waits for in-flight sends and releases the sender.
func (e *Exporter) Close() error {
	e.Wait()
	return e.sender.Close()
}
