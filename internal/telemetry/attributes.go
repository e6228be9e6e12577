package telemetry

// HTTP semantic convention attributes
const (
	AttrHTTPMethod                = "http.method"
	AttrHTTPURL                   = "http.url"
	AttrHTTPStatusCode            = "http.status_code"
	AttrHTTPRequestContentLength  = "http.request_content_length"
	AttrHTTPResponseContentLength = "http.response_content_length"
	AttrHTTPDurationMS            = "http.duration_ms"
)

// Remote-write attributes
const (
	AttrRemoteWriteEndpoint    = "remote_write.endpoint"
	AttrRemoteWriteSeries      = "remote_write.series"
	AttrRemoteWritePayloadSize = "remote_write.payload_bytes"
)

// Flush cycle attributes
const (
	AttrFlushTimestamp         = "flush.timestamp"
	AttrFlushCounters          = "flush.counters"
	AttrFlushGauges            = "flush.gauges"
	AttrFlushSets              = "flush.sets"
	AttrFlushTimers            = "flush.timers"
	AttrFlushAccumulatorSize   = "flush.accumulator_entries"
	AttrFlushAccumulatorPruned = "flush.accumulator_pruned"
	AttrFlushStatus            = "flush.status"
)

// Error attributes
const (
	AttrError = "error"
)
