package exporter

import (
	"fmt"

	"github.com/golang/snappy"
	"github.com/prometheus/prometheus/prompb"
)

// SnappyProtobufEncoder encodes series as a snappy-compressed protobuf
// prompb.WriteRequest (Prometheus remote-write 0.1.0).
type SnappyProtobufEncoder struct{}

// Encode validates the batch and returns the compressed payload. An empty
// batch encodes to a valid, empty write request.
func (SnappyProtobufEncoder) Encode(series []Series) ([]byte, error) {
	if err := ValidateSeries(series); err != nil {
		return nil, err
	}

	req := prompb.WriteRequest{Timeseries: toTimeSeries(series)}
	raw, err := req.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal write request: %w", err)
	}
	return snappy.Encode(nil, raw), nil
}

func toTimeSeries(series []Series) []prompb.TimeSeries {
	out := make([]prompb.TimeSeries, 0, len(series))
	for _, s := range series {
		ts := prompb.TimeSeries{
			Labels:  make([]prompb.Label, 0, len(s.Labels)),
			Samples: make([]prompb.Sample, 0, len(s.Samples)),
		}
		for _, l := range s.Labels {
			ts.Labels = append(ts.Labels, prompb.Label{Name: l.Name, Value: l.Value})
		}
		for _, smp := range s.Samples {
			ts.Samples = append(ts.Samples, prompb.Sample{Value: smp.Value, Timestamp: smp.TimestampMs})
		}
		out = append(out, ts)
	}
	return out
}
