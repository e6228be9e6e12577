// Package exporter provides interfaces for the remote-write transport and
// payload encoding. These interfaces enable better testability and allow for
// mock implementations in unit tests without a reachable Coralogix endpoint.
package exporter

import (
	"context"
)

// Target identifies a remote-write endpoint and its credentials.
type Target struct {
	URL        string
	PrivateKey string
}

// Sender delivers an encoded remote-write payload.
//
// The primary implementation is RemoteWriteClient, which uses Resty for HTTP
// communication.
type Sender interface {
	// Send posts payload to target. It makes exactly one attempt and returns
	// an error for transport failures and non-2xx responses.
	Send(ctx context.Context, target Target, payload []byte) error

	// Close releases resources associated with the sender, including idle
	// connections in the connection pool.
	Close() error
}

// Encoder turns a batch of series into a remote-write request body.
type Encoder interface {
	Encode(series []Series) ([]byte, error)
}
