package statsd

import (
	"errors"
	"fmt"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"
)

// maxPacketSize is the largest UDP payload accepted.
const maxPacketSize = 65535

// Listener reads StatsD datagrams from a UDP socket into an Aggregator.
type Listener struct {
	conn net.PacketConn
	agg  *Aggregator
	wg   sync.WaitGroup
}

// Listen binds a UDP socket on addr. Call Serve to start reading.
func Listen(addr string, agg *Aggregator) (*Listener, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return &Listener{conn: conn, agg: agg}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Serve reads datagrams on a background goroutine until Close.
func (l *Listener) Serve() {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.readLoop()
	}()
	log.Infof("Listening for StatsD metrics on udp://%s", l.Addr())
}

func (l *Listener) readLoop() {
	buf := make([]byte, maxPacketSize)
	for {
		n, from, err := l.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warnf("StatsD read error: %v", err)
			continue
		}
		if bad := l.agg.AddPacket(buf[:n]); bad > 0 {
			log.Debugf("Dropped %d invalid StatsD lines from %s", bad, from)
		}
	}
}

// Close stops reading and waits for the read loop to exit.
func (l *Listener) Close() error {
	err := l.conn.Close()
	l.wg.Wait()
	return err
}
