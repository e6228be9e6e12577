package exporter

import (
	"sync"
	"time"
)

// Status names reported to the host status callback.
const (
	BackendName       = "coralogix"
	StatLastFlush     = "last_flush"
	StatLastException = "last_exception"
)

// StatusWriter receives one status value. The error argument is always nil;
// it is kept so that callbacks written for the host daemon's status protocol
// can be passed unchanged.
type StatusWriter func(err error, backend, stat string, value int64)

// StatusSnapshot is a copy of the export status, in Unix seconds.
type StatusSnapshot struct {
	LastFlush     int64 `json:"last_flush"`
	LastException int64 `json:"last_exception"`
}

// Healthy reports whether the most recent send succeeded. Both timestamps
// start at startup time, so a fresh exporter is healthy.
func (s StatusSnapshot) Healthy() bool {
	return s.LastFlush >= s.LastException
}

// ExportStatus records the outcome of sends.
//
// Thread-safety: All methods are safe for concurrent use.
type ExportStatus struct {
	mu            sync.RWMutex
	lastFlush     int64
	lastException int64
}

// NewExportStatus initialises both timestamps to startup.
func NewExportStatus(startup time.Time) *ExportStatus {
	return &ExportStatus{
		lastFlush:     startup.Unix(),
		lastException: startup.Unix(),
	}
}

// RecordSuccess sets last_flush to t.
func (s *ExportStatus) RecordSuccess(t time.Time) {
	s.mu.Lock()
	s.lastFlush = t.Unix()
	s.mu.Unlock()
}

// RecordFailure sets last_exception to t.
func (s *ExportStatus) RecordFailure(t time.Time) {
	s.mu.Lock()
	s.lastException = t.Unix()
	s.mu.Unlock()
}

// Snapshot returns a consistent copy of both timestamps.
func (s *ExportStatus) Snapshot() StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StatusSnapshot{LastFlush: s.lastFlush, LastException: s.lastException}
}

// Report invokes write once per stat, last_flush first.
func (s *ExportStatus) Report(write StatusWriter) {
	snap := s.Snapshot()
	write(nil, BackendName, StatLastFlush, snap.LastFlush)
	write(nil, BackendName, StatLastException, snap.LastException)
}
