package statsd

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fjacquet/statsd_coralogix/internal/models"
	log "github.com/sirupsen/logrus"
)

// FlushFunc receives one interval. flushTs is in Unix seconds.
type FlushFunc func(ctx context.Context, flushTs int64, snap models.Snapshot)

// SnapshotSource yields the aggregated state of the interval that just ended.
type SnapshotSource interface {
	Snapshot() models.Snapshot
}

// SchedulerOption configures optional Scheduler settings.
type SchedulerOption func(*Scheduler)

// WithClock replaces the wall clock, typically with clock.NewMock() in tests.
func WithClock(c clock.Clock) SchedulerOption {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithFinalFlush controls whether Run flushes the partial interval on
// shutdown. Enabled by default.
func WithFinalFlush(enabled bool) SchedulerOption {
	return func(s *Scheduler) {
		s.finalFlush = enabled
	}
}

// Scheduler calls a FlushFunc once per interval. Flushes never overlap: the
// next tick is handled only after the previous FlushFunc returned.
type Scheduler struct {
	interval   time.Duration
	source     SnapshotSource
	flush      FlushFunc
	clock      clock.Clock
	finalFlush bool
}

// NewScheduler creates a scheduler. interval must be positive.
func NewScheduler(interval time.Duration, source SnapshotSource, flush FlushFunc, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		interval:   interval,
		source:     source,
		flush:      flush,
		clock:      clock.New(),
		finalFlush: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	log.Infof("Flushing every %s", s.interval)
	for {
		select {
		case <-ctx.Done():
			if s.finalFlush {
				log.Debug("Flushing partial interval before shutdown")
				s.flushOnce(context.WithoutCancel(ctx))
			}
			return
		case <-ticker.C:
			s.flushOnce(ctx)
		}
	}
}

func (s *Scheduler) flushOnce(ctx context.Context) {
	s.flush(ctx, s.clock.Now().Unix(), s.source.Snapshot())
}
