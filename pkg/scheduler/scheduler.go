// Package scheduler implements the scheduler tick loop (C6): periodic
// timeout enforcement over every active RunState, independent of the
// Trigger Manager (C7) and the Backfill engine (C8).
//
// Grounded on pkg/triggers/schedule/trigger.go's cron chain
// (cron.SkipIfStillRunning + cron.Recover) for the non-overlap-and-recover
// shape, adapted from a single cron schedule into a fixed-interval
// time.Ticker that must never overlap and never panic out — robfig/cron
// has no fixed-interval primitive of its own, so the ticker itself is
// stdlib while the non-overlap guard mirrors cron's chain middleware in
// spirit.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	stdlog "github.com/dukex/styxgo/pkg/log"
	"github.com/dukex/styxgo/pkg/models"
)

// ActiveStateSource is the subset of the state manager's surface the
// scheduler tick needs: a snapshot of every currently active RunState.
type ActiveStateSource interface {
	ActiveStates() []models.RunState
}

// EventEmitter is the subset of the state manager's surface needed to post
// a timeout event back into C4.
type EventEmitter interface {
	Receive(ctx context.Context, instance models.WorkflowInstance, event models.Event) error
}

// TTLFunc resolves the configured staleness TTL for a state, keyed off the
// "stale_state_ttls" configuration map, falling back to a "default" entry.
type TTLFunc func(models.State) (time.Duration, error)

// Scheduler drives the periodic stale-state scan.
type Scheduler struct {
	source  ActiveStateSource
	emitter EventEmitter
	ttlFor  TTLFunc
	now     func() time.Time
	logger  *slog.Logger

	running atomic.Bool
}

// New builds a Scheduler. ttlFor is consulted once per active RunState per
// tick, so it should be cheap (a map lookup over already-parsed durations,
// not a fresh config read).
func New(source ActiveStateSource, emitter EventEmitter, ttlFor TTLFunc) *Scheduler {
	return &Scheduler{
		source:  source,
		emitter: emitter,
		ttlFor:  ttlFor,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  stdlog.WithModule("scheduler"),
	}
}

// Run starts a ticker at interval and blocks until ctx is cancelled. Each
// tick is skipped with a warning, rather than queued, if the previous tick
// is still running — ticks must never overlap.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickGuarded(ctx)
		}
	}
}

// tickGuarded enforces the non-overlap invariant and the "exceptions never
// reach the scheduler thread" contract in one place, mirroring
// robfig/cron's cron.SkipIfStillRunning+cron.Recover chain.
func (s *Scheduler) tickGuarded(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.WarnContext(ctx, "skipping scheduler tick: previous tick still running")
		return
	}
	defer s.running.Store(false)

	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "scheduler tick panicked", "panic", r)
		}
	}()

	s.Tick(ctx, s.now())
}

// Tick scans every active RunState and emits a Timeout event for any whose
// time in its current state has exceeded that state's configured TTL.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	for _, rs := range s.source.ActiveStates() {
		ttl, err := s.ttlFor(rs.State)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to resolve stale-state ttl", "state", string(rs.State), "error", err)
			continue
		}

		if now.Sub(rs.Timestamp) < ttl {
			continue
		}

		event := models.Timeout{EventHeader: models.EventHeader{WorkflowInstance: rs.WorkflowInstance}}
		if err := s.emitter.Receive(ctx, rs.WorkflowInstance, event); err != nil {
			s.logger.ErrorContext(ctx, "failed to emit timeout event",
				"instance", rs.WorkflowInstance.String(), "error", err)
		}
	}
}
