// Package trigger implements the Trigger Manager (C7): the natural-trigger
// emission loop that scans every enabled workflow's schedule and fires a
// TriggerExecution once its next aligned partition becomes due.
//
// Grounded on pkg/triggers/schedule/trigger.go's cron chain for the tick
// shape (mirrored directly from pkg/scheduler's tickGuarded, which itself
// carries that grounding), and on Styx's WorkflowCache/InMemWorkflowCache
// for the in-memory workflow cache this package warms at startup.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	stdlog "github.com/dukex/styxgo/pkg/log"
	"github.com/dukex/styxgo/pkg/models"
	"github.com/dukex/styxgo/pkg/runstate"
	"github.com/dukex/styxgo/pkg/workflow"
)

// EventEmitter is the subset of the state manager's surface the trigger
// manager needs to post a TriggerExecution back into C4.
type EventEmitter interface {
	Receive(ctx context.Context, instance models.WorkflowInstance, event models.Event) error
}

// maxCatchUpPerTick bounds how many overdue partitions a single workflow
// advances through in one tick, so a long-stopped process catches up
// gradually rather than flooding the state manager on its first tick back.
const maxCatchUpPerTick = 100

// Manager drives the periodic natural-trigger scan.
type Manager struct {
	workflows workflow.Store
	emitter   EventEmitter
	now       func() time.Time
	logger    *slog.Logger

	mu    sync.RWMutex
	cache map[models.WorkflowId]models.Workflow

	running atomic.Bool
}

// New builds a Manager. Call WarmUp before the first tick so the cache
// isn't scanned empty.
func New(workflows workflow.Store, emitter EventEmitter) *Manager {
	return &Manager{
		workflows: workflows,
		emitter:   emitter,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    stdlog.WithModule("trigger_manager"),
		cache:     make(map[models.WorkflowId]models.Workflow),
	}
}

// WarmUp loads every workflow definition into the in-memory cache and
// seeds any workflow that has never had a natural-trigger cursor before.
// Called once at startup, before Run.
func (m *Manager) WarmUp(ctx context.Context) error {
	workflows, err := m.workflows.List(ctx)
	if err != nil {
		return fmt.Errorf("warm up trigger manager cache: %w", err)
	}

	m.mu.Lock()
	for _, wf := range workflows {
		m.cache[wf.ID] = wf
	}
	m.mu.Unlock()

	for _, wf := range workflows {
		if !wf.Enabled {
			continue
		}
		if err := m.seedCursor(ctx, wf); err != nil {
			m.logger.ErrorContext(ctx, "failed to seed trigger cursor", "workflow", wf.ID.String(), "error", err)
		}
	}

	m.logger.InfoContext(ctx, "trigger manager cache warmed", "workflows", len(workflows))
	return nil
}

// Put refreshes the cached definition for wf, re-seeding its cursor if it
// has never been triggered (e.g. a newly created or re-enabled workflow).
func (m *Manager) Put(ctx context.Context, wf models.Workflow) error {
	m.mu.Lock()
	m.cache[wf.ID] = wf
	m.mu.Unlock()

	if !wf.Enabled {
		return nil
	}
	return m.seedCursor(ctx, wf)
}

// Remove evicts id from the cache, e.g. after a workflow is deleted.
func (m *Manager) Remove(id models.WorkflowId) {
	m.mu.Lock()
	delete(m.cache, id)
	m.mu.Unlock()
}

func (m *Manager) seedCursor(ctx context.Context, wf models.Workflow) error {
	_, ok, err := m.workflows.NextTrigger(ctx, wf.ID)
	if err != nil {
		return fmt.Errorf("read trigger cursor for %s: %w", wf.ID, err)
	}
	if ok {
		return nil
	}
	return m.workflows.SeedNextTrigger(ctx, wf.ID, wf.Schedule.FirstAlignedAtOrAfter(m.now()))
}

// Run starts a ticker at interval and blocks until ctx is cancelled. Ticks
// never overlap, mirroring pkg/scheduler's tickGuarded.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tickGuarded(ctx)
		}
	}
}

func (m *Manager) tickGuarded(ctx context.Context) {
	if !m.running.CompareAndSwap(false, true) {
		m.logger.WarnContext(ctx, "skipping trigger manager tick: previous tick still running")
		return
	}
	defer m.running.Store(false)

	defer func() {
		if r := recover(); r != nil {
			m.logger.ErrorContext(ctx, "trigger manager tick panicked", "panic", r)
		}
	}()

	m.Tick(ctx, m.now())
}

// Tick scans every enabled cached workflow and fires a TriggerExecution for
// every partition whose cursor is at or before now, advancing the cursor
// one partition at a time so a conflicting writer (another process sharing
// the same workflow store) is detected and backed off from immediately.
func (m *Manager) Tick(ctx context.Context, now time.Time) {
	for _, wf := range m.snapshot() {
		if !wf.Enabled {
			continue
		}
		m.advance(ctx, wf, now)
	}
}

func (m *Manager) advance(ctx context.Context, wf models.Workflow, now time.Time) {
	for i := 0; i < maxCatchUpPerTick; i++ {
		cursor, ok, err := m.workflows.NextTrigger(ctx, wf.ID)
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to read trigger cursor", "workflow", wf.ID.String(), "error", err)
			return
		}
		if !ok {
			if err := m.seedCursor(ctx, wf); err != nil {
				m.logger.ErrorContext(ctx, "failed to seed trigger cursor", "workflow", wf.ID.String(), "error", err)
			}
			return
		}
		if cursor.After(now) {
			return
		}

		next := wf.Schedule.Next(cursor)
		triggerID := "natural-" + uuid.New().String()
		instance := models.WorkflowInstance{WorkflowId: wf.ID, Parameter: wf.Schedule.Parameter(cursor)}

		created := models.Created{
			EventHeader: models.EventHeader{WorkflowInstance: instance},
			CreatedAt:   now,
		}
		if err := m.emitter.Receive(ctx, instance, created); err != nil {
			// An instance that already reached a terminal state rejects
			// Created as well; the TriggerExecution below is rejected the
			// same way and handled there.
			if !errors.Is(err, runstate.ErrIllegalTransition) {
				m.logger.ErrorContext(ctx, "failed to emit created", "instance", instance.String(), "error", err)
				return
			}
		}

		event := models.TriggerExecution{
			EventHeader: models.EventHeader{WorkflowInstance: instance},
			TriggerID:   triggerID,
			TriggerType: "natural",
		}

		if err := m.emitter.Receive(ctx, instance, event); err != nil {
			// Same non-transactional gap pkg/backfill/engine.go documents:
			// the trigger emit and AdvanceNextTrigger below are different
			// stores. A crash between them replays this instance against
			// the unmoved cursor next tick, and TriggerExecution is only
			// legal from NEW, so the replay is rejected as an illegal
			// transition instead of actually duplicating the trigger — fall
			// through to advance the cursor rather than retry forever.
			if !errors.Is(err, runstate.ErrIllegalTransition) {
				m.logger.ErrorContext(ctx, "failed to emit natural trigger", "instance", instance.String(), "error", err)
				return
			}
			m.logger.WarnContext(ctx, "natural trigger already applied, catching up cursor", "instance", instance.String())
		}

		if err := m.workflows.AdvanceNextTrigger(ctx, wf.ID, cursor, next); err != nil {
			if workflow.IsCursorConflict(err) {
				m.logger.WarnContext(ctx, "trigger cursor advanced by another writer, backing off", "workflow", wf.ID.String())
				return
			}
			m.logger.ErrorContext(ctx, "failed to advance trigger cursor", "workflow", wf.ID.String(), "error", err)
			return
		}
	}

	m.logger.WarnContext(ctx, "hit catch-up cap, more overdue partitions remain", "workflow", wf.ID.String(), "cap", maxCatchUpPerTick)
}

func (m *Manager) snapshot() []models.Workflow {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Workflow, 0, len(m.cache))
	for _, wf := range m.cache {
		out = append(out, wf)
	}
	return out
}
