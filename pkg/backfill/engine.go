package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/styxgo/pkg/eventlog"
	stdlog "github.com/dukex/styxgo/pkg/log"
	"github.com/dukex/styxgo/pkg/models"
	"github.com/dukex/styxgo/pkg/runstate"
	"github.com/dukex/styxgo/pkg/workflow"
)

// EventEmitter is the subset of the state manager's surface the backfill
// engine needs to post trigger and halt events back into C4.
type EventEmitter interface {
	Receive(ctx context.Context, instance models.WorkflowInstance, event models.Event) error
}

// CreateInput is the validated subset of BackfillInput the engine needs to
// create a Backfill, already resolved past the HTTP layer's JSON decoding.
type CreateInput struct {
	WorkflowId        models.WorkflowId
	Start             time.Time
	End               time.Time
	Concurrency       int
	Description       string
	Reverse           bool
	TriggerParameters map[string]string
	AllowFuture       bool
}

// InstanceStatus is one row of a backfill's status report.
type InstanceStatus struct {
	WorkflowInstance models.WorkflowInstance
	State            string
	StateData        models.StateData
}

// StateWaiting and StateUnknown are the two pseudo-states a backfill status
// row can report that never appear as a models.State: WAITING for a
// partition not yet triggered, UNKNOWN for one whose log left no trace.
const (
	StateWaiting = "WAITING"
	StateUnknown = "UNKNOWN"
)

// Engine drives backfill creation, advancement, status reporting, halting,
// and update. Grounded line-for-line on BackfillResource.java's methods of
// the same name.
type Engine struct {
	backfills Store
	workflows workflow.Store
	events    eventlog.Store
	emitter   EventEmitter
	now       func() time.Time
	logger    *slog.Logger

	running atomic.Bool
}

// New builds an Engine.
func New(backfills Store, workflows workflow.Store, events eventlog.Store, emitter EventEmitter) *Engine {
	return &Engine{
		backfills: backfills,
		workflows: workflows,
		events:    events,
		emitter:   emitter,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    stdlog.WithModule("backfill_engine"),
	}
}

// Create validates input against the named workflow and the active-instance
// index, then persists a new Backfill. Mirrors BackfillResource.validate +
// postBackfill.
func (e *Engine) Create(ctx context.Context, input CreateInput) (models.Backfill, error) {
	wf, err := e.workflows.Get(ctx, input.WorkflowId)
	if err != nil {
		if workflow.IsNotFound(err) {
			return models.Backfill{}, ErrWorkflowNotFound
		}
		return models.Backfill{}, fmt.Errorf("create backfill: %w", err)
	}

	if !wf.Configuration.Configured() {
		return models.Backfill{}, ErrWorkflowUnconfigured
	}

	if !input.Start.Before(input.End) {
		return models.Backfill{}, ErrInvalidRange
	}
	if !wf.Schedule.Aligned(input.Start) || !wf.Schedule.Aligned(input.End) {
		return models.Backfill{}, ErrMisaligned
	}

	now := e.now()
	if !input.AllowFuture {
		if input.Start.After(now) || wf.Schedule.Previous(input.End).After(now) {
			return models.Backfill{}, ErrFuturePartition
		}
	}

	instants, _ := instantsInRange(input.Start, input.End, wf.Schedule)

	active, err := e.events.IndexRead(ctx)
	if err != nil {
		return models.Backfill{}, fmt.Errorf("create backfill: read active index: %w", err)
	}
	for _, t := range instants {
		instance := models.WorkflowInstance{WorkflowId: input.WorkflowId, Parameter: wf.Schedule.Parameter(t)}
		if entry, ok := active[instance.String()]; ok && entry.TriggerID != "" {
			return models.Backfill{}, ErrActiveConflict
		}
	}

	nextTrigger := input.Start
	if input.Reverse && len(instants) > 0 {
		nextTrigger = instants[len(instants)-1]
	}

	b := models.Backfill{
		ID:                "backfill-" + uuid.New().String(),
		WorkflowId:        input.WorkflowId,
		Start:             input.Start,
		End:               input.End,
		Schedule:          wf.Schedule,
		Concurrency:       input.Concurrency,
		NextTrigger:       nextTrigger,
		Description:       input.Description,
		Reverse:           input.Reverse,
		AllTriggered:      false,
		Halted:            false,
		TriggerParameters: input.TriggerParameters,
		CreatedAt:         now,
	}

	if err := b.Validate(); err != nil {
		return models.Backfill{}, err
	}

	if err := e.backfills.Create(ctx, b); err != nil {
		return models.Backfill{}, fmt.Errorf("create backfill: %w", err)
	}

	return b, nil
}

// Get returns the backfill named id.
func (e *Engine) Get(ctx context.Context, id string) (models.Backfill, error) {
	return e.backfills.Get(ctx, id)
}

// List returns every backfill matching filter.
func (e *Engine) List(ctx context.Context, filter Filter) ([]models.Backfill, error) {
	return e.backfills.List(ctx, filter)
}

// Update mutates only concurrency and description, transactionally,
// mirroring updateBackfill. A nil field leaves that column unchanged.
func (e *Engine) Update(ctx context.Context, id string, concurrency *int, description *string) (models.Backfill, error) {
	return e.backfills.Update(ctx, id, func(b *models.Backfill) error {
		if concurrency != nil {
			if *concurrency < 1 {
				return models.ErrBackfillConcurrency
			}
			b.Concurrency = *concurrency
		}
		if description != nil {
			b.Description = *description
		}
		return nil
	})
}

// Halt durably sets halted=true, then best-effort submits a Halt event for
// every currently active instance of the backfill. An individual halt RPC
// failure is logged but never reverses the durable flag — mirrors
// haltBackfill + haltActiveBackfillInstances.
func (e *Engine) Halt(ctx context.Context, id string) error {
	b, err := e.backfills.Update(ctx, id, func(b *models.Backfill) error {
		b.Halted = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("halt backfill %s: %w", id, err)
	}

	active, err := e.events.IndexReadByTriggerID(ctx, id)
	if err != nil {
		return fmt.Errorf("halt backfill %s: read active instances: %w", id, err)
	}

	var failures int
	for _, entry := range active {
		event := models.Halt{EventHeader: models.EventHeader{WorkflowInstance: entry.Instance}}
		if err := e.emitter.Receive(ctx, entry.Instance, event); err != nil {
			e.logger.ErrorContext(ctx, "failed to halt active backfill instance",
				"backfill", b.ID, "instance", entry.Instance.String(), "error", err)
			failures++
		}
	}

	if failures > 0 {
		return fmt.Errorf("some active instances cannot be halted, however no new ones will be triggered (%d failures)", failures)
	}
	return nil
}

// Status reports the current state of every partition in the backfill's
// range, processed partitions first (forward) or waiting partitions first
// (reverse).
func (e *Engine) Status(ctx context.Context, id string) ([]InstanceStatus, error) {
	b, err := e.backfills.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var processedRange, waitingRange [2]time.Time
	if b.Reverse {
		processedRange = [2]time.Time{b.Schedule.Next(b.NextTrigger), b.End}
		waitingRange = [2]time.Time{b.Start, b.Schedule.Next(b.NextTrigger)}
	} else {
		processedRange = [2]time.Time{b.Start, b.NextTrigger}
		waitingRange = [2]time.Time{b.NextTrigger, b.End}
	}

	processedInstants, _ := instantsInRange(processedRange[0], processedRange[1], b.Schedule)
	waitingInstants, _ := instantsInRange(waitingRange[0], waitingRange[1], b.Schedule)

	processed := make([]InstanceStatus, 0, len(processedInstants))
	for _, t := range processedInstants {
		processed = append(processed, e.instanceStatus(ctx, b, t))
	}

	waiting := make([]InstanceStatus, 0, len(waitingInstants))
	for _, t := range waitingInstants {
		instance := models.WorkflowInstance{WorkflowId: b.WorkflowId, Parameter: b.Schedule.Parameter(t)}
		waiting = append(waiting, InstanceStatus{WorkflowInstance: instance, State: StateWaiting})
	}

	if b.Reverse {
		return append(waiting, processed...), nil
	}
	return append(processed, waiting...), nil
}

// instanceStatus resolves a single processed instant's current RunState by
// replaying its event log. The active-instance index only carries a
// counter and trigger id, not the full RunState, so a lookup there would
// still need a replay to report state+data — this collapses
// retrieveBackfillStatuses' two branches (active-index hit vs. replay
// fallback) into one, since both end up calling the same reconstruction.
func (e *Engine) instanceStatus(ctx context.Context, b models.Backfill, t time.Time) InstanceStatus {
	instance := models.WorkflowInstance{WorkflowId: b.WorkflowId, Parameter: b.Schedule.Parameter(t)}

	rs, err := eventlog.Replay(ctx, e.events, instance)
	if err != nil {
		if eventlog.IsNotFound(err) {
			return InstanceStatus{WorkflowInstance: instance, State: StateUnknown}
		}
		e.logger.ErrorContext(ctx, "failed to replay instance for backfill status",
			"backfill", b.ID, "instance", instance.String(), "error", err)
		return InstanceStatus{WorkflowInstance: instance, State: StateUnknown}
	}

	return InstanceStatus{WorkflowInstance: instance, State: string(rs.State), StateData: rs.StateData}
}

// Run starts a ticker at interval and blocks until ctx is cancelled,
// mirroring pkg/scheduler and pkg/trigger's tick loop shape.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.advanceGuarded(ctx)
		}
	}
}

func (e *Engine) advanceGuarded(ctx context.Context) {
	if !e.running.CompareAndSwap(false, true) {
		e.logger.WarnContext(ctx, "skipping backfill advance: previous advance still running")
		return
	}
	defer e.running.Store(false)

	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "backfill advance panicked", "panic", r)
		}
	}()

	e.Advance(ctx)
}

// Advance is the shared advancer: for every unhalted, not-fully-triggered
// backfill, it emits triggers until runningCount reaches concurrency or
// the cursor exhausts the range.
func (e *Engine) Advance(ctx context.Context) {
	backfills, err := e.backfills.ListAdvanceable(ctx)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to list advanceable backfills", "error", err)
		return
	}

	for _, b := range backfills {
		e.advanceOne(ctx, b)
	}
}

func (e *Engine) advanceOne(ctx context.Context, b models.Backfill) {
	active, err := e.events.IndexReadByTriggerID(ctx, b.ID)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to read active instances", "backfill", b.ID, "error", err)
		return
	}
	runningCount := len(active)

	for runningCount < b.Concurrency {
		if b.Done() {
			if _, err := e.backfills.Update(ctx, b.ID, func(b *models.Backfill) error {
				b.AllTriggered = true
				return nil
			}); err != nil {
				e.logger.ErrorContext(ctx, "failed to mark backfill fully triggered", "backfill", b.ID, "error", err)
			}
			return
		}

		instance := models.WorkflowInstance{WorkflowId: b.WorkflowId, Parameter: b.Schedule.Parameter(b.NextTrigger)}

		created := models.Created{
			EventHeader: models.EventHeader{WorkflowInstance: instance},
			CreatedAt:   e.now(),
		}
		if err := e.emitter.Receive(ctx, instance, created); err != nil {
			// An instance that already reached a terminal state rejects
			// Created as well; the TriggerExecution below is rejected the
			// same way and handled there.
			if !errors.Is(err, runstate.ErrIllegalTransition) {
				e.logger.ErrorContext(ctx, "failed to emit backfill created", "backfill", b.ID, "instance", instance.String(), "error", err)
				return
			}
		}

		event := models.TriggerExecution{
			EventHeader:       models.EventHeader{WorkflowInstance: instance},
			TriggerID:         b.ID,
			TriggerType:       "backfill",
			TriggerParameters: b.TriggerParameters,
		}

		if err := e.emitter.Receive(ctx, instance, event); err != nil {
			// The trigger emit and the cursor update below are two separate
			// stores and cannot share one transaction. If a crash lands
			// between them, the next tick replays this exact instance
			// against the unmoved cursor — and TriggerExecution is only
			// legal from NEW, so a genuine duplicate re-trigger is rejected
			// here as an illegal transition rather than silently
			// re-triggering the instance. Treat that one error as "already
			// triggered, only the cursor is behind" and fall through to
			// advance it instead of getting stuck retrying forever; any
			// other error still aborts this tick.
			if !errors.Is(err, runstate.ErrIllegalTransition) {
				e.logger.ErrorContext(ctx, "failed to emit backfill trigger", "backfill", b.ID, "instance", instance.String(), "error", err)
				return
			}
			e.logger.WarnContext(ctx, "backfill trigger already applied, catching up cursor",
				"backfill", b.ID, "instance", instance.String())
		}

		next := b.Schedule.Next(b.NextTrigger)
		if b.Reverse {
			next = b.Schedule.Previous(b.NextTrigger)
		}

		updated, err := e.backfills.Update(ctx, b.ID, func(cur *models.Backfill) error {
			cur.NextTrigger = next
			if cur.Done() {
				cur.AllTriggered = true
			}
			return nil
		})
		if err != nil {
			e.logger.ErrorContext(ctx, "failed to advance backfill cursor", "backfill", b.ID, "error", err)
			return
		}

		b = updated
		runningCount++
	}
}
