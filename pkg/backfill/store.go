// Package backfill implements the backfill engine (C8): bounded, monotonic
// replay of historical (or, in reverse mode, not-yet-natural) partitions
// with a per-backfill concurrency cap.
//
// Grounded line-for-line in control flow on BackfillResource.java in
// original_source (validate/create/update/halt/status translate directly
// into the Engine methods of the same shape) and on pkg/persistence's
// schedulerPersistence-style injected-persistence-interface pattern.
package backfill

import (
	"context"
	"time"

	"github.com/dukex/styxgo/pkg/models"
)

// Filter narrows List's result set, mirroring getBackfills' component/
// workflow/showAll query parameters.
type Filter struct {
	Component *string
	Workflow  *string
	// ShowAll includes halted and fully-triggered backfills. When false,
	// only backfills still eligible for advancement are returned.
	ShowAll bool
}

// Store is the backfill persistence contract. Implementations must apply
// Update's fn under a transaction that holds the row for the duration, so
// concurrent updates (an advancement-loop cursor move racing an operator's
// concurrency edit) never lose a write.
type Store interface {
	Create(ctx context.Context, b models.Backfill) error
	Get(ctx context.Context, id string) (models.Backfill, error)
	List(ctx context.Context, filter Filter) ([]models.Backfill, error)

	// ListAdvanceable returns every backfill that is neither halted nor
	// fully triggered, ordered by CreatedAt ascending (FIFO tie-break).
	ListAdvanceable(ctx context.Context) ([]models.Backfill, error)

	// Update loads the backfill named id, calls fn with a pointer to it,
	// and persists the result unless fn returns an error, in which case
	// no change is made and fn's error is returned.
	Update(ctx context.Context, id string, fn func(*models.Backfill) error) (models.Backfill, error)
}

// instantsInRange enumerates every schedule-aligned instant in [start, end)
// with a hard cap to keep a single call bounded, mirroring TimeUtil's
// instantsInRange but stepping lazily via Schedule.Next rather than
// building the full closed-form list cron library also
// lacks. truncated is true if the range held more instants than maxInstants
// and the result was cut short.
const maxInstants = 100_000

func instantsInRange(start, end time.Time, schedule models.Schedule) (instants []time.Time, truncated bool) {
	for t := start; t.Before(end); t = schedule.Next(t) {
		instants = append(instants, t)
		if len(instants) >= maxInstants {
			return instants, true
		}
	}
	return instants, false
}
