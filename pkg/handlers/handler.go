// Package handlers implements the ordered set of side-effecting observers
// that the state manager (C4) fans every committed RunState transition out
// to: transition logging, execution description resolution, the Docker
// runner, termination bookkeeping, downstream publishing, and monitoring.
//
// Grounded on StyxScheduler.create's outputHandlers array in original_source
// and on pkg/events's pattern of isolating side effects behind small,
// independently failing subscribers.
package handlers

import (
	"context"

	"github.com/dukex/styxgo/pkg/models"
)

// Handler observes one committed RunState transition. TransitionInto must
// never block the state manager for long, and a panic inside it must never
// propagate — handlers run inside the state manager's handler pool, and a
// single failing handler must not affect the others or the transition it
// is observing.
type Handler interface {
	TransitionInto(ctx context.Context, rs models.RunState)
}
