package ratelimit

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	stdlog "github.com/dukex/styxgo/pkg/log"
)

// Refresher is the runtime-config refresh ticker: it rereads RateStore and
// calls Limiter.SetRate on the interval configured by
// RuntimeConfigTickInterval. Same non-overlapping tick-guard shape as
// pkg/scheduler and pkg/trigger.
type Refresher struct {
	store   RateStore
	limiter Limiter
	logger  *slog.Logger

	running atomic.Bool
}

// NewRefresher builds a Refresher.
func NewRefresher(store RateStore, limiter Limiter) *Refresher {
	return &Refresher{
		store:   store,
		limiter: limiter,
		logger:  stdlog.WithModule("ratelimit_refresher"),
	}
}

// Run starts a ticker at interval and blocks until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tickGuarded(ctx)
		}
	}
}

func (r *Refresher) tickGuarded(ctx context.Context) {
	if !r.running.CompareAndSwap(false, true) {
		return
	}
	defer r.running.Store(false)

	defer func() {
		if p := recover(); p != nil {
			r.logger.ErrorContext(ctx, "rate refresh panicked", "panic", p)
		}
	}()

	rate, err := r.store.Rate(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to read submission rate", "error", err)
		return
	}

	r.limiter.SetRate(rate)
}
