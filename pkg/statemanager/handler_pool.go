package statemanager

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dukex/styxgo/pkg/handlers"
	"github.com/dukex/styxgo/pkg/models"
)

// handlerPool fans committed RunStates out to every registered handler, in
// order, on a fixed-size worker pool separate from the shard goroutines so
// handlers do not run on the hot transition path. dispatch blocks the
// calling shard once the pool's buffered queue (four slots per worker) is
// full.
// Grounded on StyxScheduler's eventWorker fixed thread pool in
// original_source.
type handlerPool struct {
	handlerList []handlers.Handler
	work        chan models.RunState
	logger      *slog.Logger
	wg          sync.WaitGroup
}

func newHandlerPool(handlerList []handlers.Handler, size int, logger *slog.Logger) *handlerPool {
	if size < 1 {
		size = 1
	}

	p := &handlerPool{
		handlerList: handlerList,
		work:        make(chan models.RunState, size*4),
		logger:      logger.With("component", "handler_pool"),
	}

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

func (p *handlerPool) dispatch(rs models.RunState) {
	p.work <- rs
}

func (p *handlerPool) worker() {
	defer p.wg.Done()

	for rs := range p.work {
		for _, h := range p.handlerList {
			p.runHandler(h, rs)
		}
	}
}

// runHandler isolates one handler's failure from the rest: a panic is
// recovered and logged, never propagated, so one bad handler never blocks
// the others or the transition it observed.
func (p *handlerPool) runHandler(h handlers.Handler, rs models.RunState) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("handler panicked", "handler", handlerName(h), "instance", rs.WorkflowInstance.String(), "panic", r)
		}
	}()

	h.TransitionInto(context.Background(), rs)
}

func (p *handlerPool) close() {
	close(p.work)
	p.wg.Wait()
}

func handlerName(h handlers.Handler) string {
	type named interface{ Name() string }
	if n, ok := h.(named); ok {
		return n.Name()
	}
	return "unknown"
}
