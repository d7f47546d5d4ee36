package judge

import (
	"context"
	"fmt"
	"sync"

	"github.com/mkanda/typerace/internal/domain/model"
	"github.com/mkanda/typerace/pkg/logger"
)

// Queue defines how the dispatcher receives routed events.
type Queue interface {
	Dequeue() <-chan model.KeyEvent
}

// Dispatcher drains the routed-event queue into the engine, one event at a
// time. It is deliberately a single goroutine: device readers may run in
// parallel, but judgment order — and with it the first-to-complete tie-break —
// is defined by the order events leave this queue.
type Dispatcher struct {
	queue  Queue
	engine *Engine
	log    logger.Logger

	stopOnce sync.Once
	shutdown chan struct{}
	done     chan struct{}
}

// NewDispatcher creates a dispatcher over the given queue and engine.
func NewDispatcher(queue Queue, engine *Engine) *Dispatcher {
	return &Dispatcher{
		queue:    queue,
		engine:   engine,
		log:      logger.Get().Named("dispatch"),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run consumes events until the context is canceled, Shutdown is called, or
// the queue closes.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	events := d.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.shutdown:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if _, judged := d.engine.Judge(ev); !judged {
				d.log.Debug(ctx, "event not judged",
					logger.String("device", string(ev.Device)),
				)
			}
		}
	}
}

// Shutdown stops the dispatcher and waits for the loop to exit. Safe to call
// from multiple goroutines.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.stopOnce.Do(func() { close(d.shutdown) })

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher shutdown timed out: %w", ctx.Err())
	}
}
