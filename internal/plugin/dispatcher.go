package plugin

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ayusman/signpost/internal/logger"
)

// DefaultQueueSize is the number of pending hook requests before new ones
// are dropped.
const DefaultQueueSize = 16

// Dispatcher runs hooks on one background worker so the frame loop never
// waits for actuation. Requests are handled in order.
type Dispatcher struct {
	manager  *Manager
	executor *Executor

	queue   chan Request
	dropped atomic.Int64
	done    atomic.Int64

	startOnce sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with room for size pending requests.
func NewDispatcher(manager *Manager, executor *Executor, size int) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Dispatcher{
		manager:  manager,
		executor: executor,
		queue:    make(chan Request, size),
	}
}

// Start launches the worker. It stops when ctx ends or Close is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		d.wg.Add(1)
		go d.run(ctx)
	})
}

// Dispatch queues req without blocking. It reports false when the queue is
// full and the request was dropped.
func (d *Dispatcher) Dispatch(req Request) bool {
	select {
	case d.queue <- req:
		return true
	default:
		d.dropped.Add(1)
		logger.Named("plugin").Warnw("Hook queue full, dropping request", "action", req.Action, "event", req.Event)
		return false
	}
}

// Dropped returns the number of requests dropped because the queue was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Handled returns the number of requests the worker has finished.
func (d *Dispatcher) Handled() int64 {
	return d.done.Load()
}

// Close stops accepting requests, drains the queue and waits for the
// worker. Dispatch must not be called after Close.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-d.queue:
			if !ok {
				return
			}
			d.handle(ctx, req)
			d.done.Add(1)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, req Request) {
	log := logger.Named("plugin")

	for _, p := range d.manager.ForAction(req.Action) {
		r := req
		if r.Config == nil {
			r.Config = p.Manifest.Config
		}

		resp, err := d.executor.Execute(ctx, p, &r)
		if err != nil {
			log.Warnw("Hook failed", "plugin", p.Manifest.Name, "action", req.Action, "error", err)
			continue
		}
		if !resp.Success {
			log.Warnw("Hook reported failure", "plugin", p.Manifest.Name, "action", req.Action, "error", resp.Error)
			continue
		}
		log.Debugw("Hook ran", "plugin", p.Manifest.Name, "action", req.Action)
	}
}
