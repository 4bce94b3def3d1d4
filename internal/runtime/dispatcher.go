package runtime

import (
	"context"
	"errors"
	"sync"

	"github.com/parley-bot/parley/internal/logging"
)

// Dispatcher fans queued messages out to a pool of workers. Messages for
// distinct events run concurrently with no ordering guarantee between them.
type Dispatcher struct {
	handler Handler
	workers int

	queue chan dispatchItem
	done  chan struct{}

	stateMu sync.Mutex
	started bool
	rootCtx context.Context
	wg      sync.WaitGroup
}

type dispatchItem struct {
	msg    *Message
	writer ResponseWriter
}

// NewDispatcher creates a dispatcher with a fixed-size queue and worker pool.
func NewDispatcher(handler Handler, queueSize, workers int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		handler: handler,
		workers: workers,
		queue:   make(chan dispatchItem, queueSize),
		done:    make(chan struct{}),
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start(ctx context.Context) error {
	if d == nil {
		return errors.New("dispatcher is required")
	}
	if d.handler == nil {
		return errors.New("handler is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.stateMu.Lock()
	if d.started {
		d.stateMu.Unlock()
		return errors.New("dispatcher already started")
	}
	d.started = true
	d.rootCtx = ctx
	d.stateMu.Unlock()

	d.wg.Add(d.workers)
	for i := 0; i < d.workers; i++ {
		go d.run(ctx)
	}
	go func() {
		d.wg.Wait()
		close(d.done)
	}()
	return nil
}

// Enqueue submits one message for processing.
func (d *Dispatcher) Enqueue(ctx context.Context, msg *Message, writer ResponseWriter) error {
	if msg == nil {
		return errors.New("message is required")
	}
	if writer == nil {
		return errors.New("response writer is required")
	}
	rootCtx, started := d.dispatchContext()
	if !started {
		return errors.New("dispatcher is not started")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-rootCtx.Done():
		return rootCtx.Err()
	case <-ctx.Done():
		return ctx.Err()
	case d.queue <- dispatchItem{msg: msg, writer: writer}:
		return nil
	}
}

// Stop discards all queued pending messages. In-flight handlers are left to
// finish on their own context.
func (d *Dispatcher) Stop() {
	for {
		select {
		case <-d.queue:
		default:
			return
		}
	}
}

// Wait blocks until every worker has exited.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	<-d.done
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-d.queue:
			if item.msg == nil || item.writer == nil {
				continue
			}
			err := d.handler.HandleMessage(ctx, item.writer, item.msg)
			if err == nil || errors.Is(err, context.Canceled) {
				continue
			}
			// Per-event errors are contained here; other events proceed.
			logging.Logger().Error("message handling failed",
				"chat_id", item.msg.ChatID,
				"err", err,
			)
		}
	}
}

func (d *Dispatcher) dispatchContext() (context.Context, bool) {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.rootCtx, d.started
}
