// Package dispatcher implements the single background worker that drains
// the ring queue, serializes each record through its channel's template, and
// hands the result to the configured sink. There is exactly one consumer
// goroutine; all sink I/O happens on it, never on a producer.
package dispatcher

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/vpbank/asynclog/internal/queue"
	"github.com/vpbank/asynclog/internal/template"
)

// Sink is the delivery contract the dispatcher writes serialized lines to.
type Sink interface {
	Write(line string) error
}

// TemplateLookup resolves the template owned by a channel ID. The dispatcher
// calls this once per record, under whatever locking the caller's
// implementation requires — the dispatcher itself holds no template lock.
type TemplateLookup func(channelID string) *template.Message

// Dispatcher owns the sink and runs the drain loop on its own goroutine.
type Dispatcher struct {
	q       *queue.RingQueue
	lookup  TemplateLookup
	sink    Sink
	logger  *slog.Logger
	running *atomic.Bool

	wg   sync.WaitGroup
	done chan struct{}
}

// New constructs a Dispatcher. running is the shared shutdown flag; the
// caller clears it to begin a graceful drain.
func New(q *queue.RingQueue, lookup TemplateLookup, sink Sink, running *atomic.Bool, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		q:       q,
		lookup:  lookup,
		sink:    sink,
		running: running,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop blocks until the worker goroutine has exited. The caller must clear
// running before calling Stop, or this blocks until the queue is naturally
// drained by producers stopping on their own.
func (d *Dispatcher) Stop() {
	d.wg.Wait()
}

// Done returns a channel closed once the worker loop has exited.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// run is the single-goroutine drain loop. Every record Take returns is
// delivered; the loop exits only once Take itself reports the queue is shut
// down and empty, so a graceful drain never drops the final record.
func (d *Dispatcher) run() {
	defer d.wg.Done()
	defer close(d.done)

	for {
		rec, ok := d.q.Take(d.running)
		if !ok {
			return
		}
		d.deliver(rec)
	}
}

// deliver serializes rec through its channel's template and writes it to the
// sink, logging (never panicking) on error.
func (d *Dispatcher) deliver(rec *queue.Record) {
	msg := d.lookup(rec.ChannelID)
	if msg == nil {
		d.logger.Warn("dispatcher: no template for channel, dropping record", "channel", rec.ChannelID)
		return
	}
	line := msg.Serialize(rec)
	if err := d.sink.Write(line); err != nil {
		d.logger.Error("dispatcher: sink write failed", "error", fmt.Errorf("dispatcher: %w", err).Error())
	}
}
