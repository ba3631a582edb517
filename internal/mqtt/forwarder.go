package mqtt

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sweeney/gpio-buttons/internal/button"
)

// Forwarder is a button.Sink that hands events to a Publisher on its own
// goroutine, so a slow broker never stalls the press callback. Events that
// arrive while the queue is full are dropped and counted.
type Forwarder struct {
	pub     Publisher
	log     *zap.SugaredLogger
	queue   chan button.Event
	dropped atomic.Int64
}

// NewForwarder creates a Forwarder with a queue of the given size.
func NewForwarder(pub Publisher, log *zap.SugaredLogger, size int) *Forwarder {
	return &Forwarder{
		pub:   pub,
		log:   log,
		queue: make(chan button.Event, size),
	}
}

// Notify queues the event without blocking.
func (f *Forwarder) Notify(e button.Event) {
	select {
	case f.queue <- e:
	default:
		if f.dropped.Add(1) == 1 {
			f.log.Warnw("mqtt queue full, dropping events", "capacity", cap(f.queue))
		}
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (f *Forwarder) Dropped() int64 {
	return f.dropped.Load()
}

// Run publishes queued events until ctx is done, then publishes whatever is
// already queued and returns nil. Publish errors are logged, not returned.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		select {
		case e := <-f.queue:
			f.publish(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-f.queue:
					f.publish(e)
				default:
					return nil
				}
			}
		}
	}
}

func (f *Forwarder) publish(e button.Event) {
	if err := f.pub.Publish(e); err != nil {
		f.log.Warnw("publish error", "button", e.Button, "event", e.Type, "error", err)
	}
}
