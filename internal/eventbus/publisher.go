package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dyluth/corkboard/internal/logging"
	"github.com/dyluth/corkboard/pkg/board"
)

// DefaultQueueSize bounds the number of events waiting to be published.
const DefaultQueueSize = 1024

const publishTimeout = 2 * time.Second

// EventPublisher sends one event to the bus. *Client implements it.
type EventPublisher interface {
	Publish(ctx context.Context, ev board.Event) error
}

// PublisherStats counts publisher outcomes since start.
type PublisherStats struct {
	Published uint64 `json:"published"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
}

// Publisher decouples board mutations from Redis round trips. Notify never
// blocks: when the queue is full the event is dropped and counted.
type Publisher struct {
	bus    EventPublisher
	logger *slog.Logger
	queue  chan board.Event

	published atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64

	closeOnce sync.Once
	closed    chan struct{}
}

// NewPublisher creates a publisher with a queue of the given size.
// A size below 1 selects DefaultQueueSize and a nil logger discards output.
func NewPublisher(bus EventPublisher, logger *slog.Logger, size int) *Publisher {
	if size < 1 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Publisher{
		bus:    bus,
		logger: logger,
		queue:  make(chan board.Event, size),
		closed: make(chan struct{}),
	}
}

// Notify enqueues ev. It is a board.Notifier.
func (p *Publisher) Notify(ev board.Event) {
	select {
	case <-p.closed:
		p.dropped.Add(1)
		return
	default:
	}

	select {
	case p.queue <- ev:
	default:
		if n := p.dropped.Add(1); n == 1 || n%1000 == 0 {
			p.logger.Warn("event queue full, dropping events", "seq", ev.Seq, "type", ev.Type, "dropped", n)
		}
	}
}

// Run publishes queued events until ctx is cancelled or Close is called,
// then flushes whatever is still queued.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-p.queue:
			p.publish(ctx, ev)
		case <-ctx.Done():
			p.drain()
			return ctx.Err()
		case <-p.closed:
			p.drain()
			return nil
		}
	}
}

// Close stops Run after it flushes the queue. Later Notify calls drop.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() { close(p.closed) })
}

// Stats returns the publisher counters.
func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{
		Published: p.published.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
	}
}

func (p *Publisher) drain() {
	for {
		select {
		case ev := <-p.queue:
			p.publish(context.Background(), ev)
		default:
			return
		}
	}
}

func (p *Publisher) publish(ctx context.Context, ev board.Event) {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.bus.Publish(pubCtx, ev); err != nil {
		p.failed.Add(1)
		p.logger.Error("failed to publish board event", "seq", ev.Seq, "type", ev.Type, "error", err)
		return
	}
	p.published.Add(1)
	p.logger.Debug("published board event", "seq", ev.Seq, "type", ev.Type)
}
