package progressbus

import (
	"log/slog"
	"sync"

	"go.uber.org/fx"

	"github.com/loomwork/transcribe-core/pkg/logger"
)

// Module wires ProgressBus into the fx graph.
var Module = fx.Module("progressbus",
	fx.Provide(
		fx.Annotate(
			NewBus,
			fx.As(new(ProgressBus)),
		),
	),
)

// DefaultBufferSize is the per-subscription bounded buffer size (spec §4.5).
const DefaultBufferSize = 64

// Subscription is a handle onto one job's event stream (spec §4.5).
type Subscription interface {
	// Events yields events in publish order, except for lag-induced drops
	// (signalled via a lagging marker rather than silently skipped).
	Events() <-chan Event

	// Close releases the subscription. Closing the last subscription for a
	// job removes its routing entry.
	Close()
}

// ProgressBus is the in-process pub/sub fabric for job status events (spec
// §2, §4.5).
type ProgressBus interface {
	// Subscribe opens a new Subscription for jobID.
	Subscribe(jobID int64) Subscription

	// Publish is non-blocking and fire-and-forget; it is a silent no-op for
	// jobs with no subscribers (spec §4.5).
	Publish(jobID int64, event Event)
}

type bus struct {
	mu            sync.Mutex
	subscriptions map[int64]map[*subscription]struct{}
	bufferSize    int
	log           *slog.Logger
}

// NewBus constructs a ProgressBus with the default per-subscription buffer
// size.
func NewBus(log *slog.Logger) ProgressBus {
	return &bus{
		subscriptions: make(map[int64]map[*subscription]struct{}),
		bufferSize:    DefaultBufferSize,
		log:           log.With(logger.Scope("progressbus")),
	}
}

type subscription struct {
	bus   *bus
	jobID int64
	ch    chan Event
	once  sync.Once
}

func (s *subscription) Events() <-chan Event {
	return s.ch
}

func (s *subscription) Close() {
	s.once.Do(func() {
		s.bus.unsubscribe(s)
		close(s.ch)
	})
}

func (b *bus) Subscribe(jobID int64) Subscription {
	sub := &subscription{bus: b, jobID: jobID, ch: make(chan Event, b.bufferSize)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscriptions[jobID] == nil {
		b.subscriptions[jobID] = make(map[*subscription]struct{})
	}
	b.subscriptions[jobID][sub] = struct{}{}
	return sub
}

func (b *bus) unsubscribe(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.subscriptions[sub.jobID]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.subscriptions, sub.jobID)
	}
}

// Publish delivers event to every subscriber of jobID. A full subscriber
// buffer drops its oldest queued events to make room for a lagging marker
// and then the new event, instead of blocking the publisher (spec §4.5,
// §5's backpressure rule).
func (b *bus) Publish(jobID int64, event Event) {
	b.mu.Lock()
	subs := make([]*subscription, 0, len(b.subscriptions[jobID]))
	for sub := range b.subscriptions[jobID] {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		b.deliver(sub, event)
	}
}

func (b *bus) deliver(sub *subscription, event Event) {
	select {
	case sub.ch <- event:
		return
	default:
	}

	// Buffer full: drop the oldest event, append a lagging marker, then the
	// new event, dropping further if needed. Never blocks the publisher.
	drainOldest(sub.ch)
	forceSend(sub.ch, NewLaggingEvent(sub.jobID))
	forceSend(sub.ch, event)
}

func drainOldest(ch chan Event) {
	select {
	case <-ch:
	default:
	}
}

func forceSend(ch chan Event, e Event) {
	for {
		select {
		case ch <- e:
			return
		default:
			drainOldest(ch)
		}
	}
}
