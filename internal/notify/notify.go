// Package notify delivers dashboard and sync events to in-process
// subscribers and, optionally, to external message sinks.
package notify

import (
	"context"
	"slices"
	"sync"
	"time"

	"budgetbuddy/internal/log"
	"budgetbuddy/internal/metrics"
)

type Kind string

const (
	KindSummaryChanged Kind = "summary.changed"
	KindSyncState      Kind = "sync.state"
	KindMutationQueued Kind = "mutation.queued"
)

// Event is what subscribers and sinks receive.
type Event struct {
	Kind       Kind      `json:"kind"`
	UserID     string    `json:"userId,omitempty"`
	State      string    `json:"state,omitempty"`
	MutationID string    `json:"mutationId,omitempty"`
	Pending    int       `json:"pending,omitempty"`
	At         time.Time `json:"at"`
}

// Sink forwards events outside the process.
type Sink interface {
	Name() string
	Publish(ctx context.Context, e Event) error
}

type subscriber struct {
	id int
	fn func(Event)
}

// Broadcaster fans events out. Subscribers run synchronously on the
// publishing goroutine and must not block.
type Broadcaster struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscriber // subscription order
	sinks  []Sink

	logger  *log.Logger
	metrics *metrics.Metrics
}

func NewBroadcaster(logger *log.Logger, m *metrics.Metrics, sinks ...Sink) *Broadcaster {
	if logger == nil {
		logger = log.Default(log.ComponentNotify)
	}
	return &Broadcaster{
		sinks:   sinks,
		logger:  logger,
		metrics: m,
	}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Broadcaster) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.subs = slices.DeleteFunc(b.subs, func(s subscriber) bool { return s.id == id })
			b.mu.Unlock()
		})
	}
}

// AddSink attaches an external sink.
func (b *Broadcaster) AddSink(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

// Subscribers returns the number of active subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers e to every subscriber in subscription order, then to every
// sink. Sink errors are
// logged and dropped. A nil Broadcaster discards events.
func (b *Broadcaster) Publish(ctx context.Context, e Event) {
	if b == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	subs := make([]func(Event), 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s.fn)
	}
	sinks := append([]Sink(nil), b.sinks...)
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(e)
	}

	for _, s := range sinks {
		err := s.Publish(ctx, e)
		b.metrics.SinkPublish(s.Name(), err == nil)
		if err != nil {
			b.logger.WarnContext(ctx, "Event sink publish failed",
				"sink", s.Name(),
				log.FieldEventKind, e.Kind,
				log.FieldError, err)
		}
	}
}

// Channel subscribes with a buffered channel. Events are dropped when the
// buffer is full. The returned function unsubscribes; the channel is never
// closed.
func (b *Broadcaster) Channel(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	unsubscribe := b.Subscribe(func(e Event) {
		select {
		case ch <- e:
		default:
		}
	})
	return ch, unsubscribe
}
