package bridge

import (
	"log/slog"
	"sync"
	"time"
)

// EventType names a bridge lifecycle event. Router events re-published
// onto the bus keep their own type strings, so subscribers see breaker
// and health transitions under the router's names.
type EventType string

const (
	// EventRequestStart fires when a request enters the bridge, after
	// metadata has been attached.
	EventRequestStart EventType = "request:start"

	// EventRequestSuccess fires when a unary request resolves.
	EventRequestSuccess EventType = "request:success"

	// EventRequestError fires when a request fails with any code other
	// than cancelled.
	EventRequestError EventType = "request:error"

	// EventRequestCancelled fires when a request fails because the caller
	// cancelled it.
	EventRequestCancelled EventType = "request:cancelled"

	// EventStreamStart fires when a streaming request opens its chunk
	// sequence.
	EventStreamStart EventType = "stream:start"

	// EventStreamChunk fires once per chunk relayed to the caller.
	EventStreamChunk EventType = "stream:chunk"

	// EventStreamComplete fires when a stream ends without a terminal
	// error chunk.
	EventStreamComplete EventType = "stream:complete"

	// EventStreamError fires when a stream ends on a terminal error chunk.
	EventStreamError EventType = "stream:error"

	// EventBackendSelected mirrors the router's selection event.
	EventBackendSelected EventType = "backend:selected"

	// EventBackendFailover mirrors the router's failover event.
	EventBackendFailover EventType = "backend:failover"

	// EventMiddlewareExecuted fires after the middleware stack ran, with
	// the executed layer names in Details.
	EventMiddlewareExecuted EventType = "middleware:executed"

	// EventAny subscribes a listener to every event.
	EventAny EventType = "*"
)

// Event is one bridge lifecycle notification.
type Event struct {
	Type      EventType
	RequestID string
	Backend   string
	Err       error
	Details   map[string]any
	Time      time.Time
}

// Listener receives bus events. Listeners run synchronously on the
// emitting goroutine and must return quickly.
type Listener func(Event)

type subscription struct {
	id   int64
	tp   EventType
	fn   Listener
	once bool
}

// Bus is the bridge's in-process event bus. Emission is synchronous, so
// per-request event order matches lifecycle order; listener panics are
// contained and logged.
type Bus struct {
	logger *slog.Logger
	buffer int

	mu     sync.Mutex
	nextID int64
	subs   map[EventType][]*subscription
	closed bool
}

func newBus(logger *slog.Logger, buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &Bus{
		logger: logger,
		buffer: buffer,
		subs:   make(map[EventType][]*subscription),
	}
}

// On registers fn for events of the given type. The returned disposer
// removes the listener and is safe to call more than once.
func (b *Bus) On(tp EventType, fn Listener) (off func()) {
	return b.subscribe(tp, fn, false)
}

// Once registers fn for a single event of the given type. The listener
// removes itself after the first delivery; the disposer cancels it
// beforehand.
func (b *Bus) Once(tp EventType, fn Listener) (off func()) {
	return b.subscribe(tp, fn, true)
}

// OnAny registers fn for every event on the bus.
func (b *Bus) OnAny(fn Listener) (off func()) {
	return b.subscribe(EventAny, fn, false)
}

func (b *Bus) subscribe(tp EventType, fn Listener, once bool) func() {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	b.nextID++
	sub := &subscription{id: b.nextID, tp: tp, fn: fn, once: once}
	b.subs[tp] = append(b.subs[tp], sub)

	id := sub.id
	return func() { b.remove(tp, id) }
}

func (b *Bus) remove(tp EventType, id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[tp]
	for i, sub := range list {
		if sub.id == id {
			b.subs[tp] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Chan subscribes a buffered channel to every event. Events are dropped
// rather than block when the consumer falls behind. The returned function
// unsubscribes and closes the channel.
func (b *Bus) Chan() (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)
	var dropped int
	off := b.OnAny(func(ev Event) {
		select {
		case ch <- ev:
		default:
			dropped++
			if dropped == 1 || dropped%100 == 0 {
				b.logger.Debug("event channel full, dropping", "dropped", dropped)
			}
		}
	})

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			off()
			close(ch)
		})
	}
}

// Emit delivers ev synchronously to the type's listeners and then the
// wildcard listeners, in registration order. A zero Time is stamped with
// the current time.
func (b *Bus) Emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	targets := make([]*subscription, 0, len(b.subs[ev.Type])+len(b.subs[EventAny]))
	targets = append(targets, b.subs[ev.Type]...)
	if ev.Type != EventAny {
		targets = append(targets, b.subs[EventAny]...)
	}
	for _, sub := range targets {
		if sub.once {
			b.dropLocked(sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range targets {
		b.deliver(sub.fn, ev)
	}
}

func (b *Bus) dropLocked(sub *subscription) {
	list := b.subs[sub.tp]
	for i, s := range list {
		if s.id == sub.id {
			b.subs[sub.tp] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func (b *Bus) deliver(fn Listener, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("event listener panicked",
				"event", string(ev.Type),
				"request_id", ev.RequestID,
				"panic", rec,
			)
		}
	}()
	fn(ev)
}

// ListenerCount reports the number of listeners registered for the given
// type, the wildcard included when counting EventAny.
func (b *Bus) ListenerCount(tp EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[tp])
}

// close drops every listener and rejects further subscriptions.
func (b *Bus) close() {
	b.mu.Lock()
	b.subs = make(map[EventType][]*subscription)
	b.closed = true
	b.mu.Unlock()
}
