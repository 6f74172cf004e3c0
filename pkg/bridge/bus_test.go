package bridge

import (
	"log/slog"
	"sync"
	"testing"
	"time"
)

func newTestBus(buffer int) *Bus {
	return newBus(slog.Default(), buffer)
}

type busRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *busRecorder) record(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *busRecorder) find(tp EventType) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Type == tp {
			return ev, true
		}
	}
	return Event{}, false
}

func (r *busRecorder) count(tp EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == tp {
			n++
		}
	}
	return n
}

func (r *busRecorder) typeOrder() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func TestBusDeliversInRegistrationOrder(t *testing.T) {
	bus := newTestBus(0)
	var order []string
	bus.On(EventRequestStart, func(Event) { order = append(order, "first") })
	bus.On(EventRequestStart, func(Event) { order = append(order, "second") })
	bus.OnAny(func(Event) { order = append(order, "wildcard") })

	bus.Emit(Event{Type: EventRequestStart})

	want := []string{"first", "second", "wildcard"}
	if len(order) != len(want) {
		t.Fatalf("delivered to %d listeners, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("delivery[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestBusOnceFiresOnce(t *testing.T) {
	bus := newTestBus(0)
	fired := 0
	bus.Once(EventRequestSuccess, func(Event) { fired++ })

	bus.Emit(Event{Type: EventRequestSuccess})
	bus.Emit(Event{Type: EventRequestSuccess})

	if fired != 1 {
		t.Errorf("once listener fired %d times, want 1", fired)
	}
	if n := bus.ListenerCount(EventRequestSuccess); n != 0 {
		t.Errorf("listener count after once = %d, want 0", n)
	}
}

func TestBusOnceDisposerCancels(t *testing.T) {
	bus := newTestBus(0)
	fired := 0
	off := bus.Once(EventRequestSuccess, func(Event) { fired++ })
	off()

	bus.Emit(Event{Type: EventRequestSuccess})
	if fired != 0 {
		t.Errorf("cancelled once listener fired %d times", fired)
	}
}

func TestBusDisposerIdempotent(t *testing.T) {
	bus := newTestBus(0)
	fired := 0
	keep := 0
	off := bus.On(EventRequestStart, func(Event) { fired++ })
	bus.On(EventRequestStart, func(Event) { keep++ })

	off()
	off()
	bus.Emit(Event{Type: EventRequestStart})

	if fired != 0 {
		t.Errorf("disposed listener fired %d times", fired)
	}
	if keep != 1 {
		t.Errorf("surviving listener fired %d times, want 1", keep)
	}
}

func TestBusOnAnySeesEveryType(t *testing.T) {
	bus := newTestBus(0)
	rec := &busRecorder{}
	bus.OnAny(rec.record)

	bus.Emit(Event{Type: EventRequestStart})
	bus.Emit(Event{Type: EventStreamStart})
	bus.Emit(Event{Type: EventBackendSelected})

	for _, tp := range []EventType{EventRequestStart, EventStreamStart, EventBackendSelected} {
		if _, ok := rec.find(tp); !ok {
			t.Errorf("wildcard listener missed %s", tp)
		}
	}
}

func TestBusListenerPanicContained(t *testing.T) {
	bus := newTestBus(0)
	reached := false
	bus.On(EventRequestStart, func(Event) { panic("listener boom") })
	bus.On(EventRequestStart, func(Event) { reached = true })

	bus.Emit(Event{Type: EventRequestStart})

	if !reached {
		t.Error("panic in one listener stopped delivery to the next")
	}
}

func TestBusEmitStampsTime(t *testing.T) {
	bus := newTestBus(0)
	var got Event
	bus.On(EventRequestStart, func(ev Event) { got = ev })

	bus.Emit(Event{Type: EventRequestStart})
	if got.Time.IsZero() {
		t.Error("emitted event has zero time")
	}

	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	bus.Emit(Event{Type: EventRequestStart, Time: fixed})
	if !got.Time.Equal(fixed) {
		t.Errorf("pre-set time overwritten: %v", got.Time)
	}
}

func TestBusChanDropsWhenFull(t *testing.T) {
	bus := newTestBus(1)
	ch, stop := bus.Chan()
	defer stop()

	bus.Emit(Event{Type: EventRequestStart})
	bus.Emit(Event{Type: EventRequestSuccess})
	bus.Emit(Event{Type: EventStreamStart})

	first := <-ch
	if first.Type != EventRequestStart {
		t.Errorf("first buffered event = %s, want %s", first.Type, EventRequestStart)
	}
	select {
	case ev, ok := <-ch:
		if ok {
			t.Errorf("expected overflow to be dropped, got %s", ev.Type)
		}
	default:
	}
}

func TestBusChanStopCloses(t *testing.T) {
	bus := newTestBus(4)
	ch, stop := bus.Chan()
	stop()
	stop()

	if _, ok := <-ch; ok {
		t.Error("channel still open after stop")
	}
	if n := bus.ListenerCount(EventAny); n != 0 {
		t.Errorf("wildcard listener count after stop = %d, want 0", n)
	}
}

func TestBusCloseDropsListeners(t *testing.T) {
	bus := newTestBus(0)
	fired := 0
	bus.On(EventRequestStart, func(Event) { fired++ })

	bus.close()
	bus.Emit(Event{Type: EventRequestStart})
	if fired != 0 {
		t.Errorf("listener fired %d times after close", fired)
	}
	if off := bus.On(EventRequestStart, func(Event) { fired++ }); off == nil {
		t.Fatal("subscription on closed bus returned nil disposer")
	}
	bus.Emit(Event{Type: EventRequestStart})
	if fired != 0 {
		t.Errorf("closed bus still delivers: fired %d", fired)
	}
}
