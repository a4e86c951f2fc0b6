package pipeline

import (
	"sync"

	"ripplefx/internal/ripple"
)

// EventKind identifies a queued pointer event.
type EventKind uint8

const (
	EventMove EventKind = iota
	EventLeave
	EventRect
)

// Event is a pointer event recorded off the frame goroutine.
type Event struct {
	Kind EventKind
	X, Y float64     // device coordinates for EventMove
	Rect ripple.Rect // viewport for EventRect
}

// eventQueue collects events from any goroutine until the next frame drains it.
type eventQueue struct {
	mu      sync.Mutex
	pending []Event
	spare   []Event
}

func (q *eventQueue) push(ev Event) {
	q.mu.Lock()
	q.pending = append(q.pending, ev)
	q.mu.Unlock()
}

// drain hands the queued events to fn in arrival order. The backing slices are
// swapped so producers never block on fn.
func (q *eventQueue) drain(fn func(Event)) int {
	q.mu.Lock()
	events := q.pending
	q.pending = q.spare[:0]
	q.mu.Unlock()

	for _, ev := range events {
		fn(ev)
	}

	q.mu.Lock()
	q.spare = events[:0]
	q.mu.Unlock()
	return len(events)
}

func apply(t *ripple.Tracker, ev Event) {
	switch ev.Kind {
	case EventMove:
		t.OnMove(ev.X, ev.Y)
	case EventLeave:
		t.OnLeave()
	case EventRect:
		t.SetRect(ev.Rect)
	}
}
