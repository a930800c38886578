// ABOUTME: Typed clip events and listener registry
// ABOUTME: Delivers payloads in registration order with once and cancel support
package clip

import (
	"fmt"
	"sync"
)

// Event names a clip notification
type Event int

const (
	EventLoadProgress Event = iota
	EventCanPlayThrough
	EventLoad
	EventPlay
	EventPause
	EventEnded
	EventProgress
	EventLoadError
	EventPlaybackError
	EventDispose
)

var eventNames = [...]string{
	EventLoadProgress:   "loadprogress",
	EventCanPlayThrough: "canplaythrough",
	EventLoad:           "load",
	EventPlay:           "play",
	EventPause:          "pause",
	EventEnded:          "ended",
	EventProgress:       "progress",
	EventLoadError:      "loaderror",
	EventPlaybackError:  "playbackerror",
	EventDispose:        "dispose",
}

func (e Event) String() string {
	if e < 0 || int(e) >= len(eventNames) {
		return fmt.Sprintf("Event(%d)", int(e))
	}
	return eventNames[e]
}

// Events lists every event in declaration order
func Events() []Event {
	out := make([]Event, len(eventNames))
	for i := range out {
		out[i] = Event(i)
	}
	return out
}

// Payload is the value delivered with an event
type Payload interface {
	Event() Event
}

// LoadProgress accompanies EventLoadProgress
type LoadProgress struct {
	Fraction float64
	Loaded   int64
	Total    int64
}

func (LoadProgress) Event() Event { return EventLoadProgress }

// Progress accompanies EventProgress
type Progress struct {
	CurrentTime float64
	// Drift is the estimated output clock rate error relative to wall time
	Drift float64
}

func (Progress) Event() Event { return EventProgress }

// Failure accompanies EventLoadError and EventPlaybackError
type Failure struct {
	Kind Event
	Err  *Error
}

func (f Failure) Event() Event { return f.Kind }

// Signal accompanies events that carry no data
type Signal struct {
	Kind Event
}

func (s Signal) Event() Event { return s.Kind }

// Listener receives event payloads
type Listener func(p Payload)

// Subscription cancels a registered listener
type Subscription struct {
	cancel func()
}

// Cancel removes the listener. Cancelling twice is harmless.
func (s *Subscription) Cancel() {
	if s != nil && s.cancel != nil {
		s.cancel()
	}
}

type entry struct {
	id   uint64
	fn   Listener
	once bool
}

// emitter is the per-clip listener table
type emitter struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[Event][]*entry
}

func newEmitter() *emitter {
	return &emitter{listeners: make(map[Event][]*entry)}
}

func (em *emitter) on(ev Event, fn Listener, once bool) *Subscription {
	em.mu.Lock()
	em.nextID++
	e := &entry{id: em.nextID, fn: fn, once: once}
	em.listeners[ev] = append(em.listeners[ev], e)
	em.mu.Unlock()

	return &Subscription{cancel: func() { em.remove(ev, e.id) }}
}

// remove reports whether the listener was still registered
func (em *emitter) remove(ev Event, id uint64) bool {
	em.mu.Lock()
	defer em.mu.Unlock()

	list := em.listeners[ev]
	for i, e := range list {
		if e.id == id {
			em.listeners[ev] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// fire delivers p to a snapshot of the listeners for its event
func (em *emitter) fire(p Payload) {
	ev := p.Event()

	em.mu.Lock()
	snapshot := append([]*entry(nil), em.listeners[ev]...)
	em.mu.Unlock()

	for _, e := range snapshot {
		// a once listener may already have been claimed by a concurrent fire
		if e.once && !em.remove(ev, e.id) {
			continue
		}
		e.fn(p)
	}
}

func (em *emitter) count(ev Event) int {
	em.mu.Lock()
	defer em.mu.Unlock()
	return len(em.listeners[ev])
}
