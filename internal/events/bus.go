// Package events carries playback and selection notifications to UI-facing listeners.
package events

import (
	"sync"
	"time"
)

// Kind names one notification type.
type Kind string

const (
	SoundStarted       Kind = "sound-started"
	SoundStopped       Kind = "sound-stopped"
	AllStopped         Kind = "all-stopped"
	SoundboardSelected Kind = "soundboard-selected"
)

// Event is one notification. Sound fields are empty for AllStopped; SoundboardID
// identifies the owning board for sound events and the selected board for SoundboardSelected.
type Event struct {
	Kind           Kind      `json:"kind"`
	SoundID        string    `json:"soundId,omitempty"`
	SoundName      string    `json:"soundName,omitempty"`
	SoundboardID   string    `json:"soundboardId,omitempty"`
	SoundboardName string    `json:"soundboardName,omitempty"`
	At             time.Time `json:"at"`
}

// Listener receives events in publish order. Listeners may publish or call back
// into publishers; nested events are delivered after the current one.
type Listener func(Event)

// Bus is an ordered, synchronous fan-out queue.
//
// Publishers enqueue inside their own critical section so queue order matches
// mutation order, then call Flush after releasing their locks. Exactly one
// goroutine drains at a time; a Flush that finds a drain in progress returns
// immediately and the active drainer delivers the new events.
type Bus struct {
	mu        sync.Mutex
	listeners map[int]Listener
	order     []int
	nextID    int
	queue     []Event
	draining  bool
	now       func() time.Time
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		listeners: make(map[int]Listener),
		now:       time.Now,
	}
}

// Subscribe registers a listener and returns its unsubscribe func.
func (b *Bus) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.listeners, id)
			for i, existing := range b.order {
				if existing == id {
					b.order = append(b.order[:i:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish enqueues an event without delivering it.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ev.At.IsZero() {
		ev.At = b.now()
	}
	b.queue = append(b.queue, ev)
}

// Emit publishes and flushes.
func (b *Bus) Emit(ev Event) {
	b.Publish(ev)
	b.Flush()
}

// Flush delivers queued events unless another goroutine is already draining.
func (b *Bus) Flush() {
	b.mu.Lock()
	if b.draining {
		b.mu.Unlock()
		return
	}
	b.draining = true

	for len(b.queue) > 0 {
		ev := b.queue[0]
		b.queue = b.queue[1:]
		targets := make([]Listener, 0, len(b.order))
		for _, id := range b.order {
			targets = append(targets, b.listeners[id])
		}
		b.mu.Unlock()

		for _, fn := range targets {
			fn(ev)
		}

		b.mu.Lock()
	}

	b.draining = false
	b.mu.Unlock()
}
