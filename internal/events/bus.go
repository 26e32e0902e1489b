// Package events fans domain events out to in-process subscribers such as
// notification senders, metrics and the logger.
package events

import (
	"sync"
	"time"
)

// Kind names a domain event.
type Kind string

const (
	TaskCompleted     Kind = "task.completed"
	TaskDeleted       Kind = "task.deleted"
	DependencyCreated Kind = "dependency.created"
	DependencyDeleted Kind = "dependency.deleted"
	DependencyDenied  Kind = "dependency.rejected"
	TimerStarted      Kind = "timer.started"
	TimerStopped      Kind = "timer.stopped"
	TimeLogEdited     Kind = "timelog.edited"
	TimeLogDeleted    Kind = "timelog.deleted"
	TimeLogApproved   Kind = "timelog.approved"
)

// Event is a notification that something happened in the core.
type Event struct {
	Kind      Kind
	SubjectID string
	UserID    string
	At        time.Time
	// Payload carries the affected record (task, edge or time log).
	Payload interface{}
	// Attrs carries small scalar details, e.g. "auto_stopped" or "reason".
	Attrs map[string]string
}

// Handler reacts to an event. Handlers run synchronously on the publisher's
// goroutine and must not call back into the publisher.
type Handler func(Event)

// Publisher is what the core depends on.
type Publisher interface {
	Publish(Event)
}

// Bus is a synchronous publish/subscribe dispatcher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
	all      []Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Kind][]Handler)}
}

// Subscribe registers h for the given kinds, or for every kind when none
// are given.
func (b *Bus) Subscribe(h Handler, kinds ...Kind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(kinds) == 0 {
		b.all = append(b.all, h)
		return
	}
	for _, k := range kinds {
		b.handlers[k] = append(b.handlers[k], h)
	}
}

// Publish delivers e to every matching handler in subscription order.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	specific := append([]Handler(nil), b.handlers[e.Kind]...)
	all := append([]Handler(nil), b.all...)
	b.mu.RUnlock()

	for _, h := range specific {
		h(e)
	}
	for _, h := range all {
		h(e)
	}
}

// Discard drops every event.
type Discard struct{}

// Publish does nothing.
func (Discard) Publish(Event) {}
