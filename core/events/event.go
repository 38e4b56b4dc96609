package events

import (
	"sync"
)

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
	Attributes() map[string]string
}

// Emitter broadcasts events to downstream subscribers (e.g. the HTTP API or
// the durable event log).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Record is the flattened representation served to clients and persisted.
type Record struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// ToRecord flattens an event. The sequence is assigned by the sink.
func ToRecord(evt Event) Record {
	if evt == nil {
		return Record{}
	}
	attrs := evt.Attributes()
	if attrs == nil {
		attrs = map[string]string{}
	}
	return Record{Type: evt.EventType(), Attributes: attrs}
}

// Recorder keeps emitted events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Emitter.
func (r *Recorder) Emit(evt Event) {
	if r == nil || evt == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType filters recorded events by type.
func (r *Recorder) OfType(eventType string) []Event {
	var out []Event
	for _, evt := range r.Events() {
		if evt.EventType() == eventType {
			out = append(out, evt)
		}
	}
	return out
}

// Fanout forwards every event to each wrapped emitter in order.
type Fanout []Emitter

// Emit implements Emitter.
func (f Fanout) Emit(evt Event) {
	for _, emitter := range f {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}
