package events

import (
	"reflect"
	"sync"
)

// Recorder is the test double for Sink: it appends every event it
// receives, in order, and is safe for concurrent use by the DAG
// controller's concurrently-dispatched tasks.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(kind Kind, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Kind: kind, Data: data})
}

// All returns a snapshot of every event recorded so far.
func (r *Recorder) All() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Filter returns only the events of the given kind, in order.
func (r *Recorder) Filter(kind Kind) []Event {
	var out []Event
	for _, e := range r.All() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Has reports whether an event of the given kind with data deep-equal
// to want was ever recorded.
func (r *Recorder) Has(kind Kind, want any) bool {
	for _, e := range r.Filter(kind) {
		if reflect.DeepEqual(e.Data, want) {
			return true
		}
	}
	return false
}
