package executor

import (
	"log"
	"sync/atomic"
	"time"
)

// EventType represents the type of executor event.
type EventType string

const (
	// EventStarted indicates an atom began its first attempt.
	EventStarted EventType = "started"
	// EventSucceeded indicates generation and validation passed.
	EventSucceeded EventType = "succeeded"
	// EventFailed indicates the atom exhausted its retry budget or hit a
	// non-retryable failure.
	EventFailed EventType = "failed"
	// EventSkipped indicates the atom was never attempted because a
	// dependency did not succeed.
	EventSkipped EventType = "skipped"
)

// Event is one observability record streamed during a run.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// AtomID is the atom the event concerns.
	AtomID string
	// Wave is the wave index the atom was scheduled in.
	Wave int
	// Attempt is the attempt count at the time of the event, 0 for
	// skipped atoms.
	Attempt int
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// Emitter streams events to subscribers without ever blocking a wave.
// Delivery is best-effort: when the buffer stays full past a short grace
// period the event is dropped and counted.
type Emitter struct {
	events       chan Event
	droppedCount atomic.Uint64
}

// NewEmitter creates an Emitter with the given buffer size.
func NewEmitter(bufferSize int) *Emitter {
	return &Emitter{
		events: make(chan Event, bufferSize),
	}
}

// Emit sends an event to the events channel. If the channel is full, it
// tries with a timeout before dropping the event.
func (e *Emitter) Emit(event Event) {
	select {
	case e.events <- event:
		return
	default:
		// Channel full, try with timeout.
	}

	select {
	case e.events <- event:
		return
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 { // Log every 10th drop to avoid spam.
			log.Printf("[executor] WARNING: event channel full, dropped event (total dropped: %d): type=%s atom=%s", count, event.Type, event.AtomID)
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *Emitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns a read-only channel of events for subscribers.
func (e *Emitter) Events() <-chan Event {
	return e.events
}

// Close closes the events channel. Call only after Execute has returned.
func (e *Emitter) Close() {
	close(e.events)
}
