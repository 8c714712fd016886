package executor

import (
	"testing"
	"time"
)

func TestEmitter_DeliversBufferedEvents(t *testing.T) {
	emitter := NewEmitter(4)
	emitter.Emit(Event{Type: EventStarted, AtomID: "a", Timestamp: time.Now()})
	emitter.Emit(Event{Type: EventSucceeded, AtomID: "a", Timestamp: time.Now()})
	emitter.Close()

	var types []EventType
	for event := range emitter.Events() {
		types = append(types, event.Type)
	}
	if len(types) != 2 || types[0] != EventStarted || types[1] != EventSucceeded {
		t.Errorf("delivered events = %v", types)
	}
	if emitter.DroppedCount() != 0 {
		t.Errorf("DroppedCount() = %d, want 0", emitter.DroppedCount())
	}
}

func TestEmitter_DropsWhenFull(t *testing.T) {
	// Nobody drains the buffer, so overflow must drop rather than block.
	emitter := NewEmitter(1)
	emitter.Emit(Event{Type: EventStarted, AtomID: "a"})

	done := make(chan struct{})
	go func() {
		emitter.Emit(Event{Type: EventStarted, AtomID: "b"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a full channel")
	}
	if emitter.DroppedCount() != 1 {
		t.Errorf("DroppedCount() = %d, want 1", emitter.DroppedCount())
	}
}
