package emit

import "sync"

// BufferedEmitter implements Emitter by storing events in memory.
//
// This emitter captures all events and provides query capabilities for
// execution history analysis. Events are organized by runID for efficient
// retrieval.
//
// Warning: all events are held in memory. Intended for tests, debugging,
// and short-lived inspection, not unbounded production use.
//
// Example usage:
//
//	emitter := emit.NewBufferedEmitter()
//	engine := graph.New(reducer, graph.WithEmitter(emitter))
//	engine.Run(ctx, "run-001", initialState)
//	history := emitter.History("run-001")
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // runID -> events
}

// NewBufferedEmitter returns a BufferedEmitter ready for concurrent use.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{
		events: make(map[string][]Event),
	}
}

// Emit stores the event in the per-run history.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[event.RunID] = append(b.events[event.RunID], event)
}

// History returns a copy of all events recorded for the given run, in
// emission order.
func (b *BufferedEmitter) History(runID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := b.events[runID]
	out := make([]Event, len(events))
	copy(out, events)
	return out
}

// NodeVisits returns how many events were recorded for nodeID in the run.
// Useful for asserting retry behavior in tests.
func (b *BufferedEmitter) NodeVisits(runID, nodeID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, ev := range b.events[runID] {
		if ev.NodeID == nodeID {
			count++
		}
	}
	return count
}

// Clear removes recorded events for the given run. An empty runID clears
// everything.
func (b *BufferedEmitter) Clear(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if runID == "" {
		b.events = make(map[string][]Event)
		return
	}
	delete(b.events, runID)
}
