package emit

// NullEmitter implements Emitter by discarding all events.
//
// This is a no-op emitter for deployments where event logging is not
// desired, and for tests that do not capture events.
type NullEmitter struct{}

// NewNullEmitter returns a NullEmitter that discards all events.
// Safe for concurrent use with zero overhead.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event without any processing.
func (n *NullEmitter) Emit(event Event) {
	// No-op: discard the event
}
