// Package emit provides pluggable observability emitters for graph execution.
package emit

// Emitter receives and processes observability events from workflow execution.
//
// Emitters enable pluggable observability backends:
//   - Logging: structured logs via zerolog
//   - Distributed tracing: OpenTelemetry
//   - Buffering: in-memory capture for tests and dashboards
//
// Implementations should be:
//   - Non-blocking: avoid slowing down workflow execution
//   - Thread-safe: may be called concurrently
//   - Resilient: handle failures gracefully (never crash the workflow)
type Emitter interface {
	// Emit sends an observability event to the configured backend.
	//
	// Emit should not panic and should not block workflow execution.
	// Errors are handled internally.
	Emit(event Event)
}

// Multi fans a single event out to several emitters in order.
type Multi []Emitter

// Emit implements Emitter.
func (m Multi) Emit(event Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(event)
		}
	}
}
