package emit

// Event represents an observability event emitted during workflow execution.
//
// Events provide detailed insight into workflow behavior:
//   - Node execution completions
//   - Errors and warnings
//   - Performance metadata
//
// Events are emitted to an Emitter which can log to a structured logger,
// send to OpenTelemetry, or buffer for inspection in tests.
type Event struct {
	// RunID identifies the workflow execution that emitted this event.
	RunID string

	// Step is the sequential step number in the workflow (1-indexed).
	// Zero for workflow-level events (start, complete, error).
	Step int

	// NodeID identifies which node emitted this event.
	// Empty string for workflow-level events.
	NodeID string

	// Msg is a human-readable description of the event.
	Msg string

	// Meta contains additional structured data specific to this event.
	// Common keys:
	//   - "duration_ms": Execution duration in milliseconds
	//   - "error": Error details
	Meta map[string]interface{}
}
