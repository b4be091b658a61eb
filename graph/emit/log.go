package emit

import (
	"github.com/rs/zerolog"
)

// LogEmitter implements Emitter by writing structured log lines through
// zerolog.
//
// Example output (JSON mode of the parent logger):
//
//	{"level":"info","run_id":"run-001","step":2,"node_id":"scout","message":"node completed"}
//
// Usage:
//
//	emitter := emit.NewLogEmitter(log.Logger)
//	engine := graph.New(reducer, graph.WithEmitter(emitter))
type LogEmitter struct {
	logger zerolog.Logger
}

// NewLogEmitter creates a LogEmitter writing through the given logger.
func NewLogEmitter(logger zerolog.Logger) *LogEmitter {
	return &LogEmitter{logger: logger}
}

// Emit writes the event as a structured log line. Meta keys are flattened
// into log fields.
func (l *LogEmitter) Emit(event Event) {
	entry := l.logger.Info().
		Str("run_id", event.RunID).
		Int("step", event.Step).
		Str("node_id", event.NodeID)

	for k, v := range event.Meta {
		entry = entry.Interface(k, v)
	}

	entry.Msg(event.Msg)
}
