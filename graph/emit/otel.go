package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter implements Emitter by creating OpenTelemetry spans.
//
// Each event becomes a span with:
//   - Span name: event.Msg (e.g., "node completed")
//   - Attributes: run_id, step, node_id, and all event.Meta fields
//   - Status: error when event.Meta["error"] is present
//
// Usage:
//
//	tracer := otel.Tracer("pathfinder")
//	emitter := emit.NewOTelEmitter(tracer)
//	engine := graph.New(reducer, graph.WithEmitter(emitter))
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an OTelEmitter using the given tracer, typically
// obtained from otel.Tracer("pathfinder").
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit creates an OpenTelemetry span for the event. Events represent points
// in time, so the span is ended immediately after attributes are recorded.
func (o *OTelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), event.Msg)
	defer span.End()

	span.SetAttributes(
		attribute.String("run_id", event.RunID),
		attribute.Int("step", event.Step),
		attribute.String("node_id", event.NodeID),
	)

	for key, value := range event.Meta {
		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(key, v))
		case int:
			span.SetAttributes(attribute.Int(key, v))
		case int64:
			span.SetAttributes(attribute.Int64(key, v))
		case float64:
			span.SetAttributes(attribute.Float64(key, v))
		case bool:
			span.SetAttributes(attribute.Bool(key, v))
		default:
			span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
		}
	}

	if errVal, ok := event.Meta["error"]; ok {
		span.SetStatus(codes.Error, fmt.Sprintf("%v", errVal))
	}
}
