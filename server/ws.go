package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/pathfinder-ai/pathfinder/graph"
	"github.com/pathfinder-ai/pathfinder/pipeline"
)

// wsEvent is one message on the streaming transport. Every run produces
// zero or more progress events followed by exactly one terminal event,
// either result or error.
type wsEvent struct {
	Type    string        `json:"type"`
	Node    string        `json:"node,omitempty"`
	Label   string        `json:"label,omitempty"`
	Data    *PlanResponse `json:"data,omitempty"`
	Message string        `json:"message,omitempty"`
}

func (s *Server) handleWSPlan(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	var req PlanRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(wsEvent{Type: "error", Message: "invalid request message"})
		return
	}

	runID := uuid.NewString()
	log := s.log.With().Str("run_id", runID).Logger()
	log.Info().Str("prompt", req.Prompt).Msg("streaming pipeline starting")

	ctx, cancel := context.WithTimeout(r.Context(), s.pipelineTimeout)
	defer cancel()

	// A departing client cancels the run cooperatively. Reads also drain
	// the connection so close frames are processed.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	events := s.engine.Stream(ctx, runID, s.initialState(req, profileFrom(r.Context())))
	s.relay(conn, events, log)
}

// relay forwards engine step events to the socket and finishes with the
// single terminal event. It always drains the stream so the engine
// goroutine is released.
func (s *Server) relay(conn *websocket.Conn, events <-chan graph.StepEvent[pipeline.State], log zerolog.Logger) {
	for ev := range events {
		if !ev.Done {
			label, ok := pipeline.NodeLabels[ev.NodeID]
			if !ok {
				label = ev.NodeID
			}
			if err := conn.WriteJSON(wsEvent{Type: "progress", Node: ev.NodeID, Label: label}); err != nil {
				log.Info().Err(err).Msg("client gone during progress")
				// Keep draining; the cancelled context ends the run.
				continue
			}
			continue
		}

		switch {
		case ev.Err == nil:
			resp := planResponse(ev.State)
			_ = conn.WriteJSON(wsEvent{Type: "result", Data: &resp})
			log.Info().Int("venues", len(resp.Venues)).Msg("streaming pipeline complete")
		case errors.Is(ev.Err, context.DeadlineExceeded):
			_ = conn.WriteJSON(wsEvent{Type: "error", Message: "Pipeline timed out - please try a simpler query."})
			log.Error().Msg("streaming pipeline timed out")
		case errors.Is(ev.Err, context.Canceled):
			log.Info().Msg("streaming pipeline cancelled")
		default:
			_ = conn.WriteJSON(wsEvent{Type: "error", Message: "An internal error occurred. Please try again."})
			log.Error().Err(ev.Err).Msg("streaming pipeline failed")
		}
	}
}
