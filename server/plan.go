package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/pathfinder-ai/pathfinder/pipeline"
)

// PlanRequest is the body of POST /plan and the first WS message.
type PlanRequest struct {
	Prompt          string          `json:"prompt"`
	GroupSize       int             `json:"group_size,omitempty"`
	Budget          string          `json:"budget,omitempty"`
	Location        string          `json:"location,omitempty"`
	Vibe            string          `json:"vibe,omitempty"`
	MemberLocations []LatLng        `json:"member_locations,omitempty"`
	ChatHistory     json.RawMessage `json:"chat_history,omitempty"`
}

// LatLng is one group member's coordinates.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PlanResponse is the terminal payload of both transports.
type PlanResponse struct {
	Venues           []pipeline.RankedVenue `json:"venues"`
	ExecutionSummary string                 `json:"execution_summary"`
}

// initialState seeds a run from the request and the caller's identity.
func (s *Server) initialState(req PlanRequest, profile *pipeline.Profile) pipeline.State {
	state := pipeline.NewState(req.Prompt, profile)
	state.ChatHistory = req.ChatHistory
	for _, m := range req.MemberLocations {
		state.MemberLocations = append(state.MemberLocations, pipeline.Coordinate{Lat: m.Lat, Lng: m.Lng})
	}

	// Explicit request fields pre-seed the intent; the planner refines or
	// overwrites them from the prompt.
	if req.GroupSize > 1 || req.Budget != "" || req.Location != "" || req.Vibe != "" {
		state.ParsedIntent = &pipeline.Intent{
			GroupSize: req.GroupSize,
			Budget:    req.Budget,
			Location:  req.Location,
			Vibe:      req.Vibe,
		}
	}
	return state
}

func planResponse(final pipeline.State) PlanResponse {
	venues := final.RankedResults
	if venues == nil {
		venues = []pipeline.RankedVenue{}
	}
	summary := final.ExecutionSummary
	if summary == "" {
		summary = "Pipeline complete."
	}
	return PlanResponse{Venues: venues, ExecutionSummary: summary}
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	runID := uuid.NewString()
	log := s.log.With().Str("run_id", runID).Logger()

	ctx, cancel := context.WithTimeout(r.Context(), s.pipelineTimeout)
	defer cancel()

	final, err := s.engine.Run(ctx, runID, s.initialState(req, profileFrom(r.Context())))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Error().Dur("timeout", s.pipelineTimeout).Msg("pipeline timed out")
			writeError(w, http.StatusGatewayTimeout, "Pipeline timed out - please try again.")
			return
		}
		log.Error().Err(err).Msg("pipeline failed")
		writeError(w, http.StatusInternalServerError, "Pipeline failed - please try again.")
		return
	}

	log.Info().Int("venues", len(final.RankedResults)).Msg("plan complete")
	writeJSON(w, http.StatusOK, planResponse(final))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
