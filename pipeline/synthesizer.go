package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pathfinder-ai/pathfinder/graph"
	"github.com/pathfinder-ai/pathfinder/graph/model"
)

const (
	// shortlistSize caps the ranked output.
	shortlistSize = 3

	// Neutral per-dimension defaults used when an analyst produced nothing
	// for a venue.
	neutralVibeScore = 0.5
	neutralCostScore = 0.3

	// Risk penalties per finding severity.
	highRiskPenalty   = 0.15
	mediumRiskPenalty = 0.05
)

// Synthesizer blends the analysts' scores into a composite, ranks the
// candidates, and explains the top results. It is the terminal node.
type Synthesizer struct {
	gen model.Generator
	log zerolog.Logger
}

func NewSynthesizer(gen model.Generator, log zerolog.Logger) *Synthesizer {
	return &Synthesizer{gen: gen, log: log.With().Str("node", NodeSynthesiser).Logger()}
}

// Run implements graph.Node.
func (s *Synthesizer) Run(ctx context.Context, state State) graph.NodeResult[State] {
	if len(state.CandidateVenues) == 0 {
		s.log.Info().Msg("no candidates to rank")
		return graph.NodeResult[State]{
			Delta: State{RankedResults: []RankedVenue{}, ExecutionSummary: "No venues matched the request."},
			Route: graph.Stop(),
		}
	}

	ranked := s.rank(state)
	s.explain(ctx, state, ranked)
	summary := s.summarize(ctx, state, ranked)

	return graph.NodeResult[State]{
		Delta: State{RankedResults: ranked, ExecutionSummary: summary},
		Route: graph.Stop(),
	}
}

// rank computes composite scores, sorts, and takes the shortlist.
func (s *Synthesizer) rank(state State) []RankedVenue {
	wVibe := weightOrDefault(state.AgentWeights, AgentVibeMatcher)
	wCost := weightOrDefault(state.AgentWeights, AgentCostAnalyst)

	ranked := make([]RankedVenue, 0, len(state.CandidateVenues))
	for _, v := range state.CandidateVenues {
		rv := RankedVenue{Venue: v}

		sVibe := neutralVibeScore
		if rec, ok := state.VibeScores[v.VenueID]; ok && rec.VibeScore != nil {
			sVibe = *rec.VibeScore
			rv.VibeScore = rec.VibeScore
		}

		sCost := neutralCostScore
		if rec, ok := state.CostProfiles[v.VenueID]; ok {
			sCost = rec.ValueScore
			rv.PriceRange = rec.PriceRange
			rv.PriceConfidence = rec.Confidence
		}

		rv.CompositeScore = (wVibe*sVibe+wCost*sCost)/(wVibe+wCost) - riskPenalty(state.RiskFlags[v.VenueID])
		ranked = append(ranked, rv)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].CompositeScore != ranked[j].CompositeScore {
			return ranked[i].CompositeScore > ranked[j].CompositeScore
		}
		if ranked[i].Rating != ranked[j].Rating {
			return ranked[i].Rating > ranked[j].Rating
		}
		return ranked[i].ReviewCount > ranked[j].ReviewCount
	})

	if len(ranked) > shortlistSize {
		ranked = ranked[:shortlistSize]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

func riskPenalty(risks []RiskRecord) float64 {
	penalty := 0.0
	for _, r := range risks {
		switch r.Severity {
		case SeverityHigh:
			penalty += highRiskPenalty
		case SeverityMedium:
			penalty += mediumRiskPenalty
		}
	}
	return penalty
}

func weightOrDefault(weights map[AgentName]float64, name AgentName) float64 {
	if w, ok := weights[name]; ok {
		return w
	}
	return 1.0
}

type explanation struct {
	Why      string `json:"why"`
	WatchOut string `json:"watch_out"`
}

// explain asks the model for a per-venue rationale, one call per shortlist
// entry, concurrently. A failed call leaves the fields blank.
func (s *Synthesizer) explain(ctx context.Context, state State, ranked []RankedVenue) {
	var wg sync.WaitGroup
	for i := range ranked {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			genCtx, cancel := context.WithTimeout(ctx, llmTimeout)
			defer cancel()

			raw, err := s.gen.Generate(genCtx, model.Request{Prompt: s.explainPrompt(state, ranked[i])})
			if err != nil {
				s.log.Warn().Err(err).Str("venue_id", ranked[i].VenueID).Msg("explanation failed")
				return
			}

			var ex explanation
			if err := decodeModelJSON(explainSchema, raw, &ex); err != nil {
				s.log.Warn().Err(err).Str("venue_id", ranked[i].VenueID).Msg("explanation unusable")
				return
			}
			ranked[i].Why = ex.Why
			ranked[i].WatchOut = ex.WatchOut
		}(i)
	}
	wg.Wait()
}

func (s *Synthesizer) explainPrompt(state State, rv RankedVenue) string {
	vibeJSON := "unavailable"
	if rec, ok := state.VibeScores[rv.VenueID]; ok {
		if b, err := json.Marshal(rec); err == nil {
			vibeJSON = string(b)
		}
	}
	costJSON := "unavailable"
	if rec, ok := state.CostProfiles[rv.VenueID]; ok {
		if b, err := json.Marshal(rec); err == nil {
			costJSON = string(b)
		}
	}
	riskJSON := "[]"
	if risks, ok := state.RiskFlags[rv.VenueID]; ok {
		if b, err := json.Marshal(risks); err == nil {
			riskJSON = string(b)
		}
	}

	return fmt.Sprintf(`You explain venue recommendations concisely.

Venue: %s (%s), rating %.1f from %d reviews.
Vibe analysis: %s
Cost analysis: %s
Risk findings: %s

Output exact JSON:
{"why": "one or two sentences on why this venue fits", "watch_out": "one caveat, or null if none"}
Do not output markdown code blocks. Only the raw JSON string.`,
		rv.Name, rv.Category, rv.Rating, rv.ReviewCount, vibeJSON, costJSON, riskJSON)
}

// summarize makes one consensus call over the whole shortlist. Failure
// degrades to a mechanical summary.
func (s *Synthesizer) summarize(ctx context.Context, state State, ranked []RankedVenue) string {
	fallback := mechanicalSummary(ranked)
	if len(ranked) == 0 {
		return fallback
	}

	names := make([]string, len(ranked))
	for i, rv := range ranked {
		names[i] = fmt.Sprintf("%d. %s (score %.2f)", rv.Rank, rv.Name, rv.CompositeScore)
	}

	genCtx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()

	raw, err := s.gen.Generate(genCtx, model.Request{
		Prompt: fmt.Sprintf(`Summarize this ranked venue shortlist for the user in two sentences. Request: %q
Shortlist:
%s
Respond with plain text only.`, state.RawPrompt, strings.Join(names, "\n")),
	})
	if err != nil || strings.TrimSpace(raw) == "" {
		s.log.Warn().Err(err).Msg("consensus summary failed")
		return fallback
	}
	return strings.TrimSpace(raw)
}

func mechanicalSummary(ranked []RankedVenue) string {
	if len(ranked) == 0 {
		return "No venues matched the request."
	}
	names := make([]string, len(ranked))
	for i, rv := range ranked {
		names[i] = rv.Name
	}
	return fmt.Sprintf("Top picks: %s.", strings.Join(names, ", "))
}
