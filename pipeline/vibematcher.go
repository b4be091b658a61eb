package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pathfinder-ai/pathfinder/catalog"
	"github.com/pathfinder-ai/pathfinder/graph/model"
)

// VibeMatcher scores each candidate's thematic fit against the parsed
// vibe. It sends the model a multimodal prompt including up to the first
// three venue photos; a venue whose call fails gets the null-score
// fallback record so every candidate is always mapped.
type VibeMatcher struct {
	gen model.Generator
	log zerolog.Logger
}

func NewVibeMatcher(gen model.Generator, log zerolog.Logger) *VibeMatcher {
	return &VibeMatcher{gen: gen, log: log.With().Str("analyst", string(AgentVibeMatcher)).Logger()}
}

// analyze scores all candidates concurrently and returns the vibe delta.
func (m *VibeMatcher) analyze(ctx context.Context, state State) State {
	scores := make(map[string]VibeRecord, len(state.CandidateVenues))
	if len(state.CandidateVenues) == 0 {
		return State{VibeScores: scores}
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, v := range state.CandidateVenues {
		wg.Add(1)
		go func(v catalog.Venue) {
			defer wg.Done()
			rec := m.scoreVenue(ctx, state, v)
			mu.Lock()
			scores[v.VenueID] = rec
			mu.Unlock()
		}(v)
	}
	wg.Wait()

	return State{VibeScores: scores}
}

// fallbackVibeRecord marks a venue the model could not score.
func fallbackVibeRecord() VibeRecord {
	return VibeRecord{VisualDescriptors: []string{}, Confidence: 0}
}

func (m *VibeMatcher) scoreVenue(ctx context.Context, state State, v catalog.Venue) VibeRecord {
	genCtx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()

	photos := v.Photos
	if len(photos) > model.MaxImages {
		photos = photos[:model.MaxImages]
	}

	raw, err := m.gen.Generate(genCtx, model.Request{
		Prompt:    m.buildPrompt(state, v),
		ImageURLs: photos,
	})
	if err != nil {
		m.log.Warn().Err(err).Str("venue_id", v.VenueID).Msg("vibe scoring failed")
		return fallbackVibeRecord()
	}

	var rec VibeRecord
	if err := decodeModelJSON(vibeSchema, raw, &rec); err != nil {
		m.log.Warn().Err(err).Str("venue_id", v.VenueID).Msg("vibe output unusable")
		return fallbackVibeRecord()
	}

	if rec.VibeScore == nil {
		return fallbackVibeRecord()
	}
	clamped := clampWeight(*rec.VibeScore)
	rec.VibeScore = &clamped
	rec.Confidence = clampWeight(rec.Confidence)
	if rec.VisualDescriptors == nil {
		rec.VisualDescriptors = []string{}
	}
	return rec
}

func (m *VibeMatcher) buildPrompt(state State, v catalog.Venue) string {
	vibe := "no stated preference"
	if state.ParsedIntent != nil && state.ParsedIntent.Vibe != "" {
		vibe = state.ParsedIntent.Vibe
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You assess how well a venue matches a desired atmosphere.\n")
	fmt.Fprintf(&b, "Desired vibe: %s\n", vibe)
	fmt.Fprintf(&b, "Venue: %s (%s)\n", v.Name, v.Category)
	if v.Website != "" {
		fmt.Fprintf(&b, "Website: %s\n", v.Website)
	}
	if len(v.Photos) > 0 {
		b.WriteString("The attached photos show the venue.\n")
	}
	b.WriteString(`
Score the thematic fit. Output exact JSON:
{
  "vibe_score": 0.0 to 1.0 (or null if you cannot judge),
  "primary_style": "short style label",
  "visual_descriptors": ["up to 5 short phrases"],
  "confidence": 0.0 to 1.0
}
Do not output markdown code blocks. Only the raw JSON string.`)
	return b.String()
}
