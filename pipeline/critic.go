package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pathfinder-ai/pathfinder/catalog"
	"github.com/pathfinder-ai/pathfinder/events"
	"github.com/pathfinder-ai/pathfinder/graph/model"
	"github.com/pathfinder-ai/pathfinder/memory"
	"github.com/pathfinder-ai/pathfinder/weather"
)

const (
	// criticTopK is how many leading candidates get a risk assessment.
	criticTopK = 3

	// criticVenueTimeout bounds the full analysis of one venue, weather
	// and events fetches included.
	criticVenueTimeout = 25 * time.Second
)

// ForecastProvider is the weather collaborator the risk analysis needs.
type ForecastProvider interface {
	Forecast(ctx context.Context, lat, lng float64) (*weather.Forecast, error)
}

// EventsProvider is the local-events collaborator the risk analysis needs.
type EventsProvider interface {
	Nearby(ctx context.Context, lat, lng float64, radius string) ([]events.Event, error)
}

// Critic adversarially probes the leading candidates for real-world
// dealbreakers: it cross-references each of the top venues with the
// weather forecast and nearby events and asks the model for risks.
//
// Only a fast-fail on the top-1 candidate raises the veto that triggers
// replanning; secondary findings are recorded but never veto.
type Critic struct {
	gen     model.Generator
	weather ForecastProvider
	events  EventsProvider
	mem     memory.Store
	log     zerolog.Logger
}

func NewCritic(gen model.Generator, w ForecastProvider, e EventsProvider, mem memory.Store, log zerolog.Logger) *Critic {
	return &Critic{
		gen:     gen,
		weather: w,
		events:  e,
		mem:     mem,
		log:     log.With().Str("analyst", string(AgentCritic)).Logger(),
	}
}

type riskAnalysis struct {
	Risks          []RiskRecord `json:"risks"`
	FastFail       bool         `json:"fast_fail"`
	Veto           bool         `json:"veto"`
	FastFailReason string       `json:"fast_fail_reason"`
}

// analyze assesses the top candidates concurrently and returns the risk
// delta. The Verdict field is always written so downstream stages never
// see a stale veto.
func (c *Critic) analyze(ctx context.Context, state State) State {
	if len(state.CandidateVenues) == 0 {
		c.log.Info().Msg("no candidates to assess")
		return State{RiskFlags: map[string][]RiskRecord{}, Verdict: &Verdict{}}
	}

	top := state.CandidateVenues
	if len(top) > criticTopK {
		top = top[:criticTopK]
	}

	analyses := make([]riskAnalysis, len(top))
	var wg sync.WaitGroup
	for i, v := range top {
		wg.Add(1)
		go func(i int, v catalog.Venue) {
			defer wg.Done()

			venueCtx, cancel := context.WithTimeout(ctx, criticVenueTimeout)
			defer cancel()

			analyses[i] = c.assessVenue(venueCtx, state, v)
		}(i, v)
	}
	wg.Wait()

	flags := make(map[string][]RiskRecord, len(top))
	verdict := &Verdict{}
	for i, v := range top {
		risks := analyses[i].Risks
		if risks == nil {
			risks = []RiskRecord{}
		}
		flags[v.VenueID] = risks

		if (analyses[i].FastFail || analyses[i].Veto) && i == 0 {
			verdict.FastFail = true
			verdict.Reason = analyses[i].FastFailReason
		}

		c.logHighRisks(ctx, v.VenueID, risks)
	}

	if verdict.FastFail {
		c.log.Warn().Str("reason", verdict.Reason).Msg("top candidate vetoed")
	}
	return State{RiskFlags: flags, Verdict: verdict}
}

func (c *Critic) assessVenue(ctx context.Context, state State, v catalog.Venue) riskAnalysis {
	forecast, nearby := c.fetchContext(ctx, v)

	genCtx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()

	raw, err := c.gen.Generate(genCtx, model.Request{Prompt: c.buildPrompt(state, v, forecast, nearby)})
	if err != nil {
		c.log.Warn().Err(err).Str("venue_id", v.VenueID).Msg("risk assessment failed")
		return riskAnalysis{}
	}

	var analysis riskAnalysis
	if err := decodeModelJSON(riskSchema, raw, &analysis); err != nil {
		c.log.Warn().Err(err).Str("venue_id", v.VenueID).Msg("risk output unusable")
		return riskAnalysis{}
	}
	return analysis
}

// fetchContext fetches the forecast and nearby events concurrently. Either
// failing degrades to nil; the model is told what is missing.
func (c *Critic) fetchContext(ctx context.Context, v catalog.Venue) (*weather.Forecast, []events.Event) {
	var (
		forecast *weather.Forecast
		nearby   []events.Event
		wg       sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		f, err := c.weather.Forecast(ctx, v.Lat, v.Lng)
		if err != nil {
			c.log.Debug().Err(err).Str("venue_id", v.VenueID).Msg("forecast unavailable")
			return
		}
		forecast = f
	}()
	go func() {
		defer wg.Done()
		evs, err := c.events.Nearby(ctx, v.Lat, v.Lng, "")
		if err != nil {
			c.log.Debug().Err(err).Str("venue_id", v.VenueID).Msg("events unavailable")
			return
		}
		nearby = evs
	}()
	wg.Wait()

	return forecast, nearby
}

func (c *Critic) buildPrompt(state State, v catalog.Venue, forecast *weather.Forecast, nearby []events.Event) string {
	intentJSON := "{}"
	if state.ParsedIntent != nil {
		if b, err := json.Marshal(state.ParsedIntent); err == nil {
			intentJSON = string(b)
		}
	}

	weatherJSON := "unavailable"
	if forecast != nil {
		if b, err := json.Marshal(forecast); err == nil {
			weatherJSON = string(b)
		}
	}

	eventsJSON := "unavailable"
	if nearby != nil {
		if b, err := json.Marshal(nearby); err == nil {
			eventsJSON = string(b)
		}
	}

	return fmt.Sprintf(`You are an adversarial plan critic. Your job is to find reasons why this venue choice is TERRIBLE. Look for dealbreakers that would ruin the experience.

Context:
User intent: %s
Venue: %s (%s)
Weather profile: %s
Upcoming events nearby: %s

Evaluate against fast-fail conditions:
- Is there a dealbreaker for this venue given the intent? (e.g. outdoor activity with heavy rain forecast, a marathon blocking access.)

Output exact JSON:
{
  "risks": [{"type": "weather|event|other", "severity": "high|medium|low", "detail": "explanation"}],
  "fast_fail": true or false,
  "fast_fail_reason": "short reason when fast_fail is true, else null"
}
Do not output markdown code blocks. Only the raw JSON string.`,
		intentJSON, v.Name, v.Category, weatherJSON, eventsJSON)
}

// logHighRisks persists high-severity findings to long-term memory,
// best effort.
func (c *Critic) logHighRisks(ctx context.Context, venueID string, risks []RiskRecord) {
	for _, r := range risks {
		if r.Severity != SeverityHigh {
			continue
		}
		if err := c.mem.LogRisk(ctx, venueID, string(r.Type), r.Detail); err != nil {
			c.log.Debug().Err(err).Str("venue_id", venueID).Msg("risk logging failed")
		}
	}
}
