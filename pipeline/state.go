// Package pipeline implements the venue-planning workflow: a staged graph
// that parses a free-form prompt into a plan, discovers candidate venues,
// scores them along independent dimensions in parallel, and ranks an
// explained shortlist.
package pipeline

import (
	"encoding/json"

	"github.com/pathfinder-ai/pathfinder/catalog"
)

// Tier classifies how much analysis a request warrants.
type Tier string

const (
	// Tier1 is a simple lookup, discovery only or light analysis.
	Tier1 Tier = "tier_1"

	// Tier2 is a multi-factor personal request.
	Tier2 Tier = "tier_2"

	// Tier3 is a strategic request that activates every analyst.
	Tier3 Tier = "tier_3"
)

// AgentName identifies one activatable pipeline agent.
type AgentName string

const (
	AgentScout       AgentName = "scout"
	AgentVibeMatcher AgentName = "vibe_matcher"
	AgentCostAnalyst AgentName = "cost_analyst"
	AgentCritic      AgentName = "critic"
)

// Intent is the structured reading of the user's prompt.
type Intent struct {
	Activity  string `json:"activity,omitempty"`
	GroupSize int    `json:"group_size,omitempty"`
	Budget    string `json:"budget,omitempty"`
	Location  string `json:"location,omitempty"`
	Vibe      string `json:"vibe,omitempty"`
}

// Profile carries optional identity claims and preferences that bias the
// plan. The pipeline personalises on it but never requires it.
type Profile struct {
	Subject         string `json:"subject,omitempty"`
	Email           string `json:"email,omitempty"`
	BudgetSensitive bool   `json:"budget_sensitive,omitempty"`
}

// Coordinate is one group member's position.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// VibeRecord is one venue's thematic-fit assessment.
//
// A nil VibeScore marks the fallback path (the model produced nothing
// usable); Confidence is always 0 in that case.
type VibeRecord struct {
	VibeScore         *float64 `json:"vibe_score"`
	PrimaryStyle      string   `json:"primary_style"`
	VisualDescriptors []string `json:"visual_descriptors"`
	Confidence        float64  `json:"confidence"`
}

// Confidence grades how much the cost signals agreed.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// CostRecord is one venue's price assessment.
//
// Invariants: Confidence == none exactly when PriceRange is unknown, and
// ValueScore is 0.3 in that case.
type CostRecord struct {
	PriceRange catalog.PriceBand `json:"price_range,omitempty"`
	Confidence Confidence        `json:"confidence"`
	ValueScore float64           `json:"value_score"`
}

// RiskType categorises a risk finding.
type RiskType string

const (
	RiskWeather RiskType = "weather"
	RiskEvent   RiskType = "event"
	RiskOther   RiskType = "other"
)

// RiskSeverity grades a risk finding.
type RiskSeverity string

const (
	SeverityHigh   RiskSeverity = "high"
	SeverityMedium RiskSeverity = "medium"
	SeverityLow    RiskSeverity = "low"
)

// RiskRecord is one dealbreaker candidate found by the risk analyst.
type RiskRecord struct {
	Type     RiskType     `json:"type"`
	Severity RiskSeverity `json:"severity"`
	Detail   string       `json:"detail"`
}

// Verdict is the risk analyst's veto signal. FastFail is raised only when
// the leading candidate has a dealbreaker; it requests one replanning pass.
type Verdict struct {
	FastFail bool   `json:"fast_fail"`
	Reason   string `json:"reason,omitempty"`
}

// RankedVenue is one shortlist entry: the venue record plus ranking and
// explanation fields. The outer PriceRange and its confidence come from the
// cost analysis and shadow the raw catalog signal.
type RankedVenue struct {
	catalog.Venue

	Rank            int               `json:"rank"`
	CompositeScore  float64           `json:"composite_score"`
	VibeScore       *float64          `json:"vibe_score,omitempty"`
	PriceRange      catalog.PriceBand `json:"price_range,omitempty"`
	PriceConfidence Confidence        `json:"price_confidence,omitempty"`
	Why             string            `json:"why,omitempty"`
	WatchOut        string            `json:"watch_out,omitempty"`
}

// State is the shared record driven through the workflow graph.
//
// Nodes receive a snapshot and return a partial State (a delta); Reduce
// merges deltas field by field. The zero value of a field means "not
// written by this delta", so slice and map fields use non-nil empties to
// record an explicit empty result, and clearable scalars use pointers.
type State struct {
	RawPrompt   string   `json:"raw_prompt,omitempty"`
	UserProfile *Profile `json:"user_profile,omitempty"`

	// MemberLocations and ChatHistory come straight from the request.
	// Member positions anchor discovery when the prompt names no place;
	// chat history is opaque prior-turn context for the planner.
	MemberLocations []Coordinate    `json:"member_locations,omitempty"`
	ChatHistory     json.RawMessage `json:"chat_history,omitempty"`

	ParsedIntent   *Intent               `json:"parsed_intent,omitempty"`
	ComplexityTier Tier                  `json:"complexity_tier,omitempty"`
	ActiveAgents   []AgentName           `json:"active_agents,omitempty"`
	AgentWeights   map[AgentName]float64 `json:"agent_weights,omitempty"`
	MemoryContext  []string              `json:"memory_context,omitempty"`

	CandidateVenues []catalog.Venue `json:"candidate_venues,omitempty"`

	VibeScores   map[string]VibeRecord   `json:"vibe_scores,omitempty"`
	CostProfiles map[string]CostRecord   `json:"cost_profiles,omitempty"`
	RiskFlags    map[string][]RiskRecord `json:"risk_flags,omitempty"`
	Verdict      *Verdict                `json:"verdict,omitempty"`

	RetryCount *int `json:"retry_count,omitempty"`

	RankedResults    []RankedVenue `json:"ranked_results,omitempty"`
	ExecutionSummary string        `json:"execution_summary,omitempty"`
}

// NewState builds the entry state for one run.
func NewState(prompt string, profile *Profile) State {
	return State{RawPrompt: prompt, UserProfile: profile}
}

// Retries returns the current retry count, defaulting to 0.
func (s State) Retries() int {
	if s.RetryCount == nil {
		return 0
	}
	return *s.RetryCount
}

// Vetoed reports whether the risk analyst has raised a fast-fail.
func (s State) Vetoed() bool {
	return s.Verdict != nil && s.Verdict.FastFail
}

// Centroid returns the mean of the group members' positions, or false when
// no positions were supplied.
func (s State) Centroid() (Coordinate, bool) {
	if len(s.MemberLocations) == 0 {
		return Coordinate{}, false
	}
	var c Coordinate
	for _, m := range s.MemberLocations {
		c.Lat += m.Lat
		c.Lng += m.Lng
	}
	c.Lat /= float64(len(s.MemberLocations))
	c.Lng /= float64(len(s.MemberLocations))
	return c, true
}

// Reduce merges a partial update into the previous state. A field is taken
// from the delta when it carries a written value: non-empty for scalars,
// non-nil for pointers, slices, and maps.
func Reduce(prev, delta State) State {
	if delta.RawPrompt != "" {
		prev.RawPrompt = delta.RawPrompt
	}
	if delta.UserProfile != nil {
		prev.UserProfile = delta.UserProfile
	}
	if delta.MemberLocations != nil {
		prev.MemberLocations = delta.MemberLocations
	}
	if delta.ChatHistory != nil {
		prev.ChatHistory = delta.ChatHistory
	}
	if delta.ParsedIntent != nil {
		prev.ParsedIntent = delta.ParsedIntent
	}
	if delta.ComplexityTier != "" {
		prev.ComplexityTier = delta.ComplexityTier
	}
	if delta.ActiveAgents != nil {
		prev.ActiveAgents = delta.ActiveAgents
	}
	if delta.AgentWeights != nil {
		prev.AgentWeights = delta.AgentWeights
	}
	if delta.MemoryContext != nil {
		prev.MemoryContext = delta.MemoryContext
	}
	if delta.CandidateVenues != nil {
		prev.CandidateVenues = delta.CandidateVenues
	}
	if delta.VibeScores != nil {
		prev.VibeScores = delta.VibeScores
	}
	if delta.CostProfiles != nil {
		prev.CostProfiles = delta.CostProfiles
	}
	if delta.RiskFlags != nil {
		prev.RiskFlags = delta.RiskFlags
	}
	if delta.Verdict != nil {
		prev.Verdict = delta.Verdict
	}
	if delta.RetryCount != nil {
		prev.RetryCount = delta.RetryCount
	}
	if delta.RankedResults != nil {
		prev.RankedResults = delta.RankedResults
	}
	if delta.ExecutionSummary != "" {
		prev.ExecutionSummary = delta.ExecutionSummary
	}
	return prev
}

// hasAgent reports whether name is in the active set. An empty active set
// is the degenerate plan and activates every analyst.
func hasAgent(active []AgentName, name AgentName) bool {
	if len(active) == 0 {
		return true
	}
	for _, a := range active {
		if a == name {
			return true
		}
	}
	return false
}

// clampWeight forces a weight into [0,1].
func clampWeight(w float64) float64 {
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}
