package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pathfinder-ai/pathfinder/graph"
	"github.com/pathfinder-ai/pathfinder/graph/model"
	"github.com/pathfinder-ai/pathfinder/memory"
)

// llmTimeout bounds a single generation call.
const llmTimeout = 30 * time.Second

// memoryTopK is how many context chunks the pre-query lookup fetches.
const memoryTopK = 2

// Commander parses the raw prompt into an execution plan: structured
// intent, a complexity tier, the set of analysts to activate, and a weight
// per analyst. It also runs the advisory memory-context lookup.
//
// On a replanning pass (the risk analyst vetoed the previous shortlist) it
// clears the veto, increments the retry counter, and asks the model for an
// alternative plan.
type Commander struct {
	gen model.Generator
	mem memory.Store
	log zerolog.Logger
}

func NewCommander(gen model.Generator, mem memory.Store, log zerolog.Logger) *Commander {
	return &Commander{gen: gen, mem: mem, log: log.With().Str("node", NodeCommander).Logger()}
}

// Run implements graph.Node.
func (c *Commander) Run(ctx context.Context, state State) graph.NodeResult[State] {
	delta := State{}

	if state.Vetoed() {
		retries := state.Retries() + 1
		delta.RetryCount = &retries
		delta.Verdict = &Verdict{}
		c.log.Info().
			Int("retry_count", retries).
			Str("reason", state.Verdict.Reason).
			Msg("replanning after veto")
	}

	plan, err := c.plan(ctx, state)
	if err != nil {
		c.log.Error().Err(err).Msg("plan generation failed, using fallback plan")
		plan = fallbackPlan()
	}

	delta.ParsedIntent = &plan.ParsedIntent
	delta.ComplexityTier = plan.ComplexityTier
	delta.ActiveAgents = c.normalizeAgents(plan.ActiveAgents)
	delta.AgentWeights = c.normalizeWeights(plan.AgentWeights, delta.ActiveAgents, state.UserProfile)
	delta.MemoryContext = c.memoryContext(ctx, state.RawPrompt)

	return graph.NodeResult[State]{Delta: delta}
}

type executionPlan struct {
	ParsedIntent   Intent                `json:"parsed_intent"`
	ComplexityTier Tier                  `json:"complexity_tier"`
	ActiveAgents   []AgentName           `json:"active_agents"`
	AgentWeights   map[AgentName]float64 `json:"agent_weights"`
}

// fallbackPlan is the safe plan used when the model output is unusable:
// discovery only, nothing else.
func fallbackPlan() executionPlan {
	return executionPlan{
		ComplexityTier: Tier1,
		ActiveAgents:   []AgentName{AgentScout},
		AgentWeights:   map[AgentName]float64{AgentScout: 1.0},
	}
}

func (c *Commander) plan(ctx context.Context, state State) (executionPlan, error) {
	genCtx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()

	raw, err := c.gen.Generate(genCtx, model.Request{Prompt: c.buildPrompt(state)})
	if err != nil {
		return executionPlan{}, fmt.Errorf("commander generation failed: %w", err)
	}

	var plan executionPlan
	if err := decodeModelJSON(planSchema, raw, &plan); err != nil {
		return executionPlan{}, err
	}
	if plan.ComplexityTier == "" {
		plan.ComplexityTier = Tier2
	}
	return plan, nil
}

func (c *Commander) buildPrompt(state State) string {
	prompt := fmt.Sprintf(`You are a venue-planning orchestrator. Analyze the user's query and output a JSON execution plan.
Query: %q

Determine:
1. Intent parameters (activity, group_size, budget, location, vibe).
2. Complexity tier:
   - "tier_1": simple lookup (discovery only or light analysis)
   - "tier_2": multi-factor personal request (group activity, constraints)
   - "tier_3": strategic request (deep research, all analysts)
3. Active agents, chosen from ["scout", "vibe_matcher", "cost_analyst", "critic"]. Scout is always mandatory.
4. Agent weights: a float from 0.0 to 1.0 per activated agent indicating its importance.

Output exactly this JSON shape:
{
  "parsed_intent": {"activity": "...", "group_size": 4, "budget": "low", "location": "...", "vibe": "..."},
  "complexity_tier": "tier_2",
  "active_agents": ["scout", "cost_analyst", "critic"],
  "agent_weights": {"scout": 1.0, "cost_analyst": 0.8, "critic": 0.6}
}
Do not output markdown code blocks. Only the raw JSON string.`, state.RawPrompt)

	if len(state.ChatHistory) > 0 {
		prompt += fmt.Sprintf("\n\nPrior conversation turns, for context:\n%s", state.ChatHistory)
	}
	if state.Vetoed() && state.Verdict.Reason != "" {
		prompt += fmt.Sprintf("\n\nA previous plan was vetoed for this reason: %q. Produce an alternative plan that avoids it.", state.Verdict.Reason)
	}
	return prompt
}

// normalizeAgents guarantees scout membership and drops unknown names.
func (c *Commander) normalizeAgents(agents []AgentName) []AgentName {
	known := map[AgentName]bool{
		AgentScout: true, AgentVibeMatcher: true, AgentCostAnalyst: true, AgentCritic: true,
	}

	out := make([]AgentName, 0, len(agents)+1)
	hasScout := false
	for _, a := range agents {
		if !known[a] {
			c.log.Warn().Str("agent", string(a)).Msg("dropping unknown agent from plan")
			continue
		}
		if a == AgentScout {
			hasScout = true
		}
		out = append(out, a)
	}
	if !hasScout {
		out = append([]AgentName{AgentScout}, out...)
	}
	return out
}

// normalizeWeights clamps weights to [0,1], restricts them to active
// agents, and applies profile-based adjustments.
func (c *Commander) normalizeWeights(weights map[AgentName]float64, active []AgentName, profile *Profile) map[AgentName]float64 {
	out := make(map[AgentName]float64, len(active))
	for _, a := range active {
		w, ok := weights[a]
		if !ok {
			w = 1.0
		}
		out[a] = clampWeight(w)
	}

	if profile != nil && profile.BudgetSensitive {
		if _, ok := out[AgentCostAnalyst]; ok {
			out[AgentCostAnalyst] = clampWeight(out[AgentCostAnalyst] + 0.2)
		}
	}
	return out
}

// memoryContext runs the advisory pre-query lookup. A failing store
// degrades to empty context.
func (c *Commander) memoryContext(ctx context.Context, prompt string) []string {
	chunks, err := c.mem.Search(ctx, prompt, memoryTopK)
	if err != nil {
		c.log.Warn().Err(err).Msg("memory context lookup failed")
		return []string{}
	}
	if chunks == nil {
		chunks = []string{}
	}
	return chunks
}
