package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathfinder-ai/pathfinder/graph/model"
)

const validPlanJSON = `{
	"parsed_intent": {"activity": "cafe", "group_size": 4, "budget": "low", "location": "downtown", "vibe": "cozy"},
	"complexity_tier": "tier_2",
	"active_agents": ["scout", "vibe_matcher", "cost_analyst", "critic"],
	"agent_weights": {"scout": 1.0, "vibe_matcher": 0.9, "cost_analyst": 0.7, "critic": 0.5}
}`

func TestCommanderParsesPlan(t *testing.T) {
	gen := &model.MockGenerator{Responses: []string{validPlanJSON}}
	commander := NewCommander(gen, &stubMemory{}, testLogger())

	result := commander.Run(context.Background(), State{RawPrompt: "cozy cafe for four"})
	require.NoError(t, result.Err)

	delta := result.Delta
	require.NotNil(t, delta.ParsedIntent)
	assert.Equal(t, "cafe", delta.ParsedIntent.Activity)
	assert.Equal(t, 4, delta.ParsedIntent.GroupSize)
	assert.Equal(t, Tier2, delta.ComplexityTier)
	assert.Equal(t, []AgentName{AgentScout, AgentVibeMatcher, AgentCostAnalyst, AgentCritic}, delta.ActiveAgents)
	assert.InDelta(t, 0.9, delta.AgentWeights[AgentVibeMatcher], 1e-9)
}

func TestCommanderStripsFences(t *testing.T) {
	gen := &model.MockGenerator{Responses: []string{"```json\n" + validPlanJSON + "\n```"}}
	commander := NewCommander(gen, &stubMemory{}, testLogger())

	result := commander.Run(context.Background(), State{RawPrompt: "cozy cafe"})
	require.NotNil(t, result.Delta.ParsedIntent)
	assert.Equal(t, "cafe", result.Delta.ParsedIntent.Activity)
}

func TestCommanderFallbackPlan(t *testing.T) {
	tests := []struct {
		name string
		gen  *model.MockGenerator
	}{
		{"generation error", &model.MockGenerator{Err: errors.New("provider down")}},
		{"malformed output", &model.MockGenerator{Responses: []string{"I think you should try a cafe!"}}},
		{"empty output", &model.MockGenerator{Responses: []string{""}}},
		{"schema violation", &model.MockGenerator{Responses: []string{`{"complexity_tier": "tier_9"}`}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commander := NewCommander(tt.gen, &stubMemory{}, testLogger())
			result := commander.Run(context.Background(), State{RawPrompt: "anything"})

			require.NoError(t, result.Err, "plan failure degrades, never errors")
			delta := result.Delta
			assert.Equal(t, Tier1, delta.ComplexityTier)
			assert.Equal(t, []AgentName{AgentScout}, delta.ActiveAgents)
			assert.Equal(t, map[AgentName]float64{AgentScout: 1.0}, delta.AgentWeights)
			assert.NotNil(t, delta.MemoryContext)
		})
	}
}

func TestCommanderForcesScoutMembership(t *testing.T) {
	gen := &model.MockGenerator{Responses: []string{`{
		"parsed_intent": {},
		"complexity_tier": "tier_1",
		"active_agents": ["critic"],
		"agent_weights": {"critic": 0.5}
	}`}}
	commander := NewCommander(gen, &stubMemory{}, testLogger())

	result := commander.Run(context.Background(), State{RawPrompt: "x"})
	assert.Contains(t, result.Delta.ActiveAgents, AgentScout)
	assert.InDelta(t, 1.0, result.Delta.AgentWeights[AgentScout], 1e-9, "missing weight defaults to 1.0")
}

func TestCommanderClampsWeights(t *testing.T) {
	gen := &model.MockGenerator{Responses: []string{`{
		"parsed_intent": {},
		"complexity_tier": "tier_2",
		"active_agents": ["scout", "critic", "cost_analyst"],
		"agent_weights": {"scout": 1.7, "critic": -0.3, "cost_analyst": 0.5}
	}`}}
	commander := NewCommander(gen, &stubMemory{}, testLogger())

	result := commander.Run(context.Background(), State{RawPrompt: "x"})
	assert.InDelta(t, 1.0, result.Delta.AgentWeights[AgentScout], 1e-9)
	assert.InDelta(t, 0.0, result.Delta.AgentWeights[AgentCritic], 1e-9)
}

func TestCommanderBudgetSensitiveProfileBumpsCostWeight(t *testing.T) {
	gen := &model.MockGenerator{Responses: []string{`{
		"parsed_intent": {},
		"complexity_tier": "tier_2",
		"active_agents": ["scout", "cost_analyst"],
		"agent_weights": {"scout": 1.0, "cost_analyst": 0.7}
	}`}}
	commander := NewCommander(gen, &stubMemory{}, testLogger())

	state := State{
		RawPrompt:   "cheap eats",
		UserProfile: &Profile{Subject: "user-1", BudgetSensitive: true},
	}
	result := commander.Run(context.Background(), state)

	assert.InDelta(t, 0.9, result.Delta.AgentWeights[AgentCostAnalyst], 1e-9)
}

func TestCommanderMemoryContext(t *testing.T) {
	t.Run("lookup succeeds", func(t *testing.T) {
		mem := &stubMemory{chunks: []string{"rooftop bars flood in rain", "west end is busy saturdays", "third chunk"}}
		commander := NewCommander(&model.MockGenerator{Responses: []string{validPlanJSON}}, mem, testLogger())

		result := commander.Run(context.Background(), State{RawPrompt: "rooftop bar"})
		assert.Len(t, result.Delta.MemoryContext, 2, "context lookup is capped at top 2")
		assert.Equal(t, []string{"rooftop bar"}, mem.queries)
	})

	t.Run("lookup failure degrades to empty", func(t *testing.T) {
		mem := &stubMemory{err: errors.New("store offline")}
		commander := NewCommander(&model.MockGenerator{Responses: []string{validPlanJSON}}, mem, testLogger())

		result := commander.Run(context.Background(), State{RawPrompt: "rooftop bar"})
		require.NotNil(t, result.Delta.MemoryContext)
		assert.Empty(t, result.Delta.MemoryContext)
	})
}

func TestCommanderClearsVetoAndCountsRetry(t *testing.T) {
	gen := &model.MockGenerator{Responses: []string{validPlanJSON}}
	commander := NewCommander(gen, &stubMemory{}, testLogger())

	state := State{
		RawPrompt: "picnic in the park",
		Verdict:   &Verdict{FastFail: true, Reason: "heavy rain forecast"},
	}
	result := commander.Run(context.Background(), state)

	delta := result.Delta
	require.NotNil(t, delta.Verdict)
	assert.False(t, delta.Verdict.FastFail, "incoming veto must be cleared")
	require.NotNil(t, delta.RetryCount)
	assert.Equal(t, 1, *delta.RetryCount)

	require.NotEmpty(t, gen.Calls)
	assert.Contains(t, gen.Calls[0].Prompt, "heavy rain forecast", "replanning prompt carries the veto reason")
}

func TestCommanderFirstEntryLeavesRetryUnset(t *testing.T) {
	commander := NewCommander(&model.MockGenerator{Responses: []string{validPlanJSON}}, &stubMemory{}, testLogger())

	result := commander.Run(context.Background(), State{RawPrompt: "cafe"})
	assert.Nil(t, result.Delta.RetryCount)
	assert.Nil(t, result.Delta.Verdict)
}

func TestCommanderIncludesChatHistory(t *testing.T) {
	gen := &model.MockGenerator{Responses: []string{validPlanJSON}}
	commander := NewCommander(gen, &stubMemory{}, testLogger())

	state := State{
		RawPrompt:   "same place as last time but cheaper",
		ChatHistory: []byte(`[{"role":"user","content":"we went to Bar Raval"}]`),
	}
	result := commander.Run(context.Background(), state)
	require.NoError(t, result.Err)

	require.NotEmpty(t, gen.Calls)
	assert.Contains(t, gen.Calls[0].Prompt, "Bar Raval")
}
