package pipeline

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/pathfinder-ai/pathfinder/catalog"
	"github.com/pathfinder-ai/pathfinder/graph"
	"github.com/pathfinder-ai/pathfinder/graph/emit"
	"github.com/pathfinder-ai/pathfinder/graph/model"
	"github.com/pathfinder-ai/pathfinder/memory"
)

// Node IDs of the planning workflow.
const (
	NodeCommander   = "commander"
	NodeScout       = "scout"
	NodeAnalysts    = "parallel_analysts"
	NodeSynthesiser = "synthesiser"
)

// NodeLabels maps node IDs to the user-readable progress labels shown on
// the streaming transport. Presentation only; routing never reads these.
var NodeLabels = map[string]string{
	NodeCommander:   "Parsing your request...",
	NodeScout:       "Discovering venues...",
	NodeAnalysts:    "Analysing vibes, cost & risks...",
	NodeSynthesiser: "Ranking results...",
}

// maxRetries bounds how many replanning passes a veto may trigger.
const maxRetries = 1

// maxSteps caps engine steps well above the worst legal path (four nodes,
// twice) so a routing bug can never loop forever.
const maxSteps = 16

// Deps are the collaborators the workflow nodes need.
type Deps struct {
	Generator model.Generator
	Catalogs  []catalog.Client
	Weather   ForecastProvider
	Events    EventsProvider
	Memory    memory.Store

	Emitter emit.Emitter
	Metrics *graph.Metrics
	Logger  zerolog.Logger
}

// Build assembles the compiled planning graph:
//
//	commander -> scout -> parallel_analysts -> {commander | synthesiser}
//
// The conditional edge back to the commander fires when the risk analyst
// vetoed the leading candidate and the retry budget is unspent; the
// commander clears the veto on entry, so the budget holds regardless of
// what the analysts report on the second pass.
func Build(deps Deps) (*graph.Engine[State], error) {
	opts := []graph.Option{
		graph.WithMaxSteps(maxSteps),
		graph.WithNodePolicy(NodeCommander, graph.NodePolicy{Timeout: 60 * time.Second}),
		graph.WithNodePolicy(NodeScout, graph.NodePolicy{Timeout: 30 * time.Second}),
		graph.WithNodePolicy(NodeAnalysts, graph.NodePolicy{Timeout: 60 * time.Second}),
		graph.WithNodePolicy(NodeSynthesiser, graph.NodePolicy{Timeout: 90 * time.Second}),
	}
	if deps.Emitter != nil {
		opts = append(opts, graph.WithEmitter(deps.Emitter))
	}
	if deps.Metrics != nil {
		opts = append(opts, graph.WithMetrics(deps.Metrics))
	}

	engine := graph.New(Reduce, opts...)

	vibe := NewVibeMatcher(deps.Generator, deps.Logger)
	cost := NewCostAnalyst()
	critic := NewCritic(deps.Generator, deps.Weather, deps.Events, deps.Memory, deps.Logger)

	nodes := map[string]graph.Node[State]{
		NodeCommander:   NewCommander(deps.Generator, deps.Memory, deps.Logger),
		NodeScout:       NewScout(deps.Catalogs, deps.Logger),
		NodeAnalysts:    NewParallelAnalysts(vibe, cost, critic, deps.Logger),
		NodeSynthesiser: NewSynthesizer(deps.Generator, deps.Logger),
	}
	for id, node := range nodes {
		if err := engine.Add(id, node); err != nil {
			return nil, err
		}
	}

	if err := engine.StartAt(NodeCommander); err != nil {
		return nil, err
	}

	edges := []struct {
		from, to string
		when     graph.Predicate[State]
	}{
		{NodeCommander, NodeScout, nil},
		{NodeScout, NodeAnalysts, nil},
		{NodeAnalysts, NodeCommander, shouldRetry},
		{NodeAnalysts, NodeSynthesiser, nil},
	}
	for _, e := range edges {
		if err := engine.Connect(e.from, e.to, e.when); err != nil {
			return nil, err
		}
	}

	return engine, nil
}

// shouldRetry routes back to the commander on a veto with retry budget
// left.
func shouldRetry(s State) bool {
	return s.Vetoed() && s.Retries() < maxRetries
}
