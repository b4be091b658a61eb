package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pathfinder-ai/pathfinder/graph"
)

const (
	vibeTimeout   = 45 * time.Second
	criticTimeout = 45 * time.Second
	costTimeout   = 10 * time.Second
)

// ParallelAnalysts fans out the vibe, cost, and risk analysts over the
// candidate set and fans their partial updates back into one delta.
//
// An analyst runs when it is in the active set, or unconditionally when
// the set is empty (the degenerate plan). Each task gets an independent
// deep copy of the state and its own deadline; a task that times out,
// fails, or panics contributes its empty-but-well-shaped partial so the
// ranking stage never sees missing keys. The three write disjoint fields,
// which keeps the fan-in merge deterministic.
type ParallelAnalysts struct {
	vibe   *VibeMatcher
	cost   *CostAnalyst
	critic *Critic
	log    zerolog.Logger
}

func NewParallelAnalysts(vibe *VibeMatcher, cost *CostAnalyst, critic *Critic, log zerolog.Logger) *ParallelAnalysts {
	return &ParallelAnalysts{
		vibe:   vibe,
		cost:   cost,
		critic: critic,
		log:    log.With().Str("node", NodeAnalysts).Logger(),
	}
}

// analystTask is one fan-out branch with its isolation policy.
type analystTask struct {
	name     AgentName
	timeout  time.Duration
	run      func(ctx context.Context, snapshot State) State
	fallback func() State
}

// Run implements graph.Node.
func (p *ParallelAnalysts) Run(ctx context.Context, state State) graph.NodeResult[State] {
	tasks := p.activeTasks(state)
	if len(tasks) == 0 {
		return graph.NodeResult[State]{}
	}

	results := make([]State, len(tasks))
	var wg sync.WaitGroup
	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t analystTask) {
			defer wg.Done()
			results[i] = p.runIsolated(ctx, t, state)
		}(i, t)
	}
	wg.Wait()

	merged := State{}
	for _, r := range results {
		merged = Reduce(merged, r)
	}
	return graph.NodeResult[State]{Delta: merged}
}

func (p *ParallelAnalysts) activeTasks(state State) []analystTask {
	var tasks []analystTask

	if hasAgent(state.ActiveAgents, AgentVibeMatcher) {
		tasks = append(tasks, analystTask{
			name:     AgentVibeMatcher,
			timeout:  vibeTimeout,
			run:      p.vibe.analyze,
			fallback: func() State { return State{VibeScores: map[string]VibeRecord{}} },
		})
	}

	if hasAgent(state.ActiveAgents, AgentCritic) {
		tasks = append(tasks, analystTask{
			name:     AgentCritic,
			timeout:  criticTimeout,
			run:      p.critic.analyze,
			fallback: func() State {
				return State{RiskFlags: map[string][]RiskRecord{}, Verdict: &Verdict{}}
			},
		})
	}

	if hasAgent(state.ActiveAgents, AgentCostAnalyst) {
		tasks = append(tasks, analystTask{
			name:    AgentCostAnalyst,
			timeout: costTimeout,
			run: func(ctx context.Context, snapshot State) State {
				return State{CostProfiles: p.cost.Analyze(snapshot.CandidateVenues)}
			},
			fallback: func() State { return State{CostProfiles: map[string]CostRecord{}} },
		})
	}

	return tasks
}

// runIsolated executes one analyst on its own snapshot with its own
// deadline. Failure of any kind yields the analyst's fallback partial.
func (p *ParallelAnalysts) runIsolated(ctx context.Context, t analystTask, state State) State {
	snapshot, err := graph.Clone(state)
	if err != nil {
		p.log.Error().Err(err).Str("analyst", string(t.name)).Msg("state snapshot failed")
		return t.fallback()
	}

	taskCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan State, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.log.Error().Interface("panic", r).Str("analyst", string(t.name)).Msg("analyst panicked")
				done <- t.fallback()
			}
		}()
		done <- t.run(taskCtx, snapshot)
	}()

	select {
	case delta := <-done:
		return delta
	case <-taskCtx.Done():
		p.log.Warn().Str("analyst", string(t.name)).Msg("analyst timed out, using fallback")
		return t.fallback()
	}
}
