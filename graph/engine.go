package graph

import (
	"context"
	"sync"
	"time"

	"github.com/pathfinder-ai/pathfinder/graph/emit"
)

// Engine orchestrates staged workflow execution over a typed shared state.
//
// The Engine is the core runtime that:
//   - Manages workflow graph topology (nodes and edges)
//   - Executes nodes in sequence, following static and conditional edges
//   - Merges partial state updates via the reducer
//   - Enforces per-node timeouts and the MaxSteps limit
//   - Emits observability events via the emitter
//   - Streams node completions to a consumer for progress reporting
//
// Type parameter S is the state type shared across the workflow.
//
// Example:
//
//	reducer := func(prev, delta MyState) MyState {
//	    if delta.Query != "" {
//	        prev.Query = delta.Query
//	    }
//	    return prev
//	}
//
//	engine := New(reducer, WithMaxSteps(20))
//	engine.Add("process", processNode)
//	engine.StartAt("process")
//
//	final, err := engine.Run(ctx, "run-001", MyState{Query: "hello"})
type Engine[S any] struct {
	mu sync.RWMutex

	// reducer merges partial state updates deterministically
	reducer Reducer[S]

	// nodes maps node IDs to Node implementations
	nodes map[string]Node[S]

	// policies holds optional per-node execution policies
	policies map[string]NodePolicy

	// edges defines transitions between nodes
	edges []Edge[S]

	// startNode is the entry point for workflow execution
	startNode string

	// emitter receives observability events
	emitter emit.Emitter

	// metrics records Prometheus execution metrics (optional)
	metrics *Metrics

	// opts contains execution configuration
	opts Options
}

// Reducer merges a partial state update (delta) into the previous state,
// returning the new canonical state. Reducers must be deterministic and
// must not mutate prev in place when S contains reference types a node
// may still hold.
type Reducer[S any] func(prev, delta S) S

// Options configures Engine execution behavior.
//
// Zero values are valid - the Engine will use sensible defaults.
type Options struct {
	// MaxSteps limits workflow execution to prevent infinite loops.
	// If 0, no limit is enforced (use with caution).
	MaxSteps int

	// DefaultNodeTimeout bounds each node execution unless a NodePolicy
	// overrides it. If 0, nodes run without a per-node deadline.
	DefaultNodeTimeout time.Duration
}

// StepEvent describes one completed node during a streamed run.
//
// For intermediate events, NodeID names the completed node, Delta carries the
// partial update it produced, and State is the canonical state after merging.
// Exactly one terminal event is delivered per run: Done is true, State holds
// the final state, and Err is non-nil when the run failed.
type StepEvent[S any] struct {
	NodeID string
	Step   int
	Delta  S
	State  S
	Done   bool
	Err    error
}

// New creates a new Engine with the given reducer and functional options.
//
// The reducer is required; it is validated when Run or Stream is called so
// that construction can never fail.
func New[S any](reducer Reducer[S], opts ...Option) *Engine[S] {
	cfg := engineConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Engine[S]{
		reducer:  reducer,
		nodes:    make(map[string]Node[S]),
		policies: cfg.policies,
		edges:    make([]Edge[S], 0),
		emitter:  cfg.emitter,
		metrics:  cfg.metrics,
		opts:     cfg.opts,
	}
}

// Add registers a node in the workflow graph.
//
// Node IDs must be unique within the workflow.
func (e *Engine[S]) Add(nodeID string, node Node[S]) error {
	if nodeID == "" {
		return &EngineError{Message: "node ID cannot be empty"}
	}
	if node == nil {
		return &EngineError{Message: "node cannot be nil"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.nodes[nodeID]; exists {
		return &EngineError{
			Message: "duplicate node ID: " + nodeID,
			Code:    "DUPLICATE_NODE",
		}
	}

	e.nodes[nodeID] = node
	return nil
}

// StartAt sets the entry point for workflow execution.
//
// The node must have been registered via Add() before calling StartAt.
func (e *Engine[S]) StartAt(nodeID string) error {
	if nodeID == "" {
		return &EngineError{Message: "start node ID cannot be empty"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.nodes[nodeID]; !exists {
		return &EngineError{
			Message: "start node does not exist: " + nodeID,
			Code:    "NODE_NOT_FOUND",
		}
	}

	e.startNode = nodeID
	return nil
}

// Connect creates an edge between two nodes.
//
// Edges can be unconditional (predicate = nil) or conditional (only traversed
// when the predicate returns true for the current state). Edges are evaluated
// in registration order and the first match wins, so register conditional
// edges before their unconditional fallback.
func (e *Engine[S]) Connect(from, to string, predicate Predicate[S]) error {
	if from == "" {
		return &EngineError{Message: "from node ID cannot be empty"}
	}
	if to == "" {
		return &EngineError{Message: "to node ID cannot be empty"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.edges = append(e.edges, Edge[S]{From: from, To: to, When: predicate})
	return nil
}

// Run executes the workflow from start to completion or error, returning
// the final state.
//
// The caller bounds the whole run by passing a context with a deadline;
// expiry surfaces as ctx.Err() so transports can distinguish a pipeline
// timeout from node failures.
func (e *Engine[S]) Run(ctx context.Context, runID string, initial S) (S, error) {
	return e.run(ctx, runID, initial, nil)
}

// Stream executes the workflow and delivers one StepEvent per completed node,
// followed by exactly one terminal event (Done=true) carrying the final state
// or the run error. The returned channel is closed after the terminal event.
//
// Event delivery respects ctx: if the consumer goes away and cancels the
// context, the run stops cooperatively.
func (e *Engine[S]) Stream(ctx context.Context, runID string, initial S) <-chan StepEvent[S] {
	out := make(chan StepEvent[S])

	go func() {
		defer close(out)

		final, err := e.run(ctx, runID, initial, func(ev StepEvent[S]) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		})

		// Consumers must drain the channel until close; the terminal event is
		// delivered even after cancellation so every run yields exactly one
		// Done event.
		out <- StepEvent[S]{State: final, Done: true, Err: err}
	}()

	return out
}

// run is the shared execution loop behind Run and Stream. The observe callback
// (may be nil) is invoked after each node completes; returning false aborts
// the run (consumer gone).
func (e *Engine[S]) run(ctx context.Context, runID string, initial S, observe func(StepEvent[S]) bool) (S, error) {
	var zero S

	if e.reducer == nil {
		return zero, &EngineError{
			Message: "reducer is required",
			Code:    "MISSING_REDUCER",
		}
	}

	e.mu.RLock()
	startNode := e.startNode
	_, exists := e.nodes[startNode]
	e.mu.RUnlock()

	if startNode == "" {
		return zero, &EngineError{
			Message: "start node not set (call StartAt before Run)",
			Code:    "NO_START_NODE",
		}
	}
	if !exists {
		return zero, &EngineError{
			Message: "start node does not exist: " + startNode,
			Code:    "NODE_NOT_FOUND",
		}
	}

	if e.metrics != nil {
		e.metrics.runStarted()
	}

	currentState := initial
	currentNode := startNode
	step := 0

	for {
		step++

		if e.opts.MaxSteps > 0 && step > e.opts.MaxSteps {
			e.finishRun("max_steps")
			return zero, ErrMaxStepsExceeded
		}

		select {
		case <-ctx.Done():
			e.finishRun("cancelled")
			return zero, ctx.Err()
		default:
		}

		e.mu.RLock()
		nodeImpl, exists := e.nodes[currentNode]
		policy, hasPolicy := e.policies[currentNode]
		e.mu.RUnlock()

		if !exists {
			e.finishRun("error")
			return zero, &EngineError{
				Message: "node not found during execution: " + currentNode,
				Code:    "NODE_NOT_FOUND",
			}
		}

		var nodePolicy *NodePolicy
		if hasPolicy {
			nodePolicy = &policy
		}

		started := time.Now()
		if e.metrics != nil {
			e.metrics.nodeStarted()
		}

		result, timeoutErr := executeNodeWithTimeout(ctx, nodeImpl, currentNode, currentState, nodePolicy, e.opts.DefaultNodeTimeout)

		if e.metrics != nil {
			e.metrics.nodeFinished(currentNode, time.Since(started), result.Err == nil && timeoutErr == nil)
		}

		if timeoutErr != nil {
			e.finishRun("node_timeout")
			return zero, timeoutErr
		}
		if result.Err != nil {
			e.finishRun("error")
			return zero, result.Err
		}

		currentState = e.reducer(currentState, result.Delta)

		if e.emitter != nil {
			e.emitter.Emit(emit.Event{
				RunID:  runID,
				Step:   step,
				NodeID: currentNode,
				Msg:    "node completed",
				Meta: map[string]interface{}{
					"duration_ms": time.Since(started).Milliseconds(),
				},
			})
		}

		if observe != nil {
			ok := observe(StepEvent[S]{
				NodeID: currentNode,
				Step:   step,
				Delta:  result.Delta,
				State:  currentState,
			})
			if !ok {
				e.finishRun("cancelled")
				return zero, ctx.Err()
			}
		}

		if result.Route.Terminal {
			e.finishRun("success")
			return currentState, nil
		}

		if result.Route.To != "" {
			currentNode = result.Route.To
			continue
		}

		nextNode := e.evaluateEdges(currentNode, currentState)
		if nextNode == "" {
			e.finishRun("error")
			return zero, &EngineError{
				Message: "no valid route from node: " + currentNode,
				Code:    "NO_ROUTE",
			}
		}

		currentNode = nextNode
	}
}

// evaluateEdges finds the first matching edge from the given node.
//
// Unconditional edges (nil predicate) always match; otherwise the predicate
// is evaluated against the current state. First match wins.
func (e *Engine[S]) evaluateEdges(fromNode string, state S) string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, edge := range e.edges {
		if edge.From != fromNode {
			continue
		}
		if edge.When == nil || edge.When(state) {
			return edge.To
		}
	}

	return ""
}

func (e *Engine[S]) finishRun(status string) {
	if e.metrics != nil {
		e.metrics.runFinished(status)
	}
}

// EngineError represents an error from Engine operations.
type EngineError struct {
	Message string
	Code    string
}

func (e *EngineError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}
