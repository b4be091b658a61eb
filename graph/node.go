package graph

import "context"

// Node represents a processing unit in the workflow graph.
// It receives state of type S, performs computation, and returns a NodeResult.
//
// Nodes are the fundamental building blocks of a workflow.
// Each node can:
//   - Read the current state snapshot
//   - Perform computation (call LLMs, external services, or pure logic)
//   - Return state modifications via Delta
//   - Control routing via Route
//   - Report errors
//
// Nodes must be idempotent with respect to retried runs: re-executing a node
// with the same snapshot must be safe.
//
// Type parameter S is the state type shared across the workflow.
type Node[S any] interface {
	// Run executes the node's logic with the given context and state.
	// It returns a NodeResult containing state changes, routing decisions,
	// and any errors encountered.
	Run(ctx context.Context, state S) NodeResult[S]
}

// NodeResult represents the output of a node execution.
type NodeResult[S any] struct {
	// Delta is the partial state update produced by this node.
	// It will be merged with the current state using the configured reducer.
	Delta S

	// Route specifies the next step in workflow execution.
	// Use Stop() for terminal nodes, Goto(id) for explicit routing, or leave
	// it zero to fall back to edge-based routing.
	Route Next

	// Err contains any error that occurred during node execution.
	// Non-nil errors halt the workflow.
	Err error
}

// Next specifies the next step in workflow execution after a node completes.
//
// It supports three routing modes:
//   - Zero value: fall back to edge-based routing
//   - Single: go to a specific node (Route.To = "nodeID")
//   - Terminal: stop execution (Route.Terminal = true)
type Next struct {
	// To specifies the next single node to execute.
	// Mutually exclusive with Terminal.
	To string

	// Terminal indicates workflow execution should stop.
	Terminal bool
}

// Stop returns a Next that terminates workflow execution.
func Stop() Next {
	return Next{Terminal: true}
}

// Goto returns a Next that routes to the specified node.
func Goto(nodeID string) Next {
	return Next{To: nodeID}
}

// NodeFunc is a function adapter that implements the Node interface.
// It allows using plain functions as nodes without creating custom types.
//
// Example:
//
//	processNode := NodeFunc[MyState](func(ctx context.Context, s MyState) NodeResult[MyState] {
//	    return NodeResult[MyState]{
//	        Delta: MyState{Result: "processed"},
//	        Route: Stop(),
//	    }
//	})
type NodeFunc[S any] func(ctx context.Context, state S) NodeResult[S]

// Run implements the Node interface for NodeFunc.
func (f NodeFunc[S]) Run(ctx context.Context, state S) NodeResult[S] {
	return f(ctx, state)
}

// NodeError represents an error that occurred during node execution.
// It provides structured error information for better observability.
type NodeError struct {
	// Message is the human-readable error description.
	Message string

	// Code is a machine-readable error code for programmatic handling.
	Code string

	// NodeID identifies which node produced this error.
	NodeID string

	// Cause is the underlying error that caused this NodeError.
	Cause error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap returns the underlying cause error for error wrapping support.
func (e *NodeError) Unwrap() error {
	return e.Cause
}
