// Package graph provides the staged-DAG execution engine for Pathfinder.
package graph

import "time"

// NodePolicy configures the execution behavior for a specific node.
//
// Policies are attached to nodes via WithNodePolicy and enforced by the
// engine. If not specified, defaults from Options are used.
type NodePolicy struct {
	// Timeout is the maximum execution time allowed for this node.
	// If zero, Options.DefaultNodeTimeout is used.
	Timeout time.Duration
}
