// Package graph provides the staged-DAG execution engine for Pathfinder.
package graph

import "errors"

// ErrMaxStepsExceeded indicates that the graph execution reached the maximum
// allowed step count without completing. This prevents infinite loops when a
// conditional exit is missing or misconfigured.
var ErrMaxStepsExceeded = errors.New("execution exceeded maximum steps limit")
