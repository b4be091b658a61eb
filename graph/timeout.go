package graph

import (
	"context"
	"fmt"
	"time"
)

// getNodeTimeout determines the timeout duration for a node based on precedence:
// 1. NodePolicy.Timeout (per-node override)
// 2. defaultTimeout (engine-wide default)
// 3. 0 (no timeout, unlimited execution)
func getNodeTimeout(policy *NodePolicy, defaultTimeout time.Duration) time.Duration {
	if policy != nil && policy.Timeout > 0 {
		return policy.Timeout
	}
	if defaultTimeout > 0 {
		return defaultTimeout
	}
	return 0
}

// executeNodeWithTimeout wraps node execution with timeout enforcement.
//
// It determines the timeout based on precedence (NodePolicy > DefaultNodeTimeout),
// creates a timeout context if needed, executes the node, and converts a
// deadline expiry into a structured EngineError.
func executeNodeWithTimeout[S any](
	ctx context.Context,
	node Node[S],
	nodeID string,
	state S,
	policy *NodePolicy,
	defaultTimeout time.Duration,
) (NodeResult[S], error) {
	timeout := getNodeTimeout(policy, defaultTimeout)

	if timeout == 0 {
		result := node.Run(ctx, state)
		return result, nil
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := node.Run(timeoutCtx, state)

	// Distinguish the node's own deadline from a cancelled parent, so a
	// global pipeline timeout is never misreported as a node timeout.
	if timeoutCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		timeoutErr := &EngineError{
			Message: fmt.Sprintf("node %s exceeded timeout of %v", nodeID, timeout),
			Code:    "NODE_TIMEOUT",
		}
		return result, timeoutErr
	}

	return result, nil
}
