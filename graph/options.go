// Package graph provides the staged-DAG execution engine for Pathfinder.
package graph

import (
	"time"

	"github.com/pathfinder-ai/pathfinder/graph/emit"
)

// Option is a functional option for configuring an Engine.
//
// Functional options provide a clean, extensible API for engine configuration:
//   - Chainable: engine := New(reducer, WithMaxSteps(20), WithEmitter(em))
//   - Self-documenting: option names clearly describe their purpose
//   - Optional: only specify the configuration you need
type Option func(*engineConfig)

// engineConfig collects options before applying them to an Engine.
type engineConfig struct {
	opts     Options
	emitter  emit.Emitter
	metrics  *Metrics
	policies map[string]NodePolicy
}

// WithMaxSteps limits workflow execution to prevent infinite loops.
//
// Default: 0 (no limit, use with caution).
//
// Workflow loops (A → B → A) are fully supported; MaxSteps is the safety net
// when a conditional exit is missing or misconfigured. When exceeded, Run()
// returns ErrMaxStepsExceeded.
func WithMaxSteps(n int) Option {
	return func(cfg *engineConfig) {
		cfg.opts.MaxSteps = n
	}
}

// WithDefaultNodeTimeout bounds every node execution unless a per-node
// policy overrides it. Zero disables per-node deadlines.
func WithDefaultNodeTimeout(d time.Duration) Option {
	return func(cfg *engineConfig) {
		cfg.opts.DefaultNodeTimeout = d
	}
}

// WithNodePolicy attaches an execution policy to a single node, overriding
// engine-wide defaults for that node.
func WithNodePolicy(nodeID string, policy NodePolicy) Option {
	return func(cfg *engineConfig) {
		if cfg.policies == nil {
			cfg.policies = make(map[string]NodePolicy)
		}
		cfg.policies[nodeID] = policy
	}
}

// WithEmitter sets the observability event receiver. A nil emitter disables
// event emission.
func WithEmitter(emitter emit.Emitter) Option {
	return func(cfg *engineConfig) {
		cfg.emitter = emitter
	}
}

// WithMetrics attaches a Prometheus metrics collector to the engine.
func WithMetrics(m *Metrics) Option {
	return func(cfg *engineConfig) {
		cfg.metrics = m
	}
}
