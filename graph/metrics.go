// Package graph provides the staged-DAG execution engine for Pathfinder.
package graph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus-compatible metrics collection for graph
// execution monitoring in production environments.
//
// Metrics exposed (all namespaced with "pathfinder_"):
//
//  1. runs_total (counter): Completed runs by terminal status
//     (success, error, cancelled, node_timeout, max_steps).
//  2. inflight_nodes (gauge): Nodes currently executing.
//  3. node_latency_ms (histogram): Node execution duration in milliseconds.
//     Labels: node_id, status (success/error).
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := graph.NewMetrics(registry)
//	engine := graph.New(reducer, graph.WithMetrics(metrics))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// Thread-safe: Prometheus collectors handle concurrent updates internally.
type Metrics struct {
	runsTotal     *prometheus.CounterVec
	inflightNodes prometheus.Gauge
	nodeLatency   *prometheus.HistogramVec
	runsActive    prometheus.Gauge
}

// NewMetrics creates and registers all graph execution metrics with the
// provided Prometheus registry. A nil registry uses the global default.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pathfinder",
			Name:      "runs_total",
			Help:      "Completed pipeline runs by terminal status.",
		}, []string{"status"}),
		runsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "pathfinder",
			Name:      "runs_active",
			Help:      "Pipeline runs currently executing.",
		}),
		inflightNodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "pathfinder",
			Name:      "inflight_nodes",
			Help:      "Nodes currently executing.",
		}),
		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pathfinder",
			Name:      "node_latency_ms",
			Help:      "Node execution duration in milliseconds.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000, 60000},
		}, []string{"node_id", "status"}),
	}
}

func (m *Metrics) runStarted() {
	m.runsActive.Inc()
}

func (m *Metrics) runFinished(status string) {
	m.runsActive.Dec()
	m.runsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) nodeStarted() {
	m.inflightNodes.Inc()
}

func (m *Metrics) nodeFinished(nodeID string, elapsed time.Duration, ok bool) {
	m.inflightNodes.Dec()

	status := "success"
	if !ok {
		status = "error"
	}
	m.nodeLatency.WithLabelValues(nodeID, status).Observe(float64(elapsed.Milliseconds()))
}
