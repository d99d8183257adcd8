package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vivon-labs/vivon/sui-assistant/internal/graph"
)

// Prometheus metrics
var (
	chatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_requests_total",
			Help: "Total number of chat requests",
		},
		[]string{"assistant", "mode", "status"},
	)
	chatRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "chat_request_duration_seconds",
			Help: "Duration of chat requests",
		},
		[]string{"assistant", "mode"},
	)
	workflowNodeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "workflow_node_duration_seconds",
			Help: "Duration of workflow node executions",
		},
		[]string{"node", "status"},
	)
	workflowTerminationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_terminations_total",
			Help: "Total number of workflow runs by how they ended",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(chatRequestsTotal)
	prometheus.MustRegister(chatRequestDuration)
	prometheus.MustRegister(workflowNodeDuration)
	prometheus.MustRegister(workflowTerminationsTotal)
}

// NodeMetrics records workflow node timings in prometheus.
type NodeMetrics struct{}

func (NodeMetrics) ObserveNode(node graph.Node, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	workflowNodeDuration.WithLabelValues(node.String(), status).Observe(d.Seconds())
}

func observeTermination(res *graph.Result, err error) {
	switch {
	case err != nil:
		workflowTerminationsTotal.WithLabelValues("error").Inc()
	case res != nil && res.Reason != nil:
		workflowTerminationsTotal.WithLabelValues("recursion_limit").Inc()
	default:
		workflowTerminationsTotal.WithLabelValues("completed").Inc()
	}
}
