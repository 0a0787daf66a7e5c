// Package metrics exposes Prometheus collectors for coordinator workflows
// and the admin API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "lakeadmin"

// Workflow outcomes.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeError   = "error"
)

// Activation outcomes.
const (
	ActivationStarted = "started"
	ActivationExists  = "exists"
	ActivationFailed  = "failed"
)

// Collector is a prometheus.Collector holding every lakeadmin metric.
type Collector struct {
	workflows        *prometheus.CounterVec
	workflowDuration *prometheus.HistogramVec
	warnings         *prometheus.CounterVec
	activations      *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		workflows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "workflows_total",
				Help:      "Coordinator workflows by operation and outcome.",
			}, []string{"operation", "outcome"},
		),
		workflowDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "workflow_duration_seconds",
				Help:      "Time spent in coordinator workflows.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			}, []string{"operation"},
		),
		warnings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "workflow_warnings_total",
				Help:      "Failed secondary workflow steps.",
			}, []string{"step"},
		),
		activations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "gateway_activations_total",
				Help:      "Gateway start requests by outcome.",
			}, []string{"outcome"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "Admin API requests by method, route and status code.",
			}, []string{"method", "route", "code"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.workflows.Describe(ch)
	c.workflowDuration.Describe(ch)
	c.warnings.Describe(ch)
	c.activations.Describe(ch)
	c.httpRequests.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.workflows.Collect(ch)
	c.workflowDuration.Collect(ch)
	c.warnings.Collect(ch)
	c.activations.Collect(ch)
	c.httpRequests.Collect(ch)
}

// ObserveWorkflow records one finished workflow. A nil Collector is a no-op.
func (c *Collector) ObserveWorkflow(operation, outcome string, took time.Duration) {
	if c == nil {
		return
	}
	c.workflows.WithLabelValues(operation, outcome).Inc()
	c.workflowDuration.WithLabelValues(operation).Observe(took.Seconds())
}

func (c *Collector) Warning(step string) {
	if c == nil {
		return
	}
	c.warnings.WithLabelValues(step).Inc()
}

func (c *Collector) Activation(outcome string) {
	if c == nil {
		return
	}
	c.activations.WithLabelValues(outcome).Inc()
}

func (c *Collector) HTTPRequest(method, route, code string) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, code).Inc()
}
