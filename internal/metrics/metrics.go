// Package metrics holds Prometheus instrumentation for the triage service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for investigation observability.
type Metrics struct {
	InvestigationsStarted   prometheus.Counter
	InvestigationsCompleted prometheus.Counter
	InvestigationsFailed    prometheus.Counter
	ActiveInvestigations    prometheus.Gauge

	// ReasoningCalls counts text-completion calls by outcome (ok, error).
	ReasoningCalls *prometheus.CounterVec

	// ToolInvocations counts tool calls by tool name and outcome.
	ToolInvocations *prometheus.CounterVec

	// ToolDuration observes tool call latency by tool name.
	ToolDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all triage metrics against the given
// registerer. Tests pass a fresh prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		InvestigationsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triage_investigations_started_total",
			Help: "Total number of investigations started",
		}),
		InvestigationsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triage_investigations_completed_total",
			Help: "Total number of investigations that produced findings",
		}),
		InvestigationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triage_investigations_failed_total",
			Help: "Total number of investigations that terminated with an error",
		}),
		ActiveInvestigations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "triage_investigations_active",
			Help: "Number of investigations currently in flight",
		}),
		ReasoningCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_reasoning_calls_total",
			Help: "Total number of reasoning service calls by outcome",
		}, []string{"outcome"}),
		ToolInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_tool_invocations_total",
			Help: "Total number of tool invocations by tool and outcome",
		}, []string{"tool", "outcome"}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "triage_tool_duration_seconds",
			Help:    "Tool invocation latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
	}

	reg.MustRegister(
		m.InvestigationsStarted,
		m.InvestigationsCompleted,
		m.InvestigationsFailed,
		m.ActiveInvestigations,
		m.ReasoningCalls,
		m.ToolInvocations,
		m.ToolDuration,
	)

	return m
}
