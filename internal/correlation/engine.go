// Package correlation implements rule-based root cause suggestion over
// collected evidence. It backs up the investigation engine when the
// reasoning service cannot deliver a final analysis.
package correlation

import (
	"strings"

	"github.com/opsloop/triage/internal/knowledge"
	"github.com/opsloop/triage/internal/logging"
	"github.com/opsloop/triage/internal/models"
)

var logger = logging.GetLogger("correlation")

// Engine matches evidence against a fixed rule set. An optional
// knowledge graph sharpens the dependency rule by naming the unreachable
// upstream component.
type Engine struct {
	graph *knowledge.Graph
}

// NewEngine creates a correlation engine. The graph may be nil.
func NewEngine(graph *knowledge.Graph) *Engine {
	return &Engine{graph: graph}
}

// Correlate scans the evidence and returns a rule-based result, or false
// when no rule matches.
func (e *Engine) Correlate(description string, evidence []models.EvidenceItem) (*models.InvestigationResult, bool) {
	var combined strings.Builder
	for _, item := range evidence {
		combined.WriteString(item.Content)
		combined.WriteString("\n")
	}
	text := combined.String()

	// Rule 1: OOM kills with restarts point at memory limits.
	if strings.Contains(text, "OOMKilled") && containsRestarts(text) {
		return e.result(
			"Insufficient Memory",
			models.ConfidenceHigh,
			"Evidence shows OOMKilled container state together with restarts.",
			[]string{"Increase the container memory limit", "Review the workload's memory usage profile"},
		), true
	}

	// Rule 2: scheduling failures point at cluster capacity.
	if strings.Contains(text, "FailedScheduling") {
		return e.result(
			"Insufficient Cluster Resources",
			models.ConfidenceHigh,
			"Evidence shows FailedScheduling events.",
			[]string{"Add cluster capacity or free up resources", "Check resource requests against node allocatable"},
		), true
	}

	// Rule 3: refused connections point at an unreachable dependency.
	if strings.Contains(strings.ToLower(text), "connection refused") {
		rootCause := "Dependency Unreachable"
		if dep := e.dependencyFor(description); dep != "" {
			rootCause = "Dependency Unreachable: " + dep
		}
		return e.result(
			rootCause,
			models.ConfidenceMedium,
			"Evidence shows refused connections to an upstream dependency.",
			[]string{"Verify the dependency is running and reachable", "Check network policies and service endpoints"},
		), true
	}

	return nil, false
}

// dependencyFor names the first known dependency of a component that
// appears in the incident description.
func (e *Engine) dependencyFor(description string) string {
	if e.graph == nil {
		return ""
	}
	for _, word := range strings.Fields(description) {
		word = strings.Trim(word, ".,:;!?")
		if deps := e.graph.Dependencies(word); len(deps) > 0 {
			logger.DebugWithFields("Matched component in incident description",
				logging.Field("component", word),
				logging.Field("dependencies", len(deps)))
			return deps[0]
		}
	}
	return ""
}

func (e *Engine) result(rootCause string, confidence models.Confidence, reasoning string, recommendations []string) *models.InvestigationResult {
	return &models.InvestigationResult{
		RootCause:       rootCause,
		Confidence:      confidence,
		Reasoning:       "Rule-based correlation: " + reasoning,
		Recommendations: recommendations,
	}
}

// containsRestarts reports whether the evidence mentions a nonzero
// restart count.
func containsRestarts(text string) bool {
	lower := strings.ToLower(text)
	idx := strings.Index(lower, "restart")
	if idx == -1 {
		return false
	}
	// A restart mention with an explicit zero does not count.
	window := lower[idx:]
	if len(window) > 40 {
		window = window[:40]
	}
	return !strings.Contains(window, ": 0") && !strings.Contains(window, "=0") && !strings.Contains(window, " 0 ")
}
