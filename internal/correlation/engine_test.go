package correlation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsloop/triage/internal/knowledge"
	"github.com/opsloop/triage/internal/models"
)

func evidenceWith(contents ...string) []models.EvidenceItem {
	out := make([]models.EvidenceItem, 0, len(contents))
	for _, c := range contents {
		out = append(out, models.EvidenceItem{
			Source:    "get_pod_details",
			Content:   c,
			Timestamp: time.Now(),
		})
	}
	return out
}

func TestCorrelate_OOMKilled(t *testing.T) {
	e := NewEngine(nil)

	result, ok := e.Correlate("pod db-0 crashing", evidenceWith(
		`{"state":"OOMKilled","restarts": 47}`,
	))
	require.True(t, ok)
	assert.Equal(t, "Insufficient Memory", result.RootCause)
	assert.Equal(t, models.ConfidenceHigh, result.Confidence)
	assert.NotEmpty(t, result.Recommendations)
}

func TestCorrelate_OOMKilledWithoutRestartsDoesNotMatch(t *testing.T) {
	e := NewEngine(nil)

	_, ok := e.Correlate("pod crashing", evidenceWith("container was OOMKilled once, no other data"))
	assert.False(t, ok)
}

func TestCorrelate_FailedScheduling(t *testing.T) {
	e := NewEngine(nil)

	result, ok := e.Correlate("pod stuck pending", evidenceWith(
		"Warning  FailedScheduling  0/3 nodes available: insufficient cpu",
	))
	require.True(t, ok)
	assert.Equal(t, "Insufficient Cluster Resources", result.RootCause)
	assert.Equal(t, models.ConfidenceHigh, result.Confidence)
}

func TestCorrelate_ConnectionRefused(t *testing.T) {
	e := NewEngine(nil)

	result, ok := e.Correlate("api errors", evidenceWith(
		"dial tcp 10.0.0.5:5432: Connection refused",
	))
	require.True(t, ok)
	assert.Equal(t, "Dependency Unreachable", result.RootCause)
	assert.Equal(t, models.ConfidenceMedium, result.Confidence)
}

func TestCorrelate_ConnectionRefusedNamesDependency(t *testing.T) {
	graph := knowledge.New([]knowledge.Component{
		{Name: "payment-api", Type: "service", Relationships: []knowledge.Relationship{{DependsOn: "postgres"}}},
		{Name: "postgres", Type: "database"},
	})
	e := NewEngine(graph)

	result, ok := e.Correlate("payment-api returning 500s", evidenceWith(
		"connection refused while querying database",
	))
	require.True(t, ok)
	assert.Equal(t, "Dependency Unreachable: postgres", result.RootCause)
}

func TestCorrelate_NoRuleMatches(t *testing.T) {
	e := NewEngine(nil)

	result, ok := e.Correlate("something odd", evidenceWith("all systems nominal"))
	assert.False(t, ok)
	assert.Nil(t, result)
}

func TestCorrelate_EmptyEvidence(t *testing.T) {
	e := NewEngine(nil)

	_, ok := e.Correlate("no evidence collected", nil)
	assert.False(t, ok)
}
