package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsloop/triage/internal/agent/engine"
	"github.com/opsloop/triage/internal/agent/entities"
	"github.com/opsloop/triage/internal/agent/provider"
	"github.com/opsloop/triage/internal/models"
	"github.com/opsloop/triage/internal/store"
)

type noTools struct{}

func (noTools) Catalog() []models.ToolDescriptor { return nil }
func (noTools) Invoke(ctx context.Context, name string, args map[string]interface{}) *models.ToolInvocationResult {
	return &models.ToolInvocationResult{ToolName: name, Output: "ok", Succeeded: true}
}

const finalAnalysis = `ROOT CAUSE: Liveness probe misconfigured
CONFIDENCE: high
EVIDENCE: probe fires before startup completes
RECOMMENDATIONS:
- Increase the initial delay on the liveness probe`

func newRunner(t *testing.T, st store.IncidentStore, turns ...provider.ScriptedTurn) *Runner {
	t.Helper()
	eng := engine.New(provider.NewScriptedProvider(turns...), noTools{}, engine.Options{MaxIterations: 3})
	r := New(st, eng, entities.NewExtractor(nil), nil, 2)
	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = r.Stop(ctx)
	})
	return r
}

func waitForStatus(t *testing.T, st store.IncidentStore, id string, want models.IncidentStatus) *models.Incident {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		inc, err := st.Get(context.Background(), id)
		require.NoError(t, err)
		if inc.Status == want {
			return inc
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("incident %s never reached status %s", id, want)
	return nil
}

func TestRunner_CompletesInvestigation(t *testing.T) {
	st := store.NewMemoryStore()
	_, err := st.Create(context.Background(), "inc-1", "pod:db-0 crashlooping namespace:prod")
	require.NoError(t, err)

	r := newRunner(t, st, provider.TextTurn(finalAnalysis))
	require.NoError(t, r.Submit("inc-1", "pod:db-0 crashlooping namespace:prod"))

	inc := waitForStatus(t, st, "inc-1", models.StatusCompleted)
	assert.Equal(t, "Liveness probe misconfigured", inc.SuggestedRootCause)
	assert.Equal(t, models.ConfidenceHigh, inc.ConfidenceScore)
	// Regex extraction ran before the investigation.
	assert.Equal(t, "db-0", inc.ExtractedEntities["pod"])
	assert.Equal(t, "prod", inc.ExtractedEntities["namespace"])
	require.NotNil(t, inc.CompletedAt)
}

func TestRunner_ReasoningFailureMarksFailed(t *testing.T) {
	st := store.NewMemoryStore()
	_, err := st.Create(context.Background(), "inc-1", "desc")
	require.NoError(t, err)

	turns := []provider.ScriptedTurn{
		provider.ErrorTurn(errors.New("service down")),
	}
	eng := engine.New(provider.NewScriptedProvider(turns...), noTools{}, engine.Options{MaxIterations: 3})
	r := New(st, eng, entities.NewExtractor(nil), nil, 2)
	require.NoError(t, r.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = r.Stop(ctx)
	}()

	require.NoError(t, r.Submit("inc-1", "desc"))

	inc := waitForStatus(t, st, "inc-1", models.StatusFailed)
	assert.Contains(t, inc.ErrorMessage, "service down")
	require.NotNil(t, inc.CompletedAt)
}

func TestRunner_SubmitBeforeStart(t *testing.T) {
	st := store.NewMemoryStore()
	eng := engine.New(provider.NewScriptedProvider(), noTools{}, engine.Options{})
	r := New(st, eng, entities.NewExtractor(nil), nil, 1)

	err := r.Submit("inc-1", "desc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not started")
}

func TestRunner_ConcurrentInvestigationsAreIsolated(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	_, err := st.Create(ctx, "inc-a", "pod:a-0 failing")
	require.NoError(t, err)
	_, err = st.Create(ctx, "inc-b", "pod:b-0 failing")
	require.NoError(t, err)

	// Two investigations, each needing one scripted turn.
	r := newRunner(t, st,
		provider.TextTurn(finalAnalysis),
		provider.TextTurn(finalAnalysis),
	)

	require.NoError(t, r.Submit("inc-a", "pod:a-0 failing"))
	require.NoError(t, r.Submit("inc-b", "pod:b-0 failing"))

	incA := waitForStatus(t, st, "inc-a", models.StatusCompleted)
	incB := waitForStatus(t, st, "inc-b", models.StatusCompleted)
	assert.Equal(t, "a-0", incA.ExtractedEntities["pod"])
	assert.Equal(t, "b-0", incB.ExtractedEntities["pod"])
}

func TestRunner_StopLeavesInterruptedIncidentRunning(t *testing.T) {
	st := store.NewMemoryStore()
	_, err := st.Create(context.Background(), "inc-1", "desc")
	require.NoError(t, err)

	blocked := make(chan struct{})
	eng := engine.New(&blockingProvider{release: blocked}, noTools{}, engine.Options{MaxIterations: 3})
	r := New(st, eng, entities.NewExtractor(nil), nil, 1)
	require.NoError(t, r.Start(context.Background()))

	require.NoError(t, r.Submit("inc-1", "desc"))
	waitForStatus(t, st, "inc-1", models.StatusRunning)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Stop(stopCtx))
	close(blocked)

	inc, err := st.Get(context.Background(), "inc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, inc.Status)
	assert.Empty(t, inc.ErrorMessage)
}

// blockingProvider blocks until released or the context is cancelled.
type blockingProvider struct {
	release chan struct{}
}

func (p *blockingProvider) Chat(ctx context.Context, systemPrompt string, messages []provider.Message, tools []provider.ToolDefinition) (*provider.Response, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.release:
		return &provider.Response{Content: "released", StopReason: provider.StopReasonEndTurn}, nil
	}
}

func (p *blockingProvider) Name() string  { return "blocking" }
func (p *blockingProvider) Model() string { return "blocking-v1" }
