package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsloop/triage/internal/models"
)

func TestMemoryStore_CreateAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	created, err := s.Create(ctx, "inc-1", "pod payment-api crashlooping")
	require.NoError(t, err)
	assert.Equal(t, "inc-1", created.ID)
	assert.Equal(t, models.StatusPending, created.Status)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Nil(t, created.CompletedAt)

	got, err := s.Get(ctx, "inc-1")
	require.NoError(t, err)
	assert.Equal(t, "pod payment-api crashlooping", got.Description)
}

func TestMemoryStore_CreateDuplicate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Create(ctx, "inc-1", "first")
	require.NoError(t, err)

	_, err = s.Create(ctx, "inc-1", "second")
	require.Error(t, err)
	_, ok := err.(*AlreadyExistsError)
	assert.True(t, ok)
}

func TestMemoryStore_GetUnknown(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "nope")
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Create(ctx, "inc-1", "database timeouts")
	require.NoError(t, err)

	err = s.MarkRunning(ctx, "inc-1", map[string]string{"pod": "db-0", "namespace": "prod"})
	require.NoError(t, err)

	got, err := s.Get(ctx, "inc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, got.Status)
	assert.Equal(t, "db-0", got.ExtractedEntities["pod"])

	result := &models.InvestigationResult{
		RootCause:  "Insufficient Memory",
		Confidence: models.ConfidenceHigh,
		Evidence: []models.EvidenceItem{
			{Source: "get_pod_details", Content: "OOMKilled", Timestamp: time.Now()},
		},
		Recommendations: []string{"raise memory limit for db-0"},
	}
	err = s.ApplyResult(ctx, "inc-1", result)
	require.NoError(t, err)

	got, err = s.Get(ctx, "inc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, "Insufficient Memory", got.SuggestedRootCause)
	assert.Equal(t, models.ConfidenceHigh, got.ConfidenceScore)
	require.NotNil(t, got.CompletedAt)
	assert.Len(t, got.Evidence, 1)
	assert.Equal(t, []string{"raise memory limit for db-0"}, got.Recommendations)
}

func TestMemoryStore_MarkFailed(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Create(ctx, "inc-1", "something broke")
	require.NoError(t, err)

	// Failing a pending incident is allowed: entity extraction or startup
	// can fail before the investigation ever runs.
	err = s.MarkFailed(ctx, "inc-1", "reasoning provider unavailable")
	require.NoError(t, err)

	got, err := s.Get(ctx, "inc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, "reasoning provider unavailable", got.ErrorMessage)
	require.NotNil(t, got.CompletedAt)
}

func TestMemoryStore_MarkFailedEmptyMessageGetsDefault(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Create(ctx, "inc-1", "something broke")
	require.NoError(t, err)
	require.NoError(t, s.MarkFailed(ctx, "inc-1", ""))

	got, err := s.Get(ctx, "inc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.NotEmpty(t, got.ErrorMessage)
}

func TestMemoryStore_InvalidTransitions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Create(ctx, "inc-1", "desc")
	require.NoError(t, err)

	// Completing a pending incident skips the running state.
	err = s.ApplyResult(ctx, "inc-1", &models.InvestigationResult{RootCause: "x"})
	require.Error(t, err)
	assert.True(t, IsInvalidTransition(err))

	require.NoError(t, s.MarkRunning(ctx, "inc-1", nil))

	// Running twice.
	err = s.MarkRunning(ctx, "inc-1", nil)
	require.Error(t, err)
	assert.True(t, IsInvalidTransition(err))

	require.NoError(t, s.ApplyResult(ctx, "inc-1", &models.InvestigationResult{
		RootCause:  "x",
		Confidence: models.ConfidenceLow,
	}))

	// Terminal states reject further transitions.
	err = s.ApplyResult(ctx, "inc-1", &models.InvestigationResult{RootCause: "y"})
	assert.True(t, IsInvalidTransition(err))
	err = s.MarkFailed(ctx, "inc-1", "late failure")
	assert.True(t, IsInvalidTransition(err))

	got, err := s.Get(ctx, "inc-1")
	require.NoError(t, err)
	assert.Equal(t, "x", got.SuggestedRootCause)
	assert.Empty(t, got.ErrorMessage)
}

func TestMemoryStore_TransitionOnUnknownIncident(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	assert.True(t, IsNotFound(s.MarkRunning(ctx, "ghost", nil)))
	assert.True(t, IsNotFound(s.ApplyResult(ctx, "ghost", &models.InvestigationResult{})))
	assert.True(t, IsNotFound(s.MarkFailed(ctx, "ghost", "err")))
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	for i := 0; i < 3; i++ {
		_, err := s.Create(ctx, fmt.Sprintf("inc-%d", i), "desc")
		require.NoError(t, err)
	}

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "inc-2", list[0].ID)
	assert.Equal(t, "inc-0", list[2].ID)
}

func TestMemoryStore_ReadsAreSnapshots(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Create(ctx, "inc-1", "desc")
	require.NoError(t, err)
	require.NoError(t, s.MarkRunning(ctx, "inc-1", map[string]string{"pod": "a"}))

	got, err := s.Get(ctx, "inc-1")
	require.NoError(t, err)

	// Mutating the returned copy must not leak into the store.
	got.ExtractedEntities["pod"] = "evil"
	got.Evidence = append(got.Evidence, models.EvidenceItem{Source: "fake"})
	got.Status = models.StatusFailed

	fresh, err := s.Get(ctx, "inc-1")
	require.NoError(t, err)
	assert.Equal(t, "a", fresh.ExtractedEntities["pod"])
	assert.Empty(t, fresh.Evidence)
	assert.Equal(t, models.StatusRunning, fresh.Status)
}

func TestMemoryStore_ConcurrentReadersDuringInvestigation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Create(ctx, "inc-1", "desc")
	require.NoError(t, err)
	require.NoError(t, s.MarkRunning(ctx, "inc-1", nil))

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Readers poll while the writer completes the incident. Every
	// observed snapshot must be internally consistent: completed implies
	// a stamped completion time and a root cause.
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				got, err := s.Get(ctx, "inc-1")
				if !assert.NoError(t, err) {
					return
				}
				switch got.Status {
				case models.StatusRunning:
					assert.Nil(t, got.CompletedAt)
				case models.StatusCompleted:
					assert.NotNil(t, got.CompletedAt)
					assert.Equal(t, "root", got.SuggestedRootCause)
				default:
					t.Errorf("unexpected status %s", got.Status)
					return
				}
			}
		}()
	}

	require.NoError(t, s.ApplyResult(ctx, "inc-1", &models.InvestigationResult{
		RootCause:  "root",
		Confidence: models.ConfidenceMedium,
	}))
	time.Sleep(20 * time.Millisecond)
	close(stop)
	wg.Wait()
}

func TestMemoryStore_ConcurrentCreates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := s.Create(ctx, fmt.Sprintf("inc-%d", n), "desc")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, s.Count())
}
