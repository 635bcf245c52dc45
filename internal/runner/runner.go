// Package runner executes investigations in the background: it takes
// accepted incidents, runs the investigation engine against each one with
// a concurrency bound, and writes the outcome back to the store.
package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/opsloop/triage/internal/agent/engine"
	"github.com/opsloop/triage/internal/agent/entities"
	"github.com/opsloop/triage/internal/logging"
	"github.com/opsloop/triage/internal/metrics"
	"github.com/opsloop/triage/internal/store"
)

var logger = logging.GetLogger("runner")

// Runner is a lifecycle component that owns the investigation goroutines.
type Runner struct {
	store     store.IncidentStore
	engine    *engine.Engine
	extractor *entities.Extractor
	metrics   *metrics.Metrics

	sem chan struct{}
	wg  sync.WaitGroup

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// New creates a runner with the given concurrency bound.
func New(st store.IncidentStore, eng *engine.Engine, extractor *entities.Extractor, m *metrics.Metrics, maxConcurrent int) *Runner {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Runner{
		store:     st,
		engine:    eng,
		extractor: extractor,
		metrics:   m,
		sem:       make(chan struct{}, maxConcurrent),
	}
}

// Name implements lifecycle.Component.
func (r *Runner) Name() string {
	return "investigation-runner"
}

// Start implements lifecycle.Component. Investigations run on a context
// owned by the runner, not the startup context.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.started = true
	logger.Info("Investigation runner started (max concurrent: %d)", cap(r.sem))
	return nil
}

// Stop implements lifecycle.Component. It cancels in-flight
// investigations and waits for their goroutines within the context
// deadline. Interrupted incidents stay in running status; the record
// shows the investigation never concluded.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Investigation runner stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for in-flight investigations: %w", ctx.Err())
	}
}

// Submit schedules an investigation for an accepted incident. It returns
// immediately; the investigation runs in the background, queueing behind
// the concurrency bound if necessary.
func (r *Runner) Submit(incidentID, description string) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return fmt.Errorf("runner is not started")
	}
	runCtx := r.ctx
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		select {
		case r.sem <- struct{}{}:
			defer func() { <-r.sem }()
		case <-runCtx.Done():
			return
		}

		r.investigate(runCtx, incidentID, description)
	}()
	return nil
}

func (r *Runner) investigate(ctx context.Context, incidentID, description string) {
	correlationID := uuid.NewString()
	ctx = logging.WithCorrelationID(ctx, correlationID)
	ctx = logging.WithIncidentID(ctx, incidentID)

	if r.metrics != nil {
		r.metrics.InvestigationsStarted.Inc()
		r.metrics.ActiveInvestigations.Inc()
		defer r.metrics.ActiveInvestigations.Dec()
	}

	extracted := r.extractor.Extract(ctx, description)

	if err := r.store.MarkRunning(ctx, incidentID, extracted); err != nil {
		logger.ErrorWithErr("Failed to mark incident %s running", err, incidentID)
		return
	}

	result, err := r.engine.Investigate(ctx, incidentID, description)
	if err != nil {
		// A shutdown cancellation is not an investigation failure; the
		// incident stays running so the interruption is visible.
		if ctx.Err() != nil {
			logger.WarnWithFields("Investigation interrupted by shutdown",
				logging.Field("incident_id", incidentID),
				logging.Field("correlation_id", correlationID))
			return
		}
		if markErr := r.store.MarkFailed(ctx, incidentID, err.Error()); markErr != nil {
			logger.ErrorWithErr("Failed to mark incident %s failed", markErr, incidentID)
		}
		if r.metrics != nil {
			r.metrics.InvestigationsFailed.Inc()
		}
		return
	}

	if err := r.store.ApplyResult(ctx, incidentID, result); err != nil {
		logger.ErrorWithErr("Failed to apply result for incident %s", err, incidentID)
		return
	}
	if r.metrics != nil {
		r.metrics.InvestigationsCompleted.Inc()
	}
}
