package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/opsloop/triage/internal/logging"
	"github.com/opsloop/triage/internal/models"
)

var logger = logging.GetLogger("store")

// MemoryStore is an in-memory IncidentStore. Records live for the lifetime
// of the process; restarting the service loses history.
type MemoryStore struct {
	mu        sync.RWMutex
	incidents map[string]*models.Incident

	// now is swappable for tests.
	now func() time.Time
}

// NewMemoryStore creates an empty in-memory incident store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		incidents: make(map[string]*models.Incident),
		now:       time.Now,
	}
}

// Create registers a new pending incident.
func (s *MemoryStore) Create(ctx context.Context, id, description string) (*models.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.incidents[id]; exists {
		return nil, &AlreadyExistsError{ID: id}
	}

	inc := &models.Incident{
		ID:          id,
		Description: description,
		Status:      models.StatusPending,
		CreatedAt:   s.now().UTC(),
		Evidence:    []models.EvidenceItem{},
	}
	s.incidents[id] = inc

	logger.InfoWithFields("Incident created",
		logging.Field("incident_id", id))
	return inc.Clone(), nil
}

// Get returns a copy of the incident, or NotFoundError.
func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inc, ok := s.incidents[id]
	if !ok {
		return nil, NewNotFoundError(id)
	}
	return inc.Clone(), nil
}

// List returns copies of all incidents, newest first.
func (s *MemoryStore) List(ctx context.Context) ([]*models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Incident, 0, len(s.incidents))
	for _, inc := range s.incidents {
		out = append(out, inc.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// MarkRunning advances a pending incident to running.
func (s *MemoryStore) MarkRunning(ctx context.Context, id string, entities map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.incidents[id]
	if !ok {
		return NewNotFoundError(id)
	}
	if inc.Status != models.StatusPending {
		return NewInvalidTransitionError(id, inc.Status, models.StatusRunning)
	}

	inc.Status = models.StatusRunning
	if len(entities) > 0 {
		inc.ExtractedEntities = make(map[string]string, len(entities))
		for k, v := range entities {
			inc.ExtractedEntities[k] = v
		}
	}

	logger.InfoWithFields("Incident investigation started",
		logging.Field("incident_id", id),
		logging.Field("entities", len(entities)))
	return nil
}

// ApplyResult advances a running incident to completed with its findings.
func (s *MemoryStore) ApplyResult(ctx context.Context, id string, result *models.InvestigationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.incidents[id]
	if !ok {
		return NewNotFoundError(id)
	}
	if inc.Status != models.StatusRunning {
		return NewInvalidTransitionError(id, inc.Status, models.StatusCompleted)
	}

	inc.Status = models.StatusCompleted
	inc.SuggestedRootCause = result.RootCause
	inc.ConfidenceScore = result.Confidence
	if len(result.Evidence) > 0 {
		inc.Evidence = append(inc.Evidence, result.Evidence...)
	}
	if len(result.Recommendations) > 0 {
		inc.Recommendations = append([]string(nil), result.Recommendations...)
	}
	completed := s.now().UTC()
	inc.CompletedAt = &completed

	logger.InfoWithFields("Incident investigation completed",
		logging.Field("incident_id", id),
		logging.Field("confidence", string(result.Confidence)),
		logging.Field("evidence", len(inc.Evidence)))
	return nil
}

// MarkFailed advances a pending or running incident to failed.
func (s *MemoryStore) MarkFailed(ctx context.Context, id string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.incidents[id]
	if !ok {
		return NewNotFoundError(id)
	}
	if inc.Status.Terminal() {
		return NewInvalidTransitionError(id, inc.Status, models.StatusFailed)
	}

	// A failed incident always carries an error message.
	if errMsg == "" {
		errMsg = "investigation failed for an unspecified reason"
	}

	inc.Status = models.StatusFailed
	inc.ErrorMessage = errMsg
	completed := s.now().UTC()
	inc.CompletedAt = &completed

	logger.WarnWithFields("Incident investigation failed",
		logging.Field("incident_id", id),
		logging.Field("error", errMsg))
	return nil
}

// Count returns the number of incidents currently held.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.incidents)
}
