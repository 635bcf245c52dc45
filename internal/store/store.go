// Package store provides the incident state store: the authoritative,
// concurrency-safe record of every incident the service has accepted.
//
// Status transitions are monotonic (pending -> running -> completed|failed)
// and the store is the only component allowed to mutate incident records.
// Readers always receive deep copies, never the live record.
package store

import (
	"context"
	"fmt"

	"github.com/opsloop/triage/internal/models"
)

// IncidentStore is the persistence surface for incidents. Implementations
// must be safe for concurrent use.
type IncidentStore interface {
	// Create registers a new incident with the given id and description.
	// The incident starts in pending status with created_at set on entry.
	Create(ctx context.Context, id, description string) (*models.Incident, error)

	// Get returns a copy of the incident, or NotFoundError.
	Get(ctx context.Context, id string) (*models.Incident, error)

	// List returns copies of all incidents, newest first.
	List(ctx context.Context) ([]*models.Incident, error)

	// MarkRunning advances a pending incident to running and records any
	// entities extracted from the description.
	MarkRunning(ctx context.Context, id string, entities map[string]string) error

	// ApplyResult advances a running incident to completed, applying the
	// investigation findings and stamping completed_at.
	ApplyResult(ctx context.Context, id string, result *models.InvestigationResult) error

	// MarkFailed advances a pending or running incident to failed with the
	// given error message and stamps completed_at.
	MarkFailed(ctx context.Context, id string, errMsg string) error
}

// NotFoundError indicates the requested incident does not exist.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("incident %s not found", e.ID)
}

// NewNotFoundError creates a NotFoundError for the given incident id.
func NewNotFoundError(id string) *NotFoundError {
	return &NotFoundError{ID: id}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// InvalidTransitionError indicates a status transition that violates the
// monotonic lifecycle, e.g. completing an incident twice.
type InvalidTransitionError struct {
	ID   string
	From models.IncidentStatus
	To   models.IncidentStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("incident %s: invalid transition %s -> %s", e.ID, e.From, e.To)
}

// NewInvalidTransitionError creates an InvalidTransitionError.
func NewInvalidTransitionError(id string, from, to models.IncidentStatus) *InvalidTransitionError {
	return &InvalidTransitionError{ID: id, From: from, To: to}
}

// IsInvalidTransition reports whether err is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	_, ok := err.(*InvalidTransitionError)
	return ok
}

// AlreadyExistsError indicates a Create with an id already in use.
type AlreadyExistsError struct {
	ID string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("incident %s already exists", e.ID)
}
