// Package models defines the core data types shared across the triage
// service: incidents, evidence, investigation results, and tool metadata.
package models

import (
	"time"
)

// IncidentStatus represents the lifecycle state of an incident.
// Transitions are monotonic: pending -> running -> completed|failed.
type IncidentStatus string

const (
	// StatusPending means the incident is recorded but not yet investigated.
	StatusPending IncidentStatus = "pending"
	// StatusRunning means an investigation is in flight.
	StatusRunning IncidentStatus = "running"
	// StatusCompleted means the investigation produced findings.
	StatusCompleted IncidentStatus = "completed"
	// StatusFailed means the investigation terminated with an error.
	StatusFailed IncidentStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s IncidentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether the status is one of the known states.
func (s IncidentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Confidence expresses how certain the investigation is about a root cause.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence normalizes a confidence string, defaulting to medium
// for unknown values (the model is not always disciplined about casing).
func ParseConfidence(s string) Confidence {
	switch Confidence(s) {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return Confidence(s)
	}
	return ConfidenceMedium
}

// EvidenceItem is a single piece of evidence collected during an
// investigation: a tool output or an observation from the analysis.
type EvidenceItem struct {
	// Source identifies where the evidence came from: a tool name or
	// "agent_analysis" for conclusions drawn in the final answer.
	Source string `json:"source"`

	// Arguments are the tool arguments that produced this evidence, if any.
	Arguments map[string]interface{} `json:"arguments,omitempty"`

	// Content is the evidence payload. Failed tool calls carry the error
	// text here; a failure is still evidence.
	Content string `json:"content"`

	Timestamp time.Time `json:"timestamp"`
}

// Incident is the root entity tracked by the incident store.
// ID and Description are immutable after creation; all other mutation
// goes through the store's transition methods.
type Incident struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	Status      IncidentStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Evidence is append-only while the incident is running.
	Evidence []EvidenceItem `json:"evidence"`

	// ExtractedEntities holds facts derived from the description,
	// e.g. resource names. May be empty.
	ExtractedEntities map[string]string `json:"extracted_entities,omitempty"`

	// SuggestedRootCause and ConfidenceScore are populated only when
	// the status is completed.
	SuggestedRootCause string     `json:"suggested_root_cause,omitempty"`
	ConfidenceScore    Confidence `json:"confidence_score,omitempty"`

	// Recommendations are actionable follow-ups from the investigation.
	Recommendations []string `json:"recommendations,omitempty"`

	// ErrorMessage is populated only when the status is failed.
	ErrorMessage string `json:"error_message,omitempty"`
}

// Clone returns a deep copy of the incident. The store hands out clones
// so callers can never mutate the authoritative record.
func (i *Incident) Clone() *Incident {
	dup := *i

	if i.CompletedAt != nil {
		t := *i.CompletedAt
		dup.CompletedAt = &t
	}

	if i.Evidence != nil {
		dup.Evidence = make([]EvidenceItem, len(i.Evidence))
		copy(dup.Evidence, i.Evidence)
	}

	if i.ExtractedEntities != nil {
		dup.ExtractedEntities = make(map[string]string, len(i.ExtractedEntities))
		for k, v := range i.ExtractedEntities {
			dup.ExtractedEntities[k] = v
		}
	}

	if i.Recommendations != nil {
		dup.Recommendations = make([]string, len(i.Recommendations))
		copy(dup.Recommendations, i.Recommendations)
	}

	return &dup
}

// ToolCallRecord records one tool call made during an investigation.
type ToolCallRecord struct {
	Tool      string                 `json:"tool"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// InvestigationResult is the terminal output of one investigation run,
// applied to the incident by the store.
type InvestigationResult struct {
	RootCause       string           `json:"root_cause"`
	Confidence      Confidence       `json:"confidence"`
	Evidence        []EvidenceItem   `json:"evidence"`
	Reasoning       string           `json:"reasoning"`
	Recommendations []string         `json:"recommendations,omitempty"`
	ToolCalls       []ToolCallRecord `json:"tool_calls,omitempty"`
}
