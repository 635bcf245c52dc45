package apiserver

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/opsloop/triage/internal/store"
)

const maxDescriptionLength = 8192

// createIncidentRequest is the POST /api/v1/incidents payload.
type createIncidentRequest struct {
	Description string `json:"description"`
}

// createIncidentResponse acknowledges an accepted incident.
type createIncidentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// handleCreateIncident records a new incident and schedules its
// investigation. Responds 202 since the investigation runs in the
// background.
func (s *Server) handleCreateIncident(w http.ResponseWriter, r *http.Request) {
	var req createIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "request body must be valid JSON")
		return
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "description is required")
		return
	}
	if len(description) > maxDescriptionLength {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "description exceeds maximum length")
		return
	}

	id := uuid.NewString()
	incident, err := s.store.Create(r.Context(), id, description)
	if err != nil {
		s.logger.Error("Failed to create incident: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create incident")
		return
	}

	if err := s.runner.Submit(incident.ID, incident.Description); err != nil {
		s.logger.Error("Failed to submit investigation for incident %s: %v", incident.ID, err)
		writeError(w, http.StatusServiceUnavailable, "NOT_ACCEPTING", "service is not accepting investigations")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = writeJSON(w, createIncidentResponse{
		ID:     incident.ID,
		Status: string(incident.Status),
	})
}

// handleListIncidents returns all incidents, newest first.
func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	incidents, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("Failed to list incidents: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list incidents")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = writeJSON(w, map[string]interface{}{
		"incidents": incidents,
		"count":     len(incidents),
	})
}

// handleGetIncident returns a single incident by ID.
func (s *Server) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/incidents/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "incident not found")
		return
	}

	incident, err := s.store.Get(r.Context(), id)
	if err != nil {
		if store.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "incident not found")
			return
		}
		s.logger.Error("Failed to get incident %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to get incident")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = writeJSON(w, incident)
}
