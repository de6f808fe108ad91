// Package http implements the REST API of the practice hub.
package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/bilim-hub/bilim-practice-hub/internal/application/command"
	"github.com/bilim-hub/bilim-practice-hub/internal/application/query"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/decision"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
	"github.com/bilim-hub/bilim-practice-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Bilim Practice Hub API",
		"version":     "v1",
		"description": "Decision and consequence simulation for practice sessions",
		"endpoints": map[string]string{
			"health":   "/health",
			"sessions": "/api/v1/sessions",
			"progress": "/api/v1/learners/{id}/progress",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	// Default health response
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleMetrics handles the metrics endpoint.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]interface{}{
		"uptime_seconds": s.Uptime().Seconds(),
		"running":        s.IsRunning(),
	}

	writeJSON(w, http.StatusOK, metrics)
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION LIFECYCLE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// startSessionRequest is the body of POST /api/v1/sessions.
type startSessionRequest struct {
	LearnerID string `json:"learner_id"`
}

// handleStartSession handles POST /api/v1/sessions
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.SessionLifecycleHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Session handler not configured")
		return
	}

	var req startSessionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.SessionLifecycleHandler.HandleStart(r.Context(), command.StartSessionCommand{
		LearnerID:     req.LearnerID,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to start session")
		return
	}

	writeJSON(w, http.StatusCreated, result.Session)
}

// handleCompleteSession handles POST /api/v1/sessions/{id}/complete
func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.SessionLifecycleHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Session handler not configured")
		return
	}

	result, err := s.deps.SessionLifecycleHandler.HandleComplete(r.Context(), command.CompleteSessionCommand{
		SessionID:     r.PathValue("id"),
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to complete session")
		return
	}

	writeJSON(w, http.StatusOK, result.Session)
}

// handleGetSessionState handles GET /api/v1/sessions/{id}
func (s *Server) handleGetSessionState(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetSessionStateHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Session state handler not configured")
		return
	}

	q := query.GetSessionStateQuery{
		SessionID:      r.PathValue("id"),
		IncludePending: getQueryParamBool(r, "include_pending"),
	}

	result, err := s.deps.GetSessionStateHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get session state")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// DECISION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// resolveChoiceRequest is the body of POST /api/v1/sessions/{id}/choices.
type resolveChoiceRequest struct {
	ChoiceID   string                 `json:"choice_id"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	Skills     map[string]int         `json:"skills,omitempty"`
	Reputation map[string]int         `json:"reputation,omitempty"`
}

// handleResolveChoice handles POST /api/v1/sessions/{id}/choices
func (s *Server) handleResolveChoice(w http.ResponseWriter, r *http.Request) {
	if s.deps.ResolveChoiceHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Choice handler not configured")
		return
	}

	var req resolveChoiceRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	cmd := command.ResolveChoiceCommand{
		SessionID: r.PathValue("id"),
		ChoiceID:  req.ChoiceID,
		Payload:   req.Payload,
		Profile: decision.Profile{
			Skills:     req.Skills,
			Reputation: req.Reputation,
		},
		CorrelationID: getRequestID(r.Context()),
	}

	result, err := s.deps.ResolveChoiceHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to resolve choice")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleRealizeConsequences handles POST /api/v1/sessions/{id}/realize
func (s *Server) handleRealizeConsequences(w http.ResponseWriter, r *http.Request) {
	if s.deps.RealizeHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Realize handler not configured")
		return
	}

	result, err := s.deps.RealizeHandler.Handle(r.Context(), command.RealizeDueConsequencesCommand{
		SessionID:     r.PathValue("id"),
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to realize consequences")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleTickBusiness handles POST /api/v1/sessions/{id}/tick
func (s *Server) handleTickBusiness(w http.ResponseWriter, r *http.Request) {
	if s.deps.TickBusinessHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Tick handler not configured")
		return
	}

	result, err := s.deps.TickBusinessHandler.Handle(r.Context(), command.TickBusinessCommand{
		SessionID:     r.PathValue("id"),
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to tick business")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// awardRequest is the body of the lab and mission award endpoints.
type awardRequest struct {
	RawReward int `json:"raw_reward"`
}

// handleAwardLabXP handles POST /api/v1/learners/{id}/labs/{labId}
func (s *Server) handleAwardLabXP(w http.ResponseWriter, r *http.Request) {
	if s.deps.AwardLabXPHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Lab handler not configured")
		return
	}

	var req awardRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.AwardLabXPHandler.Handle(r.Context(), command.AwardLabXPCommand{
		LearnerID:     r.PathValue("id"),
		LabID:         r.PathValue("labId"),
		RawReward:     req.RawReward,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to award lab xp")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleCompleteMission handles POST /api/v1/learners/{id}/missions/{missionId}
func (s *Server) handleCompleteMission(w http.ResponseWriter, r *http.Request) {
	if s.deps.CompleteMissionHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Mission handler not configured")
		return
	}

	var req awardRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.CompleteMissionHandler.Handle(r.Context(), command.CompleteMissionCommand{
		LearnerID:     r.PathValue("id"),
		MissionID:     r.PathValue("missionId"),
		RawReward:     req.RawReward,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to complete mission")
		return
	}

	// A cooldown rejection is not an error, it is a throttled outcome.
	status := http.StatusOK
	if result.Rejected {
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, result)
}

// handleGetDailyProgress handles GET /api/v1/learners/{id}/progress
func (s *Server) handleGetDailyProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetDailyProgressHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Progress handler not configured")
		return
	}

	q := query.GetDailyProgressQuery{
		LearnerID: r.PathValue("id"),
	}

	result, err := s.deps.GetDailyProgressHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get daily progress")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST / ERROR HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody parses a JSON request body into dest. An empty body decodes
// to the zero value, so endpoints with optional bodies stay usable.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to read request body")
		return false
	}
	defer r.Body.Close()

	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, dest); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return false
	}
	return true
}

// writeDomainError maps domain error kinds onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error, message string) {
	switch {
	case shared.IsNotFound(err):
		writeJSONErrorWithDetails(w, http.StatusNotFound, "not_found", message, err.Error())
	case shared.IsValidation(err):
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_request", message, err.Error())
	case shared.IsAlreadyProcessed(err):
		writeJSONErrorWithDetails(w, http.StatusConflict, "already_processed", message, err.Error())
	case shared.IsConflict(err):
		writeJSONErrorWithDetails(w, http.StatusConflict, "conflict", message, err.Error())
	default:
		s.logger.Error(message, logger.Err(err),
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", message)
	}
}
